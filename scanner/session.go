package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/shipcheck/shipcheck/client"
)

// Source is a stream of decoded QR strings. A camera decoder, a hardware
// scanner, or the in-tree ManualSource all present the same interface.
type Source interface {
	// Start begins delivering decoded strings to onResult until Stop or
	// ctx cancellation. Decode failures go to onError without ending the
	// stream.
	Start(ctx context.Context, onResult func(string), onError func(error)) error
	Stop()
}

// ManualSource is a channel-fed Source for keyboard-wedge scanners and
// tests, and the fallback when a camera source fails to start
type ManualSource struct {
	codes  chan string
	stopCh chan struct{}
	once   sync.Once
}

// NewManualSource creates a manual code source
func NewManualSource() *ManualSource {
	return &ManualSource{
		codes:  make(chan string, 16),
		stopCh: make(chan struct{}),
	}
}

// Submit feeds one decoded string into the source. Returns false once the
// source is stopped.
func (m *ManualSource) Submit(code string) bool {
	select {
	case <-m.stopCh:
		return false
	default:
	}
	select {
	case m.codes <- code:
		return true
	case <-m.stopCh:
		return false
	}
}

// Start delivers submitted codes until Stop or ctx cancellation
func (m *ManualSource) Start(ctx context.Context, onResult func(string), onError func(error)) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case code := <-m.codes:
				onResult(code)
			}
		}
	}()
	return nil
}

// Stop ends delivery. Safe to call more than once.
func (m *ManualSource) Stop() {
	m.once.Do(func() {
		close(m.stopCh)
	})
}

// ScanEvent is one processed scan attempt as seen by the session owner
type ScanEvent struct {
	QRCode  string
	Outcome string
	Success bool
	Message string
	Err     error
}

// DefaultDebounce suppresses re-delivery of one code while it is held in
// front of the scanner. The server stays authoritative for duplicates.
const DefaultDebounce = 2 * time.Second

// Session drives one QR source against one open inspection. It keeps
// capturing after scanned, duplicate, and unmatched outcomes; only Stop,
// context cancellation, or completing the inspection end it.
type Session struct {
	InspectionID string

	source   Source
	client   *client.InspectionClient
	events   chan ScanEvent
	debounce time.Duration
	logger   cmtlog.Logger

	mu       sync.Mutex
	lastCode string
	lastSeen time.Time
	cancel   context.CancelFunc
	stopped  bool
}

// NewSession creates a scan session for an open inspection
func NewSession(inspectionID string, source Source, apiClient *client.InspectionClient, logger cmtlog.Logger) *Session {
	return &Session{
		InspectionID: inspectionID,
		source:       source,
		client:       apiClient,
		events:       make(chan ScanEvent, 16),
		debounce:     DefaultDebounce,
		logger:       logger,
	}
}

// SetDebounce overrides the debounce window. Zero disables debouncing.
func (s *Session) SetDebounce(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce = d
}

// Events returns the stream of processed scan attempts. Closed when the
// session ends.
func (s *Session) Events() <-chan ScanEvent {
	return s.events
}

// Run starts the source and processes decoded strings until the session
// ends. Blocks until then.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("session for inspection %s is stopped", s.InspectionID)
	}
	s.cancel = cancel
	s.mu.Unlock()

	err := s.source.Start(runCtx, s.handleCode, s.handleSourceError)
	if err != nil {
		cancel()
		s.finish()
		return fmt.Errorf("failed to start scan source: %w", err)
	}

	<-runCtx.Done()
	s.source.Stop()
	s.finish()
	return nil
}

// Stop ends the session. A stopped session delivers no further events.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Complete finalizes the inspection on the server and stops the session
func (s *Session) Complete(notes string) (*client.CompleteResponse, error) {
	resp, err := s.client.CompleteInspection(s.InspectionID, notes)
	s.Stop()
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Session) handleCode(code string) {
	if code == "" {
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	if s.debounce > 0 && code == s.lastCode && now.Sub(s.lastSeen) < s.debounce {
		s.lastSeen = now
		s.mu.Unlock()
		return
	}
	s.lastCode = code
	s.lastSeen = now
	s.mu.Unlock()

	resp, err := s.client.SubmitScan(s.InspectionID, code)
	if err != nil {
		s.logger.Error("Scan submission failed", "inspection_id", s.InspectionID, "error", err.Error())
		s.emit(ScanEvent{QRCode: code, Err: err})
		return
	}

	s.emit(ScanEvent{
		QRCode:  code,
		Outcome: resp.Outcome,
		Success: resp.Success,
		Message: resp.Message,
	})
}

func (s *Session) handleSourceError(err error) {
	s.logger.Error("Scan source error", "inspection_id", s.InspectionID, "error", err.Error())
	s.emit(ScanEvent{Err: err})
}

func (s *Session) emit(event ScanEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.events == nil {
		return
	}
	select {
	case s.events <- event:
	default:
		// Slow consumer, drop rather than stall the scanner
		s.logger.Error("Dropping scan event, consumer not keeping up", "inspection_id", s.InspectionID)
	}
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
	}
	if s.events != nil {
		close(s.events)
		s.events = nil
	}
}
