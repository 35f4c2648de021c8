package scanner

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shipcheck/shipcheck/client"
	"github.com/shipcheck/shipcheck/repository"
	"github.com/shipcheck/shipcheck/server"
	"github.com/shipcheck/shipcheck/srvreg"
)

// newTestSession opens an inspection on a full in-memory stack and wires
// a manual source to it
func newTestSession(t *testing.T) (*Session, *ManualSource) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	repo := repository.NewRepositoryWithDB(db)
	repo.Migrate()
	repo.Seed()

	nopLogger := cmtlog.NewNopLogger()
	sr := srvreg.NewServiceRegistry(repo, nil, nopLogger)
	sr.RegisterDefaultServices()

	ws, err := server.NewWebServer("0", nopLogger, nil, sr, repo)
	require.NoError(t, err)
	ts := httptest.NewServer(ws.Handler())
	t.Cleanup(ts.Close)

	apiClient := client.NewInspectionClient(ts.URL)
	started, err := apiClient.StartInspection("SI-001", "tester")
	require.NoError(t, err)

	source := NewManualSource()
	session := NewSession(started.Inspection.ID, source, apiClient, nopLogger)
	return session, source
}

func waitEvent(t *testing.T, events <-chan ScanEvent) ScanEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event channel closed unexpectedly")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scan event")
		return ScanEvent{}
	}
}

func TestSessionScanFlow(t *testing.T) {
	session, source := newTestSession(t)
	session.SetDebounce(0)
	events := session.Events()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	require.True(t, source.Submit("QR-WX100-MAIN"))
	ev := waitEvent(t, events)
	assert.True(t, ev.Success)
	assert.Equal(t, "scanned", ev.Outcome)

	// Soft failures keep the session alive
	require.True(t, source.Submit("QR-BOGUS"))
	ev = waitEvent(t, events)
	assert.False(t, ev.Success)
	assert.Equal(t, "error", ev.Outcome)

	require.True(t, source.Submit("QR-WX100-MAIN"))
	ev = waitEvent(t, events)
	assert.False(t, ev.Success)
	assert.Equal(t, "duplicate", ev.Outcome)

	// Capture continues after every outcome
	require.True(t, source.Submit("QR-WX100-ADPT"))
	ev = waitEvent(t, events)
	assert.True(t, ev.Success)
}

func TestSessionDebounce(t *testing.T) {
	session, source := newTestSession(t)
	session.SetDebounce(500 * time.Millisecond)
	events := session.Events()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	// Same code held in front of the scanner: one server call
	require.True(t, source.Submit("QR-WX100-MAIN"))
	require.True(t, source.Submit("QR-WX100-MAIN"))
	require.True(t, source.Submit("QR-WX100-MAIN"))

	ev := waitEvent(t, events)
	assert.Equal(t, "scanned", ev.Outcome)

	select {
	case ev := <-events:
		t.Fatalf("debounced code was re-delivered: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}

	// A different code goes straight through
	require.True(t, source.Submit("QR-WX100-ADPT"))
	ev = waitEvent(t, events)
	assert.Equal(t, "scanned", ev.Outcome)

	// The first code again, outside the window: server reports duplicate
	time.Sleep(600 * time.Millisecond)
	require.True(t, source.Submit("QR-WX100-MAIN"))
	ev = waitEvent(t, events)
	assert.Equal(t, "duplicate", ev.Outcome)
}

func TestSessionStop(t *testing.T) {
	session, source := newTestSession(t)
	session.SetDebounce(0)
	events := session.Events()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(done)
	}()

	require.True(t, source.Submit("QR-WX100-MAIN"))
	waitEvent(t, events)

	session.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	// Stopped source refuses further input
	assert.False(t, source.Submit("QR-WX100-ADPT"))

	// Channel drains closed with no further events
	for ev := range events {
		t.Fatalf("event delivered after Stop: %+v", ev)
	}
}

func TestSessionComplete(t *testing.T) {
	session, source := newTestSession(t)
	session.SetDebounce(0)
	events := session.Events()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(done)
	}()

	for _, code := range []string{"QR-WX100-MAIN", "QR-WX100-ADPT", "QR-WX100-CBL"} {
		require.True(t, source.Submit(code))
		ev := waitEvent(t, events)
		require.True(t, ev.Success)
	}

	resp, err := session.Complete("all present")
	require.NoError(t, err)
	assert.Equal(t, "pass", resp.Result)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Complete")
	}
}

func TestSessionContextCancel(t *testing.T) {
	session, _ := newTestSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestManualSourceFallbackShape(t *testing.T) {
	// ManualSource satisfies the same contract a camera source would
	var _ Source = NewManualSource()

	source := NewManualSource()
	got := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, source.Start(ctx, func(code string) { got <- code }, func(error) {}))
	require.True(t, source.Submit("QR-X"))

	select {
	case code := <-got:
		assert.Equal(t, "QR-X", code)
	case <-time.After(time.Second):
		t.Fatal("manual source did not deliver")
	}

	source.Stop()
	source.Stop() // idempotent
	assert.False(t, source.Submit("QR-Y"))
}