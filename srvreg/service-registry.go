package srvreg

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/shipcheck/shipcheck/repository"
)

// Request represents the client's HTTP request
type Request struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Headers    map[string]string `json:"headers"`
	Query      url.Values        `json:"-"`
	Body       string            `json:"body"`
	RemoteAddr string            `json:"remote_addr"`
	RequestID  string            `json:"request_id"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Response represents the computed response from server
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	Error      string            `json:"error,omitempty"`
}

// ServiceHandler is a function type for service handlers
type ServiceHandler func(*Request) (*Response, error)

// RouteKey uniquely identifies a route
type RouteKey struct {
	Method string
	Path   string
}

// ServiceRegistry manages all service handlers
type ServiceRegistry struct {
	handlers    map[RouteKey]ServiceHandler
	exactRoutes map[RouteKey]bool
	mu          sync.RWMutex
	repository  *repository.Repository
	auditor     AuditQuerier
	logger      cmtlog.Logger
}

// AuditQuerier resolves inspection anchors against the audit ledger.
// Nil when the node runs without a ledger (tests, degraded mode).
type AuditQuerier interface {
	QueryAuditRecord(inspectionID string) ([]byte, error)
}

var defaultHeaders = map[string]string{"Content-Type": "application/json"}

// NewServiceRegistry creates a new service registry
func NewServiceRegistry(repository *repository.Repository, auditor AuditQuerier, logger cmtlog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		handlers:    make(map[RouteKey]ServiceHandler),
		exactRoutes: make(map[RouteKey]bool),
		repository:  repository,
		auditor:     auditor,
		logger:      logger,
	}
}

// GenerateRequestID generates a deterministic ID for the request
func (r *Request) GenerateRequestID() {
	hasher := sha256.New()
	hasher.Write([]byte(fmt.Sprintf("%s-%s-%s-%s", r.Path, r.Method, r.Body, r.Timestamp)))
	r.RequestID = hex.EncodeToString(hasher.Sum(nil)[:16])
}

// RegisterHandler registers a new service handler
func (sr *ServiceRegistry) RegisterHandler(method, path string, isExactPath bool, handler ServiceHandler) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	key := RouteKey{Method: strings.ToUpper(method), Path: path}
	sr.handlers[key] = handler
	sr.exactRoutes[key] = isExactPath
}

// GetHandlerForPath finds the appropriate handler for a given path
func (sr *ServiceRegistry) GetHandlerForPath(method, path string) (ServiceHandler, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	// Try exact match first
	key := RouteKey{Method: strings.ToUpper(method), Path: path}
	if handler, ok := sr.handlers[key]; ok {
		if sr.exactRoutes[key] {
			return handler, true
		}
	}

	// Try pattern matching
	for routeKey, handler := range sr.handlers {
		if routeKey.Method != strings.ToUpper(method) {
			continue
		}

		if sr.exactRoutes[routeKey] {
			continue
		}

		if matchPath(routeKey.Path, path) {
			return handler, true
		}
	}

	return nil, false
}

// matchPath does simple pattern matching for routes
func matchPath(pattern, path string) bool {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i := range len(patternParts) {
		if strings.HasPrefix(patternParts[i], ":") {
			continue
		}
		if patternParts[i] != pathParts[i] {
			return false
		}
	}

	return true
}

// pathParam extracts the value at the position of :name in pattern
func pathParam(pattern, path, name string) string {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")
	if len(patternParts) != len(pathParts) {
		return ""
	}
	for i, part := range patternParts {
		if part == ":"+name {
			return pathParts[i]
		}
	}
	return ""
}

// RegisterDefaultServices sets up the warehouse API routes
func (sr *ServiceRegistry) RegisterDefaultServices() {
	// System
	sr.RegisterHandler("GET", "/health", true, sr.HealthHandler)

	// Catalog
	sr.RegisterHandler("GET", "/products", true, sr.ListProductsHandler)
	sr.RegisterHandler("GET", "/products/:id", false, sr.GetProductHandler)
	sr.RegisterHandler("GET", "/products/:id/components", false, sr.GetProductComponentsHandler)
	sr.RegisterHandler("GET", "/shipping-locations", true, sr.ListShippingLocationsHandler)
	sr.RegisterHandler("GET", "/delivery-locations", true, sr.ListDeliveryLocationsHandler)

	// Shipping instructions
	sr.RegisterHandler("GET", "/shipping-instructions", true, sr.ListShippingInstructionsHandler)
	sr.RegisterHandler("GET", "/shipping-instructions/:id", false, sr.GetShippingInstructionHandler)
	sr.RegisterHandler("GET", "/shipping-instructions/:id/components", false, sr.GetInstructionComponentsHandler)
	sr.RegisterHandler("PATCH", "/shipping-instructions/:id/picking", false, sr.UpdatePickingHandler)

	// QR inspections
	sr.RegisterHandler("POST", "/qr-inspections", true, sr.StartInspectionHandler)
	sr.RegisterHandler("POST", "/qr-inspections/:id/scan", false, sr.SubmitScanHandler)
	sr.RegisterHandler("PATCH", "/qr-inspections/:id/complete", false, sr.CompleteInspectionHandler)
	sr.RegisterHandler("GET", "/qr-inspections/:id", false, sr.GetInspectionHandler)

	// Reports and audit
	sr.RegisterHandler("GET", "/reports/dashboard-stats", true, sr.DashboardStatsHandler)
	sr.RegisterHandler("GET", "/audit/inspections/:id", false, sr.AuditInspectionHandler)
}

// ConvertHttpRequest converts an http.Request to Request
func ConvertHttpRequest(r *http.Request, requestID string) (*Request, error) {
	headers := make(map[string]string)
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	body := ""
	if r.Body != nil {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		raw := strings.TrimSpace(string(bodyBytes))
		body = compactJSON(raw)
	}

	return &Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Query:      r.URL.Query(),
		Body:       body,
		RemoteAddr: r.RemoteAddr,
		RequestID:  requestID,
		Timestamp:  time.Now(),
	}, nil
}

// GenerateResponse executes the request and generates a response
func (req *Request) GenerateResponse(services *ServiceRegistry) (*Response, error) {
	handler, found := services.GetHandlerForPath(req.Method, req.Path)
	if !found {
		return &Response{
			StatusCode: http.StatusNotFound,
			Headers:    defaultHeaders,
			Body:       fmt.Sprintf(`{"error":"Service not found for %s %s"}`, req.Method, req.Path),
		}, nil
	}

	response, err := handler(req)
	return response, err
}

func compactJSON(body string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(body)); err != nil {
		return strings.TrimSpace(body)
	}
	return buf.String()
}
