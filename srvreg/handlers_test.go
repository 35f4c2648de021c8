package srvreg

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shipcheck/shipcheck/repository"
)

// stubAuditor serves canned audit records for handler tests
type stubAuditor struct {
	records map[string][]byte
	err     error
}

func (s *stubAuditor) QueryAuditRecord(inspectionID string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[inspectionID], nil
}

func newTestRegistry(t *testing.T, auditor AuditQuerier) *ServiceRegistry {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	repo := repository.NewRepositoryWithDB(db)
	repo.Migrate()
	repo.Seed()

	sr := NewServiceRegistry(repo, auditor, cmtlog.NewNopLogger())
	sr.RegisterDefaultServices()
	return sr
}

func doRequest(t *testing.T, sr *ServiceRegistry, method, path, body string) (*Response, map[string]interface{}) {
	t.Helper()
	req := &Request{
		Method:    method,
		Path:      path,
		Query:     url.Values{},
		Body:      body,
		Timestamp: time.Now(),
	}
	if u, err := url.Parse(path); err == nil {
		req.Path = u.Path
		req.Query = u.Query()
	}
	req.GenerateRequestID()

	resp, _ := req.GenerateResponse(sr)
	require.NotNil(t, resp)

	var payload map[string]interface{}
	if resp.Body != "" {
		require.NoError(t, json.Unmarshal([]byte(resp.Body), &payload))
	}
	return resp, payload
}

func startInspectionViaAPI(t *testing.T, sr *ServiceRegistry, instructionID string) string {
	t.Helper()
	body := fmt.Sprintf(`{"shipping_instruction_id":"%s","inspector_name":"tester"}`, instructionID)
	resp, payload := doRequest(t, sr, "POST", "/qr-inspections", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	inspection := payload["inspection"].(map[string]interface{})
	return inspection["ID"].(string)
}

func TestHealthRoute(t *testing.T) {
	sr := newTestRegistry(t, nil)

	resp, payload := doRequest(t, sr, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", payload["status"])
}

func TestUnknownRoute(t *testing.T) {
	sr := newTestRegistry(t, nil)

	resp, _ := doRequest(t, sr, "GET", "/no-such-route", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductRoutes(t *testing.T) {
	sr := newTestRegistry(t, nil)

	resp, payload := doRequest(t, sr, "GET", "/products", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), payload["count"])

	resp, payload = doRequest(t, sr, "GET", "/products/PRD-001", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "WX-100", payload["Code"])

	resp, _ = doRequest(t, sr, "GET", "/products/PRD-NOPE", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, payload = doRequest(t, sr, "GET", "/products/PRD-001/components", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(4), payload["count"])

	resp, _ = doRequest(t, sr, "GET", "/products/PRD-NOPE/components", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLocationRoutes(t *testing.T) {
	sr := newTestRegistry(t, nil)

	resp, payload := doRequest(t, sr, "GET", "/shipping-locations", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), payload["count"])

	resp, payload = doRequest(t, sr, "GET", "/delivery-locations", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), payload["count"])
}

func TestShippingInstructionRoutes(t *testing.T) {
	sr := newTestRegistry(t, nil)

	resp, payload := doRequest(t, sr, "GET", "/shipping-instructions", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), payload["count"])

	resp, payload = doRequest(t, sr, "GET", "/shipping-instructions?priority=express", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), payload["count"])

	resp, _ = doRequest(t, sr, "GET", "/shipping-instructions?date_from=not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, payload = doRequest(t, sr, "GET", "/shipping-instructions/SI-001", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SHIP-2025-0001", payload["InstructionID"])

	resp, payload = doRequest(t, sr, "GET", "/shipping-instructions/SI-001/components", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), payload["total_required"])

	resp, _ = doRequest(t, sr, "GET", "/shipping-instructions/SI-NOPE", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdatePickingRoute(t *testing.T) {
	sr := newTestRegistry(t, nil)

	resp, payload := doRequest(t, sr, "PATCH", "/shipping-instructions/SI-001/picking",
		`{"picked_quantity":7,"picking_notes":"short picked"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["success"])

	resp, _ = doRequest(t, sr, "PATCH", "/shipping-instructions/SI-001/picking", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartInspectionRoute(t *testing.T) {
	sr := newTestRegistry(t, nil)

	resp, _ := doRequest(t, sr, "POST", "/qr-inspections", `{"inspector_name":"tester"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, sr, "POST", "/qr-inspections",
		`{"shipping_instruction_id":"SI-NOPE","inspector_name":"tester"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	inspectionID := startInspectionViaAPI(t, sr, "SI-001")
	assert.NotEmpty(t, inspectionID)

	// Second concurrent inspection on the same instruction conflicts
	resp, _ = doRequest(t, sr, "POST", "/qr-inspections",
		`{"shipping_instruction_id":"SI-001","inspector_name":"other"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestScanRoute(t *testing.T) {
	sr := newTestRegistry(t, nil)
	inspectionID := startInspectionViaAPI(t, sr, "SI-001")

	scanPath := fmt.Sprintf("/qr-inspections/%s/scan", inspectionID)

	resp, payload := doRequest(t, sr, "POST", scanPath, `{"qr_code":"QR-WX100-MAIN"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "scanned", payload["outcome"])

	// Duplicate is a ledgered soft failure
	resp, payload = doRequest(t, sr, "POST", scanPath, `{"qr_code":"QR-WX100-MAIN"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "duplicate", payload["outcome"])
	assert.NotNil(t, payload["record"])

	// Unmatched code too
	resp, payload = doRequest(t, sr, "POST", scanPath, `{"qr_code":"QR-NOT-A-CODE"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "error", payload["outcome"])

	resp, _ = doRequest(t, sr, "POST", scanPath, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, sr, "POST", "/qr-inspections/INSP-missing/scan", `{"qr_code":"QR-WX100-MAIN"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteAndGetInspectionRoutes(t *testing.T) {
	sr := newTestRegistry(t, nil)
	inspectionID := startInspectionViaAPI(t, sr, "SI-001")

	scanPath := fmt.Sprintf("/qr-inspections/%s/scan", inspectionID)
	for _, code := range []string{"QR-WX100-MAIN", "QR-WX100-ADPT", "QR-WX100-CBL"} {
		resp, _ := doRequest(t, sr, "POST", scanPath, fmt.Sprintf(`{"qr_code":"%s"}`, code))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	completePath := fmt.Sprintf("/qr-inspections/%s/complete", inspectionID)
	resp, payload := doRequest(t, sr, "PATCH", completePath, `{"notes":"done"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pass", payload["result"])

	// Terminal inspections reject a second complete
	resp, _ = doRequest(t, sr, "PATCH", completePath, `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, payload = doRequest(t, sr, "GET", "/qr-inspections/"+inspectionID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	inspection := payload["inspection"].(map[string]interface{})
	assert.Equal(t, "completed", inspection["Status"])
	details := payload["details"].([]interface{})
	assert.Len(t, details, 3)
}

func TestCompleteInsufficientStockRoute(t *testing.T) {
	sr := newTestRegistry(t, nil)
	// SI-003 wants 20 of PRD-003, which has stock 8
	inspectionID := startInspectionViaAPI(t, sr, "SI-003")

	scanPath := fmt.Sprintf("/qr-inspections/%s/scan", inspectionID)
	for _, code := range []string{"QR-SNS310-MAIN", "QR-SNS310-ANT"} {
		resp, _ := doRequest(t, sr, "POST", scanPath, fmt.Sprintf(`{"qr_code":"%s"}`, code))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	completePath := fmt.Sprintf("/qr-inspections/%s/complete", inspectionID)
	resp, _ := doRequest(t, sr, "PATCH", completePath, `{}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDashboardStatsRoute(t *testing.T) {
	sr := newTestRegistry(t, nil)

	resp, payload := doRequest(t, sr, "GET", "/reports/dashboard-stats", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), payload["total_products"])
}

func TestAuditRoute(t *testing.T) {
	record, _ := json.Marshal(repository.AuditCommit{
		InspectionID:          "INSP-abc",
		ShippingInstructionID: "SI-001",
		Status:                "completed",
	})
	auditor := &stubAuditor{records: map[string][]byte{"INSP-abc": record}}
	sr := newTestRegistry(t, auditor)

	resp, payload := doRequest(t, sr, "GET", "/audit/inspections/INSP-abc", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	auditRecord := payload["audit_record"].(map[string]interface{})
	assert.Equal(t, "completed", auditRecord["status"])

	resp, _ = doRequest(t, sr, "GET", "/audit/inspections/INSP-missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuditRouteWithoutLedger(t *testing.T) {
	sr := newTestRegistry(t, nil)

	resp, _ := doRequest(t, sr, "GET", "/audit/inspections/INSP-abc", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMatchPath(t *testing.T) {
	assert.True(t, matchPath("/qr-inspections/:id/scan", "/qr-inspections/INSP-1/scan"))
	assert.False(t, matchPath("/qr-inspections/:id/scan", "/qr-inspections/INSP-1/complete"))
	assert.False(t, matchPath("/qr-inspections/:id", "/qr-inspections/INSP-1/scan"))
	assert.Equal(t, "INSP-1", pathParam("/qr-inspections/:id/scan", "/qr-inspections/INSP-1/scan", "id"))
}
