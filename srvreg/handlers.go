package srvreg

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shipcheck/shipcheck/repository"
	"github.com/shipcheck/shipcheck/repository/models"
)

// repoErrorStatus maps repository error codes to HTTP status codes
func repoErrorStatus(repoErr *repository.RepositoryError) int {
	switch repoErr.Code {
	case "ENTITY_NOT_FOUND", "INSPECTION_NOT_FOUND":
		return http.StatusNotFound
	case "INSPECTION_IN_PROGRESS", "INSUFFICIENT_STOCK", "INSPECTION_EXISTS":
		return http.StatusConflict
	case "VALIDATION_ERROR":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(statusCode int, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    defaultHeaders,
			Body:       `{"error":"Failed to serialize response"}`,
		}, err
	}
	return &Response{
		StatusCode: statusCode,
		Headers:    defaultHeaders,
		Body:       string(body),
	}, nil
}

func repoErrorResponse(repoErr *repository.RepositoryError) (*Response, error) {
	status := repoErrorStatus(repoErr)
	body := map[string]interface{}{
		"error": repoErr.Message,
		"code":  repoErr.Code,
	}
	if status != http.StatusInternalServerError {
		body["detail"] = repoErr.Detail
	}
	resp, _ := jsonResponse(status, body)
	return resp, fmt.Errorf("repository error: %s", repoErr.Detail)
}

func badRequest(message string) (*Response, error) {
	return &Response{
		StatusCode: http.StatusBadRequest,
		Headers:    defaultHeaders,
		Body:       fmt.Sprintf(`{"error":"%s"}`, message),
	}, fmt.Errorf("%s", message)
}

// HealthHandler reports liveness
func (sr *ServiceRegistry) HealthHandler(req *Request) (*Response, error) {
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now(),
	})
}

// ListProductsHandler returns the product catalog with inventory
func (sr *ServiceRegistry) ListProductsHandler(req *Request) (*Response, error) {
	products, repoErr := sr.repository.ListProducts()
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// GetProductHandler returns one product with components and inventory
func (sr *ServiceRegistry) GetProductHandler(req *Request) (*Response, error) {
	productID := pathParam("/products/:id", req.Path, "id")
	if productID == "" {
		return badRequest("Invalid path format")
	}

	product, repoErr := sr.repository.GetProduct(productID)
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}
	return jsonResponse(http.StatusOK, product)
}

// GetProductComponentsHandler returns a product's component registry
func (sr *ServiceRegistry) GetProductComponentsHandler(req *Request) (*Response, error) {
	productID := pathParam("/products/:id/components", req.Path, "id")
	if productID == "" {
		return badRequest("Invalid path format")
	}

	// 404 for an unknown product, not an empty list
	if _, repoErr := sr.repository.GetProduct(productID); repoErr != nil {
		return repoErrorResponse(repoErr)
	}

	components, repoErr := sr.repository.GetComponentsByProduct(productID)
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"components": components,
		"count":      len(components),
	})
}

// ListShippingLocationsHandler returns all shipping locations
func (sr *ServiceRegistry) ListShippingLocationsHandler(req *Request) (*Response, error) {
	locations, repoErr := sr.repository.ListShippingLocations()
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"locations": locations,
		"count":     len(locations),
	})
}

// ListDeliveryLocationsHandler returns all delivery locations
func (sr *ServiceRegistry) ListDeliveryLocationsHandler(req *Request) (*Response, error) {
	locations, repoErr := sr.repository.ListDeliveryLocations()
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"locations": locations,
		"count":     len(locations),
	})
}

// ListShippingInstructionsHandler returns shipping instructions matching
// the query filters
func (sr *ServiceRegistry) ListShippingInstructionsHandler(req *Request) (*Response, error) {
	filter := repository.InstructionFilter{
		Status:           req.Query.Get("status"),
		Priority:         req.Query.Get("priority"),
		ShippingLocation: req.Query.Get("shipping_location"),
		DeliveryLocation: req.Query.Get("delivery_location"),
		InstructionID:    req.Query.Get("instruction_id"),
	}
	if from := req.Query.Get("date_from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return badRequest("Invalid date_from, expected YYYY-MM-DD")
		}
		filter.DateFrom = &t
	}
	if to := req.Query.Get("date_to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return badRequest("Invalid date_to, expected YYYY-MM-DD")
		}
		// Inclusive end of day
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.DateTo = &end
	}

	instructions, repoErr := sr.repository.ListShippingInstructions(filter)
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"instructions": instructions,
		"count":        len(instructions),
	})
}

// GetShippingInstructionHandler returns one shipping instruction
func (sr *ServiceRegistry) GetShippingInstructionHandler(req *Request) (*Response, error) {
	instructionID := pathParam("/shipping-instructions/:id", req.Path, "id")
	if instructionID == "" {
		return badRequest("Invalid path format")
	}

	instruction, repoErr := sr.repository.GetShippingInstruction(instructionID)
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}
	return jsonResponse(http.StatusOK, instruction)
}

// GetInstructionComponentsHandler resolves an instruction to its product's
// component registry, for scan session setup
func (sr *ServiceRegistry) GetInstructionComponentsHandler(req *Request) (*Response, error) {
	instructionID := pathParam("/shipping-instructions/:id/components", req.Path, "id")
	if instructionID == "" {
		return badRequest("Invalid path format")
	}

	instruction, components, repoErr := sr.repository.GetComponentsByInstruction(instructionID)
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}

	required := 0
	for _, c := range components {
		if c.IsRequired {
			required++
		}
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"instruction":    instruction,
		"components":     components,
		"total_required": required,
	})
}

// UpdatePickingHandler records picked quantity and notes
func (sr *ServiceRegistry) UpdatePickingHandler(req *Request) (*Response, error) {
	instructionID := pathParam("/shipping-instructions/:id/picking", req.Path, "id")
	if instructionID == "" {
		return badRequest("Invalid path format")
	}

	var body struct {
		PickedQuantity *int   `json:"picked_quantity"`
		PickingNotes   string `json:"picking_notes"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		sr.logger.Error("Failed to parse picking request", "error", err.Error())
		return badRequest("Invalid request format")
	}

	instruction, repoErr := sr.repository.UpdatePicking(instructionID, body.PickedQuantity, body.PickingNotes)
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"success":     true,
		"instruction": instruction,
	})
}

// StartInspectionHandler opens a new QR inspection on a shipping
// instruction
func (sr *ServiceRegistry) StartInspectionHandler(req *Request) (*Response, error) {
	var body struct {
		ShippingInstructionID string `json:"shipping_instruction_id"`
		InspectorName         string `json:"inspector_name"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		sr.logger.Error("Failed to parse inspection request", "error", err.Error())
		return badRequest("Invalid request format")
	}
	if body.ShippingInstructionID == "" || body.InspectorName == "" {
		return badRequest("Missing required fields: shipping_instruction_id, inspector_name")
	}

	inspection, repoErr := sr.repository.StartInspection(body.ShippingInstructionID, body.InspectorName)
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}

	sr.logger.Info("Inspection started",
		"inspection_id", inspection.ID,
		"instruction_id", inspection.ShippingInstructionID,
		"inspector", inspection.InspectorName,
	)
	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"success":    true,
		"inspection": inspection,
	})
}

// SubmitScanHandler records one QR scan against an inspection. Unmatched
// and duplicate codes are soft failures: the attempt is ledgered and the
// call returns 400 with success=false, leaving the inspection open.
func (sr *ServiceRegistry) SubmitScanHandler(req *Request) (*Response, error) {
	inspectionID := pathParam("/qr-inspections/:id/scan", req.Path, "id")
	if inspectionID == "" {
		return badRequest("Invalid path format")
	}

	var body struct {
		QRCode string `json:"qr_code"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		sr.logger.Error("Failed to parse scan request", "error", err.Error())
		return badRequest("Invalid request format")
	}
	if body.QRCode == "" {
		return badRequest("Missing required field: qr_code")
	}

	result, repoErr := sr.repository.SubmitScan(inspectionID, body.QRCode)
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}

	if result.Outcome != models.ScanOutcomeScanned {
		return jsonResponse(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"outcome": result.Outcome,
			"message": result.Message,
			"record":  result.Record,
		})
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"success":   true,
		"outcome":   result.Outcome,
		"message":   result.Message,
		"component": result.Component,
		"record":    result.Record,
	})
}

// CompleteInspectionHandler finalizes an inspection and reports the
// derived pass/fail result
func (sr *ServiceRegistry) CompleteInspectionHandler(req *Request) (*Response, error) {
	inspectionID := pathParam("/qr-inspections/:id/complete", req.Path, "id")
	if inspectionID == "" {
		return badRequest("Invalid path format")
	}

	var body struct {
		Notes string `json:"notes"`
	}
	if req.Body != "" {
		if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
			sr.logger.Error("Failed to parse complete request", "error", err.Error())
			return badRequest("Invalid request format")
		}
	}

	inspection, repoErr := sr.repository.CompleteInspection(inspectionID, body.Notes)
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}

	result := "fail"
	if inspection.Status == models.InspectionStatusCompleted {
		result = "pass"
	}

	sr.logger.Info("Inspection completed",
		"inspection_id", inspection.ID,
		"result", result,
		"scanned", inspection.ScannedCount,
		"required", inspection.TotalRequired,
	)
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"success":    true,
		"result":     result,
		"inspection": inspection,
	})
}

// GetInspectionHandler returns an inspection and its scan history
func (sr *ServiceRegistry) GetInspectionHandler(req *Request) (*Response, error) {
	inspectionID := pathParam("/qr-inspections/:id", req.Path, "id")
	if inspectionID == "" {
		return badRequest("Invalid path format")
	}

	inspection, repoErr := sr.repository.GetInspection(inspectionID)
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}

	details := inspection.Scans
	inspection.Scans = nil

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"inspection": inspection,
		"details":    details,
	})
}

// DashboardStatsHandler returns aggregate warehouse counters
func (sr *ServiceRegistry) DashboardStatsHandler(req *Request) (*Response, error) {
	stats, repoErr := sr.repository.GetDashboardStats()
	if repoErr != nil {
		return repoErrorResponse(repoErr)
	}
	return jsonResponse(http.StatusOK, stats)
}

// AuditInspectionHandler returns the audit ledger record anchored for a
// terminal inspection, for cross-checking against the database row
func (sr *ServiceRegistry) AuditInspectionHandler(req *Request) (*Response, error) {
	inspectionID := pathParam("/audit/inspections/:id", req.Path, "id")
	if inspectionID == "" {
		return badRequest("Invalid path format")
	}

	if sr.auditor == nil {
		return &Response{
			StatusCode: http.StatusServiceUnavailable,
			Headers:    defaultHeaders,
			Body:       `{"error":"Audit ledger is not available on this node"}`,
		}, fmt.Errorf("audit ledger unavailable")
	}

	record, err := sr.auditor.QueryAuditRecord(inspectionID)
	if err != nil {
		sr.logger.Error("Audit ledger query failed", "inspection_id", inspectionID, "error", err.Error())
		return &Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    defaultHeaders,
			Body:       `{"error":"Audit ledger query failed"}`,
		}, err
	}
	if record == nil {
		return &Response{
			StatusCode: http.StatusNotFound,
			Headers:    defaultHeaders,
			Body:       fmt.Sprintf(`{"error":"No audit record for inspection %s"}`, inspectionID),
		}, fmt.Errorf("no audit record for inspection %s", inspectionID)
	}

	var payload repository.AuditCommit
	if err := json.Unmarshal(record, &payload); err != nil {
		return &Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    defaultHeaders,
			Body:       `{"error":"Malformed audit record"}`,
		}, err
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"inspection_id": inspectionID,
		"audit_record":  payload,
	})
}
