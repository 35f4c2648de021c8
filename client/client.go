package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// InspectionClient handles communication with a shipcheck node
type InspectionClient struct {
	endpoint   string
	httpClient *http.Client
}

// envelope is the node's response wrapper
type envelope struct {
	Data   json.RawMessage `json:"data"`
	NodeID string          `json:"node_id"`
}

// Inspection mirrors the server-side inspection record
type Inspection struct {
	ID                    string     `json:"ID"`
	ShippingInstructionID string     `json:"ShippingInstructionID"`
	ProductID             string     `json:"ProductID"`
	InspectorName         string     `json:"InspectorName"`
	Status                string     `json:"Status"`
	ScannedCount          int        `json:"ScannedCount"`
	TotalRequired         int        `json:"TotalRequired"`
	PassedQuantity        int        `json:"PassedQuantity"`
	StockBefore           int        `json:"StockBefore"`
	StockAfter            int        `json:"StockAfter"`
	Notes                 string     `json:"Notes"`
	CompletedAt           *time.Time `json:"CompletedAt"`
}

// StartInspectionResponse is the payload returned when an inspection is
// opened
type StartInspectionResponse struct {
	Success    bool       `json:"success"`
	Inspection Inspection `json:"inspection"`
}

// ScanResponse is the payload returned for a scan attempt. Success is
// false for soft failures (unmatched or duplicate codes); the inspection
// stays open either way.
type ScanResponse struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// CompleteResponse is the payload returned when an inspection is
// finalized
type CompleteResponse struct {
	Success    bool       `json:"success"`
	Result     string     `json:"result"`
	Inspection Inspection `json:"inspection"`
}

// InspectionDetailResponse is the payload of a full inspection read
type InspectionDetailResponse struct {
	Inspection Inspection        `json:"inspection"`
	Details    []json.RawMessage `json:"details"`
}

// ComponentInfo is the subset of component fields a scan session needs
type ComponentInfo struct {
	ID         string `json:"ID"`
	Name       string `json:"Name"`
	Type       string `json:"Type"`
	QRCode     string `json:"QRCode"`
	IsRequired bool   `json:"IsRequired"`
}

// InstructionComponentsResponse lists an instruction's component registry
type InstructionComponentsResponse struct {
	Components    []ComponentInfo `json:"components"`
	TotalRequired int             `json:"total_required"`
}

// NewInspectionClient creates a client against the given node endpoint
func NewInspectionClient(endpoint string) *InspectionClient {
	return &InspectionClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StartInspection opens a new inspection on a shipping instruction
func (c *InspectionClient) StartInspection(instructionID, inspectorName string) (*StartInspectionResponse, error) {
	body := map[string]string{
		"shipping_instruction_id": instructionID,
		"inspector_name":          inspectorName,
	}

	var result StartInspectionResponse
	if err := c.post(fmt.Sprintf("%s/qr-inspections", c.endpoint), body, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitScan submits one QR code against an open inspection. A soft
// failure (unmatched or duplicate code) returns a response with
// Success=false and a nil error.
func (c *InspectionClient) SubmitScan(inspectionID, qrCode string) (*ScanResponse, error) {
	body := map[string]string{"qr_code": qrCode}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scan request: %w", err)
	}

	url := fmt.Sprintf("%s/qr-inspections/%s/scan", c.endpoint, inspectionID)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send scan request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan response: %w", err)
	}

	// 400 is a soft failure carrying a parseable body
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return nil, fmt.Errorf("node returned error status %d: %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to parse scan response: %w", err)
	}

	var scanResp ScanResponse
	if err := json.Unmarshal(env.Data, &scanResp); err != nil {
		return nil, fmt.Errorf("failed to parse scan payload: %w", err)
	}
	return &scanResp, nil
}

// CompleteInspection finalizes an inspection
func (c *InspectionClient) CompleteInspection(inspectionID, notes string) (*CompleteResponse, error) {
	body := map[string]string{"notes": notes}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal complete request: %w", err)
	}

	url := fmt.Sprintf("%s/qr-inspections/%s/complete", c.endpoint, inspectionID)
	req, err := http.NewRequest("PATCH", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send complete request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read complete response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node returned error status %d: %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to parse complete response: %w", err)
	}

	var completeResp CompleteResponse
	if err := json.Unmarshal(env.Data, &completeResp); err != nil {
		return nil, fmt.Errorf("failed to parse complete payload: %w", err)
	}
	return &completeResp, nil
}

// GetInspection reads an inspection with its scan history
func (c *InspectionClient) GetInspection(inspectionID string) (*InspectionDetailResponse, error) {
	var result InspectionDetailResponse
	url := fmt.Sprintf("%s/qr-inspections/%s", c.endpoint, inspectionID)
	if err := c.get(url, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetInstructionComponents fetches the component registry for a shipping
// instruction, used to set up a scan session
func (c *InspectionClient) GetInstructionComponents(instructionID string) (*InstructionComponentsResponse, error) {
	var result InstructionComponentsResponse
	url := fmt.Sprintf("%s/shipping-instructions/%s/components", c.endpoint, instructionID)
	if err := c.get(url, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the node is reachable
func (c *InspectionClient) HealthCheck() error {
	url := fmt.Sprintf("%s/health", c.endpoint)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("node is unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}

	return nil
}

func (c *InspectionClient) post(url string, body interface{}, wantStatus int, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("node returned error status %d: %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return json.Unmarshal(env.Data, out)
}

func (c *InspectionClient) get(url string, out interface{}) error {
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned error status %d: %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return json.Unmarshal(env.Data, out)
}
