package models

import "time"

// Inspection statuses. Both completed and failed are terminal.
const (
	InspectionStatusInProgress = "in_progress"
	InspectionStatusCompleted  = "completed"
	InspectionStatusFailed     = "failed"
)

// Scan outcomes recorded in the ledger
const (
	ScanOutcomeScanned   = "scanned"
	ScanOutcomeDuplicate = "duplicate"
	ScanOutcomeError     = "error"
)

// Inspection represents one QR verification session against a shipping
// instruction's components
type Inspection struct {
	ID                    string               `gorm:"column:inspection_id;primaryKey;type:varchar(50)"`
	ShippingInstructionID string               `gorm:"column:shipping_instruction_id;type:varchar(50);index;not null"`
	ShippingInstruction   *ShippingInstruction `gorm:"foreignKey:ShippingInstructionID"`
	ProductID             string               `gorm:"column:product_id;type:varchar(50);index;not null"`
	Product               *Product             `gorm:"foreignKey:ProductID"`
	InspectorName         string               `gorm:"column:inspector_name;type:varchar(100);not null"`
	Status                string               `gorm:"column:status;type:varchar(20);not null;default:'in_progress'"`

	// ScannedCount is always re-derived from the scan ledger, never
	// incremented in place
	ScannedCount   int `gorm:"column:scanned_count;not null;default:0"`
	TotalRequired  int `gorm:"column:total_required;not null"`
	PassedQuantity int `gorm:"column:passed_quantity;not null;default:0"`
	StockBefore    int `gorm:"column:stock_before;not null"`
	StockAfter     int `gorm:"column:stock_after;not null;default:0"`

	Notes       string     `gorm:"column:notes;type:text"`
	CompletedAt *time.Time `gorm:"column:completed_at"`

	// Audit ledger anchor, set after a terminal inspection is committed
	// to the BFT chain
	AuditTxHash      *string    `gorm:"column:audit_tx_hash;type:varchar(66)"`
	AuditBlockHeight *int64     `gorm:"column:audit_block_height"`
	AuditCommitTime  *time.Time `gorm:"column:audit_commit_time"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Relationships
	Scans []ScanRecord `gorm:"foreignKey:InspectionID"`
}

// ScanRecord is an append-only ledger entry for one scan attempt, valid
// or not
type ScanRecord struct {
	ID           string     `gorm:"column:scan_id;primaryKey;type:varchar(50)"`
	InspectionID string     `gorm:"column:inspection_id;type:varchar(50);index;not null"`
	ComponentID  *string    `gorm:"column:component_id;type:varchar(50);index"`
	Component    *Component `gorm:"foreignKey:ComponentID"`
	QRCode       string     `gorm:"column:qr_code;type:varchar(100);not null"`
	Outcome      string     `gorm:"column:outcome;type:varchar(20);not null"`
	ErrorDetail  string     `gorm:"column:error_detail;type:varchar(255)"`

	ScannedAt time.Time `gorm:"column:scanned_at;autoCreateTime"`
}

// Terminal reports whether the inspection accepts no further scans
func (i *Inspection) Terminal() bool {
	return i.Status == InspectionStatusCompleted || i.Status == InspectionStatusFailed
}
