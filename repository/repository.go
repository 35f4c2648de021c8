package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shipcheck/shipcheck/repository/models"

	cmtrpc "github.com/cometbft/cometbft/rpc/client/local"
	cmtrpctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
)

// PostgreSQL error codes
const (
	PgErrForeignKeyViolation = "23503"
	PgErrUniqueViolation     = "23505"
)

// RepositoryError represents repository layer errors
type RepositoryError struct {
	Code    string
	Message string
	Detail  string
}

// AuditCommit is the payload anchored to the audit ledger when an
// inspection reaches a terminal state
type AuditCommit struct {
	InspectionID          string    `json:"inspection_id"`
	ShippingInstructionID string    `json:"shipping_instruction_id"`
	ProductID             string    `json:"product_id"`
	InspectorName         string    `json:"inspector_name"`
	Status                string    `json:"status"`
	ScannedCount          int       `json:"scanned_count"`
	TotalRequired         int       `json:"total_required"`
	PassedQuantity        int       `json:"passed_quantity"`
	StockBefore           int       `json:"stock_before"`
	StockAfter            int       `json:"stock_after"`
	Timestamp             time.Time `json:"timestamp"`
}

// ConsensusResult contains the result of an audit ledger commit
type ConsensusResult struct {
	TxHash      string
	BlockHeight int64
	Code        uint32
}

// ScanResult is the outcome of one scan attempt against an inspection
type ScanResult struct {
	Outcome   string
	Message   string
	Component *models.Component
	Record    *models.ScanRecord
}

type Repository struct {
	db        *gorm.DB
	rpcClient *cmtrpc.Local

	// inspectionLocks serializes scan/complete per inspection record, the
	// check-then-insert-then-recount sequence must be single-writer
	inspectionLocks sync.Map
}

func NewRepository() *Repository {
	return &Repository{}
}

// NewRepositoryWithDB wraps an already-open gorm connection. Used by
// tests and embedders that manage the connection themselves.
func NewRepositoryWithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ConnectDB establishes database connection and performs migrations
func (r *Repository) ConnectDB(dsn string) {
	for i := range 10 {
		log.Printf("Connection attempt %d...\n", i+1)
		DB, err := gorm.Open(postgres.Open(dsn))
		if err != nil {
			log.Printf("Connection attempt %d, failed: %v\n", i+1, err)
			time.Sleep(2 * time.Second)
			continue
		}
		r.db = DB
		break
	}

	if r.db != nil {
		r.Migrate()
		r.Seed()
		log.Println("Connected to DB and completed setup")
	} else {
		log.Println("Failed to connect to DB")
	}
}

// Migrate performs database schema migrations
func (r *Repository) Migrate() {
	err := r.db.AutoMigrate(
		&models.Product{},
		&models.Component{},
		&models.Inventory{},
		&models.ShippingLocation{},
		&models.DeliveryLocation{},
		&models.ShippingInstruction{},
		&models.Inspection{},
		&models.ScanRecord{},
	)
	if err != nil {
		log.Printf("Error migrating database: %v", err)
		return
	}
	log.Println("Database migration completed successfully")
}

// SetupRpcClient configures the RPC client for the audit ledger
func (r *Repository) SetupRpcClient(rpcClient *cmtrpc.Local) {
	r.rpcClient = rpcClient
}

func (r *Repository) lockInspection(inspectionID string) *sync.Mutex {
	mu, _ := r.inspectionLocks.LoadOrStore(inspectionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// generateID derives a prefixed deterministic-looking ID from its parts
func generateID(prefix string, parts ...string) string {
	composite := ""
	for _, p := range parts {
		composite += p
	}
	hash := sha256.Sum256([]byte(composite))
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(hash[:])[:16])
}

// StartInspection creates a new in_progress inspection for a shipping
// instruction, snapshotting the required component count and current stock
func (r *Repository) StartInspection(instructionID, inspectorName string) (*models.Inspection, *RepositoryError) {
	dbTx := r.db.Begin()
	if dbTx.Error != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to start transaction",
			Detail:  dbTx.Error.Error(),
		}
	}

	var instruction models.ShippingInstruction
	err := dbTx.Preload("Product").Preload("Product.Inventory").
		Where("shipping_instruction_id = ?", instructionID).First(&instruction).Error
	if err != nil {
		dbTx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RepositoryError{
				Code:    "ENTITY_NOT_FOUND",
				Message: "Shipping instruction not found",
				Detail:  fmt.Sprintf("Shipping instruction with id %s does not exist", instructionID),
			}
		}
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Database error",
			Detail:  err.Error(),
		}
	}

	if instruction.Product == nil {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "ENTITY_NOT_FOUND",
			Message: "Product not found",
			Detail:  fmt.Sprintf("Product %s referenced by instruction %s does not exist", instruction.ProductID, instructionID),
		}
	}

	// One active inspection per shipping instruction
	var active int64
	err = dbTx.Model(&models.Inspection{}).
		Where("shipping_instruction_id = ? AND status = ?", instructionID, models.InspectionStatusInProgress).
		Count(&active).Error
	if err != nil {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	if active > 0 {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "INSPECTION_IN_PROGRESS",
			Message: "An inspection is already in progress for this shipping instruction",
			Detail:  fmt.Sprintf("Shipping instruction %s already has an in_progress inspection", instructionID),
		}
	}

	var totalRequired int64
	err = dbTx.Model(&models.Component{}).
		Where("product_id = ? AND is_required = ?", instruction.ProductID, true).
		Count(&totalRequired).Error
	if err != nil {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to count required components",
			Detail:  err.Error(),
		}
	}

	stockBefore := 0
	if instruction.Product.Inventory != nil {
		stockBefore = instruction.Product.Inventory.CurrentStock
	}

	inspection := models.Inspection{
		ID:                    generateID("INSP", instructionID, inspectorName, time.Now().String()),
		ShippingInstructionID: instructionID,
		ProductID:             instruction.ProductID,
		InspectorName:         inspectorName,
		Status:                models.InspectionStatusInProgress,
		ScannedCount:          0,
		TotalRequired:         int(totalRequired),
		StockBefore:           stockBefore,
		StockAfter:            stockBefore,
	}

	err = dbTx.Create(&inspection).Error
	if err != nil {
		dbTx.Rollback()
		pgErr, isPgError := err.(*pgconn.PgError)
		if isPgError && pgErr.Code == PgErrUniqueViolation {
			return nil, &RepositoryError{
				Code:    "INSPECTION_EXISTS",
				Message: "Inspection already exists",
				Detail:  pgErr.Detail,
			}
		}
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to create inspection",
			Detail:  err.Error(),
		}
	}

	err = dbTx.Commit().Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to commit transaction",
			Detail:  err.Error(),
		}
	}

	return &inspection, nil
}

// SubmitScan records one scan attempt against an in_progress inspection.
// Every attempt is appended to the ledger; scanned_count is re-derived
// from the ledger after each accepted scan.
func (r *Repository) SubmitScan(inspectionID, qrCode string) (*ScanResult, *RepositoryError) {
	mu := r.lockInspection(inspectionID)
	mu.Lock()
	defer mu.Unlock()

	dbTx := r.db.Begin()
	if dbTx.Error != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to start transaction",
			Detail:  dbTx.Error.Error(),
		}
	}

	var inspection models.Inspection
	err := dbTx.Where("inspection_id = ? AND status = ?", inspectionID, models.InspectionStatusInProgress).
		First(&inspection).Error
	if err != nil {
		dbTx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RepositoryError{
				Code:    "INSPECTION_NOT_FOUND",
				Message: "Inspection not found or already completed",
				Detail:  fmt.Sprintf("No in_progress inspection with id %s", inspectionID),
			}
		}
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Database error",
			Detail:  err.Error(),
		}
	}

	// Resolve the code against this product's component set
	var component models.Component
	err = dbTx.Where("product_id = ? AND qr_code = ?", inspection.ProductID, qrCode).
		First(&component).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			dbTx.Rollback()
			return nil, &RepositoryError{
				Code:    "DATABASE_ERROR",
				Message: "Database error",
				Detail:  err.Error(),
			}
		}

		record := models.ScanRecord{
			ID:           fmt.Sprintf("SCAN-%s", uuid.New().String()),
			InspectionID: inspectionID,
			QRCode:       qrCode,
			Outcome:      models.ScanOutcomeError,
			ErrorDetail:  "Invalid QR code for this product",
		}
		if err := dbTx.Create(&record).Error; err != nil {
			dbTx.Rollback()
			return nil, &RepositoryError{
				Code:    "DATABASE_ERROR",
				Message: "Failed to record scan attempt",
				Detail:  err.Error(),
			}
		}
		if err := dbTx.Commit().Error; err != nil {
			return nil, &RepositoryError{
				Code:    "DATABASE_ERROR",
				Message: "Failed to commit transaction",
				Detail:  err.Error(),
			}
		}
		return &ScanResult{
			Outcome: models.ScanOutcomeError,
			Message: "QR code does not belong to this product's component set",
			Record:  &record,
		}, nil
	}

	// Already scanned?
	var existing int64
	err = dbTx.Model(&models.ScanRecord{}).
		Where("inspection_id = ? AND component_id = ? AND outcome = ?",
			inspectionID, component.ID, models.ScanOutcomeScanned).
		Count(&existing).Error
	if err != nil {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Database error",
			Detail:  err.Error(),
		}
	}

	if existing > 0 {
		record := models.ScanRecord{
			ID:           fmt.Sprintf("SCAN-%s", uuid.New().String()),
			InspectionID: inspectionID,
			ComponentID:  &component.ID,
			QRCode:       qrCode,
			Outcome:      models.ScanOutcomeDuplicate,
		}
		if err := dbTx.Create(&record).Error; err != nil {
			dbTx.Rollback()
			return nil, &RepositoryError{
				Code:    "DATABASE_ERROR",
				Message: "Failed to record scan attempt",
				Detail:  err.Error(),
			}
		}
		if err := dbTx.Commit().Error; err != nil {
			return nil, &RepositoryError{
				Code:    "DATABASE_ERROR",
				Message: "Failed to commit transaction",
				Detail:  err.Error(),
			}
		}
		return &ScanResult{
			Outcome:   models.ScanOutcomeDuplicate,
			Message:   "Component already scanned",
			Component: &component,
			Record:    &record,
		}, nil
	}

	record := models.ScanRecord{
		ID:           fmt.Sprintf("SCAN-%s", uuid.New().String()),
		InspectionID: inspectionID,
		ComponentID:  &component.ID,
		QRCode:       qrCode,
		Outcome:      models.ScanOutcomeScanned,
	}
	err = dbTx.Create(&record).Error
	if err != nil {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to record scan",
			Detail:  err.Error(),
		}
	}

	// Re-derive the count from the ledger
	var scanned int64
	err = dbTx.Model(&models.ScanRecord{}).
		Where("inspection_id = ? AND outcome = ?", inspectionID, models.ScanOutcomeScanned).
		Distinct("component_id").
		Count(&scanned).Error
	if err != nil {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to recount scanned components",
			Detail:  err.Error(),
		}
	}

	inspection.ScannedCount = int(scanned)
	err = dbTx.Save(&inspection).Error
	if err != nil {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to update inspection",
			Detail:  err.Error(),
		}
	}

	err = dbTx.Commit().Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to commit transaction",
			Detail:  err.Error(),
		}
	}

	return &ScanResult{
		Outcome:   models.ScanOutcomeScanned,
		Message:   "Scan recorded",
		Component: &component,
		Record:    &record,
	}, nil
}

// CompleteInspection finalizes an in_progress inspection. The pass/fail
// outcome is derived from the scan ratio; the call itself is always
// accepted on an in_progress record. A passing completion decrements
// stock and advances the shipping instruction, in the same transaction
// as the status change.
func (r *Repository) CompleteInspection(inspectionID, notes string) (*models.Inspection, *RepositoryError) {
	mu := r.lockInspection(inspectionID)
	mu.Lock()
	defer mu.Unlock()

	dbTx := r.db.Begin()
	if dbTx.Error != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to start transaction",
			Detail:  dbTx.Error.Error(),
		}
	}

	var inspection models.Inspection
	err := dbTx.Preload("ShippingInstruction").
		Where("inspection_id = ? AND status = ?", inspectionID, models.InspectionStatusInProgress).
		First(&inspection).Error
	if err != nil {
		dbTx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RepositoryError{
				Code:    "INSPECTION_NOT_FOUND",
				Message: "Inspection not found or already completed",
				Detail:  fmt.Sprintf("No in_progress inspection with id %s", inspectionID),
			}
		}
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	if inspection.ShippingInstruction == nil {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "ENTITY_NOT_FOUND",
			Message: "Shipping instruction not found",
			Detail:  fmt.Sprintf("Instruction %s for inspection %s does not exist", inspection.ShippingInstructionID, inspectionID),
		}
	}

	isComplete := inspection.ScannedCount >= inspection.TotalRequired
	now := time.Now()

	if isComplete {
		passedQuantity := inspection.ShippingInstruction.Quantity

		stockAfter, repoErr := r.decrementStock(dbTx, inspection.ProductID, passedQuantity)
		if repoErr != nil {
			dbTx.Rollback()
			return nil, repoErr
		}

		inspection.Status = models.InspectionStatusCompleted
		inspection.PassedQuantity = passedQuantity
		inspection.StockAfter = stockAfter

		// Downstream fulfillment may proceed
		inspection.ShippingInstruction.Status = models.InstructionStatusProcessing
		if err := dbTx.Save(inspection.ShippingInstruction).Error; err != nil {
			dbTx.Rollback()
			return nil, &RepositoryError{
				Code:    "DATABASE_ERROR",
				Message: "Failed to update shipping instruction",
				Detail:  err.Error(),
			}
		}
	} else {
		inspection.Status = models.InspectionStatusFailed
		inspection.PassedQuantity = 0
		inspection.StockAfter = inspection.StockBefore
	}

	inspection.Notes = notes
	inspection.CompletedAt = &now

	err = dbTx.Save(&inspection).Error
	if err != nil {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to update inspection",
			Detail:  err.Error(),
		}
	}

	err = dbTx.Commit().Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to commit transaction",
			Detail:  err.Error(),
		}
	}

	// Anchor the terminal record to the audit ledger. The database commit
	// above is authoritative; a failed anchor is logged, not rolled back.
	r.anchorInspection(&inspection)

	return &inspection, nil
}

// decrementStock reduces both stock counters by quantity inside dbTx and
// returns the post-decrement current stock. A decrement that would go
// negative is rejected, never clamped silently.
func (r *Repository) decrementStock(dbTx *gorm.DB, productID string, quantity int) (int, *RepositoryError) {
	var inventory models.Inventory
	err := dbTx.Where("product_id = ?", productID).First(&inventory).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &RepositoryError{
				Code:    "ENTITY_NOT_FOUND",
				Message: "Inventory not found",
				Detail:  fmt.Sprintf("No inventory row for product %s", productID),
			}
		}
		return 0, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Database error",
			Detail:  err.Error(),
		}
	}

	if quantity > inventory.CurrentStock || quantity > inventory.AvailableStock {
		return 0, &RepositoryError{
			Code:    "INSUFFICIENT_STOCK",
			Message: "Insufficient stock for shipment quantity",
			Detail: fmt.Sprintf("Product %s has current=%d available=%d, requested %d",
				productID, inventory.CurrentStock, inventory.AvailableStock, quantity),
		}
	}

	inventory.CurrentStock -= quantity
	inventory.AvailableStock -= quantity
	err = dbTx.Save(&inventory).Error
	if err != nil {
		return 0, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to update inventory",
			Detail:  err.Error(),
		}
	}

	return inventory.CurrentStock, nil
}

// GetInspection returns an inspection with its full scan history, newest
// scans first
func (r *Repository) GetInspection(inspectionID string) (*models.Inspection, *RepositoryError) {
	var inspection models.Inspection
	err := r.db.
		Preload("Product").
		Preload("ShippingInstruction").
		Preload("Scans", func(db *gorm.DB) *gorm.DB {
			return db.Order("scanned_at DESC")
		}).
		Preload("Scans.Component").
		Where("inspection_id = ?", inspectionID).First(&inspection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RepositoryError{
				Code:    "INSPECTION_NOT_FOUND",
				Message: "Inspection not found",
				Detail:  fmt.Sprintf("Inspection with id %s does not exist", inspectionID),
			}
		}
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return &inspection, nil
}

// ExpireStaleInspections fails in_progress inspections older than maxAge.
// Returns the number of inspections expired.
func (r *Repository) ExpireStaleInspections(maxAge time.Duration) (int, *RepositoryError) {
	cutoff := time.Now().Add(-maxAge)

	var stale []models.Inspection
	err := r.db.Where("status = ? AND created_at < ?", models.InspectionStatusInProgress, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to query stale inspections",
			Detail:  err.Error(),
		}
	}

	expired := 0
	for i := range stale {
		inspection := &stale[i]
		mu := r.lockInspection(inspection.ID)
		mu.Lock()

		now := time.Now()
		res := r.db.Model(&models.Inspection{}).
			Where("inspection_id = ? AND status = ?", inspection.ID, models.InspectionStatusInProgress).
			Updates(map[string]interface{}{
				"status":          models.InspectionStatusFailed,
				"passed_quantity": 0,
				"stock_after":     inspection.StockBefore,
				"notes":           "Expired: inspection abandoned",
				"completed_at":    now,
			})
		mu.Unlock()

		if res.Error != nil {
			return expired, &RepositoryError{
				Code:    "DATABASE_ERROR",
				Message: "Failed to expire inspection",
				Detail:  res.Error.Error(),
			}
		}
		expired += int(res.RowsAffected)
	}

	return expired, nil
}

// anchorInspection commits a terminal inspection summary to the audit
// ledger and records the resulting tx hash on the inspection row
func (r *Repository) anchorInspection(inspection *models.Inspection) {
	if r.rpcClient == nil {
		return
	}

	payload := AuditCommit{
		InspectionID:          inspection.ID,
		ShippingInstructionID: inspection.ShippingInstructionID,
		ProductID:             inspection.ProductID,
		InspectorName:         inspection.InspectorName,
		Status:                inspection.Status,
		ScannedCount:          inspection.ScannedCount,
		TotalRequired:         inspection.TotalRequired,
		PassedQuantity:        inspection.PassedQuantity,
		StockBefore:           inspection.StockBefore,
		StockAfter:            inspection.StockAfter,
		Timestamp:             time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, repoErr := r.RunConsensus(ctx, &payload)
	if repoErr != nil {
		log.Printf("Failed to anchor inspection %s: %s", inspection.ID, repoErr.Detail)
		return
	}

	now := time.Now()
	inspection.AuditTxHash = &result.TxHash
	inspection.AuditBlockHeight = &result.BlockHeight
	inspection.AuditCommitTime = &now

	err := r.db.Model(&models.Inspection{}).
		Where("inspection_id = ?", inspection.ID).
		Updates(map[string]interface{}{
			"audit_tx_hash":      result.TxHash,
			"audit_block_height": result.BlockHeight,
			"audit_commit_time":  now,
		}).Error
	if err != nil {
		log.Printf("Failed to record audit anchor for inspection %s: %v", inspection.ID, err)
	}
}

// RunConsensus submits a payload to the audit ledger and waits for the
// commit
func (r *Repository) RunConsensus(ctx context.Context, payload interface{}) (*ConsensusResult, *RepositoryError) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, &RepositoryError{
			Code:    "SERIALIZATION_ERROR",
			Message: "Failed to serialize consensus payload",
			Detail:  err.Error(),
		}
	}

	consensusTx := cmttypes.Tx(payloadBytes)

	// Use a channel for async consensus
	done := make(chan struct {
		result *cmtrpctypes.ResultBroadcastTxCommit
		err    error
	}, 1)

	go func() {
		result, err := r.rpcClient.BroadcastTxCommit(ctx, consensusTx)
		done <- struct {
			result *cmtrpctypes.ResultBroadcastTxCommit
			err    error
		}{result, err}
	}()

	select {
	case <-ctx.Done():
		return nil, &RepositoryError{
			Code:    "CONSENSUS_TIMEOUT",
			Message: "Consensus operation timed out",
			Detail:  ctx.Err().Error(),
		}
	case result := <-done:
		if result.err != nil {
			return nil, &RepositoryError{
				Code:    "CONSENSUS_ERROR",
				Message: "Failed to commit to audit ledger",
				Detail:  result.err.Error(),
			}
		}

		if result.result.CheckTx.Code != 0 {
			return nil, &RepositoryError{
				Code:    "CONSENSUS_ERROR",
				Message: "Audit ledger rejected transaction",
				Detail:  fmt.Sprintf("CheckTx code: %d", result.result.CheckTx.Code),
			}
		}

		return &ConsensusResult{
			TxHash:      hex.EncodeToString(result.result.Hash),
			BlockHeight: result.result.Height,
			Code:        result.result.CheckTx.Code,
		}, nil
	}
}
