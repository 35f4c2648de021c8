package repository

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/shipcheck/shipcheck/repository/models"
)

// Seed initializes the database with sample warehouse data
func (r *Repository) Seed() {
	var productCount int64
	r.db.Model(&models.Product{}).Count(&productCount)
	if productCount > 0 {
		log.Println("Seed data already exists, skipping...")
		return
	}

	log.Println("Seeding database with warehouse data...")

	products := []models.Product{
		{ID: "PRD-001", Code: "WX-100", Name: "Wireless Router WX-100", Description: "Dual-band wireless router"},
		{ID: "PRD-002", Code: "CAM-220", Name: "Network Camera CAM-220", Description: "Outdoor network camera"},
		{ID: "PRD-003", Code: "SNS-310", Name: "Sensor Gateway SNS-310", Description: "Industrial sensor gateway"},
	}
	for _, product := range products {
		if err := r.db.Create(&product).Error; err != nil {
			log.Printf("Error creating product %s: %v", product.ID, err)
		}
	}

	components := []models.Component{
		{ID: "CMP-001", ProductID: "PRD-001", Name: "Router unit", Type: models.ComponentTypeMain, QRCode: "QR-WX100-MAIN", IsRequired: true},
		{ID: "CMP-002", ProductID: "PRD-001", Name: "AC adapter", Type: models.ComponentTypeAccessory, QRCode: "QR-WX100-ADPT", IsRequired: true},
		{ID: "CMP-003", ProductID: "PRD-001", Name: "LAN cable", Type: models.ComponentTypeAccessory, QRCode: "QR-WX100-CBL", IsRequired: true},
		{ID: "CMP-004", ProductID: "PRD-001", Name: "Quick start guide", Type: models.ComponentTypeManual, QRCode: "QR-WX100-MNL", IsRequired: false},
		{ID: "CMP-005", ProductID: "PRD-002", Name: "Camera unit", Type: models.ComponentTypeMain, QRCode: "QR-CAM220-MAIN", IsRequired: true},
		{ID: "CMP-006", ProductID: "PRD-002", Name: "Mounting bracket", Type: models.ComponentTypeAccessory, QRCode: "QR-CAM220-MNT", IsRequired: true},
		{ID: "CMP-007", ProductID: "PRD-002", Name: "Warranty card", Type: models.ComponentTypeWarranty, QRCode: "QR-CAM220-WRT", IsRequired: false},
		{ID: "CMP-008", ProductID: "PRD-003", Name: "Gateway unit", Type: models.ComponentTypeMain, QRCode: "QR-SNS310-MAIN", IsRequired: true},
		{ID: "CMP-009", ProductID: "PRD-003", Name: "Antenna", Type: models.ComponentTypeAccessory, QRCode: "QR-SNS310-ANT", IsRequired: true},
	}
	for _, component := range components {
		if err := r.db.Create(&component).Error; err != nil {
			log.Printf("Error creating component %s: %v", component.ID, err)
		}
	}

	inventories := []models.Inventory{
		{ProductID: "PRD-001", CurrentStock: 120, AvailableStock: 100, Location: "A-01-03"},
		{ProductID: "PRD-002", CurrentStock: 45, AvailableStock: 40, Location: "B-02-01"},
		{ProductID: "PRD-003", CurrentStock: 8, AvailableStock: 5, Location: "C-11-07"},
	}
	for _, inventory := range inventories {
		if err := r.db.Create(&inventory).Error; err != nil {
			log.Printf("Error creating inventory for %s: %v", inventory.ProductID, err)
		}
	}

	shippingLocations := []models.ShippingLocation{
		{ID: "SHL-001", Code: "WH-EAST", Name: "East Warehouse", Address: "12 Harbor Rd"},
		{ID: "SHL-002", Code: "WH-WEST", Name: "West Warehouse", Address: "88 Canal St"},
	}
	for _, location := range shippingLocations {
		if err := r.db.Create(&location).Error; err != nil {
			log.Printf("Error creating shipping location %s: %v", location.ID, err)
		}
	}

	deliveryLocations := []models.DeliveryLocation{
		{ID: "DLV-001", Code: "CUST-A", Name: "Northgate Electronics", Address: "3 Summit Ave", Phone: "555-0131", ContactPerson: "T. Mori", DeliveryMethod: "truck"},
		{ID: "DLV-002", Code: "CUST-B", Name: "Bayside Retail Hub", Address: "41 Shore Dr", Phone: "555-0177", ContactPerson: "K. Ellis", DeliveryMethod: "courier"},
	}
	for _, location := range deliveryLocations {
		if err := r.db.Create(&location).Error; err != nil {
			log.Printf("Error creating delivery location %s: %v", location.ID, err)
		}
	}

	shippingDate := time.Now().Add(48 * time.Hour)
	instructions := []models.ShippingInstruction{
		{ID: "SI-001", InstructionID: "SHIP-2025-0001", ProductID: "PRD-001", Quantity: 10, Status: models.InstructionStatusPending, Priority: "standard", ShippingDate: &shippingDate, ShippingLocationID: ptrString("SHL-001"), DeliveryLocationID: ptrString("DLV-001")},
		{ID: "SI-002", InstructionID: "SHIP-2025-0002", ProductID: "PRD-002", Quantity: 5, Status: models.InstructionStatusPending, Priority: "express", ShippingDate: &shippingDate, ShippingLocationID: ptrString("SHL-001"), DeliveryLocationID: ptrString("DLV-002")},
		{ID: "SI-003", InstructionID: "SHIP-2025-0003", ProductID: "PRD-003", Quantity: 20, Status: models.InstructionStatusPending, Priority: "standard", ShippingDate: &shippingDate, ShippingLocationID: ptrString("SHL-002"), DeliveryLocationID: ptrString("DLV-001")},
	}
	for _, instruction := range instructions {
		if err := r.db.Create(&instruction).Error; err != nil {
			log.Printf("Error creating shipping instruction %s: %v", instruction.ID, err)
		}
	}

	log.Println("Database seeding completed successfully")
}

func ptrString(s string) *string {
	return &s
}

// ListProducts returns all products with their inventory
func (r *Repository) ListProducts() ([]models.Product, *RepositoryError) {
	var products []models.Product
	err := r.db.Preload("Inventory").Order("product_code").Find(&products).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to query products",
			Detail:  err.Error(),
		}
	}
	return products, nil
}

// GetProduct returns one product with inventory and components
func (r *Repository) GetProduct(productID string) (*models.Product, *RepositoryError) {
	var product models.Product
	err := r.db.Preload("Inventory").Preload("Components").
		Where("product_id = ?", productID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RepositoryError{
				Code:    "ENTITY_NOT_FOUND",
				Message: "Product not found",
				Detail:  fmt.Sprintf("Product with id %s does not exist", productID),
			}
		}
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to query product",
			Detail:  err.Error(),
		}
	}
	return &product, nil
}

// componentSortClause orders components main, accessory, manual, warranty,
// then by name
const componentSortClause = `CASE component_type
	WHEN 'main' THEN 1
	WHEN 'accessory' THEN 2
	WHEN 'manual' THEN 3
	WHEN 'warranty' THEN 4
	ELSE 5
END, component_name`

// GetComponentsByProduct returns a product's component registry
func (r *Repository) GetComponentsByProduct(productID string) ([]models.Component, *RepositoryError) {
	var components []models.Component
	err := r.db.Where("product_id = ?", productID).
		Order(componentSortClause).
		Find(&components).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to query components",
			Detail:  err.Error(),
		}
	}
	return components, nil
}

// GetComponentsByInstruction resolves a shipping instruction to its
// product's component registry
func (r *Repository) GetComponentsByInstruction(instructionID string) (*models.ShippingInstruction, []models.Component, *RepositoryError) {
	var instruction models.ShippingInstruction
	err := r.db.Preload("Product").Preload("Product.Inventory").
		Where("shipping_instruction_id = ?", instructionID).First(&instruction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &RepositoryError{
				Code:    "ENTITY_NOT_FOUND",
				Message: "Shipping instruction not found",
				Detail:  fmt.Sprintf("Shipping instruction with id %s does not exist", instructionID),
			}
		}
		return nil, nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to query shipping instruction",
			Detail:  err.Error(),
		}
	}

	components, repoErr := r.GetComponentsByProduct(instruction.ProductID)
	if repoErr != nil {
		return nil, nil, repoErr
	}
	return &instruction, components, nil
}

// ListShippingLocations returns all shipping locations
func (r *Repository) ListShippingLocations() ([]models.ShippingLocation, *RepositoryError) {
	var locations []models.ShippingLocation
	err := r.db.Order("location_code").Find(&locations).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to query shipping locations",
			Detail:  err.Error(),
		}
	}
	return locations, nil
}

// ListDeliveryLocations returns all delivery locations
func (r *Repository) ListDeliveryLocations() ([]models.DeliveryLocation, *RepositoryError) {
	var locations []models.DeliveryLocation
	err := r.db.Order("location_code").Find(&locations).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to query delivery locations",
			Detail:  err.Error(),
		}
	}
	return locations, nil
}

// InstructionFilter narrows ListShippingInstructions
type InstructionFilter struct {
	Status           string
	Priority         string
	ShippingLocation string
	DeliveryLocation string
	InstructionID    string
	DateFrom         *time.Time
	DateTo           *time.Time
}

// ListShippingInstructions returns shipping instructions matching the
// filter, newest first
func (r *Repository) ListShippingInstructions(filter InstructionFilter) ([]models.ShippingInstruction, *RepositoryError) {
	query := r.db.Preload("Product").Preload("ShippingLocation").Preload("DeliveryLocation")

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.ShippingLocation != "" {
		query = query.Where("shipping_location_id IN (?)",
			r.db.Model(&models.ShippingLocation{}).Select("shipping_location_id").Where("location_code = ?", filter.ShippingLocation))
	}
	if filter.DeliveryLocation != "" {
		query = query.Where("delivery_location_id IN (?)",
			r.db.Model(&models.DeliveryLocation{}).Select("delivery_location_id").Where("location_code = ?", filter.DeliveryLocation))
	}
	if filter.InstructionID != "" {
		query = query.Where("instruction_id LIKE ?", "%"+filter.InstructionID+"%")
	}
	if filter.DateFrom != nil {
		query = query.Where("shipping_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("shipping_date <= ?", *filter.DateTo)
	}

	var instructions []models.ShippingInstruction
	err := query.Order("created_at DESC").Find(&instructions).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to query shipping instructions",
			Detail:  err.Error(),
		}
	}
	return instructions, nil
}

// GetShippingInstruction returns one shipping instruction with locations
// and product
func (r *Repository) GetShippingInstruction(instructionID string) (*models.ShippingInstruction, *RepositoryError) {
	var instruction models.ShippingInstruction
	err := r.db.Preload("Product").Preload("ShippingLocation").Preload("DeliveryLocation").
		Where("shipping_instruction_id = ?", instructionID).First(&instruction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RepositoryError{
				Code:    "ENTITY_NOT_FOUND",
				Message: "Shipping instruction not found",
				Detail:  fmt.Sprintf("Shipping instruction with id %s does not exist", instructionID),
			}
		}
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to query shipping instruction",
			Detail:  err.Error(),
		}
	}
	return &instruction, nil
}

// UpdatePicking records picked quantity and notes on a shipping
// instruction
func (r *Repository) UpdatePicking(instructionID string, pickedQuantity *int, notes string) (*models.ShippingInstruction, *RepositoryError) {
	if pickedQuantity != nil && *pickedQuantity < 0 {
		return nil, &RepositoryError{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid picked quantity",
			Detail:  "picked_quantity must be non-negative",
		}
	}

	dbTx := r.db.Begin()

	var instruction models.ShippingInstruction
	err := dbTx.Where("shipping_instruction_id = ?", instructionID).First(&instruction).Error
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
			Message: "Failed to query shipping instruction",
			Detail:  err.Error(),
		}
	}

	instruction.PickedQuantity = pickedQuantity
	instruction.PickingNotes = notes

	err = dbTx.Save(&instruction).Error
	if err != nil {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to update picking information",
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

	return &instruction, nil
}

// DashboardStats aggregates shipment, inspection and inventory counters
// for the dashboard
type DashboardStats struct {
	ShipmentsByStatus map[string]int64 `json:"shipments_by_status"`
	TotalInspections  int64            `json:"total_inspections"`
	PassedInspections int64            `json:"passed_inspections"`
	TotalProducts     int64            `json:"total_products"`
	TotalStock        int64            `json:"total_stock"`
	AvailableStock    int64            `json:"available_stock"`
}

// GetDashboardStats computes dashboard aggregates
func (r *Repository) GetDashboardStats() (*DashboardStats, *RepositoryError) {
	stats := &DashboardStats{
		ShipmentsByStatus: make(map[string]int64),
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var shipmentCounts []statusCount
	err := r.db.Model(&models.ShippingInstruction{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&shipmentCounts).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to aggregate shipments",
			Detail:  err.Error(),
		}
	}
	for _, row := range shipmentCounts {
		stats.ShipmentsByStatus[row.Status] = row.Count
	}

	err = r.db.Model(&models.Inspection{}).Count(&stats.TotalInspections).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to count inspections",
			Detail:  err.Error(),
		}
	}
	err = r.db.Model(&models.Inspection{}).
		Where("status = ?", models.InspectionStatusCompleted).
		Count(&stats.PassedInspections).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to count passed inspections",
			Detail:  err.Error(),
		}
	}

	err = r.db.Model(&models.Product{}).Count(&stats.TotalProducts).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to count products",
			Detail:  err.Error(),
		}
	}

	type stockSums struct {
		Current   int64
		Available int64
	}
	var sums stockSums
	err = r.db.Model(&models.Inventory{}).
		Select("COALESCE(SUM(current_stock),0) as current, COALESCE(SUM(available_stock),0) as available").
		Scan(&sums).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Failed to sum inventory",
			Detail:  err.Error(),
		}
	}
	stats.TotalStock = sums.Current
	stats.AvailableStock = sums.Available

	return stats, nil
}
