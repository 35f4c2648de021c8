package models

import "time"

// Product represents a shippable product in the catalog
type Product struct {
	ID          string `gorm:"column:product_id;primaryKey;type:varchar(50)"`
	Code        string `gorm:"column:product_code;type:varchar(50);uniqueIndex;not null"`
	Name        string `gorm:"column:product_name;type:varchar(100);not null"`
	Description string `gorm:"column:description;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Relationships
	Components []Component `gorm:"foreignKey:ProductID"`
	Inventory  *Inventory  `gorm:"foreignKey:ProductID"`
}

// Component types, used only for display sort order
const (
	ComponentTypeMain      = "main"
	ComponentTypeAccessory = "accessory"
	ComponentTypeManual    = "manual"
	ComponentTypeWarranty  = "warranty"
)

// Component represents a physical sub-item of a product that is verified
// by QR scan before shipment
type Component struct {
	ID         string   `gorm:"column:component_id;primaryKey;type:varchar(50)"`
	ProductID  string   `gorm:"column:product_id;type:varchar(50);index;not null"`
	Product    *Product `gorm:"foreignKey:ProductID"`
	Name       string   `gorm:"column:component_name;type:varchar(100);not null"`
	Type       string   `gorm:"column:component_type;type:varchar(20);default:'accessory'"`
	QRCode     string   `gorm:"column:qr_code;type:varchar(100);uniqueIndex;not null"`
	IsRequired bool     `gorm:"column:is_required;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Inventory represents the stock counters for a product
type Inventory struct {
	ProductID      string   `gorm:"column:product_id;primaryKey;type:varchar(50)"`
	Product        *Product `gorm:"foreignKey:ProductID"`
	CurrentStock   int      `gorm:"column:current_stock;not null;default:0"`
	AvailableStock int      `gorm:"column:available_stock;not null;default:0"`
	Location       string   `gorm:"column:location;type:varchar(100)"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
