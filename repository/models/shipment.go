package models

import "time"

// ShippingLocation represents a warehouse a shipment departs from
type ShippingLocation struct {
	ID      string `gorm:"column:shipping_location_id;primaryKey;type:varchar(50)"`
	Code    string `gorm:"column:location_code;type:varchar(50);uniqueIndex;not null"`
	Name    string `gorm:"column:location_name;type:varchar(100);not null"`
	Address string `gorm:"column:address;type:varchar(255)"`
}

// DeliveryLocation represents a customer site a shipment is delivered to
type DeliveryLocation struct {
	ID             string `gorm:"column:delivery_location_id;primaryKey;type:varchar(50)"`
	Code           string `gorm:"column:location_code;type:varchar(50);uniqueIndex;not null"`
	Name           string `gorm:"column:location_name;type:varchar(100);not null"`
	Address        string `gorm:"column:address;type:varchar(255)"`
	Phone          string `gorm:"column:phone;type:varchar(50)"`
	ContactPerson  string `gorm:"column:contact_person;type:varchar(100)"`
	DeliveryMethod string `gorm:"column:delivery_method;type:varchar(50)"`
}

// Shipping instruction statuses
const (
	InstructionStatusPending    = "pending"
	InstructionStatusProcessing = "processing"
	InstructionStatusShipped    = "shipped"
	InstructionStatusDelivered  = "delivered"
)

// ShippingInstruction represents an order to ship a quantity of one product
type ShippingInstruction struct {
	ID            string `gorm:"column:shipping_instruction_id;primaryKey;type:varchar(50)"`
	InstructionID string `gorm:"column:instruction_id;type:varchar(50);uniqueIndex;not null"`
	ProductID     string `gorm:"column:product_id;type:varchar(50);index;not null"`
	Quantity      int    `gorm:"column:quantity;not null"`
	Status        string `gorm:"column:status;type:varchar(20);default:'pending'"`
	Priority      string `gorm:"column:priority;type:varchar(20);default:'standard'"`

	ShippingDate       *time.Time `gorm:"column:shipping_date"`
	ShippingLocationID *string    `gorm:"column:shipping_location_id;type:varchar(50);index"`
	DeliveryLocationID *string    `gorm:"column:delivery_location_id;type:varchar(50);index"`

	PickedQuantity *int   `gorm:"column:picked_quantity"`
	PickingNotes   string `gorm:"column:picking_notes;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Relationships
	Product          *Product          `gorm:"foreignKey:ProductID"`
	ShippingLocation *ShippingLocation `gorm:"foreignKey:ShippingLocationID"`
	DeliveryLocation *DeliveryLocation `gorm:"foreignKey:DeliveryLocationID"`
}
