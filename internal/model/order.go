package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SaleType string

const (
	SaleOnline SaleType = "online"
	SalePOS    SaleType = "pos"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderFailed, OrderCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PayMpesa PaymentMethod = "mpesa"
	PayCard  PaymentMethod = "card"
	PayCash  PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayMpesa, PayCard, PayCash:
		return true
	}
	return false
}

// SocialPlatforms lists the attribution tags accepted on POS sales.
var SocialPlatforms = []string{"instagram", "facebook", "tiktok", "whatsapp", "twitter", "walk_in", "other"}

type Order struct {
	BaseModel
	CustomerID    *uuid.UUID `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	CustomerName  string     `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerEmail string     `gorm:"type:varchar(255)" json:"customer_email,omitempty"`
	CustomerPhone string     `gorm:"type:varchar(20)" json:"customer_phone,omitempty"`

	SellerID *uuid.UUID `gorm:"type:uuid;index" json:"seller_id,omitempty"`
	SaleType SaleType   `gorm:"type:varchar(10);not null;default:'online'" json:"sale_type"`

	TotalAmount      int64         `gorm:"not null" json:"total_amount"`
	Status           OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod    PaymentMethod `gorm:"type:varchar(20)" json:"payment_method,omitempty"`
	PaymentReference string        `gorm:"type:varchar(100);index" json:"payment_reference,omitempty"`
	CommissionAmount int64         `gorm:"not null;default:0" json:"commission_amount"`
	SocialPlatform   string        `gorm:"type:varchar(30)" json:"social_platform,omitempty"`
	ReconciledAt     *time.Time    `json:"reconciled_at,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// OrderItem is a line on an order. Product name and SKU are snapshotted at creation.
type OrderItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName string    `gorm:"type:varchar(255)" json:"product_name"`
	ProductSKU  string    `gorm:"type:varchar(50)" json:"product_sku"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	UnitPrice   int64     `gorm:"not null" json:"unit_price"`
	Size        string    `gorm:"type:varchar(32);not null;default:''" json:"size,omitempty"`
	Color       string    `gorm:"type:varchar(32);not null;default:''" json:"color,omitempty"`
	IsCustom    bool      `gorm:"default:false" json:"is_custom"`
	CreatedAt   time.Time `json:"created_at"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i OrderItem) Variant() Variant {
	return NewVariant(i.Size, i.Color)
}

func (i OrderItem) LineTotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}
