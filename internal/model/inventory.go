package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Variant selects an inventory scope. Empty fields mean "any".
type Variant struct {
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

func NewVariant(size, color string) Variant {
	return Variant{Size: strings.TrimSpace(size), Color: strings.TrimSpace(color)}
}

// Scope resolves the record granularity an item maps to.
// A color without a size falls back to the general record.
func (v Variant) Scope() InventoryScope {
	switch {
	case v.Size != "" && v.Color != "":
		return ScopeSizeColor
	case v.Size != "":
		return ScopeSize
	default:
		return ScopeGeneral
	}
}

// Normalized drops the fields the resolved scope ignores.
func (v Variant) Normalized() Variant {
	switch v.Scope() {
	case ScopeSizeColor:
		return v
	case ScopeSize:
		return Variant{Size: v.Size}
	default:
		return Variant{}
	}
}

type InventoryScope string

const (
	ScopeGeneral   InventoryScope = "general"
	ScopeSize      InventoryScope = "size"
	ScopeSizeColor InventoryScope = "size_color"
)

// InventoryRecord holds stock and reservations for one product scope.
// Version is bumped on every mutation and guards compare-and-swap updates.
type InventoryRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_scope" json:"product_id"`
	Size      string    `gorm:"type:varchar(32);not null;default:'';uniqueIndex:idx_inventory_scope" json:"size"`
	Color     string    `gorm:"type:varchar(32);not null;default:'';uniqueIndex:idx_inventory_scope" json:"color"`
	Stock     int       `gorm:"not null;default:0" json:"stock"`
	Reserved  int       `gorm:"not null;default:0" json:"reserved"`
	Version   int64     `gorm:"not null;default:0" json:"version"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *InventoryRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Available is max(0, stock - reserved).
func (r InventoryRecord) Available() int {
	if a := r.Stock - r.Reserved; a > 0 {
		return a
	}
	return 0
}

func (r InventoryRecord) Variant() Variant {
	return Variant{Size: r.Size, Color: r.Color}
}

type InventoryResponse struct {
	ID        uuid.UUID      `json:"id"`
	ProductID uuid.UUID      `json:"product_id"`
	Scope     InventoryScope `json:"scope"`
	Size      string         `json:"size,omitempty"`
	Color     string         `json:"color,omitempty"`
	Stock     int            `json:"stock"`
	Reserved  int            `json:"reserved"`
	Available int            `json:"available"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (r InventoryRecord) ToResponse() InventoryResponse {
	return InventoryResponse{
		ID:        r.ID,
		ProductID: r.ProductID,
		Scope:     r.Variant().Scope(),
		Size:      r.Size,
		Color:     r.Color,
		Stock:     r.Stock,
		Reserved:  r.Reserved,
		Available: r.Available(),
		UpdatedAt: r.UpdatedAt,
	}
}
