package model

import "github.com/google/uuid"

type MovementType string

const (
	MoveReserve MovementType = "RESERVE"
	MoveDeduct  MovementType = "DEDUCT"
	MoveRelease MovementType = "RELEASE"
	MoveAdjust  MovementType = "ADJUST"
)

// StockMovement is an append-only log of inventory mutations.
type StockMovement struct {
	BaseModel
	ProductID uuid.UUID    `gorm:"type:uuid;not null;index" json:"product_id"`
	Size      string       `gorm:"type:varchar(32);not null;default:''" json:"size,omitempty"`
	Color     string       `gorm:"type:varchar(32);not null;default:''" json:"color,omitempty"`
	Type      MovementType `gorm:"type:varchar(10);not null;index" json:"type"`
	Quantity  int          `gorm:"not null" json:"quantity"`
	OrderID   *uuid.UUID   `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Note      string       `json:"note,omitempty"`
}
