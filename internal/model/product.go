package model

// Product is a catalog entry. Stock is tracked per scope in InventoryRecord.
type Product struct {
	BaseModel
	SKU         string `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name        string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Unit        string `gorm:"type:varchar(20)" json:"unit"`
	Price       int64  `gorm:"default:0" json:"price" validate:"gte=0"`
	HasSizes    bool   `gorm:"default:false" json:"has_sizes"`
	HasColors   bool   `gorm:"default:false" json:"has_colors"`

	// IsCustom marks ad-hoc products materialized from a custom order line.
	IsCustom bool `gorm:"default:false;index" json:"is_custom"`

	Inventory []InventoryRecord `gorm:"foreignKey:ProductID" json:"inventory,omitempty" validate:"-"`
}
