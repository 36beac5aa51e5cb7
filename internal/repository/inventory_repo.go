package repository

import (
	"context"
	"errors"
	"time"

	"go-marketplace-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InventoryRepository interface {
	WithTx(tx *gorm.DB) InventoryRepository
	Find(ctx context.Context, productID uuid.UUID, v model.Variant) (*model.InventoryRecord, error)
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]model.InventoryRecord, error)
	FindAll(ctx context.Context) ([]model.InventoryRecord, error)
	Create(ctx context.Context, rec *model.InventoryRecord) error
	ReserveCAS(ctx context.Context, id uuid.UUID, version int64, qty int) (bool, error)
	SetStockCAS(ctx context.Context, id uuid.UUID, version int64, stock int, updatedBy string) (bool, error)
	Deduct(ctx context.Context, productID uuid.UUID, v model.Variant, qty int) (bool, error)
	Release(ctx context.Context, productID uuid.UUID, v model.Variant, qty int) (bool, error)
}

type inventoryRepo struct {
	db *gorm.DB
}

func NewInventoryRepo(db *gorm.DB) InventoryRepository {
	return &inventoryRepo{db}
}

func (r *inventoryRepo) WithTx(tx *gorm.DB) InventoryRepository {
	return &inventoryRepo{tx}
}

// Find returns the record for the exact scope, or (nil, nil) when none exists.
func (r *inventoryRepo) Find(ctx context.Context, productID uuid.UUID, v model.Variant) (*model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND size = ? AND color = ?", productID, v.Size, v.Color).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *inventoryRepo) FindByProduct(ctx context.Context, productID uuid.UUID) ([]model.InventoryRecord, error) {
	var recs []model.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("size ASC, color ASC").
		Find(&recs).Error
	return recs, err
}

func (r *inventoryRepo) FindAll(ctx context.Context) ([]model.InventoryRecord, error) {
	var recs []model.InventoryRecord
	err := r.db.WithContext(ctx).Order("product_id ASC, size ASC, color ASC").Find(&recs).Error
	return recs, err
}

func (r *inventoryRepo) Create(ctx context.Context, rec *model.InventoryRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ReserveCAS increments reserved only if the row is still at version and has qty available.
func (r *inventoryRepo) ReserveCAS(ctx context.Context, id uuid.UUID, version int64, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.InventoryRecord{}).
		Where("id = ? AND version = ? AND stock - reserved >= ?", id, version, qty).
		Updates(map[string]interface{}{
			"reserved":   gorm.Expr("reserved + ?", qty),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetStockCAS overwrites stock. The new value may not drop below what is already reserved.
func (r *inventoryRepo) SetStockCAS(ctx context.Context, id uuid.UUID, version int64, stock int, updatedBy string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.InventoryRecord{}).
		Where("id = ? AND version = ? AND reserved <= ?", id, version, stock).
		Updates(map[string]interface{}{
			"stock":      stock,
			"version":    gorm.Expr("version + 1"),
			"updated_by": updatedBy,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Deduct finalizes a sale: stock and reserved both drop by qty, reserved floored at zero.
func (r *inventoryRepo) Deduct(ctx context.Context, productID uuid.UUID, v model.Variant, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.InventoryRecord{}).
		Where("product_id = ? AND size = ? AND color = ? AND stock >= ?", productID, v.Size, v.Color, qty).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", qty),
			"reserved":   gorm.Expr("CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END", qty, qty),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release undoes a reservation, floored at zero.
func (r *inventoryRepo) Release(ctx context.Context, productID uuid.UUID, v model.Variant, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.InventoryRecord{}).
		Where("product_id = ? AND size = ? AND color = ?", productID, v.Size, v.Color).
		Updates(map[string]interface{}{
			"reserved":   gorm.Expr("CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END", qty, qty),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
