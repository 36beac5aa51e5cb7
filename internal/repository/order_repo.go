package repository

import (
	"context"
	"errors"
	"time"

	"go-marketplace-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *model.Order) error
	CreateItems(ctx context.Context, items []model.OrderItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByReference(ctx context.Context, reference string) (*model.Order, error)
	FindAll(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from []model.OrderStatus, fields map[string]interface{}) (bool, error)
	SumCommission(ctx context.Context, sellerID uuid.UUID, since *time.Time) (*CommissionTotals, error)
	LatestCommissionAt(ctx context.Context, sellerID uuid.UUID, since *time.Time) (*time.Time, error)
	HasColumn(column string) bool
}

type OrderFilter struct {
	Status     model.OrderStatus
	SaleType   model.SaleType
	SellerID   *uuid.UUID
	CustomerID *uuid.UUID
	Limit      int
	Offset     int
}

type CommissionTotals struct {
	Orders     int64 `json:"orders"`
	Sales      int64 `json:"sales"`
	Commission int64 `json:"commission"`
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepository {
	return &orderRepo{db}
}

func (r *orderRepo) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepo{tx}
}

// Create inserts the order row only. Items go through CreateItems.
func (r *orderRepo) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *orderRepo) CreateItems(ctx context.Context, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// Delete hard-deletes an order and its items.
func (r *orderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
		return err
	}
	return db.Unscoped().Delete(&model.Order{}, "id = ?", id).Error
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) FindByReference(ctx context.Context, reference string) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Preload("Items").
		Where("payment_reference = ?", reference).
		Order("created_at DESC").
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) FindAll(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{}).Preload("Items")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SaleType != "" {
		q = q.Where("sale_type = ?", filter.SaleType)
	}
	if filter.SellerID != nil {
		q = q.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var orders []model.Order
	err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&orders).Error
	return orders, err
}

func (r *orderRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TransitionStatus applies fields only while the order is still in one of the from statuses.
// It reports whether this call performed the transition.
func (r *orderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from []model.OrderStatus, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SumCommission totals completed POS sales for the seller, optionally after since.
func (r *orderRepo) SumCommission(ctx context.Context, sellerID uuid.UUID, since *time.Time) (*CommissionTotals, error) {
	var totals CommissionTotals
	q := r.commissionScope(ctx, sellerID, since)
	err := q.Select("COUNT(*) AS orders, COALESCE(SUM(total_amount), 0) AS sales, COALESCE(SUM(commission_amount), 0) AS commission").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// LatestCommissionAt returns the newest counted order timestamp, or nil when there is none.
func (r *orderRepo) LatestCommissionAt(ctx context.Context, sellerID uuid.UUID, since *time.Time) (*time.Time, error) {
	var order model.Order
	err := r.commissionScope(ctx, sellerID, since).
		Order("created_at DESC").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order.CreatedAt, nil
}

func (r *orderRepo) commissionScope(ctx context.Context, sellerID uuid.UUID, since *time.Time) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("seller_id = ? AND sale_type = ? AND status = ?", sellerID, model.SalePOS, model.OrderCompleted)
	if since != nil {
		q = q.Where("created_at > ?", *since)
	}
	return q
}

func (r *orderRepo) HasColumn(column string) bool {
	return r.db.Migrator().HasColumn(&model.Order{}, column)
}
