package repository

import (
	"context"
	"time"

	"go-marketplace-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MovementRepository interface {
	WithTx(tx *gorm.DB) MovementRepository
	Create(ctx context.Context, m *model.StockMovement) error
	FindAll(ctx context.Context, filter MovementFilter) ([]model.StockMovement, error)
	GetStockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error)
	GetDashboardStats(ctx context.Context, lowStockThreshold int) (*DashboardStats, error)
}

type MovementFilter struct {
	ProductID *uuid.UUID
	OrderID   *uuid.UUID
	Limit     int
}

// StockMovementData is one day of the stock movement chart
type StockMovementData struct {
	Date     string `json:"date"`
	Reserved int    `json:"reserved"`
	Deducted int    `json:"deducted"`
	Released int    `json:"released"`
	Adjusted int    `json:"adjusted"`
}

type DashboardStats struct {
	TotalProducts   int64 `json:"total_products"`
	LowStockCount   int64 `json:"low_stock_count"`
	TotalValuation  int64 `json:"total_valuation"`
	ReservedUnits   int64 `json:"reserved_units"`
	CompletedOrders int64 `json:"completed_orders"`
	Revenue         int64 `json:"revenue"`
}

type movementRepo struct {
	db *gorm.DB
}

func NewMovementRepo(db *gorm.DB) MovementRepository {
	return &movementRepo{db}
}

func (r *movementRepo) WithTx(tx *gorm.DB) MovementRepository {
	return &movementRepo{tx}
}

func (r *movementRepo) Create(ctx context.Context, m *model.StockMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *movementRepo) FindAll(ctx context.Context, filter MovementFilter) ([]model.StockMovement, error) {
	q := r.db.WithContext(ctx).Model(&model.StockMovement{})
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.OrderID != nil {
		q = q.Where("order_id = ?", *filter.OrderID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var movements []model.StockMovement
	err := q.Order("created_at DESC").Limit(limit).Find(&movements).Error
	return movements, err
}

func (r *movementRepo) GetStockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error) {
	var results []StockMovementData

	rows, err := r.db.WithContext(ctx).Model(&model.StockMovement{}).
		Select(`
			DATE(created_at) as date,
			COALESCE(SUM(CASE WHEN type = 'RESERVE' THEN quantity ELSE 0 END), 0) as reserved,
			COALESCE(SUM(CASE WHEN type = 'DEDUCT' THEN quantity ELSE 0 END), 0) as deducted,
			COALESCE(SUM(CASE WHEN type = 'RELEASE' THEN quantity ELSE 0 END), 0) as released,
			COALESCE(SUM(CASE WHEN type = 'ADJUST' THEN quantity ELSE 0 END), 0) as adjusted
		`).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data StockMovementData
		if err := rows.Scan(&data.Date, &data.Reserved, &data.Deducted, &data.Released, &data.Adjusted); err != nil {
			return nil, err
		}
		results = append(results, data)
	}
	return results, rows.Err()
}

func (r *movementRepo) GetDashboardStats(ctx context.Context, lowStockThreshold int) (*DashboardStats, error) {
	var stats DashboardStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.Product{}).Where("is_custom = ?", false).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.InventoryRecord{}).
		Where("stock - reserved < ?", lowStockThreshold).
		Count(&stats.LowStockCount).Error; err != nil {
		return nil, err
	}
	if err := db.Table("inventory_records").
		Joins("JOIN products ON products.id = inventory_records.product_id").
		Select("COALESCE(SUM(inventory_records.stock * products.price), 0)").
		Scan(&stats.TotalValuation).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.InventoryRecord{}).
		Select("COALESCE(SUM(reserved), 0)").
		Scan(&stats.ReservedUnits).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Order{}).
		Where("status = ?", model.OrderCompleted).
		Count(&stats.CompletedOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Order{}).
		Where("status = ?", model.OrderCompleted).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&stats.Revenue).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
