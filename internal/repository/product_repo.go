package repository

import (
	"context"
	"strings"

	"go-marketplace-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, product *model.Product) error
	FindAll(ctx context.Context, includeCustom bool) ([]model.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	DeleteCustom(ctx context.Context, ids []uuid.UUID) error
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{tx}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Omit("Inventory").Create(product).Error
}

func (r *productRepo) FindAll(ctx context.Context, includeCustom bool) ([]model.Product, error) {
	var products []model.Product
	q := r.db.WithContext(ctx).Preload("Inventory")
	if !includeCustom {
		q = q.Where("is_custom = ?", false)
	}
	err := q.Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Preload("Inventory").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads products in one round trip, keyed by id. Missing ids are absent from the map.
func (r *productRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Product, error) {
	out := make(map[uuid.UUID]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []model.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// FindBySKU matches case-insensitively; SKUs are stored upper-cased but older rows may not be.
func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "UPPER(sku) = ?", strings.ToUpper(strings.TrimSpace(sku))).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) Update(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Omit("Inventory").Save(product).Error
}

// DeleteCustom hard-deletes ad-hoc products and their stock rows. Catalog products are never matched.
func (r *productRepo) DeleteCustom(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var custom []uuid.UUID
		if err := tx.Model(&model.Product{}).Where("id IN ? AND is_custom = ?", ids, true).Pluck("id", &custom).Error; err != nil {
			return err
		}
		if len(custom) == 0 {
			return nil
		}
		if err := tx.Where("product_id IN ?", custom).Delete(&model.InventoryRecord{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Product{}, "id IN ?", custom).Error
	})
}
