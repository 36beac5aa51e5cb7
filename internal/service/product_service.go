package service

import (
	"context"
	"errors"
	"strings"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrSKUExists = errors.New("sku already exists")

type ProductService interface {
	CreateProduct(ctx context.Context, req *ProductRequest, actor Actor) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *ProductRequest, actor Actor) (*model.Product, error)
	GetAllProducts(ctx context.Context, includeCustom bool) ([]model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
}

type ProductRequest struct {
	SKU         string `json:"sku" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	Unit        string `json:"unit" validate:"max=20"`
	Price       int64  `json:"price" validate:"gte=0"`
	HasSizes    bool   `json:"has_sizes"`
	HasColors   bool   `json:"has_colors"`
	// InitialStock seeds the general record on create. Ignored on update.
	InitialStock int `json:"initial_stock" validate:"gte=0"`
}

type productService struct {
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
	db            *gorm.DB
	events        events.Publisher
}

func NewProductService(productRepo repository.ProductRepository, inventoryRepo repository.InventoryRepository, db *gorm.DB, publisher events.Publisher) ProductService {
	if publisher == nil {
		publisher = events.Discard
	}
	return &productService{
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		db:            db,
		events:        publisher,
	}
}

func (s *productService) CreateProduct(ctx context.Context, req *ProductRequest, actor Actor) (*model.Product, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	if req.HasColors && !req.HasSizes {
		return nil, apperr.New(apperr.CodeValidation, "Color variants require size variants")
	}
	sku := strings.ToUpper(strings.TrimSpace(req.SKU))

	if existing, err := s.productRepo.FindBySKU(ctx, sku); err == nil && existing != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, ErrSKUExists, "SKU already exists")
	}

	product := &model.Product{
		SKU:         sku,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Unit:        req.Unit,
		Price:       req.Price,
		HasSizes:    req.HasSizes,
		HasColors:   req.HasColors,
	}
	product.CreatedBy = actor.IDString()
	product.UpdatedBy = actor.IDString()

	// general stock record travels with the product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.productRepo.WithTx(tx).Create(ctx, product); err != nil {
			return err
		}
		rec := &model.InventoryRecord{ProductID: product.ID, Stock: req.InitialStock, UpdatedBy: actor.IDString()}
		if err := s.inventoryRepo.WithTx(tx).Create(ctx, rec); err != nil {
			return err
		}
		product.Inventory = []model.InventoryRecord{*rec}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "create product")
	}

	s.events.Publish(ctx, events.New(events.TypeStockUpdate, product.ID.String(), map[string]any{
		"action":  "product_created",
		"product": map[string]any{"id": product.ID, "sku": product.SKU, "name": product.Name, "price": product.Price, "stock": req.InitialStock},
		"user":    map[string]any{"id": actor.IDString(), "name": actor.Name, "email": actor.Email},
	}))
	return product, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, req *ProductRequest, actor Actor) (*model.Product, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	if req.HasColors && !req.HasSizes {
		return nil, apperr.New(apperr.CodeValidation, "Color variants require size variants")
	}
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if sku != existing.SKU {
		if other, err := s.productRepo.FindBySKU(ctx, sku); err == nil && other != nil && other.ID != id {
			return nil, apperr.Wrap(apperr.CodeValidation, ErrSKUExists, "SKU already exists")
		}
	}

	existing.SKU = sku
	existing.Name = strings.TrimSpace(req.Name)
	existing.Description = req.Description
	existing.Unit = req.Unit
	existing.Price = req.Price
	existing.HasSizes = req.HasSizes
	existing.HasColors = req.HasColors
	existing.UpdatedBy = actor.IDString()

	if err := s.productRepo.Update(ctx, existing); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "update product")
	}

	s.events.Publish(ctx, events.New(events.TypeStockUpdate, existing.ID.String(), map[string]any{
		"action":  "product_updated",
		"product": map[string]any{"id": existing.ID, "sku": existing.SKU, "name": existing.Name, "price": existing.Price},
		"user":    map[string]any{"id": actor.IDString(), "name": actor.Name, "email": actor.Email},
	}))
	return existing, nil
}

func (s *productService) GetAllProducts(ctx context.Context, includeCustom bool) ([]model.Product, error) {
	products, err := s.productRepo.FindAll(ctx, includeCustom)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list products")
	}
	return products, nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeNotFound, "Product not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load product")
	}
	return product, nil
}
