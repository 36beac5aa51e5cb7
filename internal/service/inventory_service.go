package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/logger"
	"go-marketplace-pos/pkg/metrics"
	"go-marketplace-pos/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInventoryContention = errors.New("inventory record changed concurrently")
	ErrInventoryNotFound   = errors.New("inventory record not found")
)

// maxReserveAttempts bounds retries on version conflicts. Insufficient stock is never retried.
const maxReserveAttempts = 3

type InventoryService interface {
	Reserve(ctx context.Context, productID uuid.UUID, qty int, v model.Variant, orderID *uuid.UUID) error
	Deduct(ctx context.Context, productID uuid.UUID, qty int, v model.Variant, orderID *uuid.UUID) error
	Release(ctx context.Context, productID uuid.UUID, qty int, v model.Variant, orderID *uuid.UUID) error
	ReserveItems(ctx context.Context, orderID uuid.UUID, items []model.OrderItem) error
	ReleaseItems(ctx context.Context, orderID uuid.UUID, items []model.OrderItem) error
	DeductItems(ctx context.Context, orderID uuid.UUID, items []model.OrderItem) error
	ListInventory(ctx context.Context) ([]model.InventoryResponse, error)
	ListMovements(ctx context.Context, filter repository.MovementFilter) ([]model.StockMovement, error)
	ProductSizes(ctx context.Context, productID uuid.UUID) ([]SizeStock, error)
	ProductColorStocks(ctx context.Context, productID uuid.UUID) ([]ColorStock, error)
	UpdateStock(ctx context.Context, req *UpdateStockRequest, actor Actor) (*model.InventoryResponse, error)
}

type SizeStock struct {
	Size      string `json:"size"`
	Stock     int    `json:"stock"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

type ColorStock struct {
	Size      string `json:"size"`
	Color     string `json:"color"`
	Stock     int    `json:"stock"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

type UpdateStockRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"uuid_required"`
	Size      string    `json:"size" validate:"max=32"`
	Color     string    `json:"color" validate:"max=32"`
	Stock     int       `json:"stock" validate:"gte=0"`
	Note      string    `json:"note" validate:"max=255"`
}

type inventoryService struct {
	inventoryRepo repository.InventoryRepository
	movementRepo  repository.MovementRepository
	productRepo   repository.ProductRepository
	db            *gorm.DB
	events        events.Publisher
	metrics       *metrics.Inventory
	log           *logger.Logger
}

func NewInventoryService(
	invRepo repository.InventoryRepository,
	movRepo repository.MovementRepository,
	productRepo repository.ProductRepository,
	db *gorm.DB,
	publisher events.Publisher,
	m *metrics.Inventory,
	log *logger.Logger,
) InventoryService {
	if publisher == nil {
		publisher = events.Discard
	}
	if log == nil {
		log = logger.Nop()
	}
	return &inventoryService{
		inventoryRepo: invRepo,
		movementRepo:  movRepo,
		productRepo:   productRepo,
		db:            db,
		events:        publisher,
		metrics:       m,
		log:           log,
	}
}

// Reserve holds qty units of the scope resolved from v. The record is updated with a
// version-guarded CAS and re-read on conflict.
func (s *inventoryService) Reserve(ctx context.Context, productID uuid.UUID, qty int, v model.Variant, orderID *uuid.UUID) error {
	if qty <= 0 {
		return apperr.New(apperr.CodeValidation, "quantity must be positive")
	}
	v = v.Normalized()

	for attempt := 1; attempt <= maxReserveAttempts; attempt++ {
		reserved := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv := s.inventoryRepo.WithTx(tx)
			rec, err := inv.Find(ctx, productID, v)
			if err != nil {
				return err
			}
			if rec == nil || rec.Available() < qty {
				return ErrInsufficientStock
			}
			ok, err := inv.ReserveCAS(ctx, rec.ID, rec.Version, qty)
			if err != nil || !ok {
				return err
			}
			reserved = true
			return s.movementRepo.WithTx(tx).Create(ctx, newMovement(productID, v, model.MoveReserve, qty, orderID, ""))
		})

		switch {
		case errors.Is(err, ErrInsufficientStock):
			s.metrics.Observe("reserve", "insufficient")
			return apperr.Wrap(apperr.CodeStateConflict, ErrInsufficientStock, "Insufficient stock")
		case err != nil:
			s.metrics.Observe("reserve", "error")
			return apperr.Wrap(apperr.CodeInternal, err, "reserve inventory")
		case reserved:
			s.metrics.Observe("reserve", "ok")
			s.publishStock(ctx, "reserve", productID, v, qty, orderID)
			return nil
		}
		s.metrics.Observe("reserve", "conflict")
	}

	s.log.Warn(s.log.WithField(ctx, "product_id", productID.String()), "reserve gave up after version conflicts")
	return apperr.Wrap(apperr.CodeStateConflict, ErrInventoryContention, "Insufficient stock")
}

// Deduct finalizes qty units: stock and reserved both drop.
func (s *inventoryService) Deduct(ctx context.Context, productID uuid.UUID, qty int, v model.Variant, orderID *uuid.UUID) error {
	if qty <= 0 {
		return apperr.New(apperr.CodeValidation, "quantity must be positive")
	}
	v = v.Normalized()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.inventoryRepo.WithTx(tx).Deduct(ctx, productID, v, qty)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientStock
		}
		return s.movementRepo.WithTx(tx).Create(ctx, newMovement(productID, v, model.MoveDeduct, qty, orderID, ""))
	})
	if errors.Is(err, ErrInsufficientStock) {
		s.metrics.Observe("deduct", "insufficient")
		return apperr.Wrap(apperr.CodeStateConflict, ErrInsufficientStock, "Insufficient stock")
	}
	if err != nil {
		s.metrics.Observe("deduct", "error")
		return apperr.Wrap(apperr.CodeInternal, err, "deduct inventory")
	}
	s.metrics.Observe("deduct", "ok")
	s.publishStock(ctx, "deduct", productID, v, qty, orderID)
	return nil
}

// Release returns qty reserved units to available. Reserved never drops below zero.
func (s *inventoryService) Release(ctx context.Context, productID uuid.UUID, qty int, v model.Variant, orderID *uuid.UUID) error {
	if qty <= 0 {
		return nil
	}
	v = v.Normalized()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.inventoryRepo.WithTx(tx).Release(ctx, productID, v, qty)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInventoryNotFound
		}
		return s.movementRepo.WithTx(tx).Create(ctx, newMovement(productID, v, model.MoveRelease, qty, orderID, ""))
	})
	if errors.Is(err, ErrInventoryNotFound) {
		s.metrics.Observe("release", "missing")
		return apperr.Wrap(apperr.CodeNotFound, err, "Inventory record not found")
	}
	if err != nil {
		s.metrics.Observe("release", "error")
		return apperr.Wrap(apperr.CodeInternal, err, "release inventory")
	}
	s.metrics.Observe("release", "ok")
	s.publishStock(ctx, "release", productID, v, qty, orderID)
	return nil
}

// ReserveItems reserves every line in order. When line k fails, lines before it are released
// and the error names the product that ran short.
func (s *inventoryService) ReserveItems(ctx context.Context, orderID uuid.UUID, items []model.OrderItem) error {
	oid := orderID
	for i, item := range items {
		err := s.Reserve(ctx, item.ProductID, item.Quantity, item.Variant(), &oid)
		if err == nil {
			continue
		}

		if relErr := s.ReleaseItems(ctx, orderID, items[:i]); relErr != nil {
			s.log.Error(s.log.WithOrderID(ctx, orderID.String()), "rollback of partial reservation failed", relErr)
		}

		if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrInventoryContention) {
			return apperr.Wrap(apperr.CodeStateConflict, err, fmt.Sprintf("Insufficient stock for %s", item.ProductName)).
				WithDetails(map[string]any{"product_id": item.ProductID, "size": item.Size, "color": item.Color, "quantity": item.Quantity})
		}
		return err
	}
	return nil
}

// ReleaseItems attempts every line and combines the failures.
func (s *inventoryService) ReleaseItems(ctx context.Context, orderID uuid.UUID, items []model.OrderItem) error {
	oid := orderID
	var errs []error
	for _, item := range items {
		if err := s.Release(ctx, item.ProductID, item.Quantity, item.Variant(), &oid); err != nil {
			s.log.Error(s.log.WithFields(ctx, map[string]any{"order_id": orderID.String(), "product_id": item.ProductID.String()}), "release failed", err)
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

// DeductItems deducts every line once, continuing past failures.
func (s *inventoryService) DeductItems(ctx context.Context, orderID uuid.UUID, items []model.OrderItem) error {
	oid := orderID
	var errs []error
	for _, item := range items {
		if err := s.Deduct(ctx, item.ProductID, item.Quantity, item.Variant(), &oid); err != nil {
			s.log.Error(s.log.WithFields(ctx, map[string]any{"order_id": orderID.String(), "product_id": item.ProductID.String()}), "deduct failed", err)
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

func (s *inventoryService) ListInventory(ctx context.Context) ([]model.InventoryResponse, error) {
	recs, err := s.inventoryRepo.FindAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list inventory")
	}
	out := make([]model.InventoryResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ToResponse())
	}
	return out, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, filter repository.MovementFilter) ([]model.StockMovement, error) {
	movements, err := s.movementRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list stock movements")
	}
	return movements, nil
}

// ProductSizes returns the size-scoped records of a product.
func (s *inventoryService) ProductSizes(ctx context.Context, productID uuid.UUID) ([]SizeStock, error) {
	recs, err := s.productRecords(ctx, productID)
	if err != nil {
		return nil, err
	}
	sizes := []SizeStock{}
	for _, r := range recs {
		if r.Variant().Scope() != model.ScopeSize {
			continue
		}
		sizes = append(sizes, SizeStock{Size: r.Size, Stock: r.Stock, Reserved: r.Reserved, Available: r.Available()})
	}
	return sizes, nil
}

// ProductColorStocks returns the size+color records of a product.
func (s *inventoryService) ProductColorStocks(ctx context.Context, productID uuid.UUID) ([]ColorStock, error) {
	recs, err := s.productRecords(ctx, productID)
	if err != nil {
		return nil, err
	}
	colors := []ColorStock{}
	for _, r := range recs {
		if r.Variant().Scope() != model.ScopeSizeColor {
			continue
		}
		colors = append(colors, ColorStock{Size: r.Size, Color: r.Color, Stock: r.Stock, Reserved: r.Reserved, Available: r.Available()})
	}
	return colors, nil
}

func (s *inventoryService) productRecords(ctx context.Context, productID uuid.UUID) ([]model.InventoryRecord, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "Product not found")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load product")
	}
	recs, err := s.inventoryRepo.FindByProduct(ctx, productID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load inventory")
	}
	return recs, nil
}

// UpdateStock sets the absolute stock of one scope, creating the record when missing.
func (s *inventoryService) UpdateStock(ctx context.Context, req *UpdateStockRequest, actor Actor) (*model.InventoryResponse, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	v := model.NewVariant(req.Size, req.Color)
	if strings.TrimSpace(req.Color) != "" && v.Size == "" {
		return nil, apperr.New(apperr.CodeValidation, "Color stock requires a size")
	}

	product, err := s.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "Product not found")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load product")
	}

	var result model.InventoryRecord
	var delta int
	for attempt := 1; attempt <= maxReserveAttempts; attempt++ {
		done := false
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv := s.inventoryRepo.WithTx(tx)
			rec, err := inv.Find(ctx, product.ID, v)
			if err != nil {
				return err
			}
			if rec == nil {
				rec = &model.InventoryRecord{ProductID: product.ID, Size: v.Size, Color: v.Color, Stock: req.Stock, UpdatedBy: actor.IDString()}
				if err := inv.Create(ctx, rec); err != nil {
					return err
				}
				delta = req.Stock
			} else {
				if req.Stock < rec.Reserved {
					return ErrInsufficientStock
				}
				ok, err := inv.SetStockCAS(ctx, rec.ID, rec.Version, req.Stock, actor.IDString())
				if err != nil || !ok {
					return err
				}
				delta = req.Stock - rec.Stock
				rec.Stock = req.Stock
				rec.Version++
			}
			result = *rec
			done = true
			m := newMovement(product.ID, v, model.MoveAdjust, delta, nil, req.Note)
			m.CreatedBy = actor.IDString()
			return s.movementRepo.WithTx(tx).Create(ctx, m)
		})
		if errors.Is(err, ErrInsufficientStock) {
			return nil, apperr.New(apperr.CodeStateConflict, "Stock cannot be lower than reserved quantity")
		}
		if err != nil {
			s.metrics.Observe("adjust", "error")
			return nil, apperr.Wrap(apperr.CodeInternal, err, "update stock")
		}
		if done {
			break
		}
	}
	if result.ID == uuid.Nil {
		s.metrics.Observe("adjust", "conflict")
		return nil, apperr.Wrap(apperr.CodeStateConflict, ErrInventoryContention, "Inventory changed concurrently, retry")
	}

	s.metrics.Observe("adjust", "ok")
	stock := result.Stock
	s.events.Publish(ctx, events.New(events.TypeStockUpdate, product.ID.String(), events.StockPayload{
		Action:    "adjust",
		ProductID: product.ID.String(),
		Size:      v.Size,
		Color:     v.Color,
		Quantity:  delta,
		Stock:     &stock,
	}))
	s.log.Info(s.log.WithFields(ctx, map[string]any{"product_id": product.ID.String(), "stock": stock, "by": actor.Email}), "stock updated")

	resp := result.ToResponse()
	return &resp, nil
}

func (s *inventoryService) publishStock(ctx context.Context, action string, productID uuid.UUID, v model.Variant, qty int, orderID *uuid.UUID) {
	payload := events.StockPayload{
		Action:    action,
		ProductID: productID.String(),
		Size:      v.Size,
		Color:     v.Color,
		Quantity:  qty,
	}
	if orderID != nil {
		payload.OrderID = orderID.String()
	}
	s.events.Publish(ctx, events.New(events.TypeStockUpdate, productID.String(), payload))
}

func newMovement(productID uuid.UUID, v model.Variant, t model.MovementType, qty int, orderID *uuid.UUID, note string) *model.StockMovement {
	return &model.StockMovement{
		ProductID: productID,
		Size:      v.Size,
		Color:     v.Color,
		Type:      t,
		Quantity:  qty,
		OrderID:   orderID,
		Note:      note,
	}
}
