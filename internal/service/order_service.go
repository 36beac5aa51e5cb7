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
	"go-marketplace-pos/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderService interface {
	Create(ctx context.Context, req *CreateOrderRequest, actor Actor) (*model.Order, error)
	Update(ctx context.Context, req *UpdateOrderRequest, actor Actor) (*UpdateOrderResult, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Order, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error)
}

type CustomerInfo struct {
	Name  string `json:"name" validate:"max=255"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,msisdn"`
}

type CustomProductInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Price       int64  `json:"price" validate:"gt=0"`
	Description string `json:"description"`
}

type OrderItemInput struct {
	ProductID     *uuid.UUID          `json:"product_id"`
	Quantity      int                 `json:"quantity" validate:"gt=0"`
	Size          string              `json:"size" validate:"max=32"`
	Color         string              `json:"color" validate:"max=32"`
	CustomProduct *CustomProductInput `json:"custom_product"`
}

type CreateOrderRequest struct {
	Items          []OrderItemInput    `json:"items" validate:"required,min=1,dive"`
	CustomerInfo   CustomerInfo        `json:"customer_info"`
	SaleType       model.SaleType      `json:"sale_type" validate:"required,oneof=online pos"`
	SocialPlatform string              `json:"social_platform" validate:"omitempty,oneof=instagram facebook tiktok whatsapp twitter walk_in other"`
	PaymentMethod  model.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=mpesa card cash"`
	SellerID       *uuid.UUID          `json:"seller_id"`
}

// UpdateOrderRequest carries optional fields; nil means "leave unchanged".
type UpdateOrderRequest struct {
	OrderID        string  `json:"order_id" validate:"required,uuid"`
	Status         *string `json:"status" validate:"omitempty,oneof=pending processing completed failed cancelled"`
	PaymentMethod  *string `json:"payment_method" validate:"omitempty,oneof=mpesa card cash"`
	SellerID       *string `json:"seller_id" validate:"omitempty,uuid"`
	SocialPlatform *string `json:"social_platform" validate:"omitempty,oneof=instagram facebook tiktok whatsapp twitter walk_in other"`
}

type UpdateOrderResult struct {
	Order   *model.Order `json:"order"`
	Warning string       `json:"warning,omitempty"`
}

type orderService struct {
	orderRepo     repository.OrderRepository
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
	userRepo      repository.UserRepository
	inventory     InventoryService
	db            *gorm.DB
	rate          decimal.Decimal
	events        events.Publisher
	log           *logger.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	inventoryRepo repository.InventoryRepository,
	userRepo repository.UserRepository,
	inventory InventoryService,
	db *gorm.DB,
	rate decimal.Decimal,
	publisher events.Publisher,
	log *logger.Logger,
) OrderService {
	if publisher == nil {
		publisher = events.Discard
	}
	if log == nil {
		log = logger.Nop()
	}
	return &orderService{
		orderRepo:     orderRepo,
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		userRepo:      userRepo,
		inventory:     inventory,
		db:            db,
		rate:          rate,
		events:        publisher,
		log:           log,
	}
}

func (s *orderService) Create(ctx context.Context, req *CreateOrderRequest, actor Actor) (*model.Order, error) {
	// 1. Validate shape
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}
	if req.SaleType == model.SalePOS && !actor.IsStaff() {
		return nil, apperr.New(apperr.CodeForbidden, "Only staff can record POS sales")
	}

	// 2. Resolve catalog prices; the client never sets unit prices
	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID != nil {
			ids = append(ids, *it.ProductID)
		}
	}
	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load products")
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for i, it := range req.Items {
		if it.ProductID == nil {
			continue
		}
		p, ok := products[*it.ProductID]
		if !ok || p.IsCustom {
			return nil, apperr.Newf(apperr.CodeValidation, "Product not found for item %d", i+1).
				WithDetails(map[string]any{"index": i, "product_id": it.ProductID})
		}
		v := model.NewVariant(it.Size, it.Color)
		items = append(items, model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
			Size:        v.Size,
			Color:       v.Color,
		})
	}

	// 3. Seller and commission
	order := &model.Order{
		CustomerName:   strings.TrimSpace(req.CustomerInfo.Name),
		CustomerEmail:  strings.TrimSpace(req.CustomerInfo.Email),
		CustomerPhone:  strings.TrimSpace(req.CustomerInfo.Phone),
		SaleType:       req.SaleType,
		PaymentMethod:  req.PaymentMethod,
		SocialPlatform: req.SocialPlatform,
	}
	order.ID = uuid.New()
	order.CreatedBy = actor.IDString()
	order.UpdatedBy = actor.IDString()

	var seller *model.User
	if req.SaleType == model.SalePOS {
		seller, err = s.resolveSeller(ctx, req.SellerID, actor)
		if err != nil {
			return nil, err
		}
		order.SellerID = &seller.ID
		if order.PaymentMethod == "" {
			order.PaymentMethod = model.PayCash
		}
	} else if actor.ID != uuid.Nil {
		cid := actor.ID
		order.CustomerID = &cid
	}

	// 4. Custom lines become ad-hoc products with exactly enough stock
	custom, err := s.createCustomProducts(ctx, req, actor)
	if err != nil {
		return nil, err
	}
	items = append(items, custom...)

	var total int64
	for i := range items {
		items[i].OrderID = order.ID
		total += items[i].LineTotal()
	}
	order.TotalAmount = total
	if seller != nil && !seller.IsAdmin() {
		order.CommissionAmount = CommissionFor(total, s.rate)
	}

	finalizeNow := req.SaleType == model.SalePOS && order.PaymentMethod == model.PayCash
	if finalizeNow {
		order.Status = model.OrderCompleted
	} else {
		order.Status = model.OrderPending
	}

	// 5. Order row, then items. Any failure removes what was written so far.
	ctx = s.log.WithOrderID(ctx, order.ID.String())
	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.discard(ctx, uuid.Nil, custom)
		return nil, apperr.Wrap(apperr.CodeInternal, err, "Failed to create order")
	}
	if err := s.orderRepo.CreateItems(ctx, items); err != nil {
		s.discard(ctx, order.ID, custom)
		return nil, apperr.Wrap(apperr.CodeInternal, err, "Failed to create order items")
	}
	order.Items = items

	// 6. Cash sales leave the shelf immediately
	if finalizeNow {
		if err := s.inventory.ReserveItems(ctx, order.ID, items); err != nil {
			s.discard(ctx, order.ID, custom)
			return nil, err
		}
		if err := s.inventory.DeductItems(ctx, order.ID, items); err != nil {
			s.log.Error(ctx, "deduct after cash sale reservation failed", err)
		}
	}

	s.publishOrder(ctx, events.TypeOrderCreated, order)
	s.log.Info(s.log.WithFields(ctx, map[string]any{"total": order.TotalAmount, "status": order.Status, "sale_type": order.SaleType}), "order created")
	return order, nil
}

func (s *orderService) validateCreate(req *CreateOrderRequest) error {
	if req.SaleType == model.SalePOS && req.SocialPlatform == "" {
		return apperr.New(apperr.CodeValidation, "Social platform is required for POS sales").
			WithDetails([]*validator.ErrorResponse{{FailedField: "social_platform", Tag: "required"}})
	}
	if req.SaleType == model.SaleOnline && strings.TrimSpace(req.CustomerInfo.Name) == "" {
		return apperr.New(apperr.CodeValidation, "Customer name is required").
			WithDetails([]*validator.ErrorResponse{{FailedField: "customer_info.name", Tag: "required"}})
	}
	for i, it := range req.Items {
		hasProduct := it.ProductID != nil && *it.ProductID != uuid.Nil
		hasCustom := it.CustomProduct != nil
		if hasProduct == hasCustom {
			return apperr.Newf(apperr.CodeValidation, "Item %d must have either product_id or custom_product", i+1).
				WithDetails(map[string]any{"index": i})
		}
		if v := model.NewVariant(it.Size, it.Color); v.Color != "" && v.Size == "" {
			return apperr.Newf(apperr.CodeValidation, "Item %d selects a color without a size", i+1).
				WithDetails(map[string]any{"index": i})
		}
	}
	return nil
}

// resolveSeller picks the seller for a POS sale. Only admins may attribute a sale to someone else.
func (s *orderService) resolveSeller(ctx context.Context, requested *uuid.UUID, actor Actor) (*model.User, error) {
	sellerID := actor.ID
	if requested != nil && *requested != uuid.Nil && *requested != actor.ID {
		if !actor.IsAdmin() {
			return nil, apperr.New(apperr.CodeForbidden, "Only admins can assign another seller")
		}
		sellerID = *requested
	}
	if sellerID == uuid.Nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "Seller is required for POS sales")
	}
	seller, err := s.userRepo.FindByID(ctx, sellerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeValidation, "Seller not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load seller")
	}
	return seller, nil
}

func (s *orderService) createCustomProducts(ctx context.Context, req *CreateOrderRequest, actor Actor) ([]model.OrderItem, error) {
	var items []model.OrderItem
	for _, it := range req.Items {
		if it.CustomProduct == nil {
			continue
		}
		cp := it.CustomProduct
		product := &model.Product{
			SKU:         "CUSTOM-" + strings.ToUpper(uuid.NewString()[:8]),
			Name:        strings.TrimSpace(cp.Name),
			Description: cp.Description,
			Unit:        "pcs",
			Price:       cp.Price,
			IsCustom:    true,
		}
		product.CreatedBy = actor.IDString()
		product.UpdatedBy = actor.IDString()

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.productRepo.WithTx(tx).Create(ctx, product); err != nil {
				return err
			}
			return s.inventoryRepo.WithTx(tx).Create(ctx, &model.InventoryRecord{
				ProductID: product.ID,
				Stock:     it.Quantity,
				UpdatedBy: actor.IDString(),
			})
		})
		if err != nil {
			s.discard(ctx, uuid.Nil, items)
			return nil, apperr.Wrap(apperr.CodeInternal, err, "Failed to create custom product")
		}
		items = append(items, model.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   product.Price,
			IsCustom:    true,
		})
	}
	return items, nil
}

// discard removes a half-created order and the custom products made for it.
// A nil orderID means the order row was never written. Failure is only logged.
func (s *orderService) discard(ctx context.Context, orderID uuid.UUID, custom []model.OrderItem) {
	if orderID != uuid.Nil {
		if err := s.orderRepo.Delete(ctx, orderID); err != nil {
			s.log.Error(ctx, "cleanup of partially created order failed", err)
		}
	}
	if len(custom) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(custom))
	for _, it := range custom {
		ids = append(ids, it.ProductID)
	}
	if err := s.productRepo.DeleteCustom(ctx, ids); err != nil {
		s.log.Error(ctx, "cleanup of custom products failed", err)
	}
}

func (s *orderService) Update(ctx context.Context, req *UpdateOrderRequest, actor Actor) (*UpdateOrderResult, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.CodeForbidden, "Admin role required")
	}
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	orderID := uuid.MustParse(req.OrderID)
	ctx = s.log.WithOrderID(ctx, req.OrderID)

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.CodeNotFound, ErrOrderNotFound, "Order not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load order")
	}

	fields := map[string]interface{}{"updated_by": actor.IDString()}
	var warnings []string

	if req.PaymentMethod != nil {
		fields["payment_method"] = model.PaymentMethod(*req.PaymentMethod)
	}
	if req.SocialPlatform != nil {
		if s.orderRepo.HasColumn("social_platform") {
			fields["social_platform"] = *req.SocialPlatform
		} else {
			warnings = append(warnings, "social_platform column missing; field skipped")
		}
	}
	if req.SellerID != nil {
		if s.orderRepo.HasColumn("seller_id") {
			seller, err := s.resolveSeller(ctx, uuidPtr(uuid.MustParse(*req.SellerID)), actor)
			if err != nil {
				return nil, err
			}
			fields["seller_id"] = seller.ID
			var commission int64
			if order.SaleType == model.SalePOS && !seller.IsAdmin() {
				commission = CommissionFor(order.TotalAmount, s.rate)
			}
			fields["commission_amount"] = commission
		} else {
			warnings = append(warnings, "seller_id column missing; field skipped")
		}
	}

	next := order.Status
	if req.Status != nil {
		next = model.OrderStatus(*req.Status)
	}

	if next != order.Status {
		if err := s.transition(ctx, order, next, fields); err != nil {
			return nil, err
		}
	} else if err := s.orderRepo.UpdateFields(ctx, order.ID, fields); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "update order")
	}

	updated, err := s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "reload order")
	}
	s.publishOrder(ctx, events.TypeOrderUpdated, updated)

	return &UpdateOrderResult{Order: updated, Warning: strings.Join(warnings, "; ")}, nil
}

// transition applies a status change and its inventory side effect.
// processing holds reservations, so leaving it deducts or releases them.
func (s *orderService) transition(ctx context.Context, order *model.Order, next model.OrderStatus, fields map[string]interface{}) error {
	switch order.Status {
	case model.OrderCompleted, model.OrderFailed, model.OrderCancelled:
		return apperr.Newf(apperr.CodeStateConflict, "Order is already %s", order.Status)
	}
	if order.Status == model.OrderProcessing && next == model.OrderPending {
		return apperr.New(apperr.CodeStateConflict, "Order cannot move back to pending while payment is in flight")
	}

	// pending orders hold nothing; entering processing or completed must reserve first
	reserve := order.Status == model.OrderPending && (next == model.OrderProcessing || next == model.OrderCompleted)
	if reserve {
		if err := s.inventory.ReserveItems(ctx, order.ID, order.Items); err != nil {
			return err
		}
	}

	fields["status"] = next
	ok, err := s.orderRepo.TransitionStatus(ctx, order.ID, []model.OrderStatus{order.Status}, fields)
	if err == nil && !ok {
		err = apperr.New(apperr.CodeStateConflict, "Order status changed concurrently")
	}
	if err != nil {
		if reserve {
			if relErr := s.inventory.ReleaseItems(ctx, order.ID, order.Items); relErr != nil {
				s.log.Error(ctx, "release after failed transition", relErr)
			}
		}
		if apperr.As(err) == nil {
			err = apperr.Wrap(apperr.CodeInternal, err, "update order status")
		}
		return err
	}

	switch {
	case next == model.OrderCompleted:
		if err := s.inventory.DeductItems(ctx, order.ID, order.Items); err != nil {
			s.log.Error(ctx, "deduct on completion failed", err)
		}
	case order.Status == model.OrderProcessing && (next == model.OrderFailed || next == model.OrderCancelled):
		if err := s.inventory.ReleaseItems(ctx, order.ID, order.Items); err != nil {
			s.log.Error(ctx, "release on cancellation failed", err)
		}
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{"from": order.Status, "to": next}), "order status changed")
	return nil
}

func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.CodeNotFound, ErrOrderNotFound, "Order not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.New(apperr.CodeValidation, fmt.Sprintf("Invalid status '%s'", filter.Status))
	}
	orders, err := s.orderRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list orders")
	}
	return orders, nil
}

func (s *orderService) publishOrder(ctx context.Context, eventType string, o *model.Order) {
	s.events.Publish(ctx, events.New(eventType, o.ID.String(), orderPayload(o)))
}

func orderPayload(o *model.Order) events.OrderPayload {
	p := events.OrderPayload{
		OrderID:          o.ID.String(),
		Status:           string(o.Status),
		SaleType:         string(o.SaleType),
		TotalAmount:      o.TotalAmount,
		PaymentMethod:    string(o.PaymentMethod),
		PaymentReference: o.PaymentReference,
	}
	if o.SellerID != nil {
		p.SellerID = o.SellerID.String()
	}
	return p
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
