package handler

import (
	"go-marketplace-pos/internal/middleware"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(s service.OrderService) *OrderHandler {
	return &OrderHandler{service: s}
}

// CreateOrder places an online or POS order
// POST /api/orders/create
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req service.CreateOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.service.Create(c.UserContext(), &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"order_id":          order.ID,
		"status":            order.Status,
		"total_amount":      order.TotalAmount,
		"commission_amount": order.CommissionAmount,
	})
}

// UpdateOrder changes status, payment method, seller or platform of an order
// PUT /api/orders/update
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	var req service.UpdateOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.service.Update(c.UserContext(), &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// GetOrders lists orders, newest first
// GET /api/orders?status=&sale_type=&seller_id=&limit=&offset=
func (h *OrderHandler) GetOrders(c *fiber.Ctx) error {
	sellerID, err := queryUUID(c, "seller_id")
	if err != nil {
		return err
	}

	filter := repository.OrderFilter{
		Status:   model.OrderStatus(c.Query("status")),
		SaleType: model.SaleType(c.Query("sale_type")),
		SellerID: sellerID,
		Limit:    queryInt(c, "limit", 50),
		Offset:   queryInt(c, "offset", 0),
	}

	// cashiers only see their own sales
	if actor := middleware.ActorFrom(c); !actor.IsAdmin() {
		filter.SellerID = &actor.ID
	}

	orders, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

// GetOrder returns one order with its items
// GET /api/orders/:id
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	orderID, err := paramUUID(c, "id", "order")
	if err != nil {
		return err
	}

	order, err := h.service.Get(c.UserContext(), orderID)
	if err != nil {
		return err
	}
	return c.JSON(order)
}
