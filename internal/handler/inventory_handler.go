package handler

import (
	"go-marketplace-pos/internal/middleware"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type InventoryHandler struct {
	service service.InventoryService
}

func NewInventoryHandler(s service.InventoryService) *InventoryHandler {
	return &InventoryHandler{service: s}
}

// GetInventory lists every inventory record with its available quantity
// GET /api/inventory
func (h *InventoryHandler) GetInventory(c *fiber.Ctx) error {
	records, err := h.service.ListInventory(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(records)
}

// UpdateStock sets the stock of one scope, creating the record if needed
// POST /api/inventory/update
func (h *InventoryHandler) UpdateStock(c *fiber.Ctx) error {
	var req service.UpdateStockRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	record, err := h.service.UpdateStock(c.UserContext(), &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Stock updated", "data": record})
}

// GetMovements returns the stock movement ledger
// GET /api/inventory/movements?product_id=&order_id=&limit=
func (h *InventoryHandler) GetMovements(c *fiber.Ctx) error {
	productID, err := queryUUID(c, "product_id")
	if err != nil {
		return err
	}
	orderID, err := queryUUID(c, "order_id")
	if err != nil {
		return err
	}

	movements, err := h.service.ListMovements(c.UserContext(), repository.MovementFilter{
		ProductID: productID,
		OrderID:   orderID,
		Limit:     queryInt(c, "limit", 100),
	})
	if err != nil {
		return err
	}
	return c.JSON(movements)
}

// GetProductSizes returns per-size stock for a product
// GET /api/products/:id/sizes
func (h *InventoryHandler) GetProductSizes(c *fiber.Ctx) error {
	productID, err := paramUUID(c, "id", "product")
	if err != nil {
		return err
	}

	sizes, err := h.service.ProductSizes(c.UserContext(), productID)
	if err != nil {
		return err
	}
	return c.JSON(sizes)
}

// GetProductColorStocks returns per size and color stock for a product
// GET /api/products/:id/color-stocks
func (h *InventoryHandler) GetProductColorStocks(c *fiber.Ctx) error {
	productID, err := paramUUID(c, "id", "product")
	if err != nil {
		return err
	}

	colors, err := h.service.ProductColorStocks(c.UserContext(), productID)
	if err != nil {
		return err
	}
	return c.JSON(colors)
}
