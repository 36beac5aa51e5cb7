package handler

import (
	"go-marketplace-pos/internal/middleware"
	"go-marketplace-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	service service.ProductService
}

func NewProductHandler(s service.ProductService) *ProductHandler {
	return &ProductHandler{service: s}
}

func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.ProductRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.service.CreateProduct(c.UserContext(), &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	productID, err := paramUUID(c, "id", "product")
	if err != nil {
		return err
	}

	var req service.ProductRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updated, err := h.service.UpdateProduct(c.UserContext(), productID, &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

// GetProducts lists the catalog. Custom products are hidden unless include_custom=true.
func (h *ProductHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext(), c.QueryBool("include_custom", false))
	if err != nil {
		return err
	}
	return c.JSON(products)
}

func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	productID, err := paramUUID(c, "id", "product")
	if err != nil {
		return err
	}

	product, err := h.service.GetProduct(c.UserContext(), productID)
	if err != nil {
		return err
	}
	return c.JSON(product)
}
