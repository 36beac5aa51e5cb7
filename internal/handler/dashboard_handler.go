package handler

import (
	"go-marketplace-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultChartDays = 7
	maxChartDays     = 90
)

type DashboardHandler struct {
	dashboard service.DashboardService
}

func NewDashboardHandler(dashboard service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GetStockMovement serves the movement chart; ?days falls back to a week and is capped at 90.
func (h *DashboardHandler) GetStockMovement(c *fiber.Ctx) error {
	days := queryClamped(c, "days", defaultChartDays, 1, maxChartDays)
	series, err := h.dashboard.GetStockMovement(c.UserContext(), days)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"period": days, "data": series})
}

func (h *DashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := h.dashboard.GetDashboardStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
