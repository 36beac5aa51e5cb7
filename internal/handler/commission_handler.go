package handler

import (
	"go-marketplace-pos/internal/middleware"
	"go-marketplace-pos/internal/service"
	"go-marketplace-pos/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

type CommissionHandler struct {
	service service.CommissionService
}

func NewCommissionHandler(s service.CommissionService) *CommissionHandler {
	return &CommissionHandler{service: s}
}

// GetSummary returns unpaid and lifetime commission for an employee.
// Non-admins may only read their own.
// GET /api/employees/:id/commissions
func (h *CommissionHandler) GetSummary(c *fiber.Ctx) error {
	employeeID, err := paramUUID(c, "id", "employee")
	if err != nil {
		return err
	}

	actor := middleware.ActorFrom(c)
	if !actor.IsAdmin() && actor.ID != employeeID {
		return apperr.New(apperr.CodeForbidden, "Forbidden: cannot view another employee's commission")
	}

	summary, err := h.service.Summary(c.UserContext(), employeeID)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// MarkPaid settles everything counted so far
// POST /api/employees/:id/commissions/mark-paid
func (h *CommissionHandler) MarkPaid(c *fiber.Ctx) error {
	employeeID, err := paramUUID(c, "id", "employee")
	if err != nil {
		return err
	}

	payout, err := h.service.MarkPaid(c.UserContext(), employeeID, middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Commission marked as paid", "data": payout})
}
