package handler

import (
	"go-marketplace-pos/internal/middleware"
	"go-marketplace-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CreateUser handles user creation
// POST /api/users
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req service.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.userService.CreateUser(c.UserContext(), &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"data":    user.ToResponse(),
	})
}

// UpdateUserPrivileges handles privilege assignment
// PUT /api/users/:id/privileges
func (h *UserHandler) UpdateUserPrivileges(c *fiber.Ctx) error {
	userID, err := paramUUID(c, "id", "user")
	if err != nil {
		return err
	}

	var req struct {
		Privileges []string `json:"privileges"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.userService.UpdateUserPrivileges(c.UserContext(), userID, req.Privileges, middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "Privileges updated successfully",
		"data":    user.ToResponse(),
	})
}

// GetUsers returns all users
// GET /api/users
func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.userService.GetAllUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// GetEmployees returns staff accounts that can sell at the POS
// GET /api/employees
func (h *UserHandler) GetEmployees(c *fiber.Ctx) error {
	users, err := h.userService.GetEmployees(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// GetUser returns a single user
// GET /api/users/:id
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	userID, err := paramUUID(c, "id", "user")
	if err != nil {
		return err
	}

	user, err := h.userService.GetUserByID(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(user)
}

// UpdateUser updates user details
// PUT /api/users/:id
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	userID, err := paramUUID(c, "id", "user")
	if err != nil {
		return err
	}

	var req service.UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.userService.UpdateUser(c.UserContext(), userID, &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"data":    user.ToResponse(),
	})
}

// DeleteUser soft deletes a user
// DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	userID, err := paramUUID(c, "id", "user")
	if err != nil {
		return err
	}

	if err := h.userService.DeleteUser(c.UserContext(), userID, middleware.ActorFrom(c)); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}

// GetRoles lists the seeded roles
// GET /api/roles
func (h *UserHandler) GetRoles(c *fiber.Ctx) error {
	roles, err := h.userService.GetRoles(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(roles)
}

// GetPrivileges lists every assignable privilege
// GET /api/privileges
func (h *UserHandler) GetPrivileges(c *fiber.Ctx) error {
	privileges, err := h.userService.GetPrivileges(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(privileges)
}
