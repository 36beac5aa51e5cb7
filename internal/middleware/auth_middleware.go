package middleware

import (
	"strings"

	"go-marketplace-pos/internal/service"
	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequireAuth validates the bearer token against the live user row and sets user info in context
func RequireAuth(auth service.AuthService, log *logger.Logger) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperr.New(apperr.CodeUnauthorized, "Missing authorization token")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return apperr.New(apperr.CodeUnauthorized, "Invalid authorization format. Use: Bearer <token>")
		}

		claims, err := auth.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			return err
		}

		c.Locals("user_id", claims.UserID.String())
		c.Locals("user_email", claims.Email)
		c.Locals("user_name", claims.Name)
		c.Locals("user_role", claims.RoleCode)
		c.Locals("user_privileges", claims.Privileges)
		c.SetUserContext(log.WithField(c.UserContext(), "user_id", claims.UserID.String()))

		return c.Next()
	}
}

// OptionalAuth resolves the caller when a token is present and lets anonymous requests through.
// Online checkout runs without an account.
func OptionalAuth(auth service.AuthService, log *logger.Logger) fiber.Handler {
	required := RequireAuth(auth, log)
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return required(c)
	}
}

// RequirePrivilege checks if the authenticated user has the required privilege
func RequirePrivilege(requiredPrivilege string) fiber.Handler {
	return RequireAnyPrivilege(requiredPrivilege)
}

// RequireAnyPrivilege checks if the user has at least one of the specified privileges
func RequireAnyPrivilege(requiredPrivileges ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		privileges, ok := c.Locals("user_privileges").([]string)
		if !ok {
			return apperr.New(apperr.CodeForbidden, "No privileges found")
		}

		for _, userPriv := range privileges {
			for _, reqPriv := range requiredPrivileges {
				if userPriv == reqPriv {
					return c.Next()
				}
			}
		}

		return apperr.New(apperr.CodeForbidden, "Forbidden: requires one of "+strings.Join(requiredPrivileges, ", ")+" privileges")
	}
}

// RequireRole admits only the listed role codes.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("user_role").(string)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return apperr.New(apperr.CodeForbidden, "Forbidden: role not permitted")
	}
}

// ActorFrom rebuilds the caller set by RequireAuth. Anonymous requests yield the zero Actor.
func ActorFrom(c *fiber.Ctx) service.Actor {
	var actor service.Actor
	if raw, ok := c.Locals("user_id").(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			actor.ID = id
		}
	}
	actor.Name, _ = c.Locals("user_name").(string)
	actor.Email, _ = c.Locals("user_email").(string)
	actor.Role, _ = c.Locals("user_role").(string)
	actor.Privileges, _ = c.Locals("user_privileges").([]string)
	return actor
}
