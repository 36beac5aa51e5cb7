package middleware

import (
	"errors"

	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every error returned by a handler or middleware.
// Coded errors keep their status; fiber errors (404 route, 405, body limit) keep theirs.
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) && apperr.As(err) == nil {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		status, code, msg, details := apperr.Public(err)
		if status >= fiber.StatusInternalServerError {
			ctx := log.WithFields(c.UserContext(), map[string]any{
				"error_code": string(code),
				"path":       c.Path(),
			})
			log.Error(ctx, "request.error", err)
		}

		body := fiber.Map{"error": msg, "code": code}
		if details != nil {
			body["details"] = details
		}
		return c.Status(status).JSON(body)
	}
}
