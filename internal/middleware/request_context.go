package middleware

import (
	"time"

	"go-marketplace-pos/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestContext attaches the request id, method and path to the logging context
// and logs one line per completed request. Mount it after requestid.New.
func RequestContext(log *logger.Logger) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx) error {
		reqID := c.GetRespHeader(fiber.HeaderXRequestID)
		if reqID == "" {
			reqID = c.Get(fiber.HeaderXRequestID)
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, reqID)

		ctx := log.WithRequestID(c.UserContext(), reqID)
		ctx = log.WithFields(ctx, map[string]any{
			"method": c.Method(),
			"path":   c.Path(),
		})
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		if err != nil {
			// render now so the logged status is the one the client sees
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				return herr
			}
		}

		log.Info(log.WithFields(c.UserContext(), map[string]any{
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
		}), "request.complete")
		return nil
	}
}
