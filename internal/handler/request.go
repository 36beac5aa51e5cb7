package handler

import (
	"strconv"

	"go-marketplace-pos/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// parseBody decodes the JSON body into dst. Field validation is left to the service.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.New(apperr.CodeValidation, "Invalid JSON")
	}
	return nil
}

func paramUUID(c *fiber.Ctx, name, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Newf(apperr.CodeValidation, "Invalid %s ID", label)
	}
	return id, nil
}

func queryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Newf(apperr.CodeValidation, "Invalid %s", name)
	}
	return &id, nil
}

func queryInt(c *fiber.Ctx, name string, def int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 0 {
		return def
	}
	return n
}

// queryClamped is queryInt bounded to [lo, hi]; values below lo fall back to def.
func queryClamped(c *fiber.Ctx, name string, def, lo, hi int) int {
	n := queryInt(c, name, def)
	if n < lo {
		return def
	}
	if n > hi {
		return hi
	}
	return n
}
