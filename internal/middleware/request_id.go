package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/utils"
)

const RequestIDKey = "X-Request-ID"

func NewRequestIDMiddleware(u utils.IUtils) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)

		if requestID == "" {
			requestID, _ = u.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}
