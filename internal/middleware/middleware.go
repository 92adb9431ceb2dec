package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/utils"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewLoggingMiddleware(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

type middleware struct {
	rateLimitter        *rateLimiter
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

// New builds the shared middleware set. reqRate is the sustained requests per
// second allowed per client IP, burst the bucket size.
func New(logger *logrus.Logger, u utils.IUtils, reqRate float64, burst int) Middleware {
	rateLimit := newRateLimiter(rate.Limit(reqRate), burst)
	requestID := NewRequestIDMiddleware(u)

	return &middleware{
		rateLimitter:        rateLimit,
		requestIDMiddleware: requestID,
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}
