package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/log"
)

// maxLoggedPayload bounds how much of an inline image is written to the access log.
const maxLoggedPayload = 64

var imageFields = []string{"image_base64", "image_url"}

func (m *middleware) NewLoggingMiddleware(c *fiber.Ctx) error {
	start := time.Now()
	requestID := m.GetRequestID(c)

	err := c.Next()

	latency := time.Since(start)
	status := c.Response().StatusCode()

	logFields := log.Fields{
		"request_id":    requestID,
		"method":        c.Method(),
		"path":          c.Path(),
		"status":        status,
		"latency_ms":    latency.Milliseconds(),
		"ip":            c.IP(),
		"user_agent":    c.Get(fiber.HeaderUserAgent),
		"response_size": len(c.Response().Body()),
	}

	if body := c.Body(); len(body) > 0 {
		logFields["request_body"] = sanitizeRequestBody(string(c.Request().Header.ContentType()), body)
	}

	entry := m.log.WithFields(logFields)
	switch {
	case status >= fiber.StatusInternalServerError:
		entry.Error("Server error")
	case status >= fiber.StatusBadRequest:
		entry.Warn("Client error")
	default:
		entry.Info("Success")
	}

	return err
}

func sanitizeRequestBody(contentType string, body []byte) string {
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return fmt.Sprintf("[multipart body: %d bytes]", len(body))
	}

	var jsonBody map[string]interface{}
	if err := jsoniter.Unmarshal(body, &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	for _, field := range imageFields {
		value, ok := jsonBody[field].(string)
		if ok && len(value) > maxLoggedPayload {
			jsonBody[field] = fmt.Sprintf("%s...[%d bytes]", value[:maxLoggedPayload], len(value))
		}
	}

	sanitized, err := jsoniter.Marshal(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}

	return string(sanitized)
}
