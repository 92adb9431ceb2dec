package middleware

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/utils"
)

func newTestApp(t *testing.T, reqRate float64, burst int) (*fiber.App, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	m := New(logger, utils.New(0), reqRate, burst)

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewLoggingMiddleware)
	app.Post("/predict", m.NewRateLimiter, func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})
	return app, hook
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	app, _ := newTestApp(t, 100, 100)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/predict", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	id := resp.Header.Get(RequestIDKey)
	assert.Len(t, id, 26)
	assert.Equal(t, id, string(body))
}

func TestRequestID_PropagatedFromHeader(t *testing.T) {
	app, _ := newTestApp(t, 100, 100)

	req := httptest.NewRequest(fiber.MethodPost, "/predict", nil)
	req.Header.Set(RequestIDKey, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "req-123", resp.Header.Get(RequestIDKey))
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	app, _ := newTestApp(t, 0.001, 2)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/predict", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/predict", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"error":"Too many requests"}`, string(body))
}

func TestLoggingMiddleware_TruncatesImagePayload(t *testing.T) {
	app, hook := newTestApp(t, 100, 100)

	payload := `{"image_base64":"` + strings.Repeat("A", 4096) + `"}`
	req := httptest.NewRequest(fiber.MethodPost, "/predict", bytes.NewBufferString(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	_, err := app.Test(req)
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Success", entry.Message)
	assert.Equal(t, fiber.StatusOK, entry.Data["status"])

	logged, ok := entry.Data["request_body"].(string)
	require.True(t, ok)
	assert.Less(t, len(logged), 200)
	assert.Contains(t, logged, "[4096 bytes]")
}

func TestSanitizeRequestBody(t *testing.T) {
	assert.Equal(t, "[non-JSON body]", sanitizeRequestBody(fiber.MIMEApplicationJSON, []byte("not json")))
	assert.Equal(t, "[multipart body: 3 bytes]", sanitizeRequestBody(fiber.MIMEMultipartForm+"; boundary=x", []byte("abc")))
	assert.JSONEq(t, `{"image_url":"http://example.com/a.jpg"}`,
		sanitizeRequestBody(fiber.MIMEApplicationJSON, []byte(`{"image_url":"http://example.com/a.jpg"}`)))
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	limiter := newRateLimiter(1, 1)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }
	limiter.lastSweep = clock

	first := limiter.GetLimiterFrom("10.0.0.1")
	require.True(t, first.Allow())
	limiter.GetLimiterFrom("10.0.0.2")
	assert.Len(t, limiter.bucket, 2)

	clock = clock.Add(limiterIdleTTL / 2)
	limiter.GetLimiterFrom("10.0.0.2")

	clock = clock.Add(limiterIdleTTL / 2)
	limiter.GetLimiterFrom("10.0.0.3")

	assert.Len(t, limiter.bucket, 2)
	assert.NotContains(t, limiter.bucket, "10.0.0.1")
	assert.Contains(t, limiter.bucket, "10.0.0.2")

	again := limiter.GetLimiterFrom("10.0.0.1")
	assert.NotSame(t, first, again)
}
