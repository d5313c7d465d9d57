package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func observedApp(buf *bytes.Buffer) *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(Observability(zerolog.New(buf)))
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		return c.Next()
	})
	app.Post("/api/v1/problems/:id/submit", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusGatewayTimeout)
	})
	app.Get("/api/v1/leaderboard", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusTooManyRequests)
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	})
	return app
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestObservabilityLogsExecutionFailuresWithRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	app := observedApp(&buf)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/problems/42/submit", nil)
	req.Header.Set(correlationHeader, "corr-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusGatewayTimeout, resp.StatusCode)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "error", lines[0]["level"])
	require.Equal(t, "execution backend failure", lines[0]["message"])
	require.Equal(t, "/api/v1/problems/:id/submit", lines[0]["route"])
	require.Equal(t, "corr-1", lines[0]["correlation_id"])
	require.EqualValues(t, 7, lines[0]["user_id"])
}

func TestObservabilitySkipsNonAPIRoutes(t *testing.T) {
	var buf bytes.Buffer
	app := observedApp(&buf)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	require.Empty(t, logLines(t, &buf))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "warn", lines[0]["level"])
	require.Equal(t, "request rate limited", lines[0]["message"])
}

func TestLatencyBucketCoversGradingRuns(t *testing.T) {
	require.Equal(t, "<=50ms", latencyBucket(10*time.Millisecond))
	require.Equal(t, "<=1s", latencyBucket(600*time.Millisecond))
	require.Equal(t, "<=5s", latencyBucket(3*time.Second))
	require.Equal(t, ">5s", latencyBucket(9*time.Second))
}
