package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campuscode-api/internal/observability"
)

const apiPrefix = "/api/"

// Observability records request metrics and one structured log line per API
// call. Grading requests wait on the executor, so latency buckets reach into
// seconds.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if !strings.HasPrefix(c.Path(), apiPrefix) {
			return err
		}

		sample := requestSample{
			method:   c.Method(),
			route:    routeTemplate(c),
			status:   c.Response().StatusCode(),
			duration: time.Since(start),
		}
		sample.record()
		sample.log(logger, c)

		return err
	}
}

type requestSample struct {
	method   string
	route    string
	status   int
	duration time.Duration
}

func (s requestSample) record() {
	status := strconv.Itoa(s.status)
	observability.HTTPRequests().WithLabelValues(s.method, s.route, status).Inc()
	observability.HTTPLatency().WithLabelValues(s.method, s.route).Observe(s.duration.Seconds())
	if s.status >= fiber.StatusBadRequest {
		observability.HTTPErrors().WithLabelValues(s.method, s.route, status).Inc()
	}
}

func (s requestSample) log(logger zerolog.Logger, c *fiber.Ctx) {
	event := logger.Debug()
	message := "request completed"
	switch {
	case s.status == fiber.StatusBadGateway, s.status == fiber.StatusServiceUnavailable, s.status == fiber.StatusGatewayTimeout:
		event, message = logger.Error(), "execution backend failure"
	case s.status >= fiber.StatusInternalServerError:
		event, message = logger.Error(), "request failed"
	case s.status == fiber.StatusTooManyRequests:
		event, message = logger.Warn(), "request rate limited"
	case s.status >= fiber.StatusBadRequest:
		event, message = logger.Warn(), "request rejected"
	}

	event = event.
		Str("correlation_id", GetCorrelationID(c)).
		Str("method", s.method).
		Str("route", s.route).
		Int("status", s.status).
		Dur("latency", s.duration).
		Str("latency_bucket", latencyBucket(s.duration))
	if userID, ok := c.Locals("user_id").(uint); ok {
		event = event.Uint("user_id", userID)
	}
	event.Msg(message)
}

func routeTemplate(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" {
		return route.Path
	}
	return c.Path()
}

func latencyBucket(d time.Duration) string {
	switch {
	case d <= 50*time.Millisecond:
		return "<=50ms"
	case d <= 250*time.Millisecond:
		return "<=250ms"
	case d <= time.Second:
		return "<=1s"
	case d <= 5*time.Second:
		return "<=5s"
	default:
		return ">5s"
	}
}
