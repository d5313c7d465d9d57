package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campuscode-api/internal/config"
	"github.com/noah-isme/campuscode-api/internal/utils"
)

const healthProbeTimeout = 2 * time.Second

// HealthProbe checks one dependency such as the database or the cache.
type HealthProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status           string            `json:"status"`
	Timestamp        time.Time         `json:"timestamp"`
	Service          string            `json:"service"`
	Environment      string            `json:"environment"`
	ExecutionBackend string            `json:"execution_backend,omitempty"`
	Components       map[string]string `json:"components,omitempty"`
}

// HealthCheck reports service health. Any failing probe marks the service
// degraded and answers 503 so load balancers stop routing submissions to it.
func HealthCheck(cfg config.Config, probes ...HealthProbe) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:           "ok",
			Timestamp:        time.Now().UTC(),
			Service:          cfg.AppName,
			Environment:      cfg.AppEnv,
			ExecutionBackend: cfg.ExecutionBackend,
		}

		if len(probes) > 0 {
			payload.Components = make(map[string]string, len(probes))
			ctx, cancel := context.WithTimeout(c.UserContext(), healthProbeTimeout)
			defer cancel()

			for _, probe := range probes {
				if err := probe.Check(ctx); err != nil {
					payload.Components[probe.Name] = "down"
					payload.Status = "degraded"
					continue
				}
				payload.Components[probe.Name] = "up"
			}
		}

		if payload.Status != "ok" {
			return utils.FailWithData(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
