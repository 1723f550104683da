package handler

import (
	"context"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler reports the reachability of the database and any optional dependencies.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a HealthHandler that always checks the database.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{checks: map[string]Pinger{"database": db}}
}

// WithCheck adds a named dependency to the health report.
func (h *HealthHandler) WithCheck(name string, p Pinger) *HealthHandler {
	h.checks[name] = p
	return h
}

// Check pings every dependency.
// Returns 200 with {"status": "healthy", "checks": {...}} when all are reachable,
// otherwise 503 with "unhealthy" and the failing component marked "down".
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(fiber.Map, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checks[name].Ping(c.Context()); err != nil {
			log.Error().Err(err).Str("component", name).Msg("health check failed")
			results[name] = "down"
			healthy = false
			continue
		}
		results[name] = "up"
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"checks": results,
		})
	}
	return c.JSON(fiber.Map{
		"status": "healthy",
		"checks": results,
	})
}
