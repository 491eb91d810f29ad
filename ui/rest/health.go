package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/storage"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/msgworker"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthSources are the live components reported by /health. Any field may
// be nil when the component is not running.
type HealthSources struct {
	StoreMode func() string
	Valkey    interface{ Healthy() bool }
	Pools     []*msgworker.Pool
	Dedupe    interface{ Len() int }
	Storage   interface {
		Configured() bool
		Stats() (storage.Stats, error)
	}
	Breaker interface{ State() string }
}

type Health struct {
	sources  HealthSources
	serverID string
	version  string
}

func InitRestHealth(app fiber.Router, serverID, version string, sources HealthSources) Health {
	handler := Health{sources: sources, serverID: serverID, version: version}
	app.Get("/health", handler.GetStatus)
	return handler
}

// InitRestMetrics exposes reg in the prometheus text format.
func InitRestMetrics(app fiber.Router, reg *prometheus.Registry) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	s := h.sources
	results := map[string]any{
		"server_id": h.serverID,
		"version":   h.version,
	}

	if s.StoreMode != nil {
		results["session_store"] = s.StoreMode()
	}
	if s.Valkey != nil {
		results["valkey_healthy"] = s.Valkey.Healthy()
	}

	pools := make([]msgworker.PoolStats, 0, len(s.Pools))
	for _, p := range s.Pools {
		if p != nil {
			pools = append(pools, p.GetStats())
		}
	}
	results["worker_pools"] = pools

	if s.Dedupe != nil {
		results["dedupe_entries"] = s.Dedupe.Len()
	}
	if s.Breaker != nil {
		results["llm_breaker"] = s.Breaker.State()
	}
	if s.Storage != nil {
		attachments := map[string]any{"configured": s.Storage.Configured()}
		if s.Storage.Configured() {
			if stats, err := s.Storage.Stats(); err == nil {
				attachments["files"] = stats.Files
				attachments["size"] = stats.HumanSize
			} else {
				attachments["error"] = err.Error()
			}
		}
		results["attachments"] = attachments
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: results,
	})
}
