package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/kitchenlinehq/kitchenline-backend/api/responses"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/config"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
)

const readyCheckTimeout = 2 * time.Second

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Kitchenline-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports per-dependency readiness. A failing dependency flips
// the overall status to degraded with a 503 so the load balancer drains us.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, redis pinger, pubsub pinger) http.HandlerFunc {
	checks := map[string]pinger{
		"database": db,
		"redis":    redis,
		"pubsub":   pubsub,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Kitchenline-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, dep := range checks {
			if dep == nil {
				status[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				healthy = false
				status[name] = "down"
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				continue
			}
			status[name] = "up"
		}

		if !healthy {
			status["status"] = "degraded"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, status)
			return
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
