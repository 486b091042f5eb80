package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/grupofy/grupofy-backend/api/responses"
	"github.com/grupofy/grupofy-backend/pkg/config"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Grupofy-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the hard dependencies. Redis is optional and reported
// but never fails readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, database Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Grupofy-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}

		if err := database.Ping(ctx); err != nil {
			logg.Error(ctx, "database ping failed", err)
			checks["database"] = "down"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not ready",
				"checks": checks,
			})
			return
		}
		checks["database"] = "ok"

		if cache == nil {
			checks["redis"] = "disabled"
		} else if err := cache.Ping(ctx); err != nil {
			logg.Error(ctx, "redis ping failed", err)
			checks["redis"] = "down"
		} else {
			checks["redis"] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{
			"status": "ready",
			"checks": checks,
		})
	}
}
