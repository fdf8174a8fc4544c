package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/solespace/solespace-backend/api/responses"
	"github.com/solespace/solespace-backend/pkg/config"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/logger"
	"github.com/solespace/solespace-backend/pkg/types"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SoleSpace-Env", cfg.App.Env)
		responses.WriteSuccess(w, types.Payload{"status": "live"})
	}
}

// HealthReady pings every named dependency; the first failure turns the
// probe into a 502.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SoleSpace-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
					WithDetails(map[string]any{"dependency": name}))
				return
			}
		}
		responses.WriteSuccess(w, types.Payload{"status": "ready"})
	}
}
