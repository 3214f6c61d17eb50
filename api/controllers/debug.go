package controllers

import (
	"net/http"
	"runtime"

	"github.com/spenzahq/webhook-relay/api/responses"
	"github.com/spenzahq/webhook-relay/pkg/config"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
	"github.com/spenzahq/webhook-relay/pkg/logger"
)

// DebugInfo exposes non-sensitive runtime information. Registered only in the
// dev environment.
func DebugInfo(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.App.Env != config.AppEnvDev {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "resource not found"))
			return
		}

		dependencies := map[string]string{}
		for name, dep := range deps {
			status := "ok"
			if dep == nil {
				status = "not configured"
			} else if err := dep.Ping(r.Context()); err != nil {
				status = err.Error()
			}
			dependencies[name] = status
		}

		responses.WriteSuccess(w, map[string]any{
			"env":        cfg.App.Env,
			"goVersion":  runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
			"dbDriver":   cfg.DB.Driver,
			"retryPolicy": map[string]any{
				"interval":    cfg.Retry.Interval.String(),
				"maxAttempts": cfg.Retry.MaxAttempts,
			},
			"dependencies": dependencies,
		})
	}
}
