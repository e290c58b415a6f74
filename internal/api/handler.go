// Package api exposes the analytics engine over HTTP: synchronous operation
// runs, asynchronous job submission and polling, and retrieval of spilled
// results by handle.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/config"
	"github.com/reportrunner/reportrunner/internal/engine"
	"github.com/reportrunner/reportrunner/internal/jobstore"
	"github.com/reportrunner/reportrunner/internal/observability"
	"github.com/reportrunner/reportrunner/internal/spill"
)

type ReadinessCheck func(ctx context.Context) error

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Engine            *engine.Engine
	Driver            engine.WorkflowDriver
	Registry          *analytics.Registry
	Router            *spill.Router
	Jobs              jobstore.Store
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/operations", func(w http.ResponseWriter, r *http.Request) {
		handleListOperations(deps, w, r)
	})
	protected.HandleFunc("POST /v1/operations/{operation}/run", func(w http.ResponseWriter, r *http.Request) {
		handleRunOperation(deps, w, r)
	})
	protected.HandleFunc("POST /v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		handleSubmitJob(deps, w, r)
	})
	protected.HandleFunc("GET /v1/jobs/{jobID}", func(w http.ResponseWriter, r *http.Request) {
		handleGetJob(deps, w, r)
	})
	protected.HandleFunc("GET /v1/results/{path...}", func(w http.ResponseWriter, r *http.Request) {
		handleGetResult(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("GET /v1/operations", protectedHandler)
	mux.Handle("POST /v1/operations/{operation}/run", protectedHandler)
	mux.Handle("POST /v1/jobs", protectedHandler)
	mux.Handle("GET /v1/jobs/{jobID}", protectedHandler)
	mux.Handle("GET /v1/results/{path...}", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckWarehouse(healthCheck func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if healthCheck == nil {
			return errors.New("warehouse is not configured")
		}
		return healthCheck(ctx)
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CheckJobStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.JobStore.RedisURL == "" {
			return errors.New("job store redis url is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
