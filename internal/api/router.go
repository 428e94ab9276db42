// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/jobqueue"
	"github.com/lkmcompany/gorgone/internal/logging"
	"github.com/lkmcompany/gorgone/internal/middleware"
	"github.com/lkmcompany/gorgone/internal/orchestrator"
	"github.com/lkmcompany/gorgone/internal/provider"
	"github.com/lkmcompany/gorgone/internal/rule"
)

// BreakerStater reports a provider client's circuit-breaker state for the
// health endpoint. *provider.ResilientClient satisfies it.
type BreakerStater interface {
	BreakerState() string
}

// Handler bundles the dependencies every route group shares.
type Handler struct {
	db         *database.DB
	orch       *orchestrator.Orchestrator
	rules      *rule.Registry
	queue      *jobqueue.Queue
	dispatcher *jobqueue.Dispatcher
	push       provider.PushAdapter
	queueCfg   config.QueueConfig
	security   config.SecurityConfig
	breakers   map[string]BreakerStater
	perf       *middleware.PerformanceMonitor
	audit      *logging.SecurityLogger
}

// NewHandler builds the HTTP handler set.
func NewHandler(
	db *database.DB,
	orch *orchestrator.Orchestrator,
	rules *rule.Registry,
	queue *jobqueue.Queue,
	dispatcher *jobqueue.Dispatcher,
	push provider.PushAdapter,
	queueCfg config.QueueConfig,
	security config.SecurityConfig,
	breakers map[string]BreakerStater,
) *Handler {
	if breakers == nil {
		breakers = map[string]BreakerStater{}
	}
	return &Handler{
		db:         db,
		orch:       orch,
		rules:      rules,
		queue:      queue,
		dispatcher: dispatcher,
		push:       push,
		queueCfg:   queueCfg,
		security:   security,
		breakers:   breakers,
		perf:       middleware.NewPerformanceMonitor(1000),
		audit:      logging.NewSecurityLogger(),
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so the shared middleware package works
// with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router assembles the full route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(h.perf.Middleware)
	r.Use(chiMiddleware(middleware.Compression))
	if len(h.security.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.security.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		}))
	}
	if !h.security.RateLimitDisabled {
		r.Use(httprate.LimitByIP(h.security.RateLimitReqs, h.security.RateLimitWindow))
	}

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/webhook", h.Webhook)
	r.Post("/_jobs/{topic}", h.JobCallback)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdminToken)
		r.Get("/zones/{zoneID}/rules", h.ListRules)
		r.Post("/rules", h.CreateRule)
		r.Patch("/rules/{ruleID}", h.UpdateRule)
		r.Post("/rules/{ruleID}/toggle", h.ToggleRule)
		r.Delete("/rules/{ruleID}", h.DeleteRule)
		r.Post("/backfill", h.Backfill)
		r.Get("/dead-letters", h.ListDeadLetters)
		r.Post("/dead-letters/{dlID}/replay", h.ReplayDeadLetter)
	})

	return r
}

// requireAdminToken guards operator endpoints with the configured bearer
// token.
func (h *Handler) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !jobqueue.VerifyBearer(h.security.AdminToken, bearer) {
			h.audit.LogAdminTokenFailure(r.URL.Path, r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
