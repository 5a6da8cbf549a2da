// Package server assembles the HTTP surface of the book API.
package server

import (
	"context"
	"net/http"
	"time"

	"bookdash/internal/graph"
	"bookdash/internal/httpx"
	"bookdash/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Pinger reports whether the store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterDeps groups what NewRouter wires together.
type RouterDeps struct {
	Logger   *zap.Logger
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer

	Guard graph.Authorizer
	Books graph.BookService
	Store Pinger

	AllowedOrigins []string
	EnableHSTS     bool
	TrustProxy     bool
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Router is the assembled handler. Close stops background work.
type Router struct {
	http.Handler
	limiter *httpx.ClientRateLimiter
}

func (r *Router) Close() { r.limiter.Stop() }

// NewRouter builds the middleware chain and routes:
//
//	[RealIP] → RequestID → AccessLog → Recovery → SecurityHeaders → CORS → routes
//
// RealIP only runs with TrustProxy, when a proxy in front owns the forwarding headers.
// /graphql additionally gets RateLimit → SizeLimit → Timeout → AuthorizationCapture.
func NewRouter(deps RouterDeps) *Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}

	limiter := httpx.NewClientRateLimiter(deps.RateLimitRPS, deps.RateLimitBurst)
	resolver := graph.NewResolver(deps.Guard, deps.Books, deps.Logger, deps.Metrics)
	gql := graph.NewHandler(graph.NewSchema(resolver), deps.Logger)

	r := chi.NewRouter()
	if deps.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(httpx.RequestIDMiddleware)
	r.Use(httpx.AccessLogMiddleware(deps.Logger, deps.Metrics))
	r.Use(httpx.RecoveryMiddleware(deps.Logger))
	r.Use(httpx.SecurityHeadersMiddleware(deps.EnableHSTS))
	r.Use(httpx.CORSMiddleware(deps.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.JSONError(w, req, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.JSONError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		httpx.JSONSuccess(w, req, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(deps.Store, deps.Logger))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(httpx.RequestSizeLimitMiddleware(deps.MaxBodyBytes))
		r.Use(httpx.TimeoutMiddleware(deps.RequestTimeout))
		r.Use(httpx.AuthorizationCapture)
		r.Post("/graphql", gql.ServeHTTP)
	})

	return &Router{Handler: r, limiter: limiter}
}

func readyHandler(store Pinger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				log.Warn("readiness check failed", zap.Error(err))
				httpx.JSONError(w, r, http.StatusServiceUnavailable, "NOT_READY", "Store not ready")
				return
			}
		}
		httpx.JSONSuccess(w, r, map[string]string{"status": "ready"})
	}
}
