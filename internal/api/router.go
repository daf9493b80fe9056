// Package api implements the HTTP surface of the fingerprint-sync
// service: the seven core endpoints of §6 and the two admin-token-gated
// diagnostics routes, all mounted under BasePrefix, plus health checks
// and the Prometheus /metrics handler.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/allaspectsdev/frkbsync/internal/store"
	"github.com/allaspectsdev/frkbsync/internal/syncengine"
)

// BasePrefix is the router mount point for every core endpoint (§6).
const BasePrefix = "/frkbapi/v1/fingerprint-sync"

// Recorder is the narrow seam api uses to report operation outcomes,
// kept independent of internal/metrics's concrete Collector so this
// package doesn't need to import it directly (the same dependency-
// direction discipline internal/metrics uses for its ServiceStatsSource).
type Recorder interface {
	RecordOperation(operation, outcome string, duration time.Duration)
}

// Server holds the dependencies every handler needs and owns route
// construction. It does not own an http.Server itself — Router returns a
// chi.Router the caller mounts however it likes (plain ListenAndServe,
// TLS, or a parent mux), matching the teacher's "construct router,
// caller owns the net/http.Server" split.
type Server struct {
	engine     *syncengine.Engine
	store      *store.Store
	auth       Authenticator
	adminToken string
	logger     zerolog.Logger
	recorder   Recorder
	metrics    http.Handler
}

// NewServer constructs a Server. metricsHandler may be nil to omit the
// /metrics mount entirely (e.g. in tests that don't care about scrape
// output). recorder may be nil; operation outcomes are then not recorded
// anywhere but requests still succeed.
func NewServer(eng *syncengine.Engine, st *store.Store, auth Authenticator, adminToken string, logger zerolog.Logger, recorder Recorder, metricsHandler http.Handler) *Server {
	return &Server{
		engine:     eng,
		store:      st,
		auth:       auth,
		adminToken: adminToken,
		logger:     logger,
		recorder:   recorder,
		metrics:    metricsHandler,
	}
}

// Router builds the full chi.Router: base middleware, authenticated core
// endpoints, admin-gated diagnostics, health checks, and metrics.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route(BasePrefix, func(rt chi.Router) {
		rt.Use(s.authenticate)

		rt.Post("/check", s.handleCheck)
		rt.Post("/bidirectional-diff", s.handleBidirectionalDiff)
		rt.Post("/add", s.handleAdd)
		rt.Post("/analyze-diff", s.handleAnalyzeDiff)
		rt.Post("/pull-diff-page", s.handlePullDiffPage)
		rt.Post("/reset", s.handleReset)
		rt.Get("/status", s.handleStatus)

		rt.Group(func(admin chi.Router) {
			admin.Use(s.adminAuth)
			admin.Delete("/lock/{userKey}", s.handleForceUnlock)
			admin.Delete("/cache/{userKey}", s.handleClearCache)
		})
	})

	return r
}

// authenticate resolves the caller's Identity via the configured
// Authenticator and enriches the request-scoped logger with a truncated
// user_key and the matched route pattern, per SPEC_FULL.md's ambient
// HTTP concerns note. Auth itself stays external: this middleware only
// calls the seam and rejects on error.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.auth.Authenticate(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		logger := s.logger.With().
			Str("user_key", truncate(identity.UserKey, 8)).
			Str("route", chi.RouteContext(r.Context()).RoutePattern()).
			Logger()
		ctx := logger.WithContext(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs each request's method, path, status, and duration
// at debug level, in the teacher's style of wrapping the chi middleware
// chain with a zerolog-backed logger rather than chi's own text logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(started)).
			Msg("request")
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
