package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ulule/limiter/v3"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"fraud-risk-engine/internal/interfaces/http/handler"
)

// Options collects the handlers and middleware the router mounts
type Options struct {
	Check   *handler.CheckHandler
	Fraud   *handler.FraudHandler
	Health  *handler.HealthHandler
	Metrics http.Handler
	// Defaults to /metrics
	MetricsPath string
	// Nil disables limiting of the check endpoint
	CheckLimiter *limiter.Limiter
	Logger       *zap.Logger
}

// Router holds all HTTP handlers
type Router struct {
	mux           chi.Router
	checkHandler  *handler.CheckHandler
	fraudHandler  *handler.FraudHandler
	healthHandler *handler.HealthHandler
	metrics       http.Handler
	metricsPath   string
	checkLimiter  *limiter.Limiter
	logger        *zap.Logger
}

// NewRouter creates a new router with all routes configured
func NewRouter(opts Options) *Router {
	r := &Router{
		mux:           chi.NewRouter(),
		checkHandler:  opts.Check,
		fraudHandler:  opts.Fraud,
		healthHandler: opts.Health,
		metrics:       opts.Metrics,
		metricsPath:   opts.MetricsPath,
		checkLimiter:  opts.CheckLimiter,
		logger:        opts.Logger,
	}
	if r.metricsPath == "" {
		r.metricsPath = "/metrics"
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.RealIP)
	r.mux.Use(requestLogger(r.logger))
	r.mux.Use(middleware.Recoverer)
	r.mux.Use(secure.New(secure.Options{
		ContentTypeNosniff: true,
		FrameDeny:          true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
	}).Handler)

	// Health endpoints
	if r.healthHandler != nil {
		r.mux.Get("/health", r.healthHandler.Health)
		r.mux.Get("/ready", r.healthHandler.Ready)
		r.mux.Get("/live", r.healthHandler.Live)
	}
	if r.metrics != nil {
		r.mux.Method(http.MethodGet, r.metricsPath, r.metrics)
	}

	r.mux.Route("/api/v1/fraud", func(api chi.Router) {
		// Scoring
		api.Group(func(check chi.Router) {
			if r.checkLimiter != nil {
				check.Use(rateLimit(r.checkLimiter))
			}
			check.Post("/check", r.checkHandler.Check)
		})

		// Administration
		api.Group(func(admin chi.Router) {
			admin.Use(handler.RequirePrincipal)

			admin.Get("/rules", r.fraudHandler.ListRules)
			admin.Post("/rules", r.fraudHandler.CreateRule)
			admin.Get("/rules/{id}", r.fraudHandler.GetRule)
			admin.Put("/rules/{id}", r.fraudHandler.UpdateRule)
			admin.Delete("/rules/{id}", r.fraudHandler.DeleteRule)
			admin.Patch("/rules/{id}/toggle", r.fraudHandler.ToggleRule)

			admin.Get("/alerts", r.fraudHandler.ListAlerts)
			admin.Get("/alerts/{id}", r.fraudHandler.GetAlert)
			admin.Post("/alerts/{id}/review", r.fraudHandler.ReviewAlert)

			admin.Get("/users/{id}/risk", r.fraudHandler.GetUserRisk)
			admin.Post("/users/{id}/block", r.fraudHandler.BlockUser)
			admin.Post("/users/{id}/unblock", r.fraudHandler.UnblockUser)

			admin.Get("/statistics", r.fraudHandler.Statistics)
			admin.Get("/logs", r.fraudHandler.ListCheckLogs)
		})
	})
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+handler.PrincipalHeader)

	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, req)

			logger.Debug("http request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(req.Context())))
		})
	}
}
