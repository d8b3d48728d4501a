package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datapulse/internal/services"
)

// RouterConfig carries everything the router needs.
type RouterConfig struct {
	Data   *services.DatasetService
	Export *services.ExportService
	Audit  *services.AuditService
	Logger *slog.Logger

	// RateLimitRPS caps the sustained request rate; zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter assembles the full API surface.
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validate := validator.New()

	projects := NewProjectHandler(cfg.Data, validate, logger)
	analytics := NewAnalyticsHandler(cfg.Data, validate, logger)
	exports := NewExportHandler(cfg.Data, cfg.Export, validate, logger)
	audits := NewAuditHandler(cfg.Audit, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(metricsCollector)
	r.Use(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Mount("/projects", projects.Routes(analytics.Routes(), exports.Routes(), audits.Routes()))
		r.Get("/cache/stats", func(w http.ResponseWriter, req *http.Request) {
			render.JSON(w, req, map[string]interface{}{
				"status": "success",
				"data":   cfg.Data.CacheStats(req.Context()),
			})
		})
	})

	return r
}
