// Package api serves reports over HTTP.
package api

import (
	"context"
	"log"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/metrics"
	"github.com/naka-gawa/github-audience/internal/usecase"
)

// Runner produces a report for one request.
type Runner interface {
	Run(ctx context.Context, req usecase.RunRequest) (*domain.Report, error)
}

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Runner Runner
	// Database is checked by the health endpoint when set.
	Database interface{ Health(context.Context) error }
	// Scheduler, when set, has its last run reported by the health endpoint.
	Scheduler   StatusReporter
	DefaultDays int
	Logger      *log.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/api/health", NewHealthHandler(cfg.Database, cfg.Scheduler, cfg.Logger))
	r.Handle("/metrics", metrics.Handler())

	reports := NewReportHandler(cfg.Runner, cfg.DefaultDays, cfg.Logger)
	r.Get("/api/report", reports.Get)

	return r
}
