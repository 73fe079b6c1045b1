// Package app provides application-level wiring and dependency injection:
// it assembles the query engine, history store, and HTTP handler from the
// external dependencies main() provides.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/robfig/cron/v3"

	"sitelens/internal/annotate"
	"sitelens/internal/api"
	"sitelens/internal/batch"
	"sitelens/internal/config"
	"sitelens/internal/cost"
	"sitelens/internal/dashboard"
	"sitelens/internal/domain"
	"sitelens/internal/middleware"
	"sitelens/internal/service/charts"
	"sitelens/internal/template"
)

// Deps holds the external dependencies that main() must provide: config,
// the warehouse client, and the (optional) history repository.
type Deps struct {
	Cfg       *config.Config
	Warehouse domain.Warehouse
	History   domain.HistoryRepository // nil disables query history
	Logger    *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Dashboard *domain.Dashboard
	Charts    *charts.ChartService
	Handler   http.Handler

	cron   *cron.Cron
	logger *slog.Logger
}

// New wires the resolver, planner, annotator, estimator, service, and HTTP
// router from the provided deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg

	dash, err := loadDashboard(cfg)
	if err != nil {
		return nil, err
	}

	resolver := template.NewResolver(cfg.WebsiteID, cfg.EventsTable, cfg.ReportLocation())
	planner := batch.NewPlanner(resolver, cfg.WebsiteID, cfg.EventsTable, cfg.PagesTable)
	estimator := cost.New(deps.Warehouse, cfg.PricePerTB, deps.Logger.With("component", "estimator"))

	svc := charts.NewChartService(
		dash, resolver, planner, annotate.New(), estimator,
		deps.Warehouse, cfg.Location,
		deps.Logger.With("component", "charts"),
	)
	if deps.History != nil {
		svc.SetHistory(deps.History)
	}

	handler := api.NewHandler(svc, dash, deps.History, deps.Logger.With("component", "api"))
	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:      []byte(cfg.JWTSecret),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	})

	a := &App{
		Dashboard: dash,
		Charts:    svc,
		Handler:   router,
		logger:    deps.Logger,
	}

	if deps.History != nil && cfg.HistoryRetentionDays > 0 {
		if err := a.scheduleRetention(deps.History, cfg.HistoryRetentionDays); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Start launches background jobs. Safe to call when none are scheduled.
func (a *App) Start() {
	if a.cron != nil {
		a.cron.Start()
	}
}

// Stop halts background jobs and waits for running ones to finish.
func (a *App) Stop() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
}

// scheduleRetention registers the daily history pruning job.
func (a *App) scheduleRetention(history domain.HistoryRepository, days int) error {
	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		ctx := context.Background()
		n, err := history.DeleteOlderThan(ctx, days)
		if err != nil {
			a.logger.Warn("history retention prune failed", "error", err)
			return
		}
		a.logger.Info("history retention prune complete", "deleted", n, "retention_days", days)
	})
	if err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}
	a.cron = c
	return nil
}

// loadDashboard returns the configured dashboard, falling back to the
// built-in definitions when no config file is set.
func loadDashboard(cfg *config.Config) (*domain.Dashboard, error) {
	if cfg.DashboardConfigPath == "" {
		return dashboard.Default(cfg.EventsTable, cfg.PagesTable), nil
	}
	dash, err := dashboard.LoadFile(cfg.DashboardConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load dashboard config: %w", err)
	}
	return dash, nil
}
