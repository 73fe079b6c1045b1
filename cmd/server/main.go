// Command server runs the dashboard query engine: an HTTP API that resolves
// chart templates, estimates and executes warehouse queries, and records
// query history. The render subcommand prints a chart's resolved SQL
// without touching the warehouse.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	bigquery "google.golang.org/api/bigquery/v2"

	"sitelens/internal/app"
	"sitelens/internal/config"
	"sitelens/internal/dashboard"
	internaldb "sitelens/internal/db"
	"sitelens/internal/domain"
	"sitelens/internal/inline"
	"sitelens/internal/repository"
	"sitelens/internal/template"
	"sitelens/internal/warehouse"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitelens",
		Short:         "Dashboard query engine for the analytics warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newRenderCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	// Warehouse client. Credentials come from the ambient application
	// default credentials.
	bqSvc, err := bigquery.NewService(ctx)
	if err != nil {
		return fmt.Errorf("create warehouse client: %w", err)
	}
	wh := warehouse.NewClient(bqSvc, cfg.Project)

	// History store.
	var history domain.HistoryRepository
	if cfg.HistoryDBPath != "" {
		db, err := internaldb.Open(cfg.HistoryDBPath)
		if err != nil {
			return fmt.Errorf("open history db: %w", err)
		}
		defer func() { _ = db.Close() }()
		if err := internaldb.RunMigrations(db); err != nil {
			return fmt.Errorf("migrate history db: %w", err)
		}
		history = repository.NewQueryHistoryRepo(db)
	} else {
		logger.Warn("HISTORY_DB_PATH empty, query history disabled")
	}

	a, err := app.New(app.Deps{
		Cfg:       cfg,
		Warehouse: wh,
		History:   history,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	a.Start()
	defer a.Stop()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("http api listening", "addr", cfg.ListenAddr, "project", cfg.Project, "location", cfg.Location)
		errc <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func newRenderCmd() *cobra.Command {
	var (
		period string
		from   string
		to     string
		paths  []string
		pathOp string
		metric string
	)

	cmd := &cobra.Command{
		Use:   "render <chart-id>",
		Short: "Print a chart's resolved SQL for the given filters",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.WebsiteID == "" {
				return fmt.Errorf("WEBSITE_ID must be set")
			}

			dash := dashboard.Default(cfg.EventsTable, cfg.PagesTable)
			if cfg.DashboardConfigPath != "" {
				var err error
				dash, err = dashboard.LoadFile(cfg.DashboardConfigPath)
				if err != nil {
					return err
				}
			}

			chart := dash.Chart(args[0])
			if chart == nil {
				return fmt.Errorf("chart %q not found", args[0])
			}
			if chart.Template == "" {
				return fmt.Errorf("chart %q has no query", args[0])
			}

			f, err := filterFromFlags(period, from, to, paths, pathOp, metric)
			if err != nil {
				return err
			}

			resolver := template.NewResolver(cfg.WebsiteID, cfg.EventsTable, cfg.ReportLocation())
			sql, params := resolver.Resolve(chart.Template, f)
			fmt.Println(inline.Inline(sql, params))
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "date range preset (today, yesterday, last_7_days, ...)")
	cmd.Flags().StringVar(&from, "from", "", "custom range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "custom range end (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&paths, "path", nil, "URL path filter (repeatable)")
	cmd.Flags().StringVar(&pathOp, "path-op", "equals", "path match operator: equals or starts-with")
	cmd.Flags().StringVar(&metric, "metric", "visitors", "metric: visitors, visits, pageviews, proportion")
	return cmd
}

func filterFromFlags(period, from, to string, paths []string, pathOp, metric string) (domain.FilterState, error) {
	f := domain.FilterState{
		URLFilters: paths,
		PathOp:     domain.PathOp(pathOp),
		Metric:     domain.MetricType(metric),
		Range:      domain.DateRange{Preset: period},
	}

	if from != "" || to != "" {
		if from == "" || to == "" {
			return f, fmt.Errorf("custom ranges need both --from and --to")
		}
		fromT, err := time.Parse("2006-01-02", from)
		if err != nil {
			return f, fmt.Errorf("invalid --from date %q", from)
		}
		toT, err := time.Parse("2006-01-02", to)
		if err != nil {
			return f, fmt.Errorf("invalid --to date %q", to)
		}
		// The to date is inclusive: bind the upper bound at the end of that day.
		toT = toT.AddDate(0, 0, 1).Add(-time.Second)
		f.Range = domain.DateRange{Preset: domain.RangeCustom, From: fromT, To: toT}
	}
	return f, nil
}
