package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"paycore/internal/domain/payroll"
	"paycore/internal/platform/config"
	"paycore/internal/platform/db"
	"paycore/internal/platform/jobs"
	"paycore/internal/platform/metrics"
	payrollhandler "paycore/internal/transport/http/handlers/payroll"
	"paycore/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Engine  *payroll.Engine
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Router  http.Handler
	Logger  *slog.Logger

	cancel context.CancelFunc
}

// New wires the engine, its collaborators and the router. Without a database
// the engine reads PARAMETERS_FILE and CATALOG_FILE, or the embedded defaults.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	collector := metrics.New()

	app := &App{Config: cfg, Metrics: collector, Logger: logger}

	var provider payroll.ParameterProvider = payroll.DefaultProvider()
	var catalogs payroll.CatalogSource = payroll.DefaultCatalog()

	if cfg.UsesDatabase() {
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect failed: %w", err)
		}
		app.DB = pool
		if cfg.RunMigrations {
			var migrations fs.FS = db.Migrations()
			if cfg.MigrationsDir != "" {
				migrations = os.DirFS(cfg.MigrationsDir)
			}
			if err := db.Migrate(ctx, pool, migrations); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrations failed: %w", err)
			}
		}
		if cfg.RunSeed {
			if err := db.Seed(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("seed failed: %w", err)
			}
		}
		store := payroll.NewStore(pool)
		provider, catalogs = store, store
	}
	if cfg.ParametersFile != "" {
		fileProvider, err := payroll.LoadParametersFile(cfg.ParametersFile)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("load parameters: %w", err)
		}
		provider = fileProvider
	}
	if cfg.CatalogFile != "" {
		fileCatalog, err := payroll.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		catalogs = fileCatalog
	}

	app.Engine = payroll.NewEngine(
		payroll.WithParameters(provider),
		payroll.WithCatalogs(catalogs),
		payroll.WithParameterTimeout(cfg.ParameterTimeout),
		payroll.WithConcurrency(cfg.BatchConcurrency),
		payroll.WithLogger(logger),
		payroll.WithRecorder(collector),
	)

	jobCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.Jobs = jobs.New(cfg.JobQueueSize, cfg.JobWorkers, collector, logger, jobs.WithRetention(cfg.JobRetention))
	app.Jobs.Start(jobCtx)

	app.Router = app.routes()
	return app, nil
}

func (a *App) routes() http.Handler {
	cfg := a.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.Logger, a.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader, middleware.OrganizationHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader, "Location", "Content-Disposition", "Retry-After"},
			MaxAge:         300,
		}))
	}

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := a.DB.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", a.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Organization)
		// Validate has already parsed the list.
		proxies, _ := cfg.TrustedProxyPrefixes()
		trusted := middleware.WithTrustedProxies(proxies)
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute, trusted))
		r.Use(middleware.BulkRateLimit(cfg.RateLimitPerMin, time.Minute, trusted))

		payrollHandler := payrollhandler.NewHandler(payroll.NewService(a.Engine), a.Jobs, cfg.MaxBatchSize)
		payrollHandler.Logger = a.Logger
		payrollHandler.RegisterRoutes(r)
	})

	return router
}

// Close stops the job workers and releases the pool.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Jobs != nil {
		a.Jobs.Wait()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func Run() error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	slog.SetDefault(app.Logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("payroll server listening", "addr", cfg.Addr, "env", cfg.Environment, "database", cfg.UsesDatabase())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
