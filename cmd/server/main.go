package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/scoutspr/internal/adapters/http/api"
	app "github.com/okian/scoutspr/internal/app"
	"github.com/okian/scoutspr/internal/config"
	"github.com/okian/scoutspr/internal/domain/spr"
	"github.com/okian/scoutspr/pkg/logger"
	"github.com/okian/scoutspr/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second // verbose solves on large events are slow
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// /healthz serves the custom registry only.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Defaults, then $SPR_CONFIG, then SPR_* env vars.
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := newService(cfg, log)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}

	go every(ctx, systemMetricsInterval, updateSystemMetrics)
	go every(ctx, metrics.RefreshInterval(), func() { updateServiceMetrics(svc) })

	srv := newHTTPServer(ctx, cfg, svc)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
}

// newService maps configuration onto service options.
func newService(cfg *config.Config, log logger.Logger) *app.Service {
	solver := spr.Options{
		ExpectedAllianceSize:    cfg.ExpectedAllianceSize,
		SkipIncompleteAlliances: cfg.SkipIncompleteAlliances,
		MaxIterations:           cfg.MaxIterations,
		ConvergenceThreshold:    cfg.ConvergenceThreshold,
	}
	return app.New(
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithSolverOptions(solver),
		app.WithSchemaPath(cfg.SchemaPath),
		app.WithEPACache(cfg.EPACacheSize, cfg.EPACacheTTL()),
		app.WithRecomputeInterval(cfg.RecomputeInterval()),
	)
}

// newHTTPServer registers the API routes for svc.
func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(svc, svc, cfg.MaxLeaderboardLimit, api.WithLogger(logger.Named("http"))).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// every runs fn on each tick of interval until ctx ends.
func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// updateSystemMetrics samples heap size, goroutines and mean GC pause.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics copies store and cache sizes into their gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if n, ok := stats["observations"].(int); ok {
		metrics.UpdateObservationsTotal(n)
	}
	if n, ok := stats["results"].(int); ok {
		metrics.UpdateResultsTotal(n)
	}
	if n, ok := stats["epa_cache_entries"].(int); ok {
		metrics.UpdateEPACacheSize(n)
	}
}
