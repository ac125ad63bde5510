package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/scoutspr/internal/simulate"
	"github.com/okian/scoutspr/pkg/logger"
)

// Default configuration constants.
const (
	defaultMatches = 60
	defaultWorkers = 4
	defaultTimeout = 2 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the rating service")
		matches = flag.Int("matches", defaultMatches, "Number of matches to generate")
		seed    = flag.Int64("seed", 1, "Seed for scout rotation and team assignment")
		local   = flag.Bool("local", false, "Rate in process instead of calling the service")
		top     = flag.Int("top", 0, "Number of leaderboard rows to print (0 prints all)")
		timeout = flag.Duration("timeout", defaultTimeout, "Overall run timeout")
		verbose = flag.Bool("verbose", false, "Request verbose solver output and debug logs")
		rps     = flag.Float64("rate", 0, "Maximum requests per second (0 is unlimited)")
		workers = flag.Int("workers", defaultWorkers, "Concurrent observation senders")
	)
	flag.Parse()

	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cfg := simulate.Config{
		URL:     *baseURL,
		Matches: *matches,
		Seed:    *seed,
		Local:   *local,
		Top:     *top,
		Verbose: *verbose,
		Rate:    *rps,
		Workers: *workers,
	}
	outcome, err := simulate.Run(ctx, cfg, os.Stdout)
	if err != nil {
		log.Error(ctx, "simulation failed", logger.Error(err), logger.Any("expected", outcome.Expected))
		cancel()
		stop()
		os.Exit(1)
	}
	log.Info(ctx, "ranking matches scout biases",
		logger.Bool("converged", outcome.Converged),
		logger.Int("iterations", outcome.Iterations),
	)
}
