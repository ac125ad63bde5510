package simulate

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"text/tabwriter"

	"github.com/okian/scoutspr/internal/domain/epa"
	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/ranking"
	"github.com/okian/scoutspr/internal/domain/scoring"
	"github.com/okian/scoutspr/internal/domain/spr"
	"github.com/okian/scoutspr/pkg/logger"
)

// Config describes one simulator run.
type Config struct {
	// URL of a running service; ignored when Local is set.
	URL     string
	Matches int
	Seed    int64
	// Local runs the engine in process instead of calling a service.
	Local   bool
	Top     int
	Verbose bool
	// Rate caps requests per second against the service; zero is unlimited.
	Rate float64
	// Workers is the number of concurrent observation senders.
	Workers int
}

// Outcome is what a run produced.
type Outcome struct {
	Converged  bool
	Iterations int
	Message    string
	Ratings    []ranking.ScoutRating
	Expected   []string
}

// Run generates a competition, rates it and verifies that the ranking
// follows the scouts' biases. The leaderboard is written to out.
func Run(ctx context.Context, cfg Config, out io.Writer) (Outcome, error) {
	if cfg.Matches < 1 || cfg.Top < 0 || (!cfg.Local && cfg.URL == "") {
		return Outcome{}, ErrInvalidConfig
	}
	log := logger.Get().Named("simulate")

	comp, err := NewGenerator(WithSeed(cfg.Seed)).Generate(cfg.Matches)
	if err != nil {
		return Outcome{}, err
	}
	log.Info(ctx, "competition generated",
		logger.Int("matches", cfg.Matches),
		logger.Int("observations", len(comp.Observations)),
		logger.Int("scouts", len(comp.Scouts)),
		logger.Bool("local", cfg.Local),
	)

	var rep spr.Report
	if cfg.Local {
		rep, err = runLocal(comp, cfg.Verbose)
	} else {
		rep, err = runRemote(ctx, log, comp, cfg)
	}
	if err != nil {
		return Outcome{}, err
	}

	o := Outcome{
		Converged:  rep.ConvergenceAchieved,
		Iterations: rep.Iterations,
		Message:    rep.Message,
		Ratings:    rep.Scouters,
		Expected:   ExpectedOrder(comp.Scouts),
	}
	if err := Print(out, rep, cfg.Top); err != nil {
		return o, err
	}
	return o, Verify(rep.Scouters, comp.Scouts)
}

func runLocal(comp Competition, verbose bool) (spr.Report, error) {
	reg, err := scoring.DefaultRegistry()
	if err != nil {
		return spr.Report{}, err
	}
	opts := spr.DefaultOptions()
	opts.Verbose = verbose
	eng, err := spr.NewEngine(epa.NewCalculator(reg), opts)
	if err != nil {
		return spr.Report{}, err
	}
	return eng.Run(comp.Observations, comp.Results)
}

func runRemote(ctx context.Context, log logger.Logger, comp Competition, cfg Config) (spr.Report, error) {
	c := NewClient(cfg.URL, WithRateLimit(cfg.Rate, int(cfg.Rate)))

	if err := c.Health(ctx); err != nil {
		return spr.Report{}, fmt.Errorf("service at %s is not healthy: %w", cfg.URL, err)
	}
	before, err := c.Stats(ctx)
	if err != nil {
		return spr.Report{}, err
	}
	base := 0
	if n, ok := before["observations"].(float64); ok {
		base = int(n)
	}

	accepted, err := submitObservations(ctx, c, comp.Observations, max(1, cfg.Workers))
	if err != nil {
		return spr.Report{}, err
	}
	if err := c.WaitIngested(ctx, base+accepted); err != nil {
		return spr.Report{}, err
	}
	log.Info(ctx, "observations ingested", logger.Int("accepted", accepted))

	matches := make([]int, 0, len(comp.Results))
	for m := range comp.Results {
		matches = append(matches, m)
	}
	slices.Sort(matches)
	for _, m := range matches {
		if err := c.PostResult(ctx, m, comp.Results[m]); err != nil {
			return spr.Report{}, fmt.Errorf("post result %d: %w", m, err)
		}
	}

	rep, err := c.Solve(ctx, cfg.Verbose)
	if err != nil {
		return spr.Report{}, err
	}
	log.Info(ctx, "solve finished",
		logger.Bool("converged", rep.ConvergenceAchieved),
		logger.Int("iterations", rep.Iterations),
		logger.Any("version", rep.Version),
	)
	return rep.Report, nil
}

// submitObservations posts observations from workers concurrent senders and
// returns how many were newly accepted. The first error stops the rest.
func submitObservations(ctx context.Context, c *Client, observations []model.Observation, workers int) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		accepted atomic.Int64
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	work := make(chan model.Observation, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for o := range work {
				ack, err := c.PostObservation(ctx, o)
				if err != nil {
					once.Do(func() {
						firstErr = fmt.Errorf("post observation %s: %w", o.ID, err)
						cancel()
					})
					continue
				}
				if !ack.Duplicate {
					accepted.Add(1)
				}
			}
		}()
	}

feed:
	for i := range observations {
		select {
		case <-ctx.Done():
			break feed
		case work <- observations[i]:
		}
	}
	close(work)
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int(accepted.Load()), nil
}

// Print writes the top entries of rep as a table. Zero top prints all.
func Print(out io.Writer, rep spr.Report, top int) error { //nolint:gocritic // hugeParam: reports are values
	rows := rep.Scouters
	if top > 0 && top < len(rows) {
		rows = rows[:top]
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "converged=%t\titerations=%d\tmean_error=%.3f\t\n", rep.ConvergenceAchieved, rep.Iterations, rep.OverallMeanError)
	if rep.Message != "" {
		fmt.Fprintf(tw, "note: %s\t\n", rep.Message)
	}
	fmt.Fprintln(tw, "rank\tscout\terror\tabs_error\tmatches\tpercentile\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%+.3f\t%.3f\t%d\t%d\t\n",
			r.Rank, r.ScoutID, r.ErrorValue, r.TotalAbsoluteError, r.MatchesScouted, r.Percentile)
	}
	if rep.VerboseData != nil {
		v := rep.VerboseData
		fmt.Fprintf(tw, "equations=%d\tused=%d\tskipped=%d\tcomponents=%d\t\n",
			v.TotalEquations, v.UsedEquations, v.SkippedEquations, v.Components)
	}
	return tw.Flush()
}

// Verify checks that the generated scouts appear in ratings in the order
// their biases imply. Other scouts in ratings are ignored.
func Verify(ratings []ranking.ScoutRating, scouts []Scout) error {
	want := ExpectedOrder(scouts)
	known := make(map[string]struct{}, len(scouts))
	for _, s := range scouts {
		known[s.ID] = struct{}{}
	}
	got := make([]string, 0, len(scouts))
	for _, r := range ratings {
		if _, ok := known[r.ScoutID]; ok {
			got = append(got, r.ScoutID)
		}
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("%w: got %v, want %v", ErrVerify, got, want)
	}
	return nil
}
