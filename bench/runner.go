package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/weiihann/addrbench/counter"
)

// Config holds parameters for one process's benchmark run.
type Config struct {
	ProcessID int
	Threads   int
	Duration  time.Duration

	// StartAt, when set, delays the start so that all processes of a run
	// share one time origin. A StartAt in the past starts immediately.
	StartAt time.Time

	// TickInterval is the progress refresh period. Defaults to one second.
	TickInterval time.Duration

	// Progress receives the overwritten progress line. Nil disables it.
	Progress io.Writer

	// NewGenerator creates one Generator per worker. Defaults to
	// NewAddressGenerator.
	NewGenerator func() Generator
}

// Runner drives the worker pool of one process.
type Runner struct {
	cfg    Config
	state  *State
	logger *slog.Logger
}

// NewRunner creates a Runner whose workers report into aggregate.
func NewRunner(cfg Config, aggregate counter.Aggregate, logger *slog.Logger) *Runner {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.NewGenerator == nil {
		cfg.NewGenerator = NewAddressGenerator
	}

	return &Runner{
		cfg:    cfg,
		state:  NewState(aggregate),
		logger: logger.With(slog.Int("process", cfg.ProcessID)),
	}
}

// State exposes the runner's counters and stop flag.
func (r *Runner) State() *State { return r.state }

// Run starts the workers, waits for the configured duration and returns
// the per-process result after every worker has been joined. If ctx is
// cancelled the workers are stopped and joined before ctx.Err is
// returned.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.cfg.Threads < 1 {
		return nil, fmt.Errorf("threads must be positive, got %d", r.cfg.Threads)
	}
	if r.cfg.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", r.cfg.Duration)
	}

	if err := waitUntil(ctx, r.cfg.StartAt); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "starting benchmark",
		slog.Int("threads", r.cfg.Threads),
		slog.Duration("duration", r.cfg.Duration),
	)

	workers := make([]*worker, r.cfg.Threads)
	errs := make([]error, r.cfg.Threads)

	// A failing worker ends the run for every worker of the process.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()

	var wg sync.WaitGroup
	for i := range workers {
		w := &worker{
			stats: ThreadStats{ThreadID: i},
			gen:   r.cfg.NewGenerator(),
		}
		workers[i] = w

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.run(r.state); err != nil {
				errs[i] = err
				cancel()
			}
		}()
	}

	runErr := r.monitor(runCtx, start)

	r.state.Stop()
	wg.Wait()

	elapsed := time.Since(start)
	r.clearProgress()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, runErr
	}

	result := r.collect(workers, elapsed)

	r.logger.InfoContext(ctx, "benchmark finished",
		slog.Uint64("addresses", result.Addresses),
		slog.Duration("elapsed", elapsed),
		slog.Float64("rate", result.Rate),
	)

	return result, nil
}

// monitor blocks until the deadline, refreshing the progress line on
// every tick.
func (r *Runner) monitor(ctx context.Context, start time.Time) error {
	deadline := time.NewTimer(time.Until(start.Add(r.cfg.Duration)))
	defer deadline.Stop()

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Runner) printProgress() {
	if r.cfg.Progress == nil {
		return
	}

	fmt.Fprintf(r.cfg.Progress, "\rGenerated %d addresses...", r.state.Local.Value())
}

func (r *Runner) clearProgress() {
	if r.cfg.Progress == nil {
		return
	}

	fmt.Fprintln(r.cfg.Progress)
}

func (r *Runner) collect(workers []*worker, elapsed time.Duration) *Result {
	result := &Result{
		ProcessID: r.cfg.ProcessID,
		Addresses: r.state.Local.Value(),
		ElapsedMs: elapsed.Milliseconds(),
		Threads:   make([]ThreadStats, len(workers)),
	}

	for i, w := range workers {
		result.Threads[i] = w.stats
		result.Failures += w.stats.Failures
	}

	if s := elapsed.Seconds(); s > 0 {
		result.Rate = float64(result.Addresses) / s
	}

	result.PeakMemoryBytes = peakRSS()

	return result
}

func waitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if t.IsZero() || d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
