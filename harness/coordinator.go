package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiihann/addrbench/bench"
	"github.com/weiihann/addrbench/counter"
)

// DefaultStartDelay leaves time for child processes to start before the
// shared start instant.
const DefaultStartDelay = 250 * time.Millisecond

// Config holds parameters for a coordinated run.
type Config struct {
	Processes int
	Threads   int
	Duration  time.Duration

	// StartDelay is the offset from launch to the common start instant.
	// Zero means DefaultStartDelay; negative disables synchronisation.
	StartDelay time.Duration

	// SegmentName overrides the generated segment name.
	SegmentName string

	// Progress receives the local process's progress line.
	Progress io.Writer

	// NewGenerator is passed to the local runner. Nil uses the address
	// generator.
	NewGenerator func() bench.Generator
}

func (c Config) validate() error {
	var errs []error

	if c.Processes < 1 {
		errs = append(errs, fmt.Errorf("processes must be positive, got %d", c.Processes))
	}
	if c.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be positive, got %d", c.Threads))
	}
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %s", c.Duration))
	}

	return errors.Join(errs...)
}

// SetupError reports a failure to prepare the shared segment. No worker
// has been started when it is returned.
type SetupError struct {
	Segment string
	Err     error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("set up shared segment %q: %v", e.Segment, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Coordinator runs one local benchmark process and Processes-1 spawned
// units against a shared aggregate counter. Any failed unit cancels the
// rest and fails the run.
type Coordinator struct {
	cfg     Config
	spawner Spawner
	logger  *slog.Logger
}

// NewCoordinator creates a Coordinator that launches units via spawner.
func NewCoordinator(cfg Config, spawner Spawner, logger *slog.Logger) *Coordinator {
	return &Coordinator{cfg: cfg, spawner: spawner, logger: logger}
}

// SegmentName returns a segment name unique to this process and instant.
func SegmentName() string {
	return fmt.Sprintf("addrbench-%d-%d", os.Getpid(), time.Now().UnixNano())
}

// Run executes the benchmark and returns the summary. The segment is
// unlinked before Run returns, whatever the outcome.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	if err := c.cfg.validate(); err != nil {
		return nil, err
	}

	name := c.cfg.SegmentName
	if name == "" {
		name = SegmentName()
	}

	seg, err := counter.CreateShared(name)
	if err != nil {
		return nil, &SetupError{Segment: name, Err: err}
	}
	defer c.release(seg)

	c.logger.InfoContext(ctx, "starting multi-process benchmark",
		slog.Int("processes", c.cfg.Processes),
		slog.Int("threads", c.cfg.Threads),
		slog.Duration("duration", c.cfg.Duration),
		slog.String("segment", seg.Path()),
	)

	startDelay := c.cfg.StartDelay
	if startDelay == 0 {
		startDelay = DefaultStartDelay
	}

	var startAt time.Time
	if startDelay > 0 {
		startAt = time.Now().Add(startDelay)
	}
	launched := time.Now()

	results := make([]bench.Result, c.cfg.Processes)
	g, gctx := errgroup.WithContext(ctx)

	for i := 1; i < c.cfg.Processes; i++ {
		g.Go(func() error {
			res, err := c.spawner.Spawn(gctx, WorkerConfig{
				Segment:   name,
				ProcessID: i,
				Threads:   c.cfg.Threads,
				Duration:  c.cfg.Duration,
				StartAt:   startAt,
			})
			if err != nil {
				return err
			}

			results[i] = *res

			return nil
		})
	}

	g.Go(func() error {
		runner := bench.NewRunner(bench.Config{
			ProcessID:    0,
			Threads:      c.cfg.Threads,
			Duration:     c.cfg.Duration,
			StartAt:      startAt,
			Progress:     c.cfg.Progress,
			NewGenerator: c.cfg.NewGenerator,
		}, seg, c.logger)

		res, err := runner.Run(gctx)
		if err != nil {
			return fmt.Errorf("local process: %w", err)
		}

		results[0] = *res

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	origin := launched
	if !startAt.IsZero() {
		origin = startAt
	}
	elapsed := time.Since(origin)

	total, err := seg.Read()
	if err != nil {
		return nil, fmt.Errorf("read aggregate: %w", err)
	}

	var sum uint64
	for _, r := range results {
		sum += r.Addresses
	}

	if sum != total {
		return nil, fmt.Errorf("aggregate %d disagrees with process totals %d", total, sum)
	}

	summary := &Summary{
		Total:             total,
		ElapsedMs:         elapsed.Milliseconds(),
		Processes:         c.cfg.Processes,
		ThreadsPerProcess: c.cfg.Threads,
		Results:           results,
	}

	if s := elapsed.Seconds(); s > 0 {
		summary.Rate = float64(total) / s
	}

	c.logger.InfoContext(ctx, "multi-process benchmark complete",
		slog.Uint64("total", total),
		slog.Duration("elapsed", elapsed),
		slog.Float64("rate", summary.Rate),
	)

	return summary, nil
}

func (c *Coordinator) release(seg *counter.Shared) {
	if err := seg.Close(); err != nil {
		c.logger.Warn("failed to close segment",
			slog.String("error", err.Error()),
		)
	}

	if err := seg.Unlink(); err != nil {
		c.logger.Warn("failed to unlink segment",
			slog.String("error", err.Error()),
		)
	}
}
