package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/weiihann/addrbench/bench"
	"github.com/weiihann/addrbench/counter"
)

// WorkerConfig describes one worker unit. It round-trips through
// Args and ParseWorkerArgs when the unit is a child process.
type WorkerConfig struct {
	Segment   string
	ProcessID int
	Threads   int
	Duration  time.Duration
	StartAt   time.Time
	Progress  bool
}

// Args returns the command-line form understood by ParseWorkerArgs.
func (c WorkerConfig) Args() []string {
	args := []string{
		"--segment", c.Segment,
		"--process-id", strconv.Itoa(c.ProcessID),
		"--threads", strconv.Itoa(c.Threads),
		"--duration", c.Duration.String(),
	}

	if !c.StartAt.IsZero() {
		args = append(args, "--start-at", strconv.FormatInt(c.StartAt.UnixNano(), 10))
	}
	if c.Progress {
		args = append(args, "--progress")
	}

	return args
}

// ParseWorkerArgs parses the arguments produced by WorkerConfig.Args.
func ParseWorkerArgs(args []string) (WorkerConfig, error) {
	var (
		cfg     WorkerConfig
		startAt int64
	)

	flags := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)

	flags.StringVar(&cfg.Segment, "segment", "",
		"Name of the shared counter segment")
	flags.IntVar(&cfg.ProcessID, "process-id", 0,
		"Process index reported in results")
	flags.IntVar(&cfg.Threads, "threads", 0,
		"Worker goroutines to run")
	flags.DurationVar(&cfg.Duration, "duration", 0,
		"Benchmark duration")
	flags.Int64Var(&startAt, "start-at", 0,
		"Shared start instant in Unix nanoseconds")
	flags.BoolVar(&cfg.Progress, "progress", false,
		"Print the progress line to stderr")

	if err := flags.Parse(args); err != nil {
		return cfg, fmt.Errorf("parse worker args: %w", err)
	}

	if startAt != 0 {
		cfg.StartAt = time.Unix(0, startAt)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c WorkerConfig) validate() error {
	var errs []error

	if c.Segment == "" {
		errs = append(errs, errors.New("segment is required"))
	}
	if c.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be positive, got %d", c.Threads))
	}
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %s", c.Duration))
	}

	return errors.Join(errs...)
}

// RunWorker attaches to the segment, runs one benchmark process and
// writes its Result to stdout as JSON.
func RunWorker(
	ctx context.Context,
	logger *slog.Logger,
	cfg WorkerConfig,
	stdout io.Writer,
	progress io.Writer,
) error {
	result, err := runUnit(ctx, logger, cfg, progress, nil)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(stdout).Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	return nil
}

func runUnit(
	ctx context.Context,
	logger *slog.Logger,
	cfg WorkerConfig,
	progress io.Writer,
	newGenerator func() bench.Generator,
) (*bench.Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	seg, err := counter.AttachShared(cfg.Segment)
	if err != nil {
		return nil, fmt.Errorf("attach segment: %w", err)
	}
	defer seg.Close()

	if !cfg.Progress {
		progress = nil
	}

	runner := bench.NewRunner(bench.Config{
		ProcessID:    cfg.ProcessID,
		Threads:      cfg.Threads,
		Duration:     cfg.Duration,
		StartAt:      cfg.StartAt,
		Progress:     progress,
		NewGenerator: newGenerator,
	}, seg, logger)

	return runner.Run(ctx)
}
