// Package main provides the CLI entry point for addrbench, a multi-process
// address generation throughput benchmark.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/weiihann/addrbench/harness"
	"github.com/weiihann/addrbench/report"
	"github.com/weiihann/addrbench/vectors"
)

// logLevelEnv carries the log level from the coordinator to its
// worker processes, which do not parse persistent flags.
const logLevelEnv = "ADDRBENCH_LOG_LEVEL"

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(logger, level)
	if err := root.ExecuteContext(ctx); err != nil {
		var setupErr *harness.SetupError
		if errors.As(err, &setupErr) {
			logger.Error("shared segment setup failed, no workers started",
				slog.String("segment", setupErr.Segment),
				slog.String("error", setupErr.Err.Error()),
			)
		} else {
			logger.Error("command failed", slog.String("error", err.Error()))
		}

		stop()
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	logLevel := os.Getenv(logLevelEnv)
	if logLevel == "" {
		logLevel = "info"
	}

	root := &cobra.Command{
		Use:   "addrbench",
		Short: "Multi-process address generation benchmark",
		Long: `Addrbench measures how many checksummed base58 addresses this machine
can derive from fresh secp256k1 keys per second, using several worker
processes that each run several worker goroutines and report into one
shared counter.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}

			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", logLevel,
		"Log level: debug, info, warn, error")

	root.AddCommand(newRunCmd(logger, &logLevel))
	root.AddCommand(newWorkerCmd(logger))
	root.AddCommand(newVectorsCmd(logger))

	return root
}

func newRunCmd(logger *slog.Logger, logLevel *string) *cobra.Command {
	var (
		processes  int
		threads    int
		duration   time.Duration
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the address generation benchmark",
		Long: `Create the shared counter segment, start processes-1 worker processes,
run one benchmark process locally, and report the aggregate rate.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Context(), logger, runConfig{
				processes:  processes,
				threads:    threads,
				duration:   duration,
				outputJSON: outputJSON,
				logLevel:   *logLevel,
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&processes, "processes", 12,
		"Number of OS processes to run concurrently")
	flags.IntVar(&threads, "threads", 8,
		"Worker goroutines per process")
	flags.DurationVar(&duration, "duration", 5*time.Second,
		"Wall-clock benchmark length")
	flags.BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of tables")

	return cmd
}

type runConfig struct {
	processes  int
	threads    int
	duration   time.Duration
	outputJSON bool
	logLevel   string
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	cfg runConfig,
) error {
	cmdCfg, err := harness.SelfCommand()
	if err != nil {
		return err
	}
	cmdCfg.Env = append(cmdCfg.Env, logLevelEnv+"="+cfg.logLevel)

	spawner := harness.NewProcessSpawner(cmdCfg, os.Stderr, logger)

	coord := harness.NewCoordinator(harness.Config{
		Processes: cfg.processes,
		Threads:   cfg.threads,
		Duration:  cfg.duration,
		Progress:  os.Stderr,
	}, spawner, logger)

	summary, err := coord.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.outputJSON {
		if err := report.GenerateJSON(os.Stdout, summary); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	} else {
		if err := report.Generate(os.Stdout, summary); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	return nil
}

func newWorkerCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:                harness.WorkerCommand,
		Short:              "Run one benchmark worker process (internal)",
		Hidden:             true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := harness.ParseWorkerArgs(args)
			if err != nil {
				return err
			}

			return harness.RunWorker(cmd.Context(), logger, cfg, os.Stdout, os.Stderr)
		},
	}
}

func newVectorsCmd(logger *slog.Logger) *cobra.Command {
	var cfg vectors.Config

	cmd := &cobra.Command{
		Use:   "vectors",
		Short: "Print deterministic address test vectors as JSONL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Count < 0 {
				return fmt.Errorf("count must not be negative, got %d", cfg.Count)
			}

			summary, err := vectors.NewGenerator(cfg).Generate(os.Stdout)
			if err != nil {
				return fmt.Errorf("generate vectors: %w", err)
			}

			logger.InfoContext(cmd.Context(), "vectors generated",
				slog.Int("vectors", summary.Vectors),
				slog.Int("skipped", summary.Skipped),
				slog.Int64("seed", cfg.Seed),
			)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.Count, "count", 10,
		"Number of vectors to generate")
	flags.Int64Var(&cfg.Seed, "seed", 1,
		"Random seed for the private keys")
	flags.BoolVar(&cfg.Compressed, "compressed", false,
		"Hash compressed public keys")

	return cmd
}
