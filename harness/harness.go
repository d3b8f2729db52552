package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/weiihann/addrbench/bench"
)

// Spawner starts one worker unit and blocks until it has finished.
type Spawner interface {
	Spawn(ctx context.Context, cfg WorkerConfig) (*bench.Result, error)
}

// ProcessSpawner runs each unit as a child OS process.
type ProcessSpawner struct {
	BinaryPath string
	ExtraArgs  []string
	Env        []string
	// Stderr receives the child's stderr in addition to the copy kept
	// for error reports. Nil keeps only the copy.
	Stderr io.Writer
	Logger *slog.Logger
}

// NewProcessSpawner creates a ProcessSpawner. ExtraArgs precede the
// worker arguments; Env is appended to the inherited environment.
func NewProcessSpawner(cmd CommandConfig, stderr io.Writer, logger *slog.Logger) *ProcessSpawner {
	return &ProcessSpawner{
		BinaryPath: cmd.Binary,
		ExtraArgs:  cmd.ExtraArgs,
		Env:        cmd.Env,
		Stderr:     stderr,
		Logger:     logger,
	}
}

// Spawn executes the worker binary and returns its parsed result. When
// ctx is cancelled the child is interrupted, then killed after a grace
// period.
func (s *ProcessSpawner) Spawn(ctx context.Context, cfg WorkerConfig) (*bench.Result, error) {
	args := make([]string, 0, len(s.ExtraArgs)+12)
	args = append(args, s.ExtraArgs...)
	args = append(args, cfg.Args()...)

	cmd := exec.CommandContext(ctx, s.BinaryPath, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 5 * time.Second

	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if s.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, s.Stderr)
	}

	logger := s.Logger.With(slog.Int("process", cfg.ProcessID))
	logger.Debug("starting worker process",
		slog.String("binary", s.BinaryPath),
		slog.String("segment", cfg.Segment),
	)

	wallStart := time.Now()

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf(
			"worker process %d failed: %w\nstderr: %s",
			cfg.ProcessID, err, stderr.String(),
		)
	}

	logger.Debug("worker process finished",
		slog.Duration("wall_time", time.Since(wallStart)),
	)

	result, err := parseResult(cfg.ProcessID, &stdout)
	if err != nil {
		return nil, fmt.Errorf(
			"parse worker %d output: %w\nstdout: %s",
			cfg.ProcessID, err, stdout.String(),
		)
	}

	return result, nil
}

// InProcessSpawner runs each unit as a goroutine group inside the
// current process. Units still attach to the segment by name and
// report through the same JSON encoding as child processes.
type InProcessSpawner struct {
	Logger       *slog.Logger
	NewGenerator func() bench.Generator
}

func (s *InProcessSpawner) Spawn(ctx context.Context, cfg WorkerConfig) (*bench.Result, error) {
	res, err := runUnit(ctx, s.Logger, cfg, nil, s.NewGenerator)
	if err != nil {
		return nil, fmt.Errorf("worker unit %d: %w", cfg.ProcessID, err)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(res); err != nil {
		return nil, fmt.Errorf("encode unit %d result: %w", cfg.ProcessID, err)
	}

	return parseResult(cfg.ProcessID, &buf)
}

func parseResult(processID int, r io.Reader) (*bench.Result, error) {
	var result bench.Result
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	if result.ProcessID != processID {
		return nil, fmt.Errorf("result is for process %d, want %d",
			result.ProcessID, processID)
	}

	return &result, nil
}
