package harness

import (
	"fmt"
	"os"
	"path/filepath"
)

// WorkerCommand is the subcommand that child processes are started with.
const WorkerCommand = "worker"

// CommandConfig holds the resolved command, leading arguments, and
// environment variables needed to start a worker process.
type CommandConfig struct {
	Binary    string
	ExtraArgs []string
	Env       []string
}

// ResolveBinary returns the absolute path of the running executable,
// which doubles as the worker binary.
func ResolveBinary() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve executable symlinks: %w", err)
	}

	return exe, nil
}

// SelfCommand returns the exec configuration that re-runs the current
// binary in worker mode.
func SelfCommand() (CommandConfig, error) {
	exe, err := ResolveBinary()
	if err != nil {
		return CommandConfig{}, err
	}

	return CommandConfig{
		Binary:    exe,
		ExtraArgs: []string{WorkerCommand},
	}, nil
}
