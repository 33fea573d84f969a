package harness

import (
	"fmt"
	"os"
	"path/filepath"
)

// WorkerSubcommand is the hidden CLI verb that turns the binary into a
// single-trial worker.
const WorkerSubcommand = "worker"

// CommandConfig holds the resolved command, extra arguments, and
// environment variables needed to start a worker process.
type CommandConfig struct {
	Binary    string
	ExtraArgs []string
	Env       []string
}

// WorkerCommand returns the command that re-executes the running binary in
// worker mode.
func WorkerCommand() (CommandConfig, error) {
	exe, err := os.Executable()
	if err != nil {
		return CommandConfig{}, fmt.Errorf("resolve executable: %w", err)
	}

	return ResolveWorker(exe)
}

// ResolveWorker returns the worker command for an explicit binary path.
func ResolveWorker(binPath string) (CommandConfig, error) {
	abs, err := filepath.Abs(binPath)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("resolve %s: %w", binPath, err)
	}

	if _, err := os.Stat(abs); err != nil {
		return CommandConfig{}, fmt.Errorf("worker binary: %w", err)
	}

	return CommandConfig{
		Binary:    abs,
		ExtraArgs: []string{WorkerSubcommand},
	}, nil
}
