package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/google/shlex"
)

// CommandLookup finds a command by id.
type CommandLookup interface {
	Command(id string) (Command, bool)
}

// ShellConfig configures a ShellExecutor.
type ShellConfig struct {
	Commands CommandLookup
	Dir      string    // working directory (empty = current)
	Stdout   io.Writer // defaults to os.Stdout
	Stderr   io.Writer // defaults to os.Stderr
	Logger   *slog.Logger
}

// ShellExecutor runs a command's "run" line as a process. The line is split
// with shell quoting rules but not passed through a shell.
type ShellExecutor struct {
	cfg ShellConfig
}

var _ Executor = (*ShellExecutor)(nil)

// NewShellExecutor returns an executor over cfg.Commands.
func NewShellExecutor(cfg ShellConfig) (*ShellExecutor, error) {
	if cfg.Commands == nil {
		return nil, errors.New("commands: nil command lookup")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ShellExecutor{cfg: cfg}, nil
}

// Execute implements Executor. args are appended to the command line.
// Interrupted runs return an error wrapping ErrExecutionCanceled.
func (e *ShellExecutor) Execute(ctx context.Context, id string, args ...string) error {
	cmd, ok := e.cfg.Commands.Command(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, id)
	}
	if cmd.Run == "" {
		return fmt.Errorf("command %s has nothing to run", id)
	}

	argv, err := shlex.Split(cmd.Run)
	if err != nil {
		return fmt.Errorf("command %s: parse run line: %w", id, err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("command %s has nothing to run", id)
	}
	argv = append(argv, args...)

	proc := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // run lines come from the user's own catalog
	proc.Dir = e.cfg.Dir
	proc.Stdout = e.cfg.Stdout
	proc.Stderr = e.cfg.Stderr

	e.cfg.Logger.Debug("running command", "id", id, "argv", argv)
	if err := proc.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("command %s: %w: %w", id, ErrExecutionCanceled, ctx.Err())
		}
		return fmt.Errorf("command %s: %w", id, err)
	}
	return nil
}
