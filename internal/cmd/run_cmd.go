package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var runKey string

var runCmd = &cobra.Command{
	Use:     "run [command-id]",
	Short:   "Run a command by id or key chord",
	GroupID: groupCore,
	Long: `Run a catalog command directly, recording it as recently used.

Examples:
  palette run git.status        # Run by id
  palette run --key ctrl+g      # Run whatever ctrl+g is bound to`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runKey, "key", "", "Key chord to resolve through keybindings")
}

func runRun(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (runKey == "") {
		return errors.New("give exactly one of a command id or --key")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = a.shutdown(shutdownCtx)
	}()

	if runKey != "" {
		return a.provider.RunChord(ctx, runKey)
	}
	return a.provider.Run(ctx, args[0])
}
