package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/palette/internal/picker"
	"github.com/runger/palette/internal/quickaccess"
)

var (
	queryTimeout time.Duration
	queryAccept  bool
)

var queryCmd = &cobra.Command{
	Use:     "query [text]",
	Short:   "Print the palette rows for some input",
	GroupID: groupCore,
	Long: `Print what the palette would show for the given input, without a TUI.

The highlighted row is marked with ">". With --accept the highlighted
command runs as if Enter had been pressed.

Examples:
  palette query                 # Rows for empty input
  palette query show status     # Rows for "show status"
  palette query git log --accept  # Run the best match for "git log"`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 5*time.Second, "How long to wait for slow results")
	queryCmd.Flags().BoolVar(&queryAccept, "accept", false, "Run the highlighted command")
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	ctrl := quickaccess.NewController(a.registry, a.logger)
	defer ctrl.Close()

	list := quickaccess.NewListPicker()
	list.SetValue(strings.Join(args, " "))
	if err := ctrl.Show(ctx, list); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := ctrl.Wait(waitCtx); err != nil {
		a.logger.Warn("slow results still pending", "error", err)
	}

	printRows(list.Items(), list.ActiveItems(), terminalWidth())

	if queryAccept && !ctrl.Accept(quickaccess.AcceptEvent{}) {
		return fmt.Errorf("nothing to run for %q", list.Value())
	}
	return nil
}

// printRows prints one line per item, truncated to width.
func printRows(items, active []*quickaccess.Item, width int) {
	var current *quickaccess.Item
	if len(active) > 0 {
		current = active[0]
	}
	for _, it := range items {
		if it.IsSeparator() {
			fmt.Printf("%s-- %s%s\n", colorDim, picker.DisplayText(it.Label), colorReset)
			continue
		}
		marker := "  "
		if it == current {
			marker = "> "
		}
		parts := []string{picker.DisplayText(it.Label)}
		if it.Description != "" {
			parts = append(parts, picker.DisplayText(it.Description))
		}
		if it.Detail != "" {
			parts = append(parts, picker.DisplayText(it.Detail))
		}
		line := strings.Join(parts, "  ")
		if it.Keybinding != "" {
			line += "  [" + it.Keybinding + "]"
		}
		fmt.Println(marker + picker.MiddleTruncate(line, max(width-2, 1)))
	}
}
