package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyYes   bool
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "Show or clear recently used commands",
	GroupID: groupCore,
	Long: `Show the commands remembered as recently used, most recent first.

The palette lists these commands first. The number of remembered commands
is set by history.capacity; 0 turns the history off.

Examples:
  palette history              # Show recently used commands
  palette history --limit=5    # Show the last 5
  palette history clear --yes  # Forget everything`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recently used commands",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all recently used commands",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 0, "Maximum number of commands to show (0 = all)")
	historyClearCmd.Flags().BoolVarP(&historyYes, "yes", "y", false, "Do not ask for confirmation")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
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

	cache := a.persister.Cache()
	if cache.Capacity() == 0 {
		fmt.Println("Command history is turned off (history.capacity = 0).")
		return nil
	}
	entries := cache.Entries()
	if len(entries) == 0 {
		fmt.Println("No recently used commands.")
		return nil
	}
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[:historyLimit]
	}

	for _, e := range entries {
		label := colorDim + "(not in catalog)" + colorReset
		if c, ok := a.catalog.Command(e.Key); ok {
			label = c.Label
			if c.Category != "" {
				label = c.Category + ": " + c.Label
			}
		}
		fmt.Printf("  %s%6d%s  %s%-24s%s %s\n", colorDim, e.Value, colorReset, colorCyan, e.Key, colorReset, label)
	}

	fmt.Println()
	fmt.Printf("%sShowing %d of %d command(s), capacity %d%s\n", colorDim, len(entries), cache.Len(), cache.Capacity(), colorReset)
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	if !historyYes && !confirm("Forget all recently used commands?") {
		fmt.Println("Aborted.")
		return nil
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}

	n := a.persister.Cache().Len()
	a.persister.Cache().Clear()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	fmt.Printf("%sCleared%s %d command(s).\n", colorGreen, colorReset, n)
	return nil
}

// confirm asks a yes/no question on stdin.
func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
