package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/runger/palette/internal/commands"
	"github.com/runger/palette/internal/picker"
	"github.com/runger/palette/internal/quickaccess"
)

var pickValue string

var pickCmd = &cobra.Command{
	Use:     "pick",
	Short:   "Open the command palette",
	GroupID: groupCore,
	Long: `Open the interactive command palette on the terminal.

Type to filter, use the arrow keys to move, Enter to run the highlighted
command and Esc to close. Ctrl+K on a command shows how to bind a key to it.

The palette reads from and draws on /dev/tty, so stdout stays free for the
output of the command that runs.

Examples:
  palette                 # Open the palette
  palette pick --value git  # Open it with "git" already typed`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

func init() {
	pickCmd.Flags().StringVar(&pickValue, "value", "", "Initial input text")
}

func runPick(cmd *cobra.Command, args []string) error {
	// stdin/stdout belong to the command that runs, so the TUI uses the tty.
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("cannot open /dev/tty: %w", err)
	}
	defer tty.Close()

	ctx := cmd.Context()
	var hints bytes.Buffer
	a, err := newApp(ctx, appOptions{
		Configurer: commands.HintConfigurer{W: &hints},
		Watch:      true,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "%sWarning:%s %v\n", colorYellow, colorReset, err)
		}
	}()

	ctrl := quickaccess.NewController(a.registry, a.logger)
	defer ctrl.Close()

	list := quickaccess.NewListPicker()
	list.SetValue(pickValue)
	if err := ctrl.Show(ctx, list); err != nil && !errors.Is(err, quickaccess.ErrNoProvider) {
		return err
	}

	var placeholder string
	if desc, ok := a.registry.Lookup(pickValue); ok {
		placeholder = desc.Placeholder
	}
	model := picker.NewModel(ctrl, list, picker.Options{Placeholder: placeholder, Value: pickValue})

	// lipgloss detects colors from stdout, which may be a pipe.
	lipgloss.SetColorProfile(termenv.NewOutput(tty).ColorProfile())

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(tty),
		tea.WithOutput(tty),
	)
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	m, ok := final.(picker.Model)
	if !ok {
		return errors.New("unexpected model type")
	}

	if hints.Len() > 0 {
		fmt.Print(hints.String())
	}

	item := m.Accepted()
	if item == nil {
		return nil
	}
	// Late results must not move the highlight away from the chosen item.
	list.SetActiveItems([]*quickaccess.Item{item})
	ctrl.Accept(quickaccess.AcceptEvent{})
	return nil
}
