package commands

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	errorDetailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(2)
)

// WriterNotifier prints errors to a writer, styled for a terminal.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Notifier = (*WriterNotifier)(nil)

// NewWriterNotifier returns a notifier writing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Error implements Notifier.
func (n *WriterNotifier) Error(title, detail string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	fmt.Fprintln(n.w, errorTitleStyle.Render(title))
	if detail != "" {
		fmt.Fprintln(n.w, errorDetailStyle.Render(detail))
	}
}
