// Package picker hosts a quick access session in a terminal UI.
package picker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/runger/palette/internal/filter"
	"github.com/runger/palette/internal/quickaccess"
)

// DefaultDebounce is the delay after the last keystroke before the
// controller sees the new value.
const DefaultDebounce = 30 * time.Millisecond

type pickerState int

const (
	stateActive    pickerState = iota
	stateAccepted              // Enter on a selectable item
	stateCancelled             // Esc / Ctrl+C
	stateClosed                // hidden by the session
)

// Driver is the part of quickaccess.Controller the model uses.
type Driver interface {
	ValueChanged() error
	TriggerButton(item *quickaccess.Item, index int) quickaccess.TriggerAction
}

// changedMsg reports that the picker state moved under the model.
type changedMsg struct{}

// valueAppliedMsg carries the result of a ValueChanged call.
type valueAppliedMsg struct {
	err error
}

// triggeredMsg carries the result of a button press.
type triggeredMsg struct {
	action quickaccess.TriggerAction
}

type debounceMsg struct {
	id uint64
}

// Options configure a Model.
type Options struct {
	Placeholder string
	Debounce    time.Duration
	// Value seeds the input, for example with a provider prefix.
	Value string
}

// Model is the Bubble Tea model around a quickaccess.ListPicker.
type Model struct {
	state   pickerState
	driver  Driver
	list    *quickaccess.ListPicker
	changes chan struct{}

	input   textinput.Model
	spinner spinner.Model

	debounce   time.Duration
	debounceID uint64

	width  int
	height int

	err      error
	accepted *quickaccess.Item
}

// NewModel wires a model to list. The driver must already be showing list.
func NewModel(driver Driver, list *quickaccess.ListPicker, opts Options) Model {
	changes := make(chan struct{}, 1)
	list.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = opts.Placeholder
	ti.PromptStyle = queryStyle
	ti.PlaceholderStyle = dimStyle
	ti.SetValue(opts.Value)
	ti.CursorEnd()
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = dimStyle

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return Model{
		state:    stateActive,
		driver:   driver,
		list:     list,
		changes:  changes,
		input:    ti,
		spinner:  sp,
		debounce: debounce,
	}
}

// Accepted returns the item chosen with Enter, or nil.
func (m Model) Accepted() *quickaccess.Item {
	if m.state != stateAccepted {
		return nil
	}
	return m.accepted
}

// IsCancelled reports whether the user dismissed the picker.
func (m Model) IsCancelled() bool {
	return m.state == stateCancelled
}

// Err returns the last error reported by the driver.
func (m Model) Err() error {
	return m.err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForChange())
}

// waitForChange blocks until the list reports a change.
func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 1)
		return m, nil

	case changedMsg:
		if m.list.Hidden() && m.state == stateActive {
			m.state = stateClosed
			return m, tea.Quit
		}
		return m, m.waitForChange()

	case debounceMsg:
		if msg.id != m.debounceID {
			return m, nil
		}
		return m, m.applyValue()

	case valueAppliedMsg:
		m.err = msg.err
		return m, nil

	case triggeredMsg:
		if msg.action == quickaccess.ClosePicker && m.state == stateActive {
			m.state = stateClosed
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.state = stateCancelled
		return m, tea.Quit

	case tea.KeyEnter:
		item := m.activeItem()
		if item == nil {
			return m, nil
		}
		m.accepted = item
		m.state = stateAccepted
		return m, tea.Quit

	case tea.KeyUp, tea.KeyCtrlP:
		m.list.MoveActive(-1)
		return m, nil

	case tea.KeyDown, tea.KeyCtrlN:
		m.list.MoveActive(1)
		return m, nil

	case tea.KeyPgUp:
		m.list.MoveActive(-m.listHeight())
		return m, nil

	case tea.KeyPgDown:
		m.list.MoveActive(m.listHeight())
		return m, nil

	case tea.KeyCtrlK:
		item := m.activeItem()
		if item == nil || len(item.Buttons) == 0 {
			return m, nil
		}
		d := m.driver
		return m, func() tea.Msg {
			return triggeredMsg{action: d.TriggerButton(item, 0)}
		}
	}

	prev := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == prev {
		return m, cmd
	}
	m.list.SetValue(m.input.Value())
	tick := m.startDebounce()
	return m, tea.Batch(cmd, tick)
}

func (m *Model) startDebounce() tea.Cmd {
	m.debounceID++
	id := m.debounceID
	return tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return debounceMsg{id: id}
	})
}

// applyValue tells the driver about the latest value. The driver reads the
// value from the list, so overlapping calls settle on the newest one.
func (m Model) applyValue() tea.Cmd {
	d := m.driver
	return func() tea.Msg {
		return valueAppliedMsg{err: d.ValueChanged()}
	}
}

func (m Model) activeItem() *quickaccess.Item {
	for _, it := range m.list.ActiveItems() {
		if it != nil && !it.IsSeparator() {
			return it
		}
	}
	return nil
}

// listHeight returns the number of visible rows.
func (m Model) listHeight() int {
	// 1 row for the input, 1 row for status
	const chrome = 2
	h := m.height - chrome
	if h < 1 {
		h = 20 // Sensible default before first WindowSizeMsg
	}
	return h
}

// --- View rendering ---

var (
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	normalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	queryStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Italic(true)
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteRune('\n')
	if list := m.viewList(); list != "" {
		b.WriteString(list)
		b.WriteRune('\n')
	}
	b.WriteString(m.viewStatus())
	return b.String()
}

func (m Model) viewStatus() string {
	switch {
	case m.err != nil:
		if errors.Is(m.err, quickaccess.ErrNoProvider) {
			return errorStyle.Render("No provider for this input")
		}
		return errorStyle.Render(fmt.Sprintf("Error: %s", m.err))
	case m.list.Busy():
		return m.spinner.View() + dimStyle.Render(" Working...")
	}
	n := 0
	for _, it := range m.list.Items() {
		if !it.IsSeparator() {
			n++
		}
	}
	if n == 0 {
		return dimStyle.Render("No matches")
	}
	return dimStyle.Render(fmt.Sprintf("%d results", n))
}

// viewList renders the window of rows that keeps the active item visible.
func (m Model) viewList() string {
	items := m.list.Items()
	if len(items) == 0 {
		return ""
	}
	active := m.activeItem()
	pos := 0
	for i, it := range items {
		if it == active {
			pos = i
			break
		}
	}
	start, end := window(len(items), pos, m.listHeight())

	lines := make([]string, 0, end-start)
	for _, it := range items[start:end] {
		lines = append(lines, m.renderItem(it, it == active))
	}
	return strings.Join(lines, "\n")
}

// window returns the [start, end) slice of n rows of height h that
// contains pos.
func window(n, pos, h int) (int, int) {
	if n <= h {
		return 0, n
	}
	start := pos - h/2
	start = min(max(start, 0), n-h)
	return start, start + h
}

func (m Model) renderItem(it *quickaccess.Item, active bool) string {
	avail := m.width - 2
	if m.width <= 4 {
		avail = 1 << 16
	}

	if it.IsSeparator() {
		return "  " + separatorStyle.Render(MiddleTruncate(DisplayText(it.Label), avail))
	}

	marker, base := "  ", normalStyle
	if active {
		marker, base = "> ", selectedStyle
	}

	label := DisplayText(it.Label)
	var tail []string
	if it.Description != "" {
		tail = append(tail, DisplayText(it.Description))
	}
	if it.Detail != "" {
		tail = append(tail, DisplayText(it.Detail))
	}
	if it.Keybinding != "" {
		tail = append(tail, "["+it.Keybinding+"]")
	}
	if len(it.Buttons) > 0 {
		tail = append(tail, it.Buttons[0].Icon)
	}
	suffix := ""
	if len(tail) > 0 {
		suffix = "  " + strings.Join(tail, "  ")
	}

	plain := label + suffix
	if runewidth.StringWidth(plain) > avail {
		return marker + base.Render(MiddleTruncate(plain, avail))
	}
	return marker + renderHighlights(label, it.Highlights.Label, base) + dimStyle.Render(suffix)
}

// renderHighlights styles the matched rune ranges of s.
func renderHighlights(s string, spans []filter.Span, base lipgloss.Style) string {
	if len(spans) == 0 {
		return base.Render(s)
	}
	runes := []rune(s)
	var b strings.Builder
	at := 0
	for _, sp := range spans {
		start := min(max(sp.Start, at), len(runes))
		end := min(max(sp.End, start), len(runes))
		if start > at {
			b.WriteString(base.Render(string(runes[at:start])))
		}
		if end > start {
			b.WriteString(highlightStyle.Render(string(runes[start:end])))
		}
		at = end
	}
	if at < len(runes) {
		b.WriteString(base.Render(string(runes[at:])))
	}
	return b.String()
}
