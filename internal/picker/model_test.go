package picker

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/palette/internal/filter"
	"github.com/runger/palette/internal/quickaccess"
)

// --- Fake driver ---

type fakeDriver struct {
	list *quickaccess.ListPicker

	mu        sync.Mutex
	values    []string
	err       error
	action    quickaccess.TriggerAction
	triggered []*quickaccess.Item
}

func (d *fakeDriver) ValueChanged() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values = append(d.values, d.list.Value())
	return d.err
}

func (d *fakeDriver) TriggerButton(item *quickaccess.Item, _ int) quickaccess.TriggerAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triggered = append(d.triggered, item)
	return d.action
}

func newTestModel(t *testing.T, items ...*quickaccess.Item) (Model, *fakeDriver) {
	t.Helper()
	list := quickaccess.NewListPicker()
	list.SetItems(items)
	d := &fakeDriver{list: list}
	m := NewModel(d, list, Options{})
	m.width = 80
	m.height = 24
	return m, d
}

// runCmd executes a tea.Cmd synchronously and returns the resulting message.
func runCmd(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	result, cmd := m.Update(msg)
	out, ok := result.(Model)
	require.True(t, ok)
	return out, cmd
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	_, ok := runCmd(cmd).(tea.QuitMsg)
	return ok
}

func pick(id string) *quickaccess.Item {
	return &quickaccess.Item{ID: id, Label: id}
}

// --- Input ---

func TestTyping_DebouncesValueChanges(t *testing.T) {
	m, d := newTestModel(t)

	m, _ = update(t, m, runes("g"))
	m, _ = update(t, m, runes("s"))
	assert.Equal(t, "gs", m.list.Value(), "the list follows every keystroke")
	assert.Empty(t, d.values, "the driver waits for the debounce")

	m, cmd := update(t, m, debounceMsg{id: 1})
	assert.Nil(t, cmd, "stale timer")

	m, cmd = update(t, m, debounceMsg{id: m.debounceID})
	msg := runCmd(cmd)
	require.IsType(t, valueAppliedMsg{}, msg)
	assert.Equal(t, []string{"gs"}, d.values)

	m, _ = update(t, m, msg)
	assert.NoError(t, m.Err())
}

func TestTyping_ReportsDriverError(t *testing.T) {
	m, d := newTestModel(t)
	d.err = quickaccess.ErrNoProvider

	m, _ = update(t, m, runes("?"))
	m, cmd := update(t, m, debounceMsg{id: m.debounceID})
	m, _ = update(t, m, runCmd(cmd))

	assert.ErrorIs(t, m.Err(), quickaccess.ErrNoProvider)
	assert.Contains(t, StripANSI(m.View()), "No provider for this input")
}

func TestNavigationKeys_DoNotChangeValue(t *testing.T) {
	m, d := newTestModel(t, pick("a"), pick("b"))
	m, cmd := update(t, m, key(tea.KeyDown))
	assert.Nil(t, cmd)
	assert.Empty(t, d.values)
	assert.Equal(t, "b", m.activeItem().ID)
}

// --- Selection ---

func TestMoveActive_SkipsSeparators(t *testing.T) {
	m, _ := newTestModel(t,
		quickaccess.Separator("recently used"),
		pick("a"),
		quickaccess.Separator("other commands"),
		pick("b"),
	)
	require.Equal(t, "a", m.activeItem().ID)

	m, _ = update(t, m, key(tea.KeyDown))
	assert.Equal(t, "b", m.activeItem().ID)
	m, _ = update(t, m, key(tea.KeyDown))
	assert.Equal(t, "b", m.activeItem().ID, "stops at the end")
	m, _ = update(t, m, key(tea.KeyCtrlP))
	assert.Equal(t, "a", m.activeItem().ID)
	m, _ = update(t, m, key(tea.KeyPgDown))
	assert.Equal(t, "b", m.activeItem().ID)
}

func TestEnter_AcceptsActiveItem(t *testing.T) {
	m, _ := newTestModel(t, pick("a"), pick("b"))
	m, _ = update(t, m, key(tea.KeyDown))

	m, cmd := update(t, m, key(tea.KeyEnter))
	assert.True(t, isQuit(cmd))
	require.NotNil(t, m.Accepted())
	assert.Equal(t, "b", m.Accepted().ID)
	assert.False(t, m.IsCancelled())
}

func TestEnter_EmptyListDoesNothing(t *testing.T) {
	m, _ := newTestModel(t)
	m, cmd := update(t, m, key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Nil(t, m.Accepted())
	assert.Equal(t, stateActive, m.state)
}

func TestEscape_Cancels(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		m, _ := newTestModel(t, pick("a"))
		m, cmd := update(t, m, key(k))
		assert.True(t, isQuit(cmd))
		assert.True(t, m.IsCancelled())
		assert.Nil(t, m.Accepted())
	}
}

// --- Buttons and session changes ---

func TestCtrlK_TriggersFirstButton(t *testing.T) {
	gear := &quickaccess.Item{ID: "a", Label: "a", Buttons: []quickaccess.Button{{Icon: "⚙"}}}
	m, d := newTestModel(t, gear)
	d.action = quickaccess.ClosePicker

	m, cmd := update(t, m, key(tea.KeyCtrlK))
	msg := runCmd(cmd)
	require.IsType(t, triggeredMsg{}, msg)
	assert.Equal(t, []*quickaccess.Item{gear}, d.triggered)

	m, cmd = update(t, m, msg)
	assert.True(t, isQuit(cmd))
	assert.Equal(t, stateClosed, m.state)
	assert.Nil(t, m.Accepted())
	assert.False(t, m.IsCancelled())
}

func TestCtrlK_WithoutButtons(t *testing.T) {
	m, d := newTestModel(t, pick("a"))
	_, cmd := update(t, m, key(tea.KeyCtrlK))
	assert.Nil(t, cmd)
	assert.Empty(t, d.triggered)
}

func TestChangedMsg_QuitsWhenHidden(t *testing.T) {
	m, _ := newTestModel(t, pick("a"))

	m, cmd := update(t, m, changedMsg{})
	require.NotNil(t, cmd, "waits for the next change")
	assert.Equal(t, stateActive, m.state)

	m.list.Hide()
	m, cmd = update(t, m, changedMsg{})
	assert.True(t, isQuit(cmd))
	assert.Equal(t, stateClosed, m.state)
}

func TestWaitForChange_ReceivesListNotifications(t *testing.T) {
	m, _ := newTestModel(t)
	m.list.SetBusy(true)
	assert.Equal(t, changedMsg{}, runCmd(m.waitForChange()))
}

// --- View ---

func TestView_RendersRows(t *testing.T) {
	m, _ := newTestModel(t,
		quickaccess.Separator("recently used"),
		&quickaccess.Item{ID: "git.status", Label: "Git: Show Status", Keybinding: "ctrl+g"},
		&quickaccess.Item{ID: "git.log", Label: "Git: Show Log", Description: "git.log"},
	)
	view := StripANSI(m.View())

	assert.Contains(t, view, "recently used")
	assert.Contains(t, view, "> Git: Show Status")
	assert.Contains(t, view, "[ctrl+g]")
	assert.Contains(t, view, "  Git: Show Log  git.log")
	assert.Contains(t, view, "2 results")
}

func TestView_BusyAndEmpty(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Contains(t, StripANSI(m.View()), "No matches")

	m.list.SetBusy(true)
	assert.Contains(t, StripANSI(m.View()), "Working...")
}

func TestView_TruncatesLongRows(t *testing.T) {
	m, _ := newTestModel(t, &quickaccess.Item{
		Label:      strings.Repeat("x", 100),
		Highlights: quickaccess.Highlights{Label: []filter.Span{{Start: 0, End: 3}}},
	})
	m.width = 20

	for _, line := range strings.Split(StripANSI(m.View()), "\n") {
		if strings.HasPrefix(line, "> x") {
			assert.Contains(t, line, "…")
			assert.LessOrEqual(t, len([]rune(line)), 20)
		}
	}
}

func TestRenderHighlights(t *testing.T) {
	got := StripANSI(renderHighlights("Show Status", []filter.Span{{Start: 0, End: 2}, {Start: 5, End: 7}}, normalStyle))
	assert.Equal(t, "Show Status", got, "styling keeps the text intact")

	got = StripANSI(renderHighlights("abc", []filter.Span{{Start: 2, End: 10}}, normalStyle))
	assert.Equal(t, "abc", got, "out of range spans are clamped")
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name             string
		n, pos, h        int
		wantStart, wantE int
	}{
		{"fits", 5, 3, 10, 0, 5},
		{"top", 50, 0, 10, 0, 10},
		{"middle", 50, 25, 10, 20, 30},
		{"bottom", 50, 49, 10, 40, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := window(tt.n, tt.pos, tt.h)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantE, end)
			assert.True(t, tt.pos >= start && tt.pos < end)
		})
	}
}

// --- With a real controller ---

func TestModel_DrivesController(t *testing.T) {
	reg := quickaccess.NewRegistry()
	all := []*quickaccess.Item{pick("build"), pick("bench"), pick("clean")}
	_, err := reg.Register(quickaccess.Descriptor{
		Provider: quickaccess.ProviderFunc(func(_ context.Context, f string) (quickaccess.Picks, error) {
			var out []*quickaccess.Item
			for _, it := range all {
				if strings.HasPrefix(it.Label, f) {
					out = append(out, it)
				}
			}
			return quickaccess.Static(out...), nil
		}),
	})
	require.NoError(t, err)

	ctrl := quickaccess.NewController(reg, nil)
	t.Cleanup(ctrl.Close)
	list := quickaccess.NewListPicker()
	require.NoError(t, ctrl.Show(context.Background(), list))
	require.Len(t, list.Items(), 3)

	m := NewModel(ctrl, list, Options{})
	m, _ = update(t, m, runes("b"))
	m, cmd := update(t, m, debounceMsg{id: m.debounceID})
	m, _ = update(t, m, runCmd(cmd))
	require.NoError(t, m.Err())

	assert.Len(t, list.Items(), 2)
	m, _ = update(t, m, key(tea.KeyDown))
	m, cmd = update(t, m, key(tea.KeyEnter))
	assert.True(t, isQuit(cmd))
	assert.Equal(t, "bench", m.Accepted().ID)
}
