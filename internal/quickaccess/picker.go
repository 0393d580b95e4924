package quickaccess

import (
	"slices"
	"sync"
)

// Picker is the widget a session drives.
type Picker interface {
	Value() string
	Items() []*Item
	SetItems(items []*Item)
	ActiveItems() []*Item
	SetActiveItems(items []*Item)
	Busy() bool
	SetBusy(busy bool)
	Hide()
}

// ListPicker is an in-memory Picker. Setting items makes the first
// selectable item active. It is safe for concurrent use.
type ListPicker struct {
	mu       sync.Mutex
	value    string
	items    []*Item
	active   []*Item
	busy     bool
	hidden   bool
	onChange func()
}

var _ Picker = (*ListPicker)(nil)

// NewListPicker returns an empty, visible picker.
func NewListPicker() *ListPicker {
	return &ListPicker{}
}

// OnChange registers fn to run after any state change. fn runs on the
// goroutine that made the change and must not block or call back into the
// session.
func (p *ListPicker) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *ListPicker) changed() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Value implements Picker.
func (p *ListPicker) Value() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// SetValue changes the input text. It does not notify the session; callers
// follow it with Controller.ValueChanged.
func (p *ListPicker) SetValue(v string) {
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
	p.changed()
}

// Items implements Picker.
func (p *ListPicker) Items() []*Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.items)
}

// SetItems implements Picker.
func (p *ListPicker) SetItems(items []*Item) {
	p.mu.Lock()
	p.items = slices.Clone(items)
	p.active = nil
	for _, it := range p.items {
		if it != nil && !it.IsSeparator() {
			p.active = []*Item{it}
			break
		}
	}
	p.mu.Unlock()
	p.changed()
}

// ActiveItems implements Picker.
func (p *ListPicker) ActiveItems() []*Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.active)
}

// SetActiveItems implements Picker.
func (p *ListPicker) SetActiveItems(items []*Item) {
	p.mu.Lock()
	p.active = slices.Clone(items)
	p.mu.Unlock()
	p.changed()
}

// MoveActive moves the highlight delta selectable items up or down,
// stopping at either end.
func (p *ListPicker) MoveActive(delta int) {
	p.mu.Lock()
	var selectable []*Item
	for _, it := range p.items {
		if it != nil && !it.IsSeparator() {
			selectable = append(selectable, it)
		}
	}
	if len(selectable) == 0 {
		p.mu.Unlock()
		return
	}
	pos := 0
	if len(p.active) > 0 {
		if i := slices.Index(selectable, p.active[0]); i >= 0 {
			pos = i
		}
	}
	pos = min(max(pos+delta, 0), len(selectable)-1)
	p.active = []*Item{selectable[pos]}
	p.mu.Unlock()
	p.changed()
}

// Busy implements Picker.
func (p *ListPicker) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// SetBusy implements Picker.
func (p *ListPicker) SetBusy(busy bool) {
	p.mu.Lock()
	if p.busy == busy {
		p.mu.Unlock()
		return
	}
	p.busy = busy
	p.mu.Unlock()
	p.changed()
}

// Hide implements Picker.
func (p *ListPicker) Hide() {
	p.mu.Lock()
	p.hidden = true
	p.mu.Unlock()
	p.changed()
}

// Hidden reports whether Hide was called.
func (p *ListPicker) Hidden() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hidden
}
