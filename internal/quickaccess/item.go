// Package quickaccess drives a filterable picker from pluggable providers.
//
// A Registry maps input prefixes to providers. A Controller follows the
// picker's input, resolves the provider for the current prefix, and runs a
// Session for it. On every input change the Session cancels whatever the
// previous keystroke started, asks the provider for picks, and applies the
// results to the Picker. Results that arrive for an outdated keystroke are
// dropped.
package quickaccess

import (
	"context"

	"github.com/runger/palette/internal/filter"
)

// Kind distinguishes selectable picks from separators.
type Kind int

const (
	KindPick Kind = iota
	KindSeparator
)

// TriggerAction tells the session what to do after an item button ran.
type TriggerAction int

const (
	NoAction TriggerAction = iota
	ClosePicker
	RefreshPicker
	RemoveItem
)

func (a TriggerAction) String() string {
	switch a {
	case ClosePicker:
		return "close"
	case RefreshPicker:
		return "refresh"
	case RemoveItem:
		return "remove"
	default:
		return "none"
	}
}

// Button is an action rendered next to an item.
type Button struct {
	Icon    string
	Tooltip string
}

// AcceptEvent describes how an item was accepted.
type AcceptEvent struct {
	// InBackground keeps the picker open after accepting.
	InBackground bool
}

// Highlights are matched ranges in the item's text fields.
type Highlights struct {
	Label       []filter.Span
	Description []filter.Span
	Detail      []filter.Span
}

// Item is one row of a pick list.
type Item struct {
	ID          string
	Kind        Kind
	Label       string
	Description string
	Detail      string
	Keybinding  string
	Highlights  Highlights
	Buttons     []Button

	// Accept runs when the item is chosen. The context outlives the picker.
	Accept func(ctx context.Context, ev AcceptEvent)

	// Trigger runs when one of Buttons is pressed.
	Trigger func(ctx context.Context, buttonIndex int) TriggerAction
}

// Separator returns a non-selectable section header.
func Separator(label string) *Item {
	return &Item{Kind: KindSeparator, Label: label}
}

// IsSeparator reports whether the item is a section header.
func (it *Item) IsSeparator() bool {
	return it != nil && it.Kind == KindSeparator
}

// PickList is an ordered set of items with an optional item to highlight.
type PickList struct {
	Items  []*Item
	Active *Item
}
