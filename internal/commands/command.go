// Package commands implements the commands palette: a quick access provider
// that lists invokable commands, ranks them against the typed filter and
// the usage history, and runs the one the user picks.
package commands

import (
	"context"
	"errors"
)

// ErrExecutionCanceled is returned by an Executor when a run was
// interrupted. The palette never reports it to the user.
var ErrExecutionCanceled = errors.New("command execution canceled")

// ErrUnknownCommand is returned for an id the registry does not list.
var ErrUnknownCommand = errors.New("unknown command")

// Command is one entry of a command registry.
type Command struct {
	ID           string   `yaml:"id"`
	Label        string   `yaml:"label"`
	Alias        string   `yaml:"alias,omitempty"`
	Category     string   `yaml:"category,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Precondition string   `yaml:"when,omitempty"`
	Run          string   `yaml:"run,omitempty"`
	Args         []string `yaml:"args,omitempty"`
}

// Registry lists the commands that can be offered.
type Registry interface {
	ListCommands() []Command
}

// Executor runs a command by id.
type Executor interface {
	Execute(ctx context.Context, id string, args ...string) error
}

// Keybinding is a key chord bound to a command.
type Keybinding struct {
	Chord string
}

// Keybindings answers keybinding questions for the palette.
type Keybindings interface {
	// Lookup returns the chord bound to a command id.
	Lookup(id string) (Keybinding, bool)
	// ResolveEvent returns the command id bound to a pressed chord.
	ResolveEvent(chord string) (string, bool)
}

// KeybindingConfigurer opens whatever the host uses to edit the binding
// of a command.
type KeybindingConfigurer interface {
	ConfigureKeybinding(ctx context.Context, id string) error
}

// Notifier shows an error to the user.
type Notifier interface {
	Error(title, detail string)
}

// RelatedKind selects what a related source may return.
type RelatedKind int

const (
	RelatedCommand RelatedKind = iota
	RelatedSetting
)

// RelatedResult is one hit from a related source.
type RelatedResult struct {
	TargetID string
	Weight   float64
}

// Related finds commands related to free text when word matching finds
// too little.
type Related interface {
	Related(ctx context.Context, text string, kinds []RelatedKind) ([]RelatedResult, error)
}

// Settings are the user preferences the ranker reads on every evaluation.
type Settings interface {
	SuggestedIDs() []string
	ShowAlias() bool
}

// StaticSettings is a Settings with fixed values.
type StaticSettings struct {
	Suggested []string
	Alias     bool
}

func (s StaticSettings) SuggestedIDs() []string { return s.Suggested }
func (s StaticSettings) ShowAlias() bool        { return s.Alias }

// History is the recency source the palette ranks by and records into.
type History interface {
	Peek(id string) (int64, bool)
	RecordUse(id string)
}

// PreconditionFunc reports whether a command's precondition currently
// holds.
type PreconditionFunc func(expr string) bool

// IsCanceled reports whether err means the user or the host canceled the
// run, as opposed to the command failing.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrExecutionCanceled)
}
