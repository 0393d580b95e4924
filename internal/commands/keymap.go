package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
)

// BindingSource supplies the chord -> command id map.
type BindingSource interface {
	Keybindings() map[string]string
}

// Keymap answers keybinding questions from a BindingSource. Chords are
// compared after normalization, so "Shift+Ctrl+P" and "ctrl+shift+p" are
// the same chord.
type Keymap struct {
	src BindingSource
}

var _ Keybindings = (*Keymap)(nil)

// NewKeymap returns a keymap over src.
func NewKeymap(src BindingSource) *Keymap {
	return &Keymap{src: src}
}

// Lookup implements Keybindings. When several chords run the same command
// the shortest, then alphabetically first, is returned.
func (k *Keymap) Lookup(id string) (Keybinding, bool) {
	var chords []string
	for chord, target := range k.src.Keybindings() {
		if target == id {
			chords = append(chords, NormalizeChord(chord))
		}
	}
	if len(chords) == 0 {
		return Keybinding{}, false
	}
	slices.SortFunc(chords, func(a, b string) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return strings.Compare(a, b)
	})
	return Keybinding{Chord: chords[0]}, true
}

// ResolveEvent implements Keybindings. If the configuration spells the same
// chord more than once, the spelling already in normalized form wins, then
// the alphabetically first one.
func (k *Keymap) ResolveEvent(chord string) (string, bool) {
	want := NormalizeChord(chord)
	if want == "" {
		return "", false
	}
	var best, bestID string
	found := false
	for c, id := range k.src.Keybindings() {
		if NormalizeChord(c) != want {
			continue
		}
		if !found || spellingBefore(c, best, want) {
			best, bestID, found = c, id, true
		}
	}
	return bestID, found
}

func spellingBefore(a, b, normalized string) bool {
	if (a == normalized) != (b == normalized) {
		return a == normalized
	}
	return a < b
}

var modifierOrder = []string{"ctrl", "shift", "alt", "meta"}

// NormalizeChord lowercases a chord and orders its modifiers.
func NormalizeChord(chord string) string {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(chord)), "+")
	mods := make([]string, 0, len(parts))
	var key string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
		case slices.Contains(modifierOrder, p):
			if !slices.Contains(mods, p) {
				mods = append(mods, p)
			}
		case p == "cmd" || p == "super" || p == "win":
			if !slices.Contains(mods, "meta") {
				mods = append(mods, "meta")
			}
		case p == "control":
			if !slices.Contains(mods, "ctrl") {
				mods = append(mods, "ctrl")
			}
		case p == "option":
			if !slices.Contains(mods, "alt") {
				mods = append(mods, "alt")
			}
		default:
			key = p
		}
	}
	if key == "" {
		return ""
	}
	slices.SortFunc(mods, func(a, b string) int {
		return slices.Index(modifierOrder, a) - slices.Index(modifierOrder, b)
	})
	return strings.Join(append(mods, key), "+")
}

// HintConfigurer tells the user how to bind a command instead of opening an
// editor.
type HintConfigurer struct {
	W io.Writer
}

// ConfigureKeybinding implements KeybindingConfigurer.
func (h HintConfigurer) ConfigureKeybinding(_ context.Context, id string) error {
	_, err := fmt.Fprintf(h.W, "Bind a key to %s with:\n  palette config set keybindings.<chord> %s\n", id, id)
	return err
}
