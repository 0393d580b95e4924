package quickaccess

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrNoProvider is returned when no provider handles the input.
	ErrNoProvider = errors.New("quickaccess: no provider for input")
	// ErrDuplicatePrefix is returned when a prefix is registered twice.
	ErrDuplicatePrefix = errors.New("quickaccess: prefix already registered")
)

// Provider produces picks for a filter. The context is canceled as soon as
// the filter is superseded or the picker closes.
type Provider interface {
	Picks(ctx context.Context, filter string) (Picks, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, filter string) (Picks, error)

// Picks implements Provider.
func (f ProviderFunc) Picks(ctx context.Context, filter string) (Picks, error) {
	return f(ctx, filter)
}

// Options tune how a session treats a provider.
type Options struct {
	// SkipTrimFilter passes the filter with surrounding whitespace intact.
	SkipTrimFilter bool

	// CanAcceptInBackground allows accepting without closing the picker.
	CanAcceptInBackground bool

	// NoResultsPick builds the item shown when a non-empty filter matches
	// nothing. It may be nil.
	NoResultsPick func(filter string) *Item
}

// Descriptor registers a provider under an input prefix. The empty prefix
// is the default provider.
type Descriptor struct {
	Prefix      string
	Placeholder string
	Description string
	Provider    Provider
	Options     Options
}

// Registry maps prefixes to providers.
type Registry struct {
	mu          sync.RWMutex
	descriptors []Descriptor // longest prefix first
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds d and returns a function that removes it.
func (r *Registry) Register(d Descriptor) (func(), error) {
	if d.Provider == nil {
		return nil, fmt.Errorf("quickaccess: nil provider for prefix %q", d.Prefix)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.descriptors {
		if existing.Prefix == d.Prefix {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePrefix, d.Prefix)
		}
	}
	r.descriptors = append(r.descriptors, d)
	slices.SortStableFunc(r.descriptors, func(a, b Descriptor) int {
		return len(b.Prefix) - len(a.Prefix)
	})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.descriptors = slices.DeleteFunc(r.descriptors, func(x Descriptor) bool {
			return x.Prefix == d.Prefix
		})
	}, nil
}

// Lookup returns the descriptor with the longest prefix of value, falling
// back to the default provider.
func (r *Registry) Lookup(value string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.descriptors {
		if strings.HasPrefix(value, d.Prefix) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Descriptors returns all registered descriptors, longest prefix first.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.descriptors)
}
