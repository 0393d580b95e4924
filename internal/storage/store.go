// Package storage provides durable key/value state for palette.
// Values are opaque strings addressed by key and scope; the history cache
// stores its JSON snapshot and usage counter here.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Scope selects which state bucket a key lives in.
type Scope string

const (
	ScopeProfile     Scope = "profile"
	ScopeWorkspace   Scope = "workspace"
	ScopeApplication Scope = "application"
)

// Target describes where a value should sync to.
type Target string

const (
	TargetUser    Target = "user"
	TargetMachine Target = "machine"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// Item is one value to write.
type Item struct {
	Key    string
	Value  string
	Scope  Scope
	Target Target
}

// Store is durable scoped key/value storage.
type Store interface {
	// Get returns the value for key. ok is false when the key was never set.
	Get(ctx context.Context, key string, scope Scope) (value string, ok bool, err error)

	// Set writes one value.
	Set(ctx context.Context, key, value string, scope Scope, target Target) error

	// SetMany writes all items or none of them.
	SetMany(ctx context.Context, items []Item) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string, scope Scope) error

	Close() error
}

func validScope(scope Scope) error {
	switch scope {
	case ScopeProfile, ScopeWorkspace, ScopeApplication:
		return nil
	default:
		return fmt.Errorf("storage: unknown scope %q", scope)
	}
}

func validateItems(items []Item) error {
	for _, it := range items {
		if it.Key == "" {
			return errors.New("storage: empty key")
		}
		if err := validScope(it.Scope); err != nil {
			return err
		}
	}
	return nil
}
