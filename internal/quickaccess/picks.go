package quickaccess

import (
	"context"
	"time"
)

// Picks is what a provider returns for one filter. It is one of NoPicks,
// StaticPicks, PendingPicks or FastAndSlowPicks.
type Picks interface {
	isPicks()
}

// NoPicks leaves the current list untouched.
type NoPicks struct{}

// StaticPicks are applied immediately.
type StaticPicks struct {
	List PickList
}

// PendingPicks resolve later. The result may itself be NoPicks,
// StaticPicks or FastAndSlowPicks.
type PendingPicks struct {
	Resolve func(ctx context.Context) (Picks, error)
}

// FastAndSlowPicks show Fast right away (or after MergeDelay) and append the
// result of Slow once it arrives.
type FastAndSlowPicks struct {
	Fast PickList
	Slow func(ctx context.Context) (PickList, error)

	// MergeDelay holds Fast back so that a quick Slow result can be shown
	// together with it in one update. Zero shows Fast immediately.
	MergeDelay time.Duration
}

func (NoPicks) isPicks()          {}
func (StaticPicks) isPicks()      {}
func (PendingPicks) isPicks()     {}
func (FastAndSlowPicks) isPicks() {}

// None returns NoPicks.
func None() Picks { return NoPicks{} }

// Static returns the items as StaticPicks.
func Static(items ...*Item) Picks {
	return StaticPicks{List: PickList{Items: items}}
}

// StaticWithActive returns StaticPicks that highlight active.
func StaticWithActive(items []*Item, active *Item) Picks {
	return StaticPicks{List: PickList{Items: items, Active: active}}
}

// Pending wraps an asynchronous producer.
func Pending(resolve func(ctx context.Context) (Picks, error)) Picks {
	return PendingPicks{Resolve: resolve}
}
