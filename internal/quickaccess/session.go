package quickaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrClosed is returned by a session after Close.
	ErrClosed = errors.New("quickaccess: session closed")
	// ErrNestedPending is reported when pending picks resolve to more
	// pending picks.
	ErrNestedPending = errors.New("quickaccess: pending picks resolved to pending picks")
)

// Session applies one provider's picks to a picker, one input change at a
// time. Each Update starts a new cycle and cancels the previous one; work
// belonging to an old cycle never touches the picker.
type Session struct {
	id     string
	picker Picker
	desc   Descriptor
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	seq     uint64
	current *cycle

	wg sync.WaitGroup // background branches of all cycles
}

// cycle is the work started by one Update.
type cycle struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
	filter string

	// guarded by Session.mu
	fastApplied bool
	slowApplied bool

	done     chan struct{}
	doneOnce sync.Once
}

func (c *cycle) settle() {
	c.doneOnce.Do(func() { close(c.done) })
}

// NewSession starts a session for desc. Canceling ctx is equivalent to
// calling Close, except that Close also waits for background work.
func NewSession(ctx context.Context, picker Picker, desc Descriptor, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	sctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	return &Session{
		id:     id,
		picker: picker,
		desc:   desc,
		logger: logger.With("session", id, "prefix", desc.Prefix),
		ctx:    sctx,
		cancel: cancel,
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Prefix returns the prefix of the provider this session runs.
func (s *Session) Prefix() string { return s.desc.Prefix }

// live reports whether c may still change the picker. Callers hold s.mu.
func (s *Session) live(c *cycle) bool {
	return s.current == c && c.ctx.Err() == nil
}

func (s *Session) filterFor(value string) string {
	f := strings.TrimPrefix(value, s.desc.Prefix)
	if !s.desc.Options.SkipTrimFilter {
		f = strings.TrimSpace(f)
	}
	return f
}

// Update starts a new cycle for the picker's current value. Synchronous
// results are applied before Update returns; asynchronous ones are applied
// later unless another Update or Close happens first. The returned error is
// the provider's synchronous failure, if any.
func (s *Session) Update() error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.current != nil {
		s.current.cancel()
	}
	s.picker.SetBusy(false)

	s.seq++
	ctx, cancel := context.WithCancel(s.ctx)
	c := &cycle{
		id:     s.seq,
		ctx:    ctx,
		cancel: cancel,
		filter: s.filterFor(s.picker.Value()),
		done:   make(chan struct{}),
	}
	s.current = c
	s.mu.Unlock()

	picks, err := s.desc.Provider.Picks(ctx, c.filter)
	if err != nil {
		defer c.settle()
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil
		}
		s.fail(c, err)
		return fmt.Errorf("quick access %q: %w", s.desc.Prefix, err)
	}

	s.dispatch(c, picks)
	return nil
}

// dispatch applies picks for c. It settles c once nothing more will be
// applied.
func (s *Session) dispatch(c *cycle, picks Picks) {
	switch p := picks.(type) {
	case nil, NoPicks:
		c.settle()

	case StaticPicks:
		s.mu.Lock()
		if s.live(c) {
			s.applyLocked(c, p.List, false)
		}
		s.mu.Unlock()
		c.settle()

	case PendingPicks:
		s.mu.Lock()
		if !s.live(c) {
			s.mu.Unlock()
			c.settle()
			return
		}
		s.picker.SetBusy(true)
		// Add under mu so a concurrent Close waits for this branch.
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.awaitPending(c, p)
		}()

	case FastAndSlowPicks:
		s.applyFastAndSlow(c, p)

	default:
		panic(fmt.Sprintf("quickaccess: unknown picks type %T", picks))
	}
}

func (s *Session) awaitPending(c *cycle, p PendingPicks) {
	res, err := p.Resolve(c.ctx)

	s.mu.Lock()
	if !s.live(c) {
		s.mu.Unlock()
		c.settle()
		return
	}
	s.picker.SetBusy(false)
	s.mu.Unlock()

	if err == nil {
		if _, nested := res.(PendingPicks); nested {
			err = ErrNestedPending
		}
	}
	if err != nil {
		s.fail(c, err)
		c.settle()
		return
	}
	s.dispatch(c, res)
}

// applyFastAndSlow shows the fast picks now or after the merge delay, and
// replaces them with fast+slow once the slow picks arrive. Fast results are
// not shown if the slow ones were already applied.
func (s *Session) applyFastAndSlow(c *cycle, p FastAndSlowPicks) {
	if p.MergeDelay <= 0 {
		s.applyFast(c, p.Fast)
	}

	s.mu.Lock()
	if !s.live(c) {
		s.mu.Unlock()
		c.settle()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer c.settle()

		slowApplied := make(chan struct{})
		var g errgroup.Group
		if p.MergeDelay > 0 {
			g.Go(func() error {
				t := time.NewTimer(p.MergeDelay)
				defer t.Stop()
				select {
				case <-c.ctx.Done():
					return nil
				case <-slowApplied:
					return nil
				case <-t.C:
				}
				s.applyFast(c, p.Fast)
				return nil
			})
		}
		g.Go(func() error {
			applied, err := s.applySlow(c, p)
			if applied {
				close(slowApplied)
			}
			return err
		})

		if err := g.Wait(); err != nil {
			s.logger.Warn("additional picks failed", "filter", c.filter, "cycle", c.id, "error", err)
		}
	}()
}

func (s *Session) applyFast(c *cycle, fast PickList) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.live(c) || c.slowApplied {
		return
	}
	c.fastApplied = s.applyLocked(c, fast, true)
}

func (s *Session) applySlow(c *cycle, p FastAndSlowPicks) (bool, error) {
	s.mu.Lock()
	if !s.live(c) {
		s.mu.Unlock()
		return false, nil
	}
	s.picker.SetBusy(true)
	s.mu.Unlock()

	var extra PickList
	var err error
	if p.Slow != nil {
		extra, err = p.Slow(c.ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.live(c) {
		return false, nil
	}
	defer s.picker.SetBusy(false)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, nil
		}
		return false, err
	}

	if len(extra.Items) == 0 && c.fastApplied {
		return false, nil
	}

	active := p.Fast.Active
	if active == nil {
		active = extra.Active
	}
	if active == nil {
		active = s.currentActiveIn(p.Fast.Items)
	}

	items := make([]*Item, 0, len(p.Fast.Items)+len(extra.Items))
	items = append(items, p.Fast.Items...)
	items = append(items, extra.Items...)
	s.applyLocked(c, PickList{Items: items, Active: active}, false)
	c.slowApplied = true
	return true, nil
}

// currentActiveIn returns the picker's highlighted item if it is one of
// items, so a highlight the user moved to survives the slow merge.
func (s *Session) currentActiveIn(items []*Item) *Item {
	active := s.picker.ActiveItems()
	if len(active) == 0 || active[0] == nil {
		return nil
	}
	cur := active[0]
	for _, it := range items {
		if it == cur || (cur.ID != "" && it.ID == cur.ID && !it.IsSeparator()) {
			return it
		}
	}
	return nil
}

// applyLocked sets the picker items. With skipEmpty an empty list is not
// applied and false is returned. Callers hold s.mu and have checked live.
func (s *Session) applyLocked(c *cycle, list PickList, skipEmpty bool) bool {
	items := list.Items
	if len(items) == 0 {
		if skipEmpty {
			return false
		}
		if c.filter != "" && s.desc.Options.NoResultsPick != nil {
			if it := s.desc.Options.NoResultsPick(c.filter); it != nil {
				items = []*Item{it}
			}
		}
	}

	s.picker.SetItems(items)
	if list.Active != nil {
		s.picker.SetActiveItems([]*Item{list.Active})
	}
	return true
}

// fail clears the list for c after a provider error.
func (s *Session) fail(c *cycle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.live(c) {
		return
	}
	s.logger.Error("quick access provider failed", "filter", c.filter, "cycle", c.id, "error", err)
	s.picker.SetItems(nil)
	s.picker.SetBusy(false)
}

// Accept runs the highlighted item's accept handler. The picker is hidden
// first unless the accept is in the background and the provider allows
// it. It reports whether a handler ran.
func (s *Session) Accept(ev AcceptEvent) bool {
	s.mu.Lock()
	var item *Item
	for _, it := range s.picker.ActiveItems() {
		if it != nil && !it.IsSeparator() {
			item = it
			break
		}
	}
	s.mu.Unlock()

	if item == nil || item.Accept == nil {
		return false
	}
	if ev.InBackground && !s.desc.Options.CanAcceptInBackground {
		ev.InBackground = false
	}
	if !ev.InBackground {
		s.picker.Hide()
	}

	s.logger.Debug("item accepted", "id", item.ID, "background", ev.InBackground)
	item.Accept(context.WithoutCancel(s.ctx), ev)
	return true
}

// TriggerButton runs the item's button handler and carries out the action
// it returns.
func (s *Session) TriggerButton(item *Item, index int) TriggerAction {
	if item == nil || item.Trigger == nil {
		return NoAction
	}
	if index < 0 || index >= len(item.Buttons) {
		return NoAction
	}

	action := item.Trigger(s.ctx, index)
	if s.ctx.Err() != nil {
		return action
	}

	switch action {
	case ClosePicker:
		s.picker.Hide()
	case RefreshPicker:
		if err := s.Update(); err != nil {
			s.logger.Warn("refresh after button failed", "error", err)
		}
	case RemoveItem:
		s.mu.Lock()
		items := s.picker.Items()
		if i := slices.Index(items, item); i >= 0 {
			remaining := slices.DeleteFunc(s.picker.ActiveItems(), func(a *Item) bool { return a == item })
			s.picker.SetItems(slices.Delete(items, i, i+1))
			if len(remaining) > 0 {
				s.picker.SetActiveItems(remaining)
			}
		}
		s.mu.Unlock()
	}
	return action
}

// Wait blocks until the current cycle has applied everything it will
// apply, or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	c := s.current
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels all work and waits for background branches to return.
func (s *Session) Close() {
	s.cancel()

	s.mu.Lock()
	if s.current != nil {
		s.current.cancel()
		s.current.settle()
		s.current = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("quick access session closed")
}
