package quickaccess

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Controller follows a picker's input and keeps one session running for the
// provider that owns the current prefix.
type Controller struct {
	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	picker  Picker
	session *Session
}

// NewController returns a controller over registry.
func NewController(registry *Registry, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{registry: registry, logger: logger}
}

// Show attaches picker and runs the provider for its current value.
func (c *Controller) Show(ctx context.Context, picker Picker) error {
	c.mu.Lock()
	old := c.session
	c.ctx = ctx
	c.picker = picker
	c.session = nil
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return c.ValueChanged()
}

// ValueChanged must be called after every change to the picker's value.
// It switches providers when the prefix changes and updates the session.
func (c *Controller) ValueChanged() error {
	c.mu.Lock()
	if c.picker == nil {
		c.mu.Unlock()
		return errors.New("quickaccess: controller not shown")
	}

	desc, ok := c.registry.Lookup(c.picker.Value())
	if !ok {
		old := c.session
		c.session = nil
		c.mu.Unlock()
		if old != nil {
			old.Close()
		}
		c.picker.SetItems(nil)
		return ErrNoProvider
	}

	var old *Session
	if c.session == nil || c.session.Prefix() != desc.Prefix {
		old = c.session
		c.session = NewSession(c.ctx, c.picker, desc, c.logger)
		c.logger.Debug("quick access provider selected", "prefix", desc.Prefix, "session", c.session.ID())
	}
	s := c.session
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return s.Update()
}

// Session returns the active session, or nil.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Accept accepts the highlighted item of the active session.
func (c *Controller) Accept(ev AcceptEvent) bool {
	s := c.Session()
	if s == nil {
		return false
	}
	return s.Accept(ev)
}

// TriggerButton presses a button on item in the active session.
func (c *Controller) TriggerButton(item *Item, index int) TriggerAction {
	s := c.Session()
	if s == nil {
		return NoAction
	}
	return s.TriggerButton(item, index)
}

// Wait blocks until the active session's current cycle settles.
func (c *Controller) Wait(ctx context.Context) error {
	s := c.Session()
	if s == nil {
		return nil
	}
	return s.Wait(ctx)
}

// Close ends the active session and detaches the picker.
func (c *Controller) Close() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.picker = nil
	c.mu.Unlock()

	if s != nil {
		s.Close()
	}
}
