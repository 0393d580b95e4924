package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/runger/palette/internal/storage"
)

// Storage keys. The snapshot and the counter are always written together.
const (
	CacheKey   = "palette.mru.cache"
	CounterKey = "palette.mru.counter"
)

// CapacitySource supplies the configured history size.
type CapacitySource interface {
	HistoryCapacity() int
}

// Options configures a Persister.
type Options struct {
	Store     storage.Store
	Lifecycle *storage.Lifecycle // optional; saves on shutdown when set
	Capacity  CapacitySource     // optional; DefaultCapacity when nil
	Logger    *slog.Logger
}

// DefaultCapacity is used when no CapacitySource is configured.
const DefaultCapacity = 50

// Persister owns a Cache and moves it to and from durable storage.
type Persister struct {
	cache    *Cache
	store    storage.Store
	capacity CapacitySource
	logger   *slog.Logger

	mu     sync.Mutex
	remove func()
}

// Open builds a cache from the stored snapshot. A missing or unreadable
// snapshot yields an empty cache; only a nil store is an error.
func Open(ctx context.Context, opts Options) (*Persister, error) {
	if opts.Store == nil {
		return nil, errors.New("history: nil store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Persister{
		store:    opts.Store,
		capacity: opts.Capacity,
		logger:   logger,
	}
	p.cache = NewCache(p.configuredCapacity(), logger)

	raw, _, err := opts.Store.Get(ctx, CacheKey, storage.ScopeProfile)
	if err != nil {
		logger.Warn("command history unavailable", "error", err)
		raw = ""
	}
	var counter int64
	if s, ok, err := opts.Store.Get(ctx, CounterKey, storage.ScopeProfile); err == nil && ok {
		if n, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			counter = n
		} else {
			logger.Warn("ignoring unreadable history counter", "value", s)
		}
	}
	p.cache.Load([]byte(raw), counter)

	if opts.Lifecycle != nil {
		p.remove = opts.Lifecycle.OnWillSaveState(p.onWillSaveState)
	}

	logger.Debug("command history loaded", "entries", p.cache.Len(), "capacity", p.cache.Capacity())
	return p, nil
}

// Cache returns the managed cache.
func (p *Persister) Cache() *Cache {
	return p.cache
}

// Reconfigure re-reads the capacity from the configuration source.
func (p *Persister) Reconfigure() {
	p.cache.SetCapacity(p.configuredCapacity())
}

func (p *Persister) configuredCapacity() int {
	if p.capacity == nil {
		return DefaultCapacity
	}
	return p.capacity.HistoryCapacity()
}

func (p *Persister) onWillSaveState(ctx context.Context, reason storage.SaveReason) error {
	if reason != storage.ReasonShutdown {
		return nil
	}
	return p.Flush(ctx)
}

// Flush writes the cache if it changed since it was loaded or last saved.
func (p *Persister) Flush(ctx context.Context) error {
	snap, counter, ok := p.cache.Save()
	if !ok {
		return nil
	}

	raw, err := snap.Marshal()
	if err != nil {
		p.cache.MarkDirty()
		return fmt.Errorf("encode command history: %w", err)
	}

	err = p.store.SetMany(ctx, []storage.Item{
		{Key: CacheKey, Value: string(raw), Scope: storage.ScopeProfile, Target: storage.TargetUser},
		{Key: CounterKey, Value: strconv.FormatInt(counter, 10), Scope: storage.ScopeProfile, Target: storage.TargetUser},
	})
	if err != nil {
		p.cache.MarkDirty()
		return fmt.Errorf("save command history: %w", err)
	}

	p.logger.Debug("command history saved", "entries", len(snap.Entries), "counter", counter)
	return nil
}

// Close stops listening for checkpoints. It does not save.
func (p *Persister) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remove != nil {
		p.remove()
		p.remove = nil
	}
}
