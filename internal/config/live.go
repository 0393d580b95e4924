package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Live is a configuration that can change while the process runs.
// Readers always see the latest successfully loaded values.
type Live struct {
	mu     sync.RWMutex
	cfg    *Config
	path   string
	subs   map[int]func(*Config)
	nextID int
	logger *slog.Logger
}

// NewLive wraps cfg. path is the file Reload and Watch read from and may be
// empty for a configuration that never reloads.
func NewLive(cfg *Config, path string, logger *slog.Logger) *Live {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Live{
		cfg:    cfg,
		path:   path,
		subs:   make(map[int]func(*Config)),
		logger: logger,
	}
}

// Current returns a copy of the current configuration.
func (l *Live) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg.Clone()
}

// Path returns the file backing this configuration.
func (l *Live) Path() string {
	return l.path
}

// HistoryCapacity returns the configured history size.
func (l *Live) HistoryCapacity() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg.History.Capacity
}

// SuggestedIDs returns the curated "commonly used" command ids in order.
func (l *Live) SuggestedIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.cfg.Palette.SuggestedCommands...)
}

// ShowAlias reports whether alias highlights are rendered.
func (l *Live) ShowAlias() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg.Palette.ShowAlias
}

// Keybinding returns the command id bound to key.
func (l *Live) Keybinding(key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.cfg.Keybindings[key]
	return id, ok
}

// Keybindings returns a copy of the key -> command id map.
func (l *Live) Keybindings() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.cfg.Keybindings))
	for k, v := range l.cfg.Keybindings {
		out[k] = v
	}
	return out
}

// Subscribe registers fn to run after every configuration change and
// returns a function that removes it.
func (l *Live) Subscribe(fn func(*Config)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Replace swaps in cfg and notifies subscribers.
func (l *Live) Replace(cfg *Config) {
	l.mu.Lock()
	l.cfg = cfg
	subs := make([]func(*Config), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(cfg.Clone())
	}
}

// Reload re-reads the backing file. On error the previous values stay.
func (l *Live) Reload() error {
	if l.path == "" {
		return nil
	}
	cfg, err := LoadFromFile(l.path)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	l.Replace(cfg)
	return nil
}

// Watch reloads the configuration whenever its file changes until ctx is
// done. The parent directory is watched so editors that replace the file
// by rename are picked up.
func (l *Live) Watch(ctx context.Context) error {
	if l.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go l.watchLoop(ctx, watcher)
	return nil
}

func (l *Live) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	const settle = 50 * time.Millisecond
	var timer *time.Timer
	var fire <-chan time.Time

	target := filepath.Clean(l.path)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := l.Reload(); err != nil {
				l.logger.Warn("config reload failed", "path", l.path, "error", err)
				continue
			}
			l.logger.Debug("config reloaded", "path", l.path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("config watcher error", "error", err)
		}
	}
}
