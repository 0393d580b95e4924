package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/runger/palette/internal/commands"
	"github.com/runger/palette/internal/config"
	"github.com/runger/palette/internal/history"
	"github.com/runger/palette/internal/logging"
	"github.com/runger/palette/internal/quickaccess"
	"github.com/runger/palette/internal/relevance"
	"github.com/runger/palette/internal/storage"
)

// shutdownTimeout bounds the final history flush.
const shutdownTimeout = 5 * time.Second

// appOptions controls where an app writes.
type appOptions struct {
	Stdout     io.Writer
	Stderr     io.Writer
	Configurer commands.KeybindingConfigurer
	// Watch reloads the configuration while the app runs.
	Watch bool
}

// app holds everything a subcommand needs, wired from the configuration.
type app struct {
	paths     *config.Paths
	live      *config.Live
	logger    *slog.Logger
	store     storage.Store
	storePath string
	lifecycle *storage.Lifecycle
	persister *history.Persister
	catalog   *commands.Catalog
	keymap    *commands.Keymap
	provider  *commands.Provider
	registry  *quickaccess.Registry
	cancel    context.CancelFunc
	closers   []func() error
	done      bool
}

// configPath returns --config or the default config file.
func configPath(paths *config.Paths) string {
	if cfgFile != "" {
		return cfgFile
	}
	return paths.ConfigFile()
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	paths := config.DefaultPaths()
	path := configPath(paths)
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, logCloser, err := logging.Open(cfg.Log.Level, cfg.Log.File, opts.Stderr)
	if err != nil {
		return nil, err
	}

	a := &app{
		paths:     paths,
		logger:    logger,
		live:      config.NewLive(cfg, path, logger),
		lifecycle: storage.NewLifecycle(),
		closers:   []func() error{logCloser.Close},
	}
	if err := a.wire(ctx, cfg, opts); err != nil {
		a.close()
		return nil, err
	}

	logging.LogStartup(logger, logging.StartupInfo{
		Version:        Version,
		GitCommit:      GitCommit,
		ConfigPath:     path,
		StorageBackend: cfg.Storage.Backend,
		StoragePath:    a.storePath,
		Commands:       len(a.catalog.ListCommands()),
		HistoryEntries: a.persister.Cache().Len(),
	})
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg *config.Config, opts appOptions) error {
	store, storePath, err := openStore(cfg.Storage, a.paths)
	if err != nil {
		return err
	}
	a.store, a.storePath = store, storePath
	a.push(store.Close)

	a.persister, err = history.Open(ctx, history.Options{
		Store:     store,
		Lifecycle: a.lifecycle,
		Capacity:  a.live,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	a.push(func() error { a.persister.Close(); return nil })

	unsubscribe := a.live.Subscribe(func(*config.Config) {
		a.persister.Reconfigure()
		logging.LogConfigReload(a.logger, a.live.Path())
	})
	a.push(func() error { unsubscribe(); return nil })

	if opts.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		if err := a.live.Watch(watchCtx); err != nil {
			a.logger.Warn("config watch unavailable", "error", err)
		}
	}

	catalogPath := cfg.Palette.CommandsFile
	if catalogPath == "" {
		catalogPath = a.paths.CommandsFile()
	}
	a.catalog, err = commands.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}

	scorer, closeScorer := newScorer(cfg.Palette.FallbackScorer)
	a.push(closeScorer)

	executor, err := commands.NewShellExecutor(commands.ShellConfig{
		Commands: a.catalog,
		Stdout:   opts.Stdout,
		Stderr:   opts.Stderr,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}

	a.keymap = commands.NewKeymap(a.live)
	providerOpts := commands.Options{
		Commands:           a.catalog,
		Executor:           executor,
		History:            a.persister.Cache(),
		Keybindings:        a.keymap,
		Configurer:         opts.Configurer,
		Notifier:           commands.NewWriterNotifier(opts.Stderr),
		Scorer:             scorer,
		Settings:           a.live,
		DeveloperCategory:  cfg.Palette.DeveloperCategory,
		MergeDelay:         cfg.Palette.MergeDelay(),
		RelatedDebounce:    cfg.Palette.RelatedDebounce(),
		RelatedMaxPicks:    cfg.Palette.RelatedMaxPicks,
		RelatedSparseBelow: cfg.Palette.RelatedSparseBelow,
		Logger:             a.logger,
	}
	if cfg.Palette.RelatedEnabled {
		providerOpts.Related = &commands.ScorerRelated{Commands: a.catalog, Scorer: scorer}
	}
	a.provider, err = commands.NewProvider(providerOpts)
	if err != nil {
		return err
	}

	a.registry = quickaccess.NewRegistry()
	if _, err := a.registry.Register(a.provider.Descriptor("")); err != nil {
		return err
	}
	return nil
}

func (a *app) push(fn func() error) {
	a.closers = append(a.closers, fn)
}

// shutdown fires the final checkpoint and releases everything, last opened
// first.
func (a *app) shutdown(ctx context.Context) error {
	if a.done {
		return nil
	}
	a.done = true

	logging.LogShutdown(a.logger, "exit")
	err := a.lifecycle.Shutdown(ctx)
	if err != nil {
		logging.LogStorageError(a.logger, "flush history", err)
	}
	return errors.Join(err, a.close())
}

func (a *app) close() error {
	if a.cancel != nil {
		a.cancel()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore opens the configured backend. The returned path is empty for
// the memory backend.
func openStore(cfg config.StorageConfig, paths *config.Paths) (storage.Store, string, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStore(), "", nil
	case "file":
		path := cfg.Path
		if path == "" {
			path = paths.StateFile()
		}
		s, err := storage.NewFileStore(path)
		if err != nil {
			return nil, "", fmt.Errorf("open state file: %w", err)
		}
		return s, path, nil
	default:
		path := cfg.Path
		if path == "" {
			path = paths.DatabaseFile()
		}
		s, err := storage.NewSQLiteStore(path)
		if err != nil {
			return nil, "", fmt.Errorf("open state database: %w", err)
		}
		return s, path, nil
	}
}

// newScorer returns the fallback scorer named by the configuration.
func newScorer(name string) (relevance.Scorer, func() error) {
	if name == "bleve" {
		b := relevance.NewBleve()
		return b, b.Close
	}
	return relevance.TFIDF{}, func() error { return nil }
}
