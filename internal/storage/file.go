package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps all state in one JSON file. Every write replaces the file
// atomically, so a crash leaves either the old or the new state on disk.
type FileStore struct {
	mu     sync.Mutex
	path   string
	data   map[Scope]map[string]fileEntry
	closed bool
}

type fileEntry struct {
	Value  string `json:"value"`
	Target Target `json:"target,omitempty"`
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens the state file at path. A missing file is an empty
// store; an unreadable one is an error.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("storage: empty state file path")
	}

	fs := &FileStore{path: path, data: make(map[Scope]map[string]fileEntry)}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if len(raw) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(raw, &fs.data); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return fs, nil
}

// Get implements Store.
func (f *FileStore) Get(_ context.Context, key string, scope Scope) (string, bool, error) {
	if err := validScope(scope); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", false, ErrClosed
	}
	e, ok := f.data[scope][key]
	return e.Value, ok, nil
}

// Set implements Store.
func (f *FileStore) Set(ctx context.Context, key, value string, scope Scope, target Target) error {
	return f.SetMany(ctx, []Item{{Key: key, Value: value, Scope: scope, Target: target}})
}

// SetMany implements Store. The in-memory state only changes once the file
// has been replaced.
func (f *FileStore) SetMany(ctx context.Context, items []Item) error {
	if err := validateItems(items); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	next := f.copyData()
	for _, it := range items {
		bucket, ok := next[it.Scope]
		if !ok {
			bucket = make(map[string]fileEntry)
			next[it.Scope] = bucket
		}
		bucket[it.Key] = fileEntry{Value: it.Value, Target: it.Target}
	}

	if err := f.flush(next); err != nil {
		return err
	}
	f.data = next
	return nil
}

// Delete implements Store.
func (f *FileStore) Delete(_ context.Context, key string, scope Scope) error {
	if err := validScope(scope); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if _, ok := f.data[scope][key]; !ok {
		return nil
	}

	next := f.copyData()
	delete(next[scope], key)
	if err := f.flush(next); err != nil {
		return err
	}
	f.data = next
	return nil
}

// Close implements Store.
func (f *FileStore) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *FileStore) copyData() map[Scope]map[string]fileEntry {
	out := make(map[Scope]map[string]fileEntry, len(f.data))
	for scope, bucket := range f.data {
		cp := make(map[string]fileEntry, len(bucket))
		for k, v := range bucket {
			cp[k] = v
		}
		out[scope] = cp
	}
	return out
}

func (f *FileStore) flush(data map[Scope]map[string]fileEntry) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return atomicWriteFile(f.path, raw, 0600)
}

// atomicWriteFile writes data to a temp file in the target directory, syncs
// it, and renames it over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	ok = true
	return nil
}
