package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// SchemaKindLRU marks a snapshot whose entries are stored in recency order.
const SchemaKindLRU = "lru"

// Entry is one remembered id and its usage counter.
type Entry struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// Snapshot is the serialized form of a Cache.
type Snapshot struct {
	SchemaKind string `json:"schemaKind,omitempty"`
	// UsesLRU is the flag older writers used instead of SchemaKind.
	UsesLRU bool    `json:"usesLRU,omitempty"`
	Entries []Entry `json:"entries"`
}

// Legacy reports whether the entries lack a trustworthy order.
func (s Snapshot) Legacy() bool {
	return s.SchemaKind != SchemaKindLRU && !s.UsesLRU
}

// replayOrder returns entries in the order they must be inserted so the
// most recent one ends up last. Legacy snapshots were written in arbitrary
// order and are sorted by counter value.
func (s Snapshot) replayOrder() []Entry {
	if !s.Legacy() {
		return s.Entries
	}
	sorted := slices.Clone(s.Entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		default:
			return 0
		}
	})
	return sorted
}

// Marshal encodes the snapshot as JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	if s.Entries == nil {
		s.Entries = []Entry{}
	}
	return json.Marshal(s)
}

// ParseSnapshot decodes a snapshot. It accepts the current object form, the
// legacy object form without schemaKind, and a bare array of entries. Empty
// input is an empty snapshot.
func ParseSnapshot(data []byte) (Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Snapshot{SchemaKind: SchemaKindLRU}, nil
	}

	if data[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return Snapshot{}, fmt.Errorf("parse history entries: %w", err)
		}
		return Snapshot{Entries: entries}, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse history snapshot: %w", err)
	}
	if snap.SchemaKind != "" && snap.SchemaKind != SchemaKindLRU {
		return Snapshot{}, fmt.Errorf("unknown history schema %q", snap.SchemaKind)
	}
	return snap, nil
}
