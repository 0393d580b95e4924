package relevance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

const textField = "text"

// Bleve is a Scorer backed by an in-memory bleve index. The index is cached
// and rebuilt only when the scored documents change. It is safe for
// concurrent use.
type Bleve struct {
	mu          sync.Mutex
	index       bleve.Index
	keys        map[string]string // bleve doc id -> document key
	fingerprint string
}

var _ Scorer = (*Bleve)(nil)

// NewBleve returns a scorer with no index built yet.
func NewBleve() *Bleve {
	return &Bleve{}
}

// Score implements Scorer using BM25 match scoring over each chunk.
func (b *Bleve) Score(ctx context.Context, docs []Document, query string) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" || len(docs) == 0 {
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureIndexLocked(docs); err != nil {
		return nil, err
	}

	q := bleve.NewMatchQuery(query)
	q.SetField(textField)
	req := bleve.NewSearchRequestOptions(q, len(b.keys), 0, false)

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	scores := make([]Score, 0, len(res.Hits))
	for _, hit := range res.Hits {
		key, ok := b.keys[hit.ID]
		if !ok || hit.Score <= 0 {
			continue
		}
		scores = append(scores, Score{Key: key, Score: hit.Score})
	}
	return scores, nil
}

func (b *Bleve) ensureIndexLocked(docs []Document) error {
	fp := fingerprint(docs)
	if b.index != nil && fp == b.fingerprint {
		return nil
	}

	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("create bleve index: %w", err)
	}

	keys := make(map[string]string)
	batch := idx.NewBatch()
	for i, d := range docs {
		for j, text := range d.Chunks {
			id := strconv.Itoa(i) + ":" + strconv.Itoa(j)
			if err := batch.Index(id, map[string]any{textField: text}); err != nil {
				idx.Close()
				return fmt.Errorf("index %s: %w", d.Key, err)
			}
			keys[id] = d.Key
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("build bleve index: %w", err)
	}

	if b.index != nil {
		b.index.Close()
	}
	b.index = idx
	b.keys = keys
	b.fingerprint = fp
	return nil
}

// Close releases the cached index.
func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	b.keys = nil
	b.fingerprint = ""
	return err
}

// fingerprint is a stable hash of the document set.
func fingerprint(docs []Document) string {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(d.Key))
		h.Write([]byte{0})
		for _, c := range d.Chunks {
			h.Write([]byte(c))
			h.Write([]byte{1})
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
