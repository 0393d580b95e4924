package relevance

import (
	"context"
	"slices"
)

// Document is a scorable unit. A document may have several chunks; each
// chunk is scored on its own.
type Document struct {
	Key    string
	Chunks []string
}

// Score is the relevance of one document chunk.
type Score struct {
	Key   string
	Score float64
}

// Scorer ranks documents against a query. Only positive scores are
// returned, in no particular order. A canceled context yields no scores.
type Scorer interface {
	Score(ctx context.Context, docs []Document, query string) ([]Score, error)
}

// Normalize sorts scores descending and divides each by the highest, so
// the best score becomes 1. The input is not modified.
func Normalize(scores []Score) []Score {
	out := slices.Clone(scores)
	slices.SortStableFunc(out, func(a, b Score) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(out) == 0 {
		return out
	}
	if top := out[0].Score; top > 0 {
		for i := range out {
			out[i].Score /= top
		}
	}
	return out
}
