// Package relevance scores documents against a free-text query.
//
// It backs the "similar commands" fallback of the commands palette: when a
// query matches no label directly, every command is scored and the best
// ones are offered instead.
//
// Two scorers are provided. [TFIDF] is a small term-frequency/inverse
// document frequency calculator with no dependencies. [Bleve] ranks with
// BM25 through an in-memory bleve index that is rebuilt only when the
// document set changes.
//
// Scores are only comparable within one call; [Normalize] rescales them so
// the best score is 1.
package relevance
