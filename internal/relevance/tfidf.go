package relevance

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync"
)

var (
	// Words of at least three characters that start with a letter.
	termPattern = regexp.MustCompile(`\b\pL[\pL\d]{2,}\b`)
	camelBreak  = regexp.MustCompile(`([a-z])([A-Z])`)
	threeLetter = regexp.MustCompile(`\pL{3,}`)
)

type termFreq map[string]int

type chunk struct {
	text string
	tf   termFreq
}

// Calculator holds a TF-IDF model over a set of documents. It is safe for
// concurrent use.
type Calculator struct {
	mu          sync.RWMutex
	docs        map[string][]chunk
	occurrences map[string]int // chunks containing each term
	chunkCount  int
}

// NewCalculator returns an empty model.
func NewCalculator() *Calculator {
	return &Calculator{
		docs:        make(map[string][]chunk),
		occurrences: make(map[string]int),
	}
}

// UpdateDocuments adds docs, replacing any documents with the same key.
func (c *Calculator) UpdateDocuments(docs []Document) *Calculator {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range docs {
		c.deleteLocked(d.Key)
		chunks := make([]chunk, 0, len(d.Chunks))
		for _, text := range d.Chunks {
			tf := termFrequencies(text)
			for term := range tf {
				c.occurrences[term]++
			}
			chunks = append(chunks, chunk{text: text, tf: tf})
		}
		c.chunkCount += len(chunks)
		c.docs[d.Key] = chunks
	}
	return c
}

// DeleteDocument removes the document with key.
func (c *Calculator) DeleteDocument(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(key)
}

func (c *Calculator) deleteLocked(key string) {
	chunks, ok := c.docs[key]
	if !ok {
		return
	}
	for _, ch := range chunks {
		for term := range ch.tf {
			if n := c.occurrences[term] - 1; n > 0 {
				c.occurrences[term] = n
			} else {
				delete(c.occurrences, term)
			}
		}
	}
	c.chunkCount -= len(chunks)
	delete(c.docs, key)
}

// CalculateScores scores every chunk against query and returns the positive
// ones. It returns nil if ctx is canceled part way.
func (c *Calculator) CalculateScores(ctx context.Context, query string) []Score {
	c.mu.RLock()
	defer c.mu.RUnlock()

	embedding := c.tfidfLocked(termFrequencies(query))
	idf := make(map[string]float64, len(embedding))

	var scores []Score
	for key, chunks := range c.docs {
		if ctx.Err() != nil {
			return nil
		}
		for _, ch := range chunks {
			if s := c.similarityLocked(ch, embedding, idf); s > 0 {
				scores = append(scores, Score{Key: key, Score: s})
			}
		}
	}
	return scores
}

func (c *Calculator) similarityLocked(ch chunk, query map[string]float64, cache map[string]float64) float64 {
	var sum float64
	for term, queryWeight := range query {
		tf, ok := ch.tf[term]
		if !ok {
			continue
		}
		idf, ok := cache[term]
		if !ok {
			idf = c.idfLocked(term)
			cache[term] = idf
		}
		sum += float64(tf) * idf * queryWeight
	}
	return sum
}

func (c *Calculator) idfLocked(term string) float64 {
	n := c.occurrences[term]
	if n == 0 {
		return 0
	}
	return math.Log(float64(c.chunkCount+1) / float64(n))
}

func (c *Calculator) tfidfLocked(tf termFreq) map[string]float64 {
	out := make(map[string]float64, len(tf))
	for term, n := range tf {
		if idf := c.idfLocked(term); idf > 0 {
			out[term] = float64(n) * idf
		}
	}
	return out
}

func termFrequencies(text string) termFreq {
	tf := make(termFreq)
	for _, term := range splitTerms(text) {
		tf[term]++
	}
	return tf
}

// splitTerms lowercases each word and also emits the parts of camelCase
// words that have at least three letters.
func splitTerms(text string) []string {
	var terms []string
	for _, word := range termPattern.FindAllString(text, -1) {
		terms = append(terms, strings.ToLower(word))

		parts := strings.Fields(camelBreak.ReplaceAllString(word, "${1} ${2}"))
		if len(parts) < 2 {
			continue
		}
		for _, part := range parts {
			if len([]rune(part)) > 2 && threeLetter.MatchString(part) {
				terms = append(terms, strings.ToLower(part))
			}
		}
	}
	return terms
}

// TFIDF is a Scorer that builds a fresh Calculator for every call.
type TFIDF struct{}

var _ Scorer = TFIDF{}

// Score implements Scorer.
func (TFIDF) Score(ctx context.Context, docs []Document, query string) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewCalculator().UpdateDocuments(docs).CalculateScores(ctx, query), ctx.Err()
}
