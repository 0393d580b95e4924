package commands

import (
	"context"
	"slices"

	"github.com/runger/palette/internal/relevance"
)

// ScorerRelated finds related commands by scoring the query against each
// command's label, alias and description.
type ScorerRelated struct {
	Commands Registry
	Scorer   relevance.Scorer
}

var _ Related = (*ScorerRelated)(nil)

// Related implements Related. Weights are normalized so the best hit
// weighs 1.
func (s *ScorerRelated) Related(ctx context.Context, text string, kinds []RelatedKind) ([]RelatedResult, error) {
	if !slices.Contains(kinds, RelatedCommand) {
		return nil, nil
	}

	cmds := s.Commands.ListCommands()
	docs := make([]relevance.Document, 0, len(cmds))
	for _, c := range cmds {
		chunks := []string{displayLabel(c)}
		if c.Alias != "" {
			chunks = append(chunks, c.Alias)
		}
		if c.Description != "" {
			chunks = append(chunks, c.Description)
		}
		docs = append(docs, relevance.Document{Key: c.ID, Chunks: chunks})
	}

	scores, err := s.Scorer.Score(ctx, docs, text)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(scores))
	var out []RelatedResult
	for _, sc := range relevance.Normalize(scores) {
		if seen[sc.Key] {
			continue
		}
		seen[sc.Key] = true
		out = append(out, RelatedResult{TargetID: sc.Key, Weight: sc.Score})
	}
	return out, nil
}
