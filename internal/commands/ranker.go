package commands

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/runger/palette/internal/filter"
	"github.com/runger/palette/internal/relevance"
)

// Section labels inserted between groups of ranked commands.
const (
	SectionRecent    = "recently used"
	SectionSimilar   = "similar commands"
	SectionSuggested = "commonly used"
	SectionOther     = "other commands"
)

const (
	// fallbackMinRunes is the shortest filter the relevance scorer is
	// consulted for.
	fallbackMinRunes = 3
	// fallbackThreshold is the normalized score a fallback match must beat.
	fallbackThreshold = 0.5
	// fallbackMaxResults caps how many fallback matches are kept.
	fallbackMaxResults = 5
)

// DefaultDeveloperCategory is the category ranked after all others.
const DefaultDeveloperCategory = "Developer"

// Candidate is a command as offered to the ranker.
type Candidate struct {
	ID         string
	Label      string // display label, category included
	Alias      string
	Category   string
	Detail     string // long description
	Keybinding string
	Args       []string
}

// Match is a candidate that survived filtering.
type Match struct {
	Candidate

	LabelHighlights []filter.Span
	AliasHighlights []filter.Span

	// Description disambiguates matches that share a label.
	Description string

	// Score is set only for matches found by the relevance fallback.
	Score  float64
	Scored bool
}

// Row is either a section separator or a match.
type Row struct {
	Separator string
	Match     *Match
}

// Ranker filters and orders candidates.
type Ranker struct {
	History           History          // optional
	Scorer            relevance.Scorer // optional; no fallback when nil
	Settings          Settings         // optional
	DeveloperCategory string
	Logger            *slog.Logger
}

func (r *Ranker) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Ranker) peek(id string) (int64, bool) {
	if r.History == nil {
		return 0, false
	}
	return r.History.Peek(id)
}

func (r *Ranker) suggested() map[string]int {
	if r.Settings == nil {
		return nil
	}
	ids := r.Settings.SuggestedIDs()
	if len(ids) == 0 {
		return nil
	}
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := idx[id]; !dup {
			idx[id] = i
		}
	}
	return idx
}

// Rank returns the candidates matching text, best first. Ranking has no
// side effects.
func (r *Ranker) Rank(ctx context.Context, candidates []Candidate, text string) []Match {
	showAlias := r.Settings != nil && r.Settings.ShowAlias()
	fallback := sync.OnceValue(func() map[string]float64 {
		return r.fallbackScores(ctx, candidates, text)
	})

	var out []Match
	for _, c := range candidates {
		label := filter.Words(text, c.Label)
		var alias []filter.Span
		if c.Alias != "" {
			alias = filter.Words(text, c.Alias)
		}

		switch {
		case label != nil || alias != nil:
			m := Match{Candidate: c, LabelHighlights: label}
			if showAlias {
				m.AliasHighlights = alias
			}
			out = append(out, m)

		case text == c.ID:
			out = append(out, Match{Candidate: c})

		case utf8.RuneCountInString(text) >= fallbackMinRunes:
			if score, ok := fallback()[c.ID]; ok {
				out = append(out, Match{Candidate: c, Score: score, Scored: true})
			}
		}
	}

	disambiguate(out)
	r.sort(out)
	return out
}

// fallbackScores asks the scorer once per evaluation and keeps the top
// normalized scores above the threshold, keyed by command id.
func (r *Ranker) fallbackScores(ctx context.Context, candidates []Candidate, text string) map[string]float64 {
	if r.Scorer == nil {
		return nil
	}

	docs := make([]relevance.Document, 0, len(candidates))
	for _, c := range candidates {
		chunks := []string{c.Label}
		if c.Alias != "" && c.Alias != c.Label {
			chunks = append(chunks, c.Alias)
		}
		docs = append(docs, relevance.Document{Key: c.ID, Chunks: chunks})
	}

	raw, err := r.Scorer.Score(ctx, docs, text)
	if err != nil {
		if ctx.Err() == nil {
			r.logger().Warn("relevance fallback failed", "filter", text, "error", err)
		}
		return nil
	}

	scores := make(map[string]float64)
	kept := 0
	for _, s := range relevance.Normalize(raw) {
		if s.Score <= fallbackThreshold || kept == fallbackMaxResults {
			break
		}
		kept++
		if _, seen := scores[s.Key]; !seen {
			scores[s.Key] = s.Score
		}
	}
	return scores
}

// disambiguate gives matches with the same label their id as description.
func disambiguate(matches []Match) {
	first := make(map[string]int, len(matches))
	for i := range matches {
		j, dup := first[matches[i].Label]
		if !dup {
			first[matches[i].Label] = i
			continue
		}
		matches[i].Description = matches[i].ID
		matches[j].Description = matches[j].ID
	}
}

func (r *Ranker) sort(matches []Match) {
	suggested := r.suggested()
	developer := r.DeveloperCategory
	if developer == "" {
		developer = DefaultDeveloperCategory
	}
	loose := collate.New(language.English, collate.Loose)
	exact := collate.New(language.English)
	byLabel := func(a, b *Match) int {
		if c := loose.CompareString(a.Label, b.Label); c != 0 {
			return c
		}
		return exact.CompareString(a.Label, b.Label)
	}

	// Recency is read once so the comparator sees a stable view even if
	// a command is used while sorting.
	used := make(map[string]int64, len(matches))
	for i := range matches {
		if v, ok := r.peek(matches[i].ID); ok {
			used[matches[i].ID] = v
		}
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Scored && b.Scored:
			if a.Score == b.Score {
				return byLabel(&a, &b)
			}
			if a.Score > b.Score {
				return -1
			}
			return 1
		case a.Scored:
			return 1
		case b.Scored:
			return -1
		}

		ua, aUsed := used[a.ID]
		ub, bUsed := used[b.ID]
		switch {
		case aUsed && bUsed:
			if ua > ub {
				return -1
			}
			if ua < ub {
				return 1
			}
		case aUsed:
			return -1
		case bUsed:
			return 1
		}

		if suggested != nil {
			ia, aOK := suggested[a.ID]
			ib, bOK := suggested[b.ID]
			switch {
			case aOK && bOK:
				if ia != ib {
					return ia - ib
				}
			case aOK:
				return -1
			case bOK:
				return 1
			}
		}

		aDev, bDev := a.Category == developer, b.Category == developer
		switch {
		case aDev && !bDev:
			return 1
		case bDev && !aDev:
			return -1
		}

		return byLabel(&a, &b)
	})
}

// Group inserts section separators into ranked matches. Each section
// header appears at most once and only where its group starts.
func (r *Ranker) Group(matches []Match) []Row {
	suggested := r.suggested()

	rows := make([]Row, 0, len(matches)+4)
	addOther := false
	addSimilar := true
	addSuggested := suggested != nil

	for i := range matches {
		m := &matches[i]
		_, used := r.peek(m.ID)
		_, isSuggested := suggested[m.ID]

		if i == 0 && used {
			rows = append(rows, Row{Separator: SectionRecent})
			addOther = true
		}
		if addSimilar && m.Scored {
			rows = append(rows, Row{Separator: SectionSimilar})
			addSimilar = false
		}
		if addSuggested && !m.Scored && !used && isSuggested {
			rows = append(rows, Row{Separator: SectionSuggested})
			addOther = true
			addSuggested = false
		}
		if addOther && !m.Scored && !used && !isSuggested {
			rows = append(rows, Row{Separator: SectionOther})
			addOther = false
		}
		rows = append(rows, Row{Match: m})
	}
	return rows
}
