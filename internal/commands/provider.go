package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/runger/palette/internal/quickaccess"
	"github.com/runger/palette/internal/relevance"
)

// Defaults for the related lookup.
const (
	DefaultRelatedDebounce    = 200 * time.Millisecond
	DefaultRelatedMaxPicks    = 5
	DefaultRelatedSparseBelow = 5
)

// ConfigureKeybindingTooltip is the tooltip of the per-item button.
const ConfigureKeybindingTooltip = "Configure Keybinding"

// NoMatchLabel is shown when a filter matches no command.
const NoMatchLabel = "No matching commands"

// Options configures a Provider. Commands and Executor are required.
type Options struct {
	Commands    Registry
	Executor    Executor
	History     History
	Keybindings Keybindings
	Configurer  KeybindingConfigurer
	Notifier    Notifier
	Related     Related
	Scorer      relevance.Scorer
	Settings    Settings

	// Precondition decides whether a command with a "when" clause is
	// offered. EvalPrecondition is used when nil.
	Precondition PreconditionFunc

	DeveloperCategory  string
	MergeDelay         time.Duration
	RelatedDebounce    time.Duration
	RelatedMaxPicks    int
	RelatedSparseBelow int

	Logger *slog.Logger
}

// Provider is the commands palette. It implements quickaccess.Provider.
type Provider struct {
	opts   Options
	ranker *Ranker
	logger *slog.Logger
}

var _ quickaccess.Provider = (*Provider)(nil)

// NewProvider returns a commands palette over opts.
func NewProvider(opts Options) (*Provider, error) {
	if opts.Commands == nil {
		return nil, errors.New("commands: nil registry")
	}
	if opts.Executor == nil {
		return nil, errors.New("commands: nil executor")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Precondition == nil {
		opts.Precondition = EvalPrecondition
	}
	if opts.RelatedMaxPicks <= 0 {
		opts.RelatedMaxPicks = DefaultRelatedMaxPicks
	}
	if opts.RelatedSparseBelow <= 0 {
		opts.RelatedSparseBelow = DefaultRelatedSparseBelow
	}

	return &Provider{
		opts: opts,
		ranker: &Ranker{
			History:           opts.History,
			Scorer:            opts.Scorer,
			Settings:          opts.Settings,
			DeveloperCategory: opts.DeveloperCategory,
			Logger:            opts.Logger,
		},
		logger: opts.Logger,
	}, nil
}

// Descriptor registers the palette under prefix.
func (p *Provider) Descriptor(prefix string) quickaccess.Descriptor {
	return quickaccess.Descriptor{
		Prefix:      prefix,
		Placeholder: "Type the name of a command to run.",
		Description: "Show and Run Commands",
		Provider:    p,
		Options: quickaccess.Options{
			NoResultsPick: func(string) *quickaccess.Item {
				return &quickaccess.Item{Label: NoMatchLabel}
			},
		},
	}
}

// Candidates lists the commands that can currently be offered. It returns
// nothing once ctx is canceled.
func (p *Provider) Candidates(ctx context.Context) []Candidate {
	if ctx.Err() != nil {
		return nil
	}

	cmds := p.opts.Commands.ListCommands()
	out := make([]Candidate, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd.Precondition != "" && !p.opts.Precondition(cmd.Precondition) {
			continue
		}
		c := Candidate{
			ID:       cmd.ID,
			Label:    displayLabel(cmd),
			Alias:    cmd.Alias,
			Category: cmd.Category,
			Detail:   cmd.Description,
			Args:     cmd.Args,
		}
		if p.opts.Keybindings != nil {
			if kb, ok := p.opts.Keybindings.Lookup(cmd.ID); ok {
				c.Keybinding = kb.Chord
			}
		}
		out = append(out, c)
	}
	return out
}

func displayLabel(cmd Command) string {
	label := cmd.Label
	if label == "" {
		label = cmd.ID
	}
	if cmd.Category == "" {
		return label
	}
	return cmd.Category + ": " + label
}

// Rank returns the ranked rows for text without building picker items.
func (p *Provider) Rank(ctx context.Context, text string) []Row {
	return p.ranker.Group(p.ranker.Rank(ctx, p.Candidates(ctx), text))
}

// Picks implements quickaccess.Provider.
func (p *Provider) Picks(ctx context.Context, text string) (quickaccess.Picks, error) {
	candidates := p.Candidates(ctx)
	if ctx.Err() != nil {
		return quickaccess.None(), nil
	}

	matches := p.ranker.Rank(ctx, candidates, text)
	rows := p.ranker.Group(matches)

	items := make([]*quickaccess.Item, 0, len(rows))
	similarShown := false
	for _, row := range rows {
		if row.Match == nil {
			items = append(items, quickaccess.Separator(row.Separator))
			similarShown = similarShown || row.Separator == SectionSimilar
			continue
		}
		items = append(items, p.item(*row.Match, text))
	}
	fast := quickaccess.PickList{Items: items}

	if !p.wantsRelated(text, len(matches)) {
		return quickaccess.StaticPicks{List: fast}, nil
	}

	return quickaccess.FastAndSlowPicks{
		Fast: fast,
		Slow: func(ctx context.Context) (quickaccess.PickList, error) {
			return p.relatedPicks(ctx, text, candidates, matches, similarShown)
		},
		MergeDelay: p.opts.MergeDelay,
	}, nil
}

func (p *Provider) wantsRelated(text string, matched int) bool {
	return p.opts.Related != nil && text != "" && matched < p.opts.RelatedSparseBelow
}

// relatedPicks waits out the debounce, then appends related commands that
// are not already listed.
func (p *Provider) relatedPicks(ctx context.Context, text string, candidates []Candidate, matches []Match, similarShown bool) (quickaccess.PickList, error) {
	if d := p.opts.RelatedDebounce; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return quickaccess.PickList{}, ctx.Err()
		case <-t.C:
		}
	}

	results, err := p.opts.Related.Related(ctx, text, []RelatedKind{RelatedCommand})
	if err != nil {
		return quickaccess.PickList{}, fmt.Errorf("related commands: %w", err)
	}
	if ctx.Err() != nil {
		return quickaccess.PickList{}, ctx.Err()
	}

	slices.SortStableFunc(results, func(a, b RelatedResult) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		default:
			return 0
		}
	})

	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		seen[m.ID] = true
	}

	var items []*quickaccess.Item
	for _, r := range results {
		if len(items) == p.opts.RelatedMaxPicks {
			break
		}
		c, ok := byID[r.TargetID]
		if !ok || seen[r.TargetID] {
			continue
		}
		seen[r.TargetID] = true
		items = append(items, p.item(Match{Candidate: c}, text))
	}

	if len(items) > 0 && !similarShown {
		items = append([]*quickaccess.Item{quickaccess.Separator(SectionSimilar)}, items...)
	}
	return quickaccess.PickList{Items: items}, nil
}

func (p *Provider) item(m Match, text string) *quickaccess.Item {
	it := &quickaccess.Item{
		ID:          m.ID,
		Label:       m.Label,
		Description: m.Description,
		Keybinding:  m.Keybinding,
		Highlights: quickaccess.Highlights{
			Label:  m.LabelHighlights,
			Detail: m.AliasHighlights,
		},
	}
	if p.opts.Settings != nil && p.opts.Settings.ShowAlias() && m.Alias != m.Label {
		it.Detail = m.Alias
	}

	c := m.Candidate
	it.Accept = func(ctx context.Context, _ quickaccess.AcceptEvent) {
		p.accept(ctx, c, text)
	}
	if p.opts.Configurer != nil {
		it.Buttons = []quickaccess.Button{{Icon: "gear", Tooltip: ConfigureKeybindingTooltip}}
		it.Trigger = func(ctx context.Context, _ int) quickaccess.TriggerAction {
			if err := p.opts.Configurer.ConfigureKeybinding(ctx, c.ID); err != nil {
				p.logger.Warn("configure keybinding failed", "id", c.ID, "error", err)
			}
			return quickaccess.ClosePicker
		}
	}
	return it
}

// accept records the use, then runs the command. Failures other than
// cancellation are reported through the notifier.
func (p *Provider) accept(ctx context.Context, c Candidate, text string) {
	if p.opts.History != nil {
		p.opts.History.RecordUse(c.ID)
	}
	p.logger.Info("command executed", "id", c.ID, "filter", text)

	err := p.opts.Executor.Execute(ctx, c.ID, c.Args...)
	if err == nil {
		return
	}
	if IsCanceled(err) {
		p.logger.Debug("command canceled", "id", c.ID)
		return
	}

	p.logger.Error("command failed", "id", c.ID, "filter", text, "error", err)
	if p.opts.Notifier != nil {
		p.opts.Notifier.Error(fmt.Sprintf("Command '%s' resulted in an error", c.Label), err.Error())
	}
}

// Run executes the command bound to id as if it had been picked.
func (p *Provider) Run(ctx context.Context, id string) error {
	for _, c := range p.Candidates(ctx) {
		if c.ID == id {
			p.accept(ctx, c, "")
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, id)
}

// RunChord executes the command bound to chord.
func (p *Provider) RunChord(ctx context.Context, chord string) error {
	if p.opts.Keybindings == nil {
		return fmt.Errorf("no command bound to %s", chord)
	}
	id, ok := p.opts.Keybindings.ResolveEvent(chord)
	if !ok {
		return fmt.Errorf("no command bound to %s", chord)
	}
	return p.Run(ctx, id)
}
