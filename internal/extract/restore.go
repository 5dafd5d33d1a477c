package extract

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/prompt"
)

// Proposal is a model-suggested source substring for one claim
type Proposal struct {
	Claim int // index into the decomposed claim list
	Text  string
}

// Span is a corrected location of a claim in the document. Start and End
// are byte offsets, End exclusive, and Text == doc[Start:End].
type Span struct {
	Claim int
	Start int
	End   int
	Text  string
}

// RestoreSpans locates proposals in doc and corrects them into a contiguous
// run of spans: each span starts where the previous one ended (the first at
// 0). Overlaps are clamped, gaps are absorbed, and a proposal lying wholly
// inside text already consumed collapses to an empty span. Proposals not
// found in doc are dropped. clean is false when anything had to change.
func RestoreSpans(doc string, proposals []Proposal) (spans []Span, clean bool) {
	spans, adjusted := restoreSpans(doc, proposals)
	return spans, adjusted == 0
}

// restoreSpans returns the spans and the number of corrections made
func restoreSpans(doc string, proposals []Proposal) ([]Span, int) {
	adjusted := 0

	located := make([]Span, 0, len(proposals))
	from := 0
	for _, p := range proposals {
		if p.Text == "" {
			adjusted++
			continue
		}
		start := -1
		if i := strings.Index(doc[from:], p.Text); i >= 0 {
			start = from + i
		} else if i := strings.Index(doc, p.Text); i >= 0 {
			start = i
		}
		if start < 0 {
			adjusted++
			continue
		}
		located = append(located, Span{Claim: p.Claim, Start: start, End: start + len(p.Text)})
		from = start
	}

	cursor := 0
	for i := range located {
		s := &located[i]
		switch {
		case s.Start < cursor && s.End > cursor:
			s.Start = cursor
			adjusted++
		case s.Start < cursor:
			// wholly inside consumed text
			s.Start, s.End = cursor, cursor
			adjusted++
		case s.Start > cursor:
			s.Start = cursor
			adjusted++
		}
		s.Text = doc[s.Start:s.End]
		cursor = s.End
	}

	return located, adjusted
}

// Restorer asks a model to map claims back to the document and corrects the
// answer with RestoreSpans, retrying with a new seed until an attempt is clean.
type Restorer struct {
	client  llm.Client
	retries int
}

// NewRestorer creates a restorer
func NewRestorer(client llm.Client, retries int) *Restorer {
	if retries < 1 {
		retries = 1
	}
	return &Restorer{client: client, retries: retries}
}

type restoreAttempt struct {
	spans    []Span
	adjusted int
}

func (a *restoreAttempt) betterThan(b *restoreAttempt) bool {
	if b == nil {
		return true
	}
	if len(a.spans) != len(b.spans) {
		return len(a.spans) > len(b.spans)
	}
	return a.adjusted < b.adjusted
}

// Restore returns spans ordered by claim index. Claims the model never
// mapped have no span. clean is true only for an attempt that mapped every
// claim without corrections; otherwise the best attempt seen is returned.
func (r *Restorer) Restore(ctx context.Context, doc string, claims []string) (spans []Span, clean bool) {
	if len(claims) == 0 || r.client == nil {
		return nil, len(claims) == 0
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompt.System},
		{Role: llm.RoleUser, Content: prompt.Restore(doc, claims)},
	}

	var best *restoreAttempt
	for attempt := 0; attempt < r.retries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		text, err := r.client.Call(llm.WithSeed(ctx, baseSeed+attempt), messages)
		if err != nil {
			slog.Warn("restore call failed", "attempt", attempt+1, "error", err)
			continue
		}
		pairs, err := llm.ObjectPairs(text)
		if err != nil {
			slog.Warn("restore output unparsable", "attempt", attempt+1, "error", err)
			continue
		}

		proposals := MatchProposals(claims, pairs)
		s, adjusted := restoreSpans(doc, proposals)
		adjusted += len(claims) - len(proposals)

		current := &restoreAttempt{spans: s, adjusted: adjusted}
		if current.betterThan(best) {
			best = current
		}
		if adjusted == 0 && len(s) == len(claims) {
			return s, true
		}
		slog.Debug("restore attempt not clean", "attempt", attempt+1, "mapped", len(s), "corrections", adjusted)
	}

	if best == nil {
		return nil, false
	}
	return best.spans, false
}

// MatchProposals ties each entry of a claim-to-substring answer to a claim
// index: by exact key first, then by position when the answer has one entry
// per claim. Entries matching no claim are dropped. The result is ordered by
// claim index.
func MatchProposals(claims []string, pairs []llm.Pair) []Proposal {
	index := make(map[string][]int, len(claims))
	for i, c := range claims {
		key := strings.TrimSpace(c)
		index[key] = append(index[key], i)
	}

	used := make([]bool, len(claims))
	positional := len(pairs) == len(claims)
	proposals := make([]Proposal, 0, len(pairs))

	for j, pair := range pairs {
		if pair.Value.Type != gjson.String {
			continue
		}
		claim := -1
		for _, i := range index[strings.TrimSpace(pair.Key)] {
			if !used[i] {
				claim = i
				break
			}
		}
		if claim < 0 && positional && !used[j] {
			claim = j
		}
		if claim < 0 {
			continue
		}
		used[claim] = true
		proposals = append(proposals, Proposal{Claim: claim, Text: pair.Value.String()})
	}

	sort.SliceStable(proposals, func(a, b int) bool {
		return proposals[a].Claim < proposals[b].Claim
	})
	return proposals
}
