// Package assess decides which claims are worth checking and what to search
// for to check them.
package assess

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/prompt"
)

// DefaultReason is recorded when the model gave no verdict for a claim
const DefaultReason = "No reason provided"

const baseSeed = 42

// Verdict is the checkworthiness decision for one claim
type Verdict struct {
	Checkworthy bool
	Reason      string
}

// CheckworthyFilter asks a model whether each claim is an objectively
// verifiable statement. Claims without a usable verdict stay checkworthy.
type CheckworthyFilter struct {
	client  llm.Client
	retries int
}

// NewCheckworthyFilter creates a filter
func NewCheckworthyFilter(client llm.Client, retries int) *CheckworthyFilter {
	if retries < 1 {
		retries = 1
	}
	return &CheckworthyFilter{client: client, retries: retries}
}

// Assess returns one verdict per claim, in claim order
func (f *CheckworthyFilter) Assess(ctx context.Context, claims []string) []Verdict {
	verdicts := make([]Verdict, len(claims))
	for i := range verdicts {
		verdicts[i] = Verdict{Checkworthy: true, Reason: DefaultReason}
	}
	if len(claims) == 0 || f.client == nil {
		return verdicts
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompt.System},
		{Role: llm.RoleUser, Content: prompt.Checkworthy(claims)},
	}

	var best map[int]Verdict
	for attempt := 0; attempt < f.retries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		text, err := f.client.Call(llm.WithSeed(ctx, baseSeed+attempt), messages)
		if err != nil {
			slog.Warn("checkworthy call failed", "attempt", attempt+1, "error", err)
			continue
		}
		pairs, err := llm.ObjectPairs(text)
		if err != nil {
			slog.Warn("checkworthy output unparsable", "attempt", attempt+1, "error", err)
			continue
		}

		parsed := make(map[int]Verdict)
		for _, p := range extract.MatchProposals(claims, pairs) {
			if v, ok := ParseVerdict(p.Text); ok {
				parsed[p.Claim] = v
			}
		}
		if len(parsed) > len(best) {
			best = parsed
		}
		if len(parsed) == len(claims) {
			break
		}
	}

	for i, v := range best {
		verdicts[i] = v
	}
	return verdicts
}

// ParseVerdict reads answers such as "Yes (states a date.)" or "no - opinion".
// ok is false when the answer starts with neither yes nor no.
func ParseVerdict(answer string) (Verdict, bool) {
	answer = strings.TrimSpace(answer)
	lower := strings.ToLower(answer)

	var v Verdict
	switch {
	case strings.HasPrefix(lower, "yes"):
		v.Checkworthy = true
	case strings.HasPrefix(lower, "no"):
		v.Checkworthy = false
	default:
		return Verdict{}, false
	}
	v.Reason = answer
	return v, true
}
