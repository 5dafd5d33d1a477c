package assess

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/prompt"
)

// QueryGenerator produces search queries for every claim in one model
// request. The claim itself is always the first query.
type QueryGenerator struct {
	client      llm.Client
	retries     int
	maxPerClaim int
}

// NewQueryGenerator creates a generator that returns at most maxPerClaim
// queries per claim
func NewQueryGenerator(client llm.Client, retries, maxPerClaim int) *QueryGenerator {
	if retries < 1 {
		retries = 1
	}
	if maxPerClaim < 1 {
		maxPerClaim = 5
	}
	return &QueryGenerator{client: client, retries: retries, maxPerClaim: maxPerClaim}
}

// Generate returns queries per claim, in claim order
func (g *QueryGenerator) Generate(ctx context.Context, claims []string) [][]string {
	generated := make(map[int][]string, len(claims))

	if len(claims) > 0 && g.client != nil {
		messages := []llm.Message{
			{Role: llm.RoleSystem, Content: prompt.System},
			{Role: llm.RoleUser, Content: prompt.Queries(claims, g.maxPerClaim-1)},
		}

		for attempt := 0; attempt < g.retries && len(generated) < len(claims); attempt++ {
			if ctx.Err() != nil {
				break
			}
			text, err := g.client.Call(llm.WithSeed(ctx, baseSeed+attempt), messages)
			if err != nil {
				slog.Warn("query generation call failed", "attempt", attempt+1, "error", err)
				continue
			}
			pairs, err := llm.ObjectPairs(text)
			if err != nil {
				slog.Warn("query generation output unparsable", "attempt", attempt+1, "error", err)
				continue
			}

			for _, p := range pairs {
				i := claimIndex(p.Key, claims)
				if i < 0 {
					continue
				}
				if _, done := generated[i]; done {
					continue
				}
				if qs := stringList(p.Value); len(qs) > 0 {
					generated[i] = qs
				}
			}
		}
	}

	out := make([][]string, len(claims))
	for i, claim := range claims {
		out[i] = buildQueries(claim, generated[i], g.maxPerClaim)
	}
	return out
}

// claimIndex resolves a "claim_N" label or an exact claim text
func claimIndex(key string, claims []string) int {
	key = strings.TrimSpace(key)
	if n, ok := strings.CutPrefix(key, "claim_"); ok {
		if i, err := strconv.Atoi(n); err == nil && i >= 1 && i <= len(claims) {
			return i - 1
		}
	}
	for i, c := range claims {
		if strings.TrimSpace(c) == key {
			return i
		}
	}
	return -1
}

func stringList(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, item := range v.Array() {
		if item.Type == gjson.String {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func buildQueries(claim string, generated []string, max int) []string {
	queries := []string{claim}
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(claim)): true}
	for _, q := range generated {
		if len(queries) >= max {
			break
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, q)
	}
	return queries
}
