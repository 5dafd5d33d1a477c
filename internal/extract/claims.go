package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/prompt"
)

// baseSeed is the sampling seed hint of the first attempt; attempt i uses baseSeed+i
const baseSeed = 42

// Decomposer splits a document into atomic claims with a model, falling back
// to sentence splitting when the model never yields a usable list.
type Decomposer struct {
	client  llm.Client
	retries int
	minLen  int
}

// NewDecomposer creates a decomposer. retries is the number of model attempts.
func NewDecomposer(client llm.Client, retries, minSentenceLength int) *Decomposer {
	if retries < 1 {
		retries = 1
	}
	if minSentenceLength < 1 {
		minSentenceLength = 3
	}
	return &Decomposer{
		client:  client,
		retries: retries,
		minLen:  minSentenceLength,
	}
}

// Decompose never fails: it returns model claims, or sentences when every
// attempt failed. fellBack reports the latter.
func (d *Decomposer) Decompose(ctx context.Context, doc string) (claims []string, fellBack bool) {
	if strings.TrimSpace(doc) == "" {
		return nil, false
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompt.System},
		{Role: llm.RoleUser, Content: prompt.Decompose(doc)},
	}

	for attempt := 0; attempt < d.retries && d.client != nil; attempt++ {
		if ctx.Err() != nil {
			break
		}
		text, err := d.client.Call(llm.WithSeed(ctx, baseSeed+attempt), messages)
		if err != nil {
			slog.Warn("decompose call failed", "attempt", attempt+1, "error", err)
			continue
		}

		var out struct {
			Claims []string `json:"claims"`
		}
		if err := llm.DecodeJSON(text, &out); err != nil {
			slog.Warn("decompose output unparsable", "attempt", attempt+1, "error", err)
			continue
		}

		if claims := dedupeClaims(out.Claims); len(claims) > 0 {
			slog.Debug("decomposed document", "claims", len(claims), "attempt", attempt+1)
			return claims, false
		}
	}

	slog.Warn("model did not return claims, falling back to sentence splitting")
	return SplitSentences(doc, d.minLen), true
}

// dedupeClaims trims claims and drops empty and repeated ones
func dedupeClaims(claims []string) []string {
	seen := make(map[string]bool)
	var unique []string

	for _, claim := range claims {
		claim = strings.TrimSpace(claim)
		key := strings.ToLower(claim)
		if claim == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, claim)
	}

	return unique
}
