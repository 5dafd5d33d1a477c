// Package verify judges retrieved evidence against claims with a language
// model, one request per claim.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/prompt"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// NoReasoning is recorded for evidence the model gave no verdict for
const NoReasoning = "No reasoning provided"

var errNoClient = errors.New("no client for resource")

// ClaimEvidence is one claim with the evidence retrieved for it
type ClaimEvidence struct {
	Claim    string
	Evidence []model.Evidence
}

// VerifiedClaim carries the judged evidence of a claim. Evidence beyond the
// batch size is not included and Warning says so.
type VerifiedClaim struct {
	Claim    string
	Evidence []model.Evidence
	Warning  string
}

// Verifier verifies claims. With more than one resource, claims are spread
// over the scheduler's keys; with one, they run strictly in sequence.
type Verifier struct {
	pool      *llm.ClientPool
	scheduler *worker.Scheduler
	batchSize int
	maxChars  int
}

// NewVerifier creates a verifier. scheduler may be nil, in which case the
// first client of pool is used without quota accounting.
func NewVerifier(pool *llm.ClientPool, scheduler *worker.Scheduler, cfg model.VerifyConfig) *Verifier {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.MaxEvidenceChars <= 0 {
		cfg.MaxEvidenceChars = 500
	}
	return &Verifier{
		pool:      pool,
		scheduler: scheduler,
		batchSize: cfg.BatchSize,
		maxChars:  cfg.MaxEvidenceChars,
	}
}

// Verify returns one VerifiedClaim per input, in input order. It never fails:
// a claim whose verification errors gets IRRELEVANT for all its evidence.
func (v *Verifier) Verify(ctx context.Context, items []ClaimEvidence) []VerifiedClaim {
	out := make([]VerifiedClaim, len(items))

	// claims without evidence need no request
	var pending []int
	for i, item := range items {
		if len(item.Evidence) == 0 {
			out[i] = VerifiedClaim{Claim: item.Claim, Evidence: []model.Evidence{}}
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out
	}

	if v.scheduler != nil && v.pool != nil && v.pool.Len() > 1 {
		outcomes := worker.Map(ctx, v.scheduler, pending, func(ctx context.Context, i int, resource string) (VerifiedClaim, error) {
			client, ok := v.pool.Get(resource)
			if !ok {
				return VerifiedClaim{}, fmt.Errorf("%w %s", errNoClient, resource)
			}
			return v.verifyClaim(ctx, client, items[i])
		})
		for n, i := range pending {
			if err := outcomes[n].Err; err != nil {
				out[i] = v.fallback(items[i], err)
				continue
			}
			out[i] = outcomes[n].Value
		}
		return out
	}

	for _, i := range pending {
		out[i] = v.verifySequential(ctx, items[i])
	}
	return out
}

// verifySequential verifies one claim on the single configured client
func (v *Verifier) verifySequential(ctx context.Context, item ClaimEvidence) (result VerifiedClaim) {
	var client llm.Client
	if v.pool != nil {
		if ids := v.pool.IDs(); len(ids) > 0 {
			client, _ = v.pool.Get(ids[0])
		}
	}
	if client == nil {
		return v.fallback(item, errNoClient)
	}

	run := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("%w: %v", worker.ErrTaskPanic, p)
			}
		}()
		result, err = v.verifyClaim(ctx, client, item)
		return err
	}

	var err error
	if v.scheduler != nil {
		err = v.scheduler.Do(ctx, func(string) error { return run() })
	} else {
		err = run()
	}
	if err != nil {
		return v.fallback(item, err)
	}
	return result
}

// verifyClaim sends one request for the claim's first batchSize evidences.
// Transport errors are returned; unusable answers leave the default verdicts.
func (v *Verifier) verifyClaim(ctx context.Context, client llm.Client, item ClaimEvidence) (VerifiedClaim, error) {
	evidence, warning := v.batch(item)

	texts := make([]string, len(evidence))
	for i, ev := range evidence {
		texts[i] = truncateRunes(ev.Text, v.maxChars)
	}

	answer, err := client.Call(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompt.System},
		{Role: llm.RoleUser, Content: prompt.Verify(item.Claim, texts)},
	})
	if err != nil {
		return VerifiedClaim{}, err
	}

	verdicts := ParseVerdicts(answer, len(evidence))
	for i := range evidence {
		evidence[i].Relationship = verdicts[i].Relationship
		evidence[i].Reasoning = verdicts[i].Reasoning
	}
	return VerifiedClaim{Claim: item.Claim, Evidence: evidence, Warning: warning}, nil
}

// batch copies the first batchSize evidences and describes any truncation
func (v *Verifier) batch(item ClaimEvidence) ([]model.Evidence, string) {
	n := len(item.Evidence)
	var warning string
	if n > v.batchSize {
		warning = fmt.Sprintf("claim %q: %d evidences truncated to %d", item.Claim, n, v.batchSize)
		slog.Warn("evidence truncated", "claim", item.Claim, "evidences", n, "batch_size", v.batchSize)
		n = v.batchSize
	}
	evidence := make([]model.Evidence, n)
	copy(evidence, item.Evidence[:n])
	return evidence, warning
}

// fallback marks every batched evidence IRRELEVANT with the error as reasoning
func (v *Verifier) fallback(item ClaimEvidence, err error) VerifiedClaim {
	evidence, warning := v.batch(item)
	for i := range evidence {
		evidence[i].Relationship = model.RelationshipIrrelevant
		evidence[i].Reasoning = "Verification failed: " + err.Error()
	}
	return VerifiedClaim{Claim: item.Claim, Evidence: evidence, Warning: warning}
}

// Verdict is the judgement of one evidence
type Verdict struct {
	Relationship model.Relationship
	Reasoning    string
}

// ParseVerdicts reads an answer keyed evidence_1..evidence_n into n fixed
// slots. Slots the answer does not fill, or any answer that is not a JSON
// object, yield IRRELEVANT with NoReasoning.
func ParseVerdicts(answer string, n int) []Verdict {
	slots := make([]Verdict, n)
	for i := range slots {
		slots[i] = Verdict{Relationship: model.RelationshipIrrelevant, Reasoning: NoReasoning}
	}

	clean, err := llm.CleanJSON(answer)
	if err != nil {
		return slots
	}
	root := gjson.Parse(clean)
	if !root.IsObject() {
		return slots
	}

	for i := range slots {
		entry := root.Get(gjson.Escape(prompt.EvidenceKey(i)))
		switch {
		case entry.IsObject():
			if rel := entry.Get("relationship"); rel.Exists() {
				slots[i].Relationship = model.ParseRelationship(rel.String())
			}
			if reason := entry.Get("reasoning"); reason.Type == gjson.String && reason.String() != "" {
				slots[i].Reasoning = reason.String()
			}
		case entry.Type == gjson.String:
			slots[i].Relationship = model.ParseRelationship(entry.String())
		}
	}
	return slots
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
