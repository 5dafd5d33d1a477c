// Package pipeline runs one document through decomposition, restoration,
// checkworthiness, query generation, retrieval, verification and
// finalization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimcheck/internal/assess"
	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/retrieve"
	"github.com/ppiankov/claimcheck/internal/score"
	"github.com/ppiankov/claimcheck/internal/validate"
	"github.com/ppiankov/claimcheck/internal/verify"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// ErrEmptyDocument is returned for input with no text to check
var ErrEmptyDocument = errors.New("empty document")

// RunStore persists finished results
type RunStore interface {
	SaveRun(ctx context.Context, r *model.Result) error
}

// Pipeline orchestrates a complete fact-check run
type Pipeline struct {
	config      *model.Config
	pool        *llm.ClientPool
	scheduler   *worker.Scheduler
	decomposer  *extract.Decomposer
	restorer    *extract.Restorer
	checkworthy *assess.CheckworthyFilter
	queries     *assess.QueryGenerator
	retriever   *retrieve.Retriever
	verifier    *verify.Verifier
	scorer      *score.Scorer
	fetcher     *Fetcher
	store       RunStore
	now         func() time.Time
	newID       func() string
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithFetcher enables URL documents
func WithFetcher(f *Fetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithStore saves every result of CheckDocument
func WithStore(s RunStore) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithClock replaces time.Now for result timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline. Every model call goes through scheduler, which
// must cover the ids of pool; scheduler may be nil for a single client.
func New(cfg *model.Config, pool *llm.ClientPool, scheduler *worker.Scheduler, backend retrieve.Backend, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if backend == nil {
		backend = retrieve.NoneBackend{}
	}

	client := newScheduledClient(pool, scheduler)
	pc := cfg.Pipeline

	p := &Pipeline{
		config:      cfg,
		pool:        pool,
		scheduler:   scheduler,
		decomposer:  extract.NewDecomposer(client, pc.Retries, pc.MinSentenceLength),
		restorer:    extract.NewRestorer(client, pc.Retries),
		checkworthy: assess.NewCheckworthyFilter(client, pc.Retries),
		queries:     assess.NewQueryGenerator(client, pc.Retries, pc.MaxQueriesPerClaim),
		retriever:   retrieve.NewRetriever(backend, pc.SearchTopK, pc.RetrievalWorkers),
		verifier:    verify.NewVerifier(pool, scheduler, cfg.Verify),
		scorer:      score.NewScorer(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckDocument checks a batch document: its URL is fetched when set, and
// the result is saved when a store is configured. It implements
// worker.Checker.
func (p *Pipeline) CheckDocument(ctx context.Context, doc worker.Document) (*model.Result, error) {
	text := doc.Text
	source := doc.Source

	if doc.URL != "" {
		if p.fetcher == nil {
			return nil, fmt.Errorf("fetch %s: no fetcher configured", doc.URL)
		}
		fetched, err := p.fetcher.FetchWithRetry(ctx, doc.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", doc.URL, err)
		}
		text = fetched.Text
		if source == "" {
			source = fetched.FinalURL
		}
	}

	result, err := p.Check(ctx, text)
	if err != nil {
		return nil, err
	}
	result.Source = source

	if p.store != nil {
		if err := p.store.SaveRun(ctx, result); err != nil {
			slog.Warn("saving run failed", "id", result.ID, "error", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("run not saved: %v", err))
		}
	}
	return result, nil
}

// claimState accumulates one claim across stages
type claimState struct {
	text     string
	span     *extract.Span
	verdict  assess.Verdict
	queries  []string
	evidence []model.Evidence
	verified bool
}

// Check runs every stage over doc. Collaborator failures degrade the
// affected stage only; the returned error is either ErrEmptyDocument or a
// broken invariant from finalize.
func (p *Pipeline) Check(ctx context.Context, doc string) (*model.Result, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, ErrEmptyDocument
	}
	var warnings []string
	started := p.now()

	// DECOMPOSE
	texts, fellBack := p.decomposer.Decompose(ctx, doc)
	if fellBack {
		warnings = append(warnings, "claim decomposition fell back to sentence splitting")
	}
	slog.Info("decomposed", "claims", len(texts), "fallback", fellBack)

	states := make([]claimState, len(texts))
	for i, t := range texts {
		states[i] = claimState{text: t, verdict: assess.Verdict{Checkworthy: true, Reason: assess.DefaultReason}}
	}

	// RESTORE, CHECKWORTHY and QUERY only need the claim list
	var (
		spans    []extract.Span
		clean    = true
		verdicts []assess.Verdict
		queries  [][]string
	)
	var g errgroup.Group
	if !p.config.Pipeline.SkipRestore {
		g.Go(func() error {
			spans, clean = p.restorer.Restore(ctx, doc, texts)
			return nil
		})
	}
	g.Go(func() error {
		verdicts = p.checkworthy.Assess(ctx, texts)
		return nil
	})
	g.Go(func() error {
		queries = p.queries.Generate(ctx, texts)
		return nil
	})
	_ = g.Wait()

	if !clean {
		warnings = append(warnings, "claim spans needed correction; some may be imprecise")
	}
	for i := range spans {
		if c := spans[i].Claim; c >= 0 && c < len(states) {
			states[c].span = &spans[i]
		}
	}
	for i, v := range verdicts {
		if i < len(states) {
			states[i].verdict = v
		}
	}
	for i, q := range queries {
		if i < len(states) {
			states[i].queries = q
		}
	}

	// RETRIEVE for checkworthy claims
	var (
		worthy        []int
		worthyTexts   []string
		worthyQueries [][]string
	)
	for i, st := range states {
		if st.verdict.Checkworthy {
			worthy = append(worthy, i)
			worthyTexts = append(worthyTexts, st.text)
			worthyQueries = append(worthyQueries, st.queries)
		}
	}
	slog.Info("checkworthy", "claims", len(worthy), "of", len(states))

	retrieved := p.retriever.Retrieve(ctx, worthyTexts, worthyQueries)

	// VERIFY
	items := make([]verify.ClaimEvidence, len(worthy))
	for n := range worthy {
		items[n] = verify.ClaimEvidence{Claim: worthyTexts[n], Evidence: retrieved[n]}
	}
	verified := p.verifier.Verify(ctx, items)
	for n, i := range worthy {
		states[i].evidence = verified[n].Evidence
		states[i].verified = true
		if verified[n].Warning != "" {
			warnings = append(warnings, verified[n].Warning)
		}
	}

	result, err := p.finalize(doc, states, warnings)
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	slog.Info("document checked",
		"id", result.ID,
		"claims", result.Summary.NumClaims,
		"verified", result.Summary.NumVerified,
		"factuality", result.Summary.Factuality,
		"elapsed", p.now().Sub(started).Round(time.Millisecond),
	)
	return result, nil
}

// finalize freezes claim records, scores them and checks the result
func (p *Pipeline) finalize(doc string, states []claimState, warnings []string) (*model.Result, error) {
	claims := make([]model.Claim, len(states))
	prevEnd := 0
	unmapped := 0

	for i, st := range states {
		c := model.Claim{
			Text:              st.text,
			Checkworthy:       st.verdict.Checkworthy,
			CheckworthyReason: st.verdict.Reason,
			Queries:           st.queries,
			Evidences:         []model.Evidence{},
		}
		if c.Queries == nil {
			c.Queries = []string{}
		}

		if st.span != nil {
			c.Start, c.End = st.span.Start, st.span.End
		} else {
			c.Start, c.End = prevEnd, prevEnd
			unmapped++
		}
		if c.Start < 0 || c.End > len(doc) || c.Start > c.End {
			return nil, fmt.Errorf("%w: claim %d span [%d,%d) outside document", validate.ErrInconsistent, i, c.Start, c.End)
		}
		c.OriginText = doc[c.Start:c.End]
		prevEnd = c.End

		switch {
		case !c.Checkworthy:
			c.Factuality = model.Sentinel(model.FactualityNotCheckworthy)
		default:
			if st.verified && st.evidence != nil {
				c.Evidences = st.evidence
			}
			c.Factuality = p.scorer.Factuality(c.Evidences)
		}
		claims[i] = c
	}
	if unmapped > 0 && !p.config.Pipeline.SkipRestore {
		warnings = append(warnings, fmt.Sprintf("%d claims could not be located in the document", unmapped))
	}

	if err := validate.Consistency(doc, claims); err != nil {
		return nil, err
	}
	summary := p.scorer.Calculate(claims)
	if err := validate.Summary(summary); err != nil {
		return nil, err
	}

	return &model.Result{
		ID:          p.newID(),
		RawText:     doc,
		CreatedAt:   p.now().UTC(),
		Summary:     summary,
		ClaimDetail: claims,
		Usage:       p.usage(),
		Warnings:    warnings,
	}, nil
}

// usage snapshots the scheduler and adds tokens reported by each client
func (p *Pipeline) usage() []model.ResourceUsage {
	if p.scheduler == nil {
		return nil
	}
	usage := p.scheduler.Usage()
	if p.pool != nil {
		for i := range usage {
			usage[i].LLMTokens = p.pool.Tokens(usage[i].Resource)
		}
	}
	return usage
}
