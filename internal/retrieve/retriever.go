package retrieve

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Retriever runs every query of every claim against a backend with bounded
// concurrency
type Retriever struct {
	backend Backend
	topK    int
	workers int
}

// NewRetriever creates a retriever
func NewRetriever(backend Backend, topK, workers int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	if workers <= 0 {
		workers = 4
	}
	return &Retriever{backend: backend, topK: topK, workers: workers}
}

type searchTask struct {
	claim int
	query int
}

// Retrieve returns evidence per claim, in claim order. queries[i] holds the
// queries of claims[i]. A failed search contributes no evidence; evidence is
// de-duplicated by URL within each claim.
func (r *Retriever) Retrieve(ctx context.Context, claims []string, queries [][]string) [][]model.Evidence {
	hits := make([][][]SearchResult, len(claims))
	var tasks []searchTask
	for i := range claims {
		if i >= len(queries) {
			break
		}
		hits[i] = make([][]SearchResult, len(queries[i]))
		for j := range queries[i] {
			tasks = append(tasks, searchTask{claim: i, query: j})
		}
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, task := range tasks {
		g.Go(func() error {
			q := queries[task.claim][task.query]
			results, err := r.backend.Search(ctx, q, r.topK)
			if err != nil {
				slog.Warn("search failed", "backend", r.backend.Name(), "query", q, "error", err)
				return nil
			}
			// each task owns its own slot
			hits[task.claim][task.query] = results
			return nil
		})
	}
	_ = g.Wait()

	out := make([][]model.Evidence, len(claims))
	for i, claim := range claims {
		var evidence []model.Evidence
		for j, results := range hits[i] {
			for _, res := range results {
				evidence = append(evidence, model.Evidence{
					Claim: claim,
					Query: queries[i][j],
					Text:  res.Snippet,
					URL:   res.URL,
				})
			}
		}
		out[i] = extract.DedupeEvidence(evidence)
	}
	return out
}
