package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/retrieve"
	"github.com/ppiankov/claimcheck/internal/store"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// memory layer TTL of the search cache; the disk layer uses cache.ttl
const memoryCacheTTL = time.Hour

// runFlags are the per-run overrides shared by check and batch
type runFlags struct {
	provider    string
	model       string
	search      string
	workers     int
	noCache     bool
	noStore     bool
	skipRestore bool
	seed        int
	timeout     time.Duration
}

var runOpts runFlags

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&runOpts.provider, "provider", "", "LLM provider (gemini, openai, anthropic, ollama)")
	f.StringVar(&runOpts.model, "model", "", "LLM model name")
	f.StringVar(&runOpts.search, "search", "", "search backend (serper, none)")
	f.IntVar(&runOpts.workers, "workers", 0, "max concurrent LLM calls (default from quota.max_workers)")
	f.BoolVar(&runOpts.noCache, "no-cache", false, "disable the search result cache")
	f.BoolVar(&runOpts.noStore, "no-store", false, "do not save the run to history")
	f.BoolVar(&runOpts.skipRestore, "skip-restore", false, "skip mapping claims back to document spans")
	f.IntVar(&runOpts.seed, "seed", 0, "sampling seed passed to providers that support one")
	f.DurationVar(&runOpts.timeout, "timeout", 30*time.Minute, "overall timeout (0 = none)")
}

// applyRunFlags copies explicitly set flags over cfg
func applyRunFlags(cmd *cobra.Command, cfg *model.Config) {
	changed := cmd.Flags().Changed
	if changed("provider") {
		cfg.LLM.Provider = strings.ToLower(runOpts.provider)
		if !changed("model") {
			cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
		}
	}
	if changed("model") {
		cfg.LLM.Model = runOpts.model
	}
	if changed("search") {
		cfg.Search.Provider = strings.ToLower(runOpts.search)
	}
	if changed("workers") {
		cfg.Quota.MaxWorkers = runOpts.workers
	}
	if runOpts.noCache {
		cfg.Cache.Enabled = false
	}
	if runOpts.noStore {
		cfg.Store.Enabled = false
	}
	if runOpts.skipRestore {
		cfg.Pipeline.SkipRestore = true
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "anthropic", "claude":
		return "claude-3-5-haiku-20241022"
	case "ollama":
		return "llama3.1"
	default:
		return "gemini-2.5-flash"
	}
}

// runtime holds everything one command invocation shares across documents
type runtime struct {
	cfg       *model.Config
	pipeline  *pipeline.Pipeline
	scheduler *worker.Scheduler
	cache     *cache.LayeredCache
	store     *store.DB
	renderer  *pipeline.Renderer
}

// newRuntime wires clients, scheduler, search, cache, store and fetcher
// into a pipeline
func newRuntime(cfg *model.Config) (*runtime, error) {
	pool, err := llm.NewClientPool(llm.ConfigFromModel(cfg, ""), cfg.LLM.APIKeys)
	if err != nil {
		return nil, fmt.Errorf("create LLM clients: %w", err)
	}

	reg := prometheus.NewRegistry()
	scheduler, err := worker.NewScheduler(pool.IDs(), worker.SchedulerConfigFromModel(cfg.Quota),
		worker.WithMetrics(worker.NewMetrics(reg)))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if cfg.Output.MetricsAddr != "" {
		serveMetrics(cfg.Output.MetricsAddr, reg)
	}

	limiter := worker.NewHostLimiter(cfg.Search.RequestsPerSecond, cfg.Search.Burst)
	backend, err := retrieve.NewBackend(cfg.Search, limiter, cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("create search backend: %w", err)
	}

	rt := &runtime{
		cfg:       cfg,
		scheduler: scheduler,
		renderer:  pipeline.NewRenderer(),
	}

	if cfg.Cache.Enabled && backend.Name() != "none" {
		rt.cache = cache.NewLayeredCache(memoryCacheTTL, cfg.Cache.Dir, cfg.Cache.TTL)
		backend = retrieve.NewCachedBackend(backend, rt.cache, cfg.Cache.TTL)
	}

	opts := []pipeline.Option{pipeline.WithFetcher(pipeline.NewFetcherFromConfig(cfg.HTTP, limiter))}
	if cfg.Store.Enabled {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			// history is optional; the run itself can proceed
			slog.Warn("history store unavailable", "path", cfg.Store.Path, "error", err)
		} else {
			rt.store = db
			opts = append(opts, pipeline.WithStore(db))
		}
	}

	rt.pipeline = pipeline.New(cfg, pool, scheduler, backend, opts...)

	slog.Debug("runtime ready",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"resources", len(pool.IDs()),
		"search", backend.Name(),
		"cache", rt.cache != nil,
		"store", rt.store != nil)
	return rt, nil
}

// Close releases the history store
func (rt *runtime) Close() error {
	if rt.store == nil {
		return nil
	}
	return rt.store.Close()
}

// printDiagnostics writes scheduler wait times and cache counters
func (rt *runtime) printDiagnostics(w io.Writer) {
	mean, p95 := rt.scheduler.WaitSummary()
	fmt.Fprintf(w, "  Resources:    %s (%d workers)\n", strings.Join(rt.scheduler.Resources(), ", "), rt.scheduler.MaxWorkers())
	fmt.Fprintf(w, "  Quota waits:  mean %v, p95 %v\n", mean.Round(time.Millisecond), p95.Round(time.Millisecond))
	if rt.cache != nil {
		s := rt.cache.Stats()
		fmt.Fprintf(w, "  Search cache: %d memory hits, %d disk hits, %d misses\n", s.MemoryHits, s.DiskHits, s.Misses)
	}
	if rt.store != nil {
		fmt.Fprintf(w, "  History:      %s\n", rt.store.Path())
	}
}
