package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/ppiankov/claimcheck/internal/model"
)

var (
	// ErrNoResources is returned when a scheduler is built without resource ids
	ErrNoResources = errors.New("worker: no resources configured")

	// ErrTaskPanic marks a task whose function panicked
	ErrTaskPanic = errors.New("worker: task panicked")
)

const (
	maxShortWait = time.Second
	waitPadding  = 100 * time.Millisecond
	maxWaitLog   = 1024
)

// SchedulerConfig sets the per-resource quotas shared by every resource
type SchedulerConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int // 0 = RequestsPerWindow
	RequestsPerDay    int
	Timezone          string
	MaxWorkers        int
	LongWait          time.Duration // Re-check interval while every resource is daily-capped
}

// SchedulerConfigFromModel converts the quota section of the run config
func SchedulerConfigFromModel(q model.QuotaConfig) SchedulerConfig {
	return SchedulerConfig{
		RequestsPerWindow: q.RequestsPerWindow,
		Window:            q.Window,
		Burst:             q.Burst,
		RequestsPerDay:    q.RequestsPerDay,
		Timezone:          q.Timezone,
		MaxWorkers:        q.MaxWorkers,
		LongWait:          q.LongWait,
	}
}

func (c *SchedulerConfig) setDefaults() {
	if c.RequestsPerWindow <= 0 {
		c.RequestsPerWindow = 10
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Burst <= 0 {
		c.Burst = c.RequestsPerWindow
	}
	if c.RequestsPerDay <= 0 {
		c.RequestsPerDay = 250
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 3
	}
	if c.LongWait <= 0 {
		c.LongWait = 5 * time.Minute
	}
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithClock replaces the system clock
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithMetrics records scheduler activity in m
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// resource is the scheduler-owned state of one credential
type resource struct {
	id        string
	bucket    *TokenBucket
	quota     *DailyQuota
	grants    []time.Time // most recent grants, at most RequestsPerWindow
	requests  int
	successes int
	failures  int
	waited    time.Duration
}

// windowWait returns how long until the rolling window admits another grant
func (r *resource) windowWait(now time.Time, limit int, window time.Duration) time.Duration {
	if len(r.grants) < limit {
		return 0
	}
	if wait := r.grants[0].Add(window).Sub(now); wait > 0 {
		return wait
	}
	return 0
}

func (r *resource) recordGrant(now time.Time, limit int) {
	r.grants = append(r.grants, now)
	if len(r.grants) > limit {
		r.grants = r.grants[len(r.grants)-limit:]
	}
	r.requests++
}

// Scheduler hands out resources (API keys) to tasks so that no resource
// exceeds its per-window rate or its daily cap.
type Scheduler struct {
	cfg     SchedulerConfig
	clock   Clock
	loc     *time.Location
	metrics *Metrics

	mu        sync.Mutex
	resources []*resource
	byID      map[string]*resource
	cursor    int
	wake      chan struct{} // closed and replaced on every broadcast
	waits     []float64
}

// NewScheduler creates a scheduler over the given resource ids. A single id
// gives single-resource mode with the same algorithm.
func NewScheduler(ids []string, cfg SchedulerConfig, opts ...Option) (*Scheduler, error) {
	if len(ids) == 0 {
		return nil, ErrNoResources
	}
	cfg.setDefaults()

	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:   cfg,
		clock: systemClock{},
		loc:   loc,
		byID:  make(map[string]*resource, len(ids)),
		wake:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	now := s.clock.Now()
	for _, id := range ids {
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("worker: duplicate resource id %q", id)
		}
		r := &resource{
			id:     id,
			bucket: NewTokenBucket(cfg.RequestsPerWindow, cfg.Window, cfg.Burst),
			quota:  NewDailyQuota(cfg.RequestsPerDay, loc, now),
		}
		s.resources = append(s.resources, r)
		s.byID[id] = r
	}

	return s, nil
}

// Resources returns the resource ids in round-robin order
func (s *Scheduler) Resources() []string {
	ids := make([]string, len(s.resources))
	for i, r := range s.resources {
		ids[i] = r.id
	}
	return ids
}

// MaxWorkers returns the configured worker count for Map
func (s *Scheduler) MaxWorkers() int {
	return s.cfg.MaxWorkers
}

// Acquire blocks until some resource can serve one request and returns its
// id. Only the calling goroutine waits. It returns ctx.Err() if ctx ends
// first; otherwise there is no deadline, even when every resource is
// capped for the day.
func (s *Scheduler) Acquire(ctx context.Context) (string, error) {
	start := s.clock.Now()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		s.mu.Lock()
		now := s.clock.Now()
		s.rollDay(now)

		if r := s.grant(now); r != nil {
			waited := now.Sub(start)
			r.waited += waited
			s.recordWait(waited)
			s.mu.Unlock()

			s.metrics.granted(r.id, waited)
			return r.id, nil
		}

		wait, capped := s.nextWait(now)
		wake := s.wake
		s.mu.Unlock()

		if capped {
			s.metrics.capped()
			slog.Warn("all resources at daily cap, waiting for day rollover",
				"resources", len(s.resources), "recheck", wait)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-wake:
		case <-s.clock.After(wait):
		}
	}
}

// Release records the outcome of a task that held resource id and wakes
// waiters so they re-evaluate timing.
func (s *Scheduler) Release(id string, err error) {
	s.mu.Lock()
	if r, ok := s.byID[id]; ok {
		if err != nil {
			r.failures++
		} else {
			r.successes++
		}
	}
	s.broadcastLocked()
	s.mu.Unlock()

	s.metrics.completed(id, err)
}

// Do acquires a resource, runs fn with it and releases it. A panic in fn is
// returned as an error wrapping ErrTaskPanic.
func (s *Scheduler) Do(ctx context.Context, fn func(resource string) error) (err error) {
	id, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, p)
		}
		s.Release(id, err)
	}()

	return fn(id)
}

// rollDay resets daily counters of every resource whose reference date
// advanced. Caller holds s.mu.
func (s *Scheduler) rollDay(now time.Time) {
	for _, r := range s.resources {
		if r.quota.Roll(now) {
			slog.Debug("daily quota reset", "resource", r.id, "day", r.quota.Day())
		}
	}
}

// grant scans resources round-robin from the cursor and takes one permit
// from the first that qualifies. Caller holds s.mu.
func (s *Scheduler) grant(now time.Time) *resource {
	n := len(s.resources)
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		r := s.resources[idx]

		if r.quota.Exhausted() {
			continue
		}
		if r.windowWait(now, s.cfg.RequestsPerWindow, s.cfg.Window) > 0 {
			continue
		}
		if !r.bucket.Take(now) {
			continue
		}

		r.quota.Use()
		r.recordGrant(now, s.cfg.RequestsPerWindow)
		s.cursor = (idx + 1) % n
		return r
	}
	return nil
}

// nextWait returns how long to sleep before re-scanning and whether every
// resource is daily-capped. Caller holds s.mu.
func (s *Scheduler) nextWait(now time.Time) (time.Duration, bool) {
	minWait := time.Duration(-1)
	for _, r := range s.resources {
		if r.quota.Exhausted() {
			continue
		}
		wait := max(r.bucket.WaitFor(now), r.windowWait(now, s.cfg.RequestsPerWindow, s.cfg.Window))
		if minWait < 0 || wait < minWait {
			minWait = wait
		}
	}

	if minWait < 0 {
		return s.cfg.LongWait, true
	}
	return min(minWait+waitPadding, maxShortWait), false
}

func (s *Scheduler) broadcastLocked() {
	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *Scheduler) recordWait(d time.Duration) {
	if len(s.waits) >= maxWaitLog {
		s.waits = s.waits[1:]
	}
	s.waits = append(s.waits, d.Seconds())
}

// ResourceStats is a read-only snapshot of one resource
type ResourceStats struct {
	ID         string
	Tokens     float64
	DailyUsed  int
	DailyLimit int
	Day        string
	Requests   int
	Successes  int
	Failures   int
	Waited     time.Duration
}

// Stats returns a snapshot of every resource in round-robin order
func (s *Scheduler) Stats() []ResourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	out := make([]ResourceStats, len(s.resources))
	for i, r := range s.resources {
		out[i] = ResourceStats{
			ID:         r.id,
			Tokens:     r.bucket.Tokens(now),
			DailyUsed:  r.quota.Used(),
			DailyLimit: s.cfg.RequestsPerDay,
			Day:        r.quota.Day(),
			Requests:   r.requests,
			Successes:  r.successes,
			Failures:   r.failures,
			Waited:     r.waited,
		}
	}
	return out
}

// Usage converts Stats into the per-run usage report
func (s *Scheduler) Usage() []model.ResourceUsage {
	snapshot := s.Stats()
	usage := make([]model.ResourceUsage, len(snapshot))
	for i, st := range snapshot {
		usage[i] = model.ResourceUsage{
			Resource:  st.ID,
			Requests:  st.Requests,
			DailyUsed: st.DailyUsed,
			Successes: st.Successes,
			Failures:  st.Failures,
			Tokens:    st.Tokens,
		}
	}
	return usage
}

// WaitSummary returns the mean and 95th percentile of recent Acquire waits
func (s *Scheduler) WaitSummary() (mean, p95 time.Duration) {
	s.mu.Lock()
	waits := stats.Float64Data(append([]float64(nil), s.waits...))
	s.mu.Unlock()

	if len(waits) == 0 {
		return 0, 0
	}
	m, err := waits.Mean()
	if err != nil {
		return 0, 0
	}
	p, err := waits.Percentile(95)
	if err != nil {
		p = m
	}
	return seconds(m), seconds(p)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// Outcome is the result of one task run through Map. Err is set when the
// task failed, panicked or never obtained a resource.
type Outcome[R any] struct {
	Value    R
	Resource string
	Err      error
}

// Map runs fn over tasks on at most MaxWorkers goroutines, each task holding
// one resource for its duration. The returned slice always has len(tasks)
// entries and out[i] belongs to tasks[i]. A failing task never affects its
// siblings. If ctx is already done, no task runs.
func Map[T, R any](ctx context.Context, s *Scheduler, tasks []T, fn func(ctx context.Context, task T, resource string) (R, error)) []Outcome[R] {
	out := make([]Outcome[R], len(tasks))
	if len(tasks) == 0 {
		return out
	}
	if err := ctx.Err(); err != nil {
		for i := range out {
			out[i].Err = err
		}
		return out
	}

	workers := min(s.cfg.MaxWorkers, len(tasks))
	var next atomic.Int64
	var done atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= len(tasks) {
					return
				}
				out[i] = runTask(ctx, s, i, tasks[i], fn)

				if n := done.Add(1); n%10 == 0 {
					slog.Debug("scheduler progress", "completed", n, "total", len(tasks))
				}
			}
		}()
	}

	wg.Wait()
	return out
}

func runTask[T, R any](ctx context.Context, s *Scheduler, index int, task T, fn func(context.Context, T, string) (R, error)) (o Outcome[R]) {
	id, err := s.Acquire(ctx)
	if err != nil {
		o.Err = err
		return o
	}
	o.Resource = id

	defer func() {
		if p := recover(); p != nil {
			o.Err = fmt.Errorf("%w: %v", ErrTaskPanic, p)
		}
		if o.Err != nil {
			slog.Warn("task failed", "index", index, "resource", id, "error", o.Err)
		}
		s.Release(id, o.Err)
	}()

	o.Value, o.Err = fn(ctx, task, id)
	return o
}
