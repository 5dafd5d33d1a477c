package worker

import (
	"context"
	"sort"
	"sync"
)

// Job represents a unit of batch work
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the outcome of a job
type Result interface {
	GetError() error
}

type indexedJob struct {
	index int
	job   Job
}

type indexedResult struct {
	index  int
	result Result
}

// Pool runs jobs on a fixed number of goroutines. Wait returns results in
// submission order.
type Pool struct {
	workers    int
	jobQueue   chan indexedJob
	results    chan indexedResult
	submitted  int
	collected  []indexedResult
	collectWG  sync.WaitGroup
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a pool bound to ctx; cancelling ctx stops idle workers
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexedJob, workers*2),
		results:    make(chan indexedResult, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.collectWG.Add(1)
	go func() {
		defer p.collectWG.Done()
		for r := range p.results {
			p.collected = append(p.collected, r)
		}
	}()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ij, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := ij.job.Execute(p.ctx)
			select {
			case p.results <- indexedResult{index: ij.index, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It must not be called concurrently with Wait.
func (p *Pool) Submit(job Job) {
	ij := indexedJob{index: p.submitted, job: job}
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- ij:
		p.submitted++
	}
}

// Wait waits for all submitted jobs and returns their results in submission
// order. Jobs dropped by Shutdown leave nil entries.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()

	collected := p.collected
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	ordered := make([]Result, p.submitted)
	for _, r := range collected {
		ordered[r.index] = r.result
	}
	return ordered
}

// Shutdown stops the pool without waiting for queued jobs
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
