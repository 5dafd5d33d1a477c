package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockResult struct {
	value int
	err   error
}

func (r *mockResult) GetError() error {
	return r.err
}

type mockJob struct {
	value     int
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{value: j.value, err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{value: j.value, err: errors.New("job error")}
	}
	return &mockResult{value: j.value}
}

func TestNewPool(t *testing.T) {
	if p := NewPool(context.Background(), 5); p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}
	if p := NewPool(context.Background(), 0); p.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p.workers)
	}
	if p := NewPool(context.Background(), -1); p.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p.workers)
	}
}

func TestPool_ResultsInSubmissionOrder(t *testing.T) {
	pool := NewPool(context.Background(), 4)
	pool.Start()

	count := 12
	for i := 0; i < count; i++ {
		// Later jobs finish first
		pool.Submit(&mockJob{value: i, duration: time.Duration(count-i) * 2 * time.Millisecond})
	}

	results := pool.Wait()
	if len(results) != count {
		t.Fatalf("expected %d results, got %d", count, len(results))
	}
	for i, r := range results {
		if got := r.(*mockResult).value; got != i {
			t.Errorf("result %d holds value %d", i, got)
		}
	}
}

func TestPool_ManyJobsDoNotDeadlock(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	var executed int32
	count := 200
	for i := 0; i < count; i++ {
		pool.Submit(&mockJob{value: i, executed: &executed})
	}

	results := pool.Wait()
	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
}

type concurrencyJob struct {
	start    func()
	end      func()
	duration time.Duration
}

func (j *concurrencyJob) Execute(ctx context.Context) Result {
	j.start()
	time.Sleep(j.duration)
	j.end()
	return &mockResult{}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 5
	pool := NewPool(context.Background(), workers)
	pool.Start()

	var current, maxConcurrent int32
	var mu sync.Mutex

	for i := 0; i < 30; i++ {
		pool.Submit(&concurrencyJob{
			start: func() {
				curr := atomic.AddInt32(&current, 1)
				mu.Lock()
				if curr > maxConcurrent {
					maxConcurrent = curr
				}
				mu.Unlock()
			},
			end:      func() { atomic.AddInt32(&current, -1) },
			duration: 5 * time.Millisecond,
		})
	}
	pool.Wait()

	mu.Lock()
	defer mu.Unlock()
	if maxConcurrent > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", maxConcurrent, workers)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(&mockJob{shouldErr: true})
	pool.Submit(&mockJob{})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].GetError() == nil {
		t.Error("expected first job to fail")
	}
	if results[1].GetError() != nil {
		t.Errorf("unexpected error: %v", results[1].GetError())
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()
	pool.Shutdown()

	done := make(chan struct{})
	go func() {
		pool.Submit(&mockJob{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked after Shutdown")
	}
}
