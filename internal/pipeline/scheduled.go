package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/worker"
)

var errNoClients = errors.New("no llm clients configured")

// scheduledClient routes every call through the scheduler so that each one
// holds one quota-accounted resource and uses that resource's client
type scheduledClient struct {
	pool      *llm.ClientPool
	scheduler *worker.Scheduler
}

func newScheduledClient(pool *llm.ClientPool, scheduler *worker.Scheduler) *scheduledClient {
	return &scheduledClient{pool: pool, scheduler: scheduler}
}

func (c *scheduledClient) Name() string {
	if c.pool == nil || c.pool.Len() == 0 {
		return "none"
	}
	client, _ := c.pool.Get(c.pool.IDs()[0])
	return fmt.Sprintf("%s x%d", client.Name(), c.pool.Len())
}

func (c *scheduledClient) Call(ctx context.Context, messages []llm.Message) (string, error) {
	if c.pool == nil || c.pool.Len() == 0 {
		return "", errNoClients
	}

	if c.scheduler == nil {
		client, _ := c.pool.Get(c.pool.IDs()[0])
		return client.Call(ctx, messages)
	}

	var answer string
	err := c.scheduler.Do(ctx, func(resource string) error {
		client, ok := c.pool.Get(resource)
		if !ok {
			return fmt.Errorf("no client for resource %s", resource)
		}
		var err error
		answer, err = client.Call(ctx, messages)
		return err
	})
	return answer, err
}
