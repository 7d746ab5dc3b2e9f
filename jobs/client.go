package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Enqueuer submits integrity runs. *Client satisfies it.
type Enqueuer interface {
	EnqueueLedgerIntegrity(ctx context.Context, payload LedgerIntegrityPayload) (*asynq.TaskInfo, error)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an asynq client.
func NewClient(redis asynq.RedisConnOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redis)}, nil
}

// EnqueueLedgerIntegrity enqueues an on-demand integrity audit.
func (c *Client) EnqueueLedgerIntegrity(ctx context.Context, payload LedgerIntegrityPayload) (*asynq.TaskInfo, error) {
	task, err := NewLedgerIntegrityTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
