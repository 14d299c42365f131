package campaigns

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Scheduler enqueues campaign work for the dial worker.
type Scheduler interface {
	ScheduleStart(ctx context.Context, payload StartPayload, runAt time.Time) error
	EnqueueDial(ctx context.Context, payload DialPayload) error
	DeferDial(ctx context.Context, payload DialPayload, after time.Duration) error
}

// TaskClient is the asynq-backed Scheduler.
type TaskClient struct {
	client *asynq.Client
	queue  string
}

func NewTaskClient(opt asynq.RedisConnOpt, queue string) *TaskClient {
	if queue == "" {
		queue = "default"
	}
	return &TaskClient{client: asynq.NewClient(opt), queue: queue}
}

func (c *TaskClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *TaskClient) ScheduleStart(ctx context.Context, payload StartPayload, runAt time.Time) error {
	task, err := NewStartTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(runAt),
		asynq.Queue(c.queue),
		asynq.TaskID("start:"+payload.CampaignID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueDial is idempotent per call while the task is still queued.
func (c *TaskClient) EnqueueDial(ctx context.Context, payload DialPayload) error {
	task, err := NewDialTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID("dial:"+payload.CallID),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// DeferDial re-enqueues a dial that found no free slot. It carries no task id
// because the deferring task is still active under its own id.
func (c *TaskClient) DeferDial(ctx context.Context, payload DialPayload, after time.Duration) error {
	task, err := NewDialTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(after),
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
	)
	return err
}
