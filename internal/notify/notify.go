// Package notify delivers registration notices through an asynq task queue.
// The API enqueues one task per committed transition and cmd/worker turns
// each task into a message for the registrant.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
)

// TypeRegistrationNotice is the asynq task type for registration notices.
const TypeRegistrationNotice = "registration:notice"

// QueueName is the asynq queue notices are published to.
const QueueName = "notifications"

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue publishes notices as asynq tasks.
type Queue struct {
	client enqueuer
}

// NewQueue returns a Queue backed by the asynq client.
func NewQueue(client *asynq.Client) *Queue {
	return &Queue{client: client}
}

// NewTask encodes n as a registration notice task.
func NewTask(n model.Notice) (*asynq.Task, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notice: %w", err)
	}
	return asynq.NewTask(TypeRegistrationNotice, payload,
		asynq.Queue(QueueName),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// Notify enqueues n for delivery.
func (q *Queue) Notify(ctx context.Context, n model.Notice) error {
	task, err := NewTask(n)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s notice: %w", n.Kind, err)
	}
	return nil
}

// Nop discards notices. It is used when no queue is configured.
type Nop struct{}

// Notify implements service.Notifier.
func (Nop) Notify(context.Context, model.Notice) error { return nil }
