package dispatcher

import (
	"context"
	"errors"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
)

var ErrQueueClosed = errors.New("job queue is closed")

type Delivery struct {
	Job domain.OutboundJob
	ack func(context.Context) error
}

// Ack marks the delivery as handled so the queue does not redeliver it
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

type Subscription interface {
	Next(ctx context.Context) (*Delivery, error)
	Close() error
}

// JobQueue is durable storage for outbound jobs.  Each worker owns one
// Subscription.  Requeue is used by the workers themselves to put a retry
// back and must not wait on those same workers.
type JobQueue interface {
	Publish(ctx context.Context, job domain.OutboundJob) error
	Requeue(ctx context.Context, job domain.OutboundJob) error
	Subscribe() (Subscription, error)
	Waiting() int64
	Close() error
}
