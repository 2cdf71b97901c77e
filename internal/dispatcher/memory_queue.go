package dispatcher

import (
	"context"
	"sync"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
)

// MemoryJobQueue keeps jobs in process.  Jobs do not survive a restart.
//
// New jobs go through a bounded channel.  Retries are put back by the
// workers that drain that channel, so they are kept in a separate unbounded
// list that is served first.
type MemoryJobQueue struct {
	jobs chan domain.OutboundJob

	retryMu    sync.Mutex
	retries    []domain.OutboundJob
	retryReady chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

func NewMemoryJobQueue(size int) *MemoryJobQueue {
	return &MemoryJobQueue{
		jobs:       make(chan domain.OutboundJob, size),
		retryReady: make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}
}

func (mq *MemoryJobQueue) isClosed() bool {
	select {
	case <-mq.closed:
		return true
	default:
		return false
	}
}

func (mq *MemoryJobQueue) Publish(ctx context.Context, job domain.OutboundJob) error {
	if mq.isClosed() {
		return ErrQueueClosed
	}

	select {
	case mq.jobs <- job:
		return nil
	case <-mq.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Requeue never blocks
func (mq *MemoryJobQueue) Requeue(ctx context.Context, job domain.OutboundJob) error {
	if mq.isClosed() {
		return ErrQueueClosed
	}

	mq.retryMu.Lock()
	mq.retries = append(mq.retries, job)
	mq.retryMu.Unlock()

	mq.signalRetry()

	return nil
}

func (mq *MemoryJobQueue) signalRetry() {
	select {
	case mq.retryReady <- struct{}{}:
	default:
	}
}

func (mq *MemoryJobQueue) popRetry() (domain.OutboundJob, bool) {
	mq.retryMu.Lock()
	defer mq.retryMu.Unlock()

	if len(mq.retries) == 0 {
		return domain.OutboundJob{}, false
	}

	job := mq.retries[0]
	mq.retries[0] = domain.OutboundJob{}
	mq.retries = mq.retries[1:]

	// wake another subscriber for whatever is left
	if len(mq.retries) > 0 {
		mq.signalRetry()
	}

	return job, true
}

func (mq *MemoryJobQueue) Subscribe() (Subscription, error) {
	return &memorySubscription{queue: mq}, nil
}

func (mq *MemoryJobQueue) Waiting() int64 {
	mq.retryMu.Lock()
	retries := len(mq.retries)
	mq.retryMu.Unlock()

	return int64(len(mq.jobs) + retries)
}

func (mq *MemoryJobQueue) Close() error {
	mq.closeOnce.Do(func() {
		close(mq.closed)
	})
	return nil
}

type memorySubscription struct {
	queue *MemoryJobQueue
}

func (ms *memorySubscription) Next(ctx context.Context) (*Delivery, error) {
	for {
		if job, ok := ms.queue.popRetry(); ok {
			return &Delivery{Job: job}, nil
		}

		select {
		case job := <-ms.queue.jobs:
			return &Delivery{Job: job}, nil
		case <-ms.queue.retryReady:
		case <-ms.queue.closed:
			return nil, ErrQueueClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (ms *memorySubscription) Close() error {
	return nil
}
