package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/notifier"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var ErrInvalidJob = errors.New("outbound job requires a connection id, a message log id and a recipient")

type Sender interface {
	Send(ctx context.Context, connectionID domain.ConnectionID, recipient string, message protocol.OutboundMessage) (*protocol.Receipt, error)
}

type Counters struct {
	Waiting int64 `json:"queue_waiting"`
	Active  int64 `json:"queue_active"`
}

type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type DispatcherOption func(*Dispatcher)

func WithRetryPolicy(policy RetryPolicy) DispatcherOption {
	return func(d *Dispatcher) {
		d.policy = policy
	}
}

func WithWorkers(workers int) DispatcherOption {
	return func(d *Dispatcher) {
		if workers > 0 {
			d.workers = workers
		}
	}
}

func WithClock(now func() time.Time, sleep SleepFunc) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
		d.sleep = sleep
	}
}

type Dispatcher struct {
	queue    JobQueue
	sender   Sender
	notifier notifier.Notifier
	policy   RetryPolicy
	workers  int

	now   func() time.Time
	sleep SleepFunc

	active atomic.Int64
}

func NewDispatcher(queue JobQueue, sender Sender, n notifier.Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:    queue,
		sender:   sender,
		notifier: n,
		policy:   DefaultRetryPolicy(),
		workers:  1,
		now:      time.Now,
		sleep:    sleepWithContext,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Enqueue returns as soon as the job is persisted; delivery happens later
func (d *Dispatcher) Enqueue(ctx context.Context, job domain.OutboundJob) error {
	if job.ConnectionID == "" || job.CorrelationID == "" || job.Recipient == "" {
		return ErrInvalidJob
	}

	job.Attempt = 1
	job.NotBefore = time.Time{}

	if err := d.queue.Publish(ctx, job); err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err, "connection_id": job.ConnectionID, "message_log_id": job.CorrelationID}).Error("Unable to enqueue outbound job")
		return err
	}

	metrics.enqueuedCounter.Inc()
	logger.Log.WithFields(logrus.Fields{"connection_id": job.ConnectionID, "message_log_id": job.CorrelationID}).Debug("Enqueued outbound job")

	return nil
}

func (d *Dispatcher) Counters() Counters {
	return Counters{
		Waiting: d.queue.Waiting(),
		Active:  d.active.Load(),
	}
}

// Run blocks until ctx is cancelled or the queue is closed
func (d *Dispatcher) Run(ctx context.Context) error {
	subscriptions := make([]Subscription, 0, d.workers)
	for i := 0; i < d.workers; i++ {
		subscription, err := d.queue.Subscribe()
		if err != nil {
			for _, s := range subscriptions {
				s.Close()
			}
			return err
		}
		subscriptions = append(subscriptions, subscription)
	}

	logger.Log.WithFields(logrus.Fields{"workers": d.workers}).Info("Starting outbound dispatcher")

	var wg sync.WaitGroup
	for i, subscription := range subscriptions {
		wg.Add(1)
		go func(worker int, subscription Subscription) {
			defer wg.Done()
			defer subscription.Close()
			d.work(ctx, worker, subscription)
		}(i, subscription)
	}

	wg.Wait()

	logger.Log.Info("Outbound dispatcher stopped")

	return nil
}

func (d *Dispatcher) work(ctx context.Context, worker int, subscription Subscription) {
	log := logger.Log.WithFields(logrus.Fields{"worker": worker})

	for {
		delivery, err := subscription.Next(ctx)
		if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
			return
		} else if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to fetch outbound job")
			if d.sleep(ctx, time.Second) != nil {
				return
			}
			continue
		}

		if err := d.process(ctx, delivery); err != nil && ctx.Err() != nil {
			return
		}
	}
}

// process runs one attempt of a job and moves it along the state machine.
// The delivery is acked only once the job is terminal or its retry is
// safely back in the queue.
func (d *Dispatcher) process(ctx context.Context, delivery *Delivery) error {
	job := delivery.Job
	log := logger.Log.WithFields(logrus.Fields{
		"connection_id":  job.ConnectionID,
		"message_log_id": job.CorrelationID,
		"attempt":        job.Attempt,
	})

	if wait := job.NotBefore.Sub(d.now()); wait > 0 {
		log.WithFields(logrus.Fields{"state": RetryingJobState, "delay": wait}).Debug("Waiting for backoff to elapse")
		if err := d.sleep(ctx, wait); err != nil {
			return err
		}
	}

	state, receipt, sendErr := d.attempt(ctx, log, job)

	switch state {
	case SentJobState:
		var messageID string
		if receipt != nil {
			messageID = receipt.Key.ID
		}
		d.notifier.UpdateJobStatus(ctx, notifier.JobStatusUpdate{
			CorrelationID: job.CorrelationID,
			Status:        domain.SentMessageStatus,
			MessageID:     messageID,
		})

	case FailedJobState:
		log.WithFields(logrus.Fields{"error": sendErr}).Error("Giving up on outbound job")
		d.notifier.UpdateJobStatus(ctx, notifier.JobStatusUpdate{
			CorrelationID: job.CorrelationID,
			Status:        domain.FailedMessageStatus,
			ErrorMessage:  sendErr.Error(),
		})

	case RetryingJobState:
		_, delay := d.policy.Next(job.Attempt, sendErr)

		retry := job
		retry.Attempt = job.Attempt + 1
		retry.NotBefore = d.now().Add(delay)

		log.WithFields(logrus.Fields{"error": sendErr, "delay": delay}).Warn("Outbound job failed, scheduling retry")

		if err := d.queue.Requeue(ctx, retry); err != nil {
			metrics.requeueFailures.Inc()
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to requeue outbound job")
			return err
		}
	}

	if state.Terminal() {
		metrics.terminalCounter.WithLabelValues(state.String()).Inc()
	}

	if err := delivery.Ack(ctx); err != nil {
		metrics.ackFailureCounter.Inc()
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to acknowledge outbound job")
		return err
	}

	return nil
}

func (d *Dispatcher) attempt(ctx context.Context, log *logrus.Entry, job domain.OutboundJob) (JobState, *protocol.Receipt, error) {
	d.active.Add(1)
	metrics.activeJobsGauge.Inc()
	defer func() {
		d.active.Add(-1)
		metrics.activeJobsGauge.Dec()
	}()

	log.WithFields(logrus.Fields{"state": AttemptingJobState}).Debug("Attempting outbound job")

	callDurationTimer := prometheus.NewTimer(metrics.attemptDuration)
	receipt, err := d.sender.Send(ctx, job.ConnectionID, job.Recipient, protocol.OutboundMessage(job.Message))
	callDurationTimer.ObserveDuration()

	state, _ := d.policy.Next(job.Attempt, err)
	metrics.attemptCounter.WithLabelValues(state.String()).Inc()

	return state, receipt, err
}
