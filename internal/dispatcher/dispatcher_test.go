package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/notifier"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"

	"github.com/go-playground/assert/v2"
	"github.com/google/go-cmp/cmp"
)

func init() {
	logger.InitLogger()
}

var errSendFailed = errors.New("connection not found")

type sendCall struct {
	ConnectionID domain.ConnectionID
	Recipient    string
	Message      protocol.OutboundMessage
}

type fakeSender struct {
	sync.Mutex
	failures int
	calls    []sendCall
}

func (fs *fakeSender) Send(ctx context.Context, connectionID domain.ConnectionID, recipient string, message protocol.OutboundMessage) (*protocol.Receipt, error) {
	fs.Lock()
	defer fs.Unlock()

	fs.calls = append(fs.calls, sendCall{connectionID, recipient, message})

	if fs.failures < 0 || len(fs.calls) <= fs.failures {
		return nil, errSendFailed
	}

	return &protocol.Receipt{Key: protocol.MessageKey{RemoteJID: recipient, FromMe: true, ID: "wamid-1"}}, nil
}

type fakeJobNotifier struct {
	sync.Mutex
	jobStatuses []notifier.JobStatusUpdate
}

func (fn *fakeJobNotifier) Notify(ctx context.Context, connectionID domain.ConnectionID, event domain.EventKind, data map[string]interface{}) {
}

func (fn *fakeJobNotifier) UpdateConnectionStatus(ctx context.Context, connectionID domain.ConnectionID, status domain.ConnectionStatus) {
}

func (fn *fakeJobNotifier) SaveIncomingMessage(ctx context.Context, msg domain.InboundMessage) {
}

func (fn *fakeJobNotifier) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) {
}

func (fn *fakeJobNotifier) UpdateJobStatus(ctx context.Context, update notifier.JobStatusUpdate) {
	fn.Lock()
	defer fn.Unlock()
	fn.jobStatuses = append(fn.jobStatuses, update)
}

type fakeSleeper struct {
	sync.Mutex
	sleeps []time.Duration
}

func (fs *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	fs.Lock()
	defer fs.Unlock()
	fs.sleeps = append(fs.sleeps, d)
	return ctx.Err()
}

var fixedNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(sender Sender, n notifier.Notifier, sleeper *fakeSleeper) (*Dispatcher, *MemoryJobQueue) {
	q := NewMemoryJobQueue(10)
	d := NewDispatcher(q, sender, n,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BackoffBase: 2 * time.Second}),
		WithClock(func() time.Time { return fixedNow }, sleeper.sleep),
	)
	return d, q
}

// drain handles queued deliveries one at a time until the queue is empty
func drain(t *testing.T, d *Dispatcher, q *MemoryJobQueue) int {
	t.Helper()

	subscription, _ := q.Subscribe()
	defer subscription.Close()

	handled := 0
	for q.Waiting() > 0 {
		delivery, err := subscription.Next(context.TODO())
		if err != nil {
			t.Fatalf("unexpected error fetching job: %s", err)
		}
		if err := d.process(context.TODO(), delivery); err != nil {
			t.Fatalf("unexpected error processing job: %s", err)
		}
		handled++
	}
	return handled
}

func testJob() domain.OutboundJob {
	return domain.OutboundJob{
		ConnectionID:  "c1",
		CorrelationID: "log-1",
		Recipient:     "123",
		Message:       map[string]interface{}{"text": "hi"},
	}
}

func TestEnqueueRejectsIncompleteJob(t *testing.T) {
	d, q := newTestDispatcher(&fakeSender{}, &fakeJobNotifier{}, &fakeSleeper{})

	job := testJob()
	job.Recipient = ""

	err := d.Enqueue(context.TODO(), job)
	assert.Equal(t, err, ErrInvalidJob)
	assert.Equal(t, q.Waiting(), int64(0))
}

func TestEnqueueResetsAttempt(t *testing.T) {
	d, q := newTestDispatcher(&fakeSender{}, &fakeJobNotifier{}, &fakeSleeper{})

	job := testJob()
	job.Attempt = 7

	err := d.Enqueue(context.TODO(), job)
	assert.Equal(t, err, nil)
	assert.Equal(t, d.Counters(), Counters{Waiting: 1, Active: 0})

	subscription, _ := q.Subscribe()
	delivery, _ := subscription.Next(context.TODO())
	assert.Equal(t, delivery.Job.Attempt, 1)
}

func TestExactlyOneTerminalReport(t *testing.T) {
	testCases := []struct {
		name           string
		failures       int
		expectedCalls  int
		expectedStatus notifier.JobStatusUpdate
		expectedSleeps []time.Duration
	}{
		{
			name:          "first attempt succeeds",
			failures:      0,
			expectedCalls: 1,
			expectedStatus: notifier.JobStatusUpdate{
				CorrelationID: "log-1", Status: domain.SentMessageStatus, MessageID: "wamid-1",
			},
		},
		{
			name:          "one failure then success",
			failures:      1,
			expectedCalls: 2,
			expectedStatus: notifier.JobStatusUpdate{
				CorrelationID: "log-1", Status: domain.SentMessageStatus, MessageID: "wamid-1",
			},
			expectedSleeps: []time.Duration{2 * time.Second},
		},
		{
			name:          "two failures then success",
			failures:      2,
			expectedCalls: 3,
			expectedStatus: notifier.JobStatusUpdate{
				CorrelationID: "log-1", Status: domain.SentMessageStatus, MessageID: "wamid-1",
			},
			expectedSleeps: []time.Duration{2 * time.Second, 4 * time.Second},
		},
		{
			name:          "every attempt fails",
			failures:      -1,
			expectedCalls: 3,
			expectedStatus: notifier.JobStatusUpdate{
				CorrelationID: "log-1", Status: domain.FailedMessageStatus, ErrorMessage: errSendFailed.Error(),
			},
			expectedSleeps: []time.Duration{2 * time.Second, 4 * time.Second},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sender := &fakeSender{failures: tc.failures}
			n := &fakeJobNotifier{}
			sleeper := &fakeSleeper{}
			d, q := newTestDispatcher(sender, n, sleeper)

			if err := d.Enqueue(context.TODO(), testJob()); err != nil {
				t.Fatalf("unexpected error enqueuing job: %s", err)
			}

			handled := drain(t, d, q)

			assert.Equal(t, handled, tc.expectedCalls)
			assert.Equal(t, len(sender.calls), tc.expectedCalls)

			if diff := cmp.Diff([]notifier.JobStatusUpdate{tc.expectedStatus}, n.jobStatuses); diff != "" {
				t.Errorf("terminal reports mismatch (-want +got):\n%s", diff)
			}

			if diff := cmp.Diff(tc.expectedSleeps, sleeper.sleeps); diff != "" {
				t.Errorf("backoff mismatch (-want +got):\n%s", diff)
			}

			assert.Equal(t, d.Counters(), Counters{Waiting: 0, Active: 0})
		})
	}
}

func TestUnknownConnectionJobFails(t *testing.T) {
	sender := &fakeSender{failures: -1}
	n := &fakeJobNotifier{}
	d, q := newTestDispatcher(sender, n, &fakeSleeper{})

	if err := d.Enqueue(context.TODO(), testJob()); err != nil {
		t.Fatalf("unexpected error enqueuing job: %s", err)
	}

	drain(t, d, q)

	for _, call := range sender.calls {
		assert.Equal(t, call, sendCall{"c1", "123", protocol.OutboundMessage{"text": "hi"}})
	}

	assert.Equal(t, len(n.jobStatuses), 1)
	assert.Equal(t, n.jobStatuses[0].Status, domain.FailedMessageStatus)
	for _, status := range n.jobStatuses {
		assert.NotEqual(t, status.Status, domain.SentMessageStatus)
	}
}

func TestRetriedJobCarriesBackoff(t *testing.T) {
	sender := &fakeSender{failures: -1}
	d, q := newTestDispatcher(sender, &fakeJobNotifier{}, &fakeSleeper{})

	d.Enqueue(context.TODO(), testJob())

	subscription, _ := q.Subscribe()
	delivery, _ := subscription.Next(context.TODO())
	if err := d.process(context.TODO(), delivery); err != nil {
		t.Fatalf("unexpected error processing job: %s", err)
	}

	retry, _ := subscription.Next(context.TODO())
	assert.Equal(t, retry.Job.Attempt, 2)
	assert.Equal(t, retry.Job.NotBefore, fixedNow.Add(2*time.Second))
}

func TestRunStopsWhenQueueCloses(t *testing.T) {
	sender := &fakeSender{}
	n := &fakeJobNotifier{}
	q := NewMemoryJobQueue(10)
	d := NewDispatcher(q, sender, n, WithWorkers(2))

	d.Enqueue(context.TODO(), testJob())

	done := make(chan error)
	go func() {
		done <- d.Run(context.TODO())
	}()

	deadline := time.After(5 * time.Second)
	for {
		n.Lock()
		reported := len(n.jobStatuses)
		n.Unlock()
		if reported == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for job to be sent")
		case <-time.After(10 * time.Millisecond):
		}
	}

	q.Close()

	select {
	case err := <-done:
		assert.Equal(t, err, nil)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop after queue closed")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d := NewDispatcher(NewMemoryJobQueue(1), &fakeSender{}, &fakeJobNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- d.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.Equal(t, err, nil)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}

func TestRetryDoesNotBlockOnFullQueue(t *testing.T) {
	sender := &fakeSender{failures: -1}
	n := &fakeJobNotifier{}
	sleeper := &fakeSleeper{}
	q := NewMemoryJobQueue(1)
	d := NewDispatcher(q, sender, n,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BackoffBase: 2 * time.Second}),
		WithClock(func() time.Time { return fixedNow }, sleeper.sleep),
	)

	first := testJob()
	second := testJob()
	second.CorrelationID = "log-2"

	d.Enqueue(context.TODO(), first)

	subscription, _ := q.Subscribe()
	delivery, _ := subscription.Next(context.TODO())

	d.Enqueue(context.TODO(), second)

	processed := make(chan error)
	go func() {
		processed <- d.process(context.TODO(), delivery)
	}()

	select {
	case err := <-processed:
		assert.Equal(t, err, nil)
	case <-time.After(5 * time.Second):
		t.Fatal("retry blocked on a full queue")
	}

	assert.Equal(t, q.Waiting(), int64(2))

	drain(t, d, q)

	reported := map[string]domain.MessageStatus{}
	for _, status := range n.jobStatuses {
		reported[status.CorrelationID] = status.Status
	}
	assert.Equal(t, len(n.jobStatuses), 2)
	assert.Equal(t, reported["log-1"], domain.FailedMessageStatus)
	assert.Equal(t, reported["log-2"], domain.FailedMessageStatus)
	assert.Equal(t, len(sender.calls), 6)
}

func TestRunKeepsDrainingWhenRetriesFillQueue(t *testing.T) {
	sender := &fakeSender{failures: -1}
	n := &fakeJobNotifier{}
	q := NewMemoryJobQueue(1)
	d := NewDispatcher(q, sender, n,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- d.Run(ctx)
	}()

	for i, correlationID := range []string{"log-1", "log-2", "log-3"} {
		job := testJob()
		job.CorrelationID = correlationID
		job.ConnectionID = domain.ConnectionID(fmt.Sprintf("c%d", i))
		if err := d.Enqueue(ctx, job); err != nil {
			t.Fatalf("unexpected error enqueueing job: %s", err)
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		n.Lock()
		reported := len(n.jobStatuses)
		n.Unlock()
		if reported == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("dispatcher stalled with %d of 3 terminal reports", reported)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	assert.Equal(t, q.Waiting(), int64(0))
	assert.Equal(t, d.Counters().Active, int64(0))
}
