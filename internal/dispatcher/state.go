package dispatcher

import (
	"time"
)

// JobState tracks an outbound job from the queue to its single terminal
// report.  Pending -> Attempting -> (Retrying -> Attempting)* -> Sent | Failed
type JobState int

const (
	PendingJobState JobState = iota
	AttemptingJobState
	RetryingJobState
	SentJobState
	FailedJobState
)

func (js JobState) String() string {
	switch js {
	case PendingJobState:
		return "pending"
	case AttemptingJobState:
		return "attempting"
	case RetryingJobState:
		return "retrying"
	case SentJobState:
		return "sent"
	case FailedJobState:
		return "failed"
	}
	return "unknown"
}

func (js JobState) Terminal() bool {
	return js == SentJobState || js == FailedJobState
}

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 2 * time.Second
)

type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BackoffBase: DefaultBackoffBase}
}

// Backoff is the delay after the given failed attempt: base, 2*base, 4*base...
func (rp RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return rp.BackoffBase << (attempt - 1)
}

// Next decides where a job goes after the given attempt finished with
// sendErr.  The returned delay is only meaningful for RetryingJobState.
func (rp RetryPolicy) Next(attempt int, sendErr error) (JobState, time.Duration) {
	if sendErr == nil {
		return SentJobState, 0
	}

	if attempt >= rp.MaxAttempts {
		return FailedJobState, 0
	}

	return RetryingJobState, rp.Backoff(attempt)
}
