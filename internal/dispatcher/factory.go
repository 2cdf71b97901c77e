package dispatcher

import (
	"fmt"

	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/notifier"
)

func NewJobQueue(cfg *config.Config) (JobQueue, error) {
	switch cfg.JobQueueImpl {
	case "kafka":
		return NewKafkaJobQueue(cfg)
	case "memory":
		return NewMemoryJobQueue(cfg.MemoryJobQueueSize), nil
	default:
		return nil, fmt.Errorf("invalid job queue impl requested: %s", cfg.JobQueueImpl)
	}
}

func NewDispatcherFromConfig(cfg *config.Config, queue JobQueue, sender Sender, n notifier.Notifier) *Dispatcher {
	return NewDispatcher(queue, sender, n,
		WithWorkers(cfg.DispatcherWorkers),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts: cfg.DispatcherMaxAttempts,
			BackoffBase: cfg.DispatcherBackoffBase,
		}),
	)
}
