package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"sync"

	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/platform/queue"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const attemptHeader = "attempt"

// KafkaJobQueue keys jobs by connection id.  Each subscription is its own
// consumer group member, so offsets are committed only after a job is handled.
type KafkaJobQueue struct {
	writer         *kafka.Writer
	consumerConfig *queue.ConsumerConfig

	sync.Mutex
	readers []*kafka.Reader
}

func NewKafkaJobQueue(cfg *config.Config) (*KafkaJobQueue, error) {
	saslConfig := queue.NewSaslConfig(cfg.KafkaSASLMechanism, cfg.KafkaUsername, cfg.KafkaPassword, cfg.KafkaCA)

	writer, err := queue.StartProducer(&queue.ProducerConfig{
		Brokers:    cfg.KafkaBrokers,
		SaslConfig: saslConfig,
		Topic:      cfg.KafkaJobsTopic,
		BatchSize:  cfg.KafkaJobsBatchSize,
		BatchBytes: cfg.KafkaJobsBatchBytes,
		Balancer:   "hash",
	})
	if err != nil {
		return nil, err
	}

	return &KafkaJobQueue{
		writer: writer,
		consumerConfig: &queue.ConsumerConfig{
			Brokers:    cfg.KafkaBrokers,
			SaslConfig: saslConfig,
			Topic:      cfg.KafkaJobsTopic,
			GroupID:    cfg.KafkaJobsGroupID,
		},
	}, nil
}

func encodeJob(job domain.OutboundJob) (kafka.Message, error) {
	value, err := json.Marshal(job)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(job.ConnectionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: attemptHeader, Value: []byte(strconv.Itoa(job.Attempt))},
		},
	}, nil
}

func decodeJob(msg kafka.Message) (domain.OutboundJob, error) {
	var job domain.OutboundJob
	err := json.Unmarshal(msg.Value, &job)
	return job, err
}

func (kq *KafkaJobQueue) Publish(ctx context.Context, job domain.OutboundJob) error {
	msg, err := encodeJob(job)
	if err != nil {
		return err
	}

	return kq.writer.WriteMessages(ctx, msg)
}

// Requeue writes the retry to the topic like any other job.  The writer does
// not depend on the readers, so it cannot wait on the worker calling it.
func (kq *KafkaJobQueue) Requeue(ctx context.Context, job domain.OutboundJob) error {
	return kq.Publish(ctx, job)
}

func (kq *KafkaJobQueue) Subscribe() (Subscription, error) {
	reader, err := queue.StartConsumer(kq.consumerConfig)
	if err != nil {
		return nil, err
	}

	kq.Lock()
	kq.readers = append(kq.readers, reader)
	kq.Unlock()

	return &kafkaSubscription{reader: reader}, nil
}

func (kq *KafkaJobQueue) Waiting() int64 {
	kq.Lock()
	defer kq.Unlock()

	var lag int64
	for _, reader := range kq.readers {
		if readerLag := reader.Stats().Lag; readerLag > 0 {
			lag += readerLag
		}
	}
	return lag
}

func (kq *KafkaJobQueue) Close() error {
	kq.Lock()
	defer kq.Unlock()

	var errs []error
	for _, reader := range kq.readers {
		errs = append(errs, reader.Close())
	}
	errs = append(errs, kq.writer.Close())

	return errors.Join(errs...)
}

type kafkaSubscription struct {
	reader *kafka.Reader
}

func (ks *kafkaSubscription) Next(ctx context.Context) (*Delivery, error) {
	for {
		msg, err := ks.reader.FetchMessage(ctx)
		if errors.Is(err, io.EOF) {
			return nil, ErrQueueClosed
		} else if err != nil {
			return nil, err
		}

		job, err := decodeJob(msg)
		if err != nil {
			// a payload that cannot be decoded will never succeed, skip past it
			logger.Log.WithFields(logrus.Fields{"error": err, "offset": msg.Offset, "partition": msg.Partition}).Error("Unable to decode outbound job")
			if err := ks.reader.CommitMessages(ctx, msg); err != nil {
				return nil, err
			}
			continue
		}

		return &Delivery{
			Job: job,
			ack: func(ctx context.Context) error {
				return ks.reader.CommitMessages(ctx, msg)
			},
		}, nil
	}
}

func (ks *kafkaSubscription) Close() error {
	return ks.reader.Close()
}
