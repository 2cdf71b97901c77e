package queue

import (
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	kafka "github.com/segmentio/kafka-go"
)

func StartConsumer(cfg *ConsumerConfig) (*kafka.Reader, error) {
	logger.Log.Info("Starting Kafka message consumer...")
	logger.Log.Debugf("Kafka consumer configuration: brokers=%s topic=%s group=%s",
		cfg.Brokers, cfg.Topic, cfg.GroupID)

	readerConfig := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: cfg.ConsumerOffset,
	}

	if readerConfig.StartOffset == 0 {
		readerConfig.StartOffset = kafka.FirstOffset
	}

	if cfg.SaslConfig != nil {
		kafkaDialer, err := saslDialer(cfg.SaslConfig)
		if err != nil {
			logger.LogError("Failed to create a new Kafka dialer", err)
			return nil, err
		}
		readerConfig.Dialer = kafkaDialer
	}

	r := kafka.NewReader(readerConfig)

	logger.Log.Info("Consuming messages from topic: ", cfg.Topic)

	return r, nil
}
