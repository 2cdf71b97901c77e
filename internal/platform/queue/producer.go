package queue

import (
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	kafka "github.com/segmentio/kafka-go"
)

func StartProducer(cfg *ProducerConfig) (*kafka.Writer, error) {
	logger.Log.Info("Starting a new Kafka producer..")
	logger.Log.Debugf("Kafka producer configuration: brokers=%s topic=%s balancer=%s",
		cfg.Brokers, cfg.Topic, cfg.Balancer)

	writerConfig := kafka.WriterConfig{
		Brokers:    cfg.Brokers,
		Topic:      cfg.Topic,
		BatchSize:  cfg.BatchSize,
		BatchBytes: cfg.BatchBytes,
	}

	if cfg.SaslConfig != nil {
		kafkaDialer, err := saslDialer(cfg.SaslConfig)
		if err != nil {
			logger.LogError("Failed to create a new Kafka dialer", err)
			return nil, err
		}
		writerConfig.Dialer = kafkaDialer
	}

	if cfg.Balancer == "hash" {
		writerConfig.Balancer = &kafka.Hash{}
	}

	w := kafka.NewWriter(writerConfig)

	logger.Log.Info("Producing messages to topic: ", cfg.Topic)

	return w, nil
}
