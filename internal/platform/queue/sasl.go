package queue

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	kafka "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

func saslDialer(cfg *SaslConfig) (*kafka.Dialer, error) {

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.KafkaCA != "" {
		caCert, err := os.ReadFile(cfg.KafkaCA)
		if err != nil {
			logger.LogError("Unable to read kafka cert", err)
			return nil, err
		}
		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	var mechanism sasl.Mechanism
	var err error

	switch strings.ToLower(cfg.SaslMechanism) {
	case "plain":
		mechanism = plain.Mechanism{
			Username: cfg.SaslUsername,
			Password: cfg.SaslPassword,
		}
	case "scram-sha-512":
		mechanism, err = scram.Mechanism(scram.SHA512, cfg.SaslUsername, cfg.SaslPassword)
	case "scram-sha-256":
		mechanism, err = scram.Mechanism(scram.SHA256, cfg.SaslUsername, cfg.SaslPassword)
	default:
		return nil, fmt.Errorf("unsupported sasl mechanism: %s", cfg.SaslMechanism)
	}

	if err != nil {
		logger.LogError("Failed to create SCRAM SASL mechanism", err)
		return nil, err
	}

	return &kafka.Dialer{
		Timeout:       10 * time.Second,
		DualStack:     true,
		SASLMechanism: mechanism,
		TLS:           tlsConfig,
	}, nil
}
