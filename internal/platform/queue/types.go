package queue

type ProducerConfig struct {
	Brokers    []string
	SaslConfig *SaslConfig
	Topic      string
	BatchSize  int
	BatchBytes int
	Balancer   string
}

type ConsumerConfig struct {
	Brokers        []string
	SaslConfig     *SaslConfig
	Topic          string
	GroupID        string
	ConsumerOffset int64
}

type SaslConfig struct {
	SaslMechanism string
	SaslUsername  string
	SaslPassword  string
	KafkaCA       string
}

// NewSaslConfig returns nil when no username is configured, which leaves
// the connection in plaintext mode
func NewSaslConfig(mechanism, username, password, kafkaCA string) *SaslConfig {
	if username == "" {
		return nil
	}

	return &SaslConfig{
		SaslMechanism: mechanism,
		SaslUsername:  username,
		SaslPassword:  password,
		KafkaCA:       kafkaCA,
	}
}
