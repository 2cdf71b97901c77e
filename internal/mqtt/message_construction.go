package mqtt

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/domain"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func buildCommandMessage(command string, arguments interface{}) (*uuid.UUID, *CommandMessage, error) {

	messageID, err := uuid.NewRandom()
	if err != nil {
		return nil, nil, err
	}

	message := CommandMessage{
		MessageType: "command",
		MessageID:   messageID.String(),
		Version:     messageVersion,
		Sent:        time.Now().UTC(),
		Command:     command,
		Arguments:   arguments,
	}

	metrics.sentCommandCounter.With(prometheus.Labels{"command": command}).Inc()

	return &messageID, &message, nil
}

func encodeMessage(message interface{}) ([]byte, error) {
	messageBuffer := &bytes.Buffer{}
	encoder := json.NewEncoder(messageBuffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(message); err != nil {
		return nil, err
	}
	return messageBuffer.Bytes(), nil
}

func sendMessage(mqttClient MQTT.Client, log *logrus.Entry, connectionID domain.ConnectionID, messageID *uuid.UUID, topic string, qos byte, timeout time.Duration, message interface{}) error {

	log = log.WithFields(logrus.Fields{"message_id": messageID, "connection_id": connectionID})

	payload, err := encodeMessage(message)
	if err != nil {
		return err
	}

	log.Trace("Sending message to gateway on topic: ", topic, " qos: ", qos)

	token := mqttClient.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(timeout) {
		metrics.messagePublishedFailureCounter.Inc()
		log.Error("Timed out sending a message to MQTT broker")
		return ErrTimeout
	}

	if token.Error() != nil {
		log.WithFields(logrus.Fields{"error": token.Error()}).Error("Error sending a message to MQTT broker")
		metrics.messagePublishedFailureCounter.Inc()
		return token.Error()
	}

	metrics.messagePublishedSuccessCounter.Inc()

	return nil
}
