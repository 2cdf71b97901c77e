package mqtt

import (
	"context"
	"crypto/tls"
	"net/http"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/platform/utils/jwt_utils"

	"github.com/sirupsen/logrus"
)

const gatewayTokenHeader = "X-Gateway-Token"

type MqttClientOptionsFunc func(*MQTT.ClientOptions) error

func WithJwtAsHttpHeader(tokenGenerator jwt_utils.JwtGenerator) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		jwtToken, err := tokenGenerator(context.Background())
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to retrieve the JWT Token for the MQTT broker connection")
			return err
		}

		headers := http.Header{}
		headers.Add(gatewayTokenHeader, jwtToken)
		opts.SetHTTPHeaders(headers)

		return nil
	}
}

// WithJwtReconnectingHandler refreshes the token before paho retries a
// dropped connection
func WithJwtReconnectingHandler(tokenGenerator jwt_utils.JwtGenerator) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		tokenRefresher := func(c MQTT.Client, opts *MQTT.ClientOptions) {
			logger.Log.Debug("Attempting JWT token refresh")
			jwtToken, err := tokenGenerator(context.Background())
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to refresh the JWT Token for the MQTT broker connection")
				return
			}
			opts.HTTPHeaders.Set(gatewayTokenHeader, jwtToken)
		}
		opts.SetReconnectingHandler(tokenRefresher)
		return nil
	}
}

func WithTlsConfig(tlsConfig *tls.Config) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetTLSConfig(tlsConfig)
		return nil
	}
}

func WithClientID(clientID string) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetClientID(clientID)
		return nil
	}
}

func WithCleanSession(cleanSession bool) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetCleanSession(cleanSession)
		return nil
	}
}

// WithAutoReconnect is disabled for session links: the session layer owns
// the reconnect policy
func WithAutoReconnect(autoReconnect bool) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetAutoReconnect(autoReconnect)
		return nil
	}
}

func WithConnectionLostHandler(handler MQTT.ConnectionLostHandler) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetConnectionLostHandler(handler)
		return nil
	}
}

func NewBrokerOptions(brokerUrl string, opts ...MqttClientOptionsFunc) (*MQTT.ClientOptions, error) {
	connOpts := MQTT.NewClientOptions()

	connOpts.AddBroker(brokerUrl)

	for _, opt := range opts {
		err := opt(connOpts)
		if err != nil {
			return nil, err
		}
	}

	return connOpts, nil
}
