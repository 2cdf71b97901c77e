package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var ErrHandleClosed = errors.New("gateway handle is closed")

type clientFactory func(connectionID domain.ConnectionID, onConnectionLost MQTT.ConnectionLostHandler) (MQTT.Client, error)

// GatewayOpener opens protocol sessions hosted by the external protocol
// gateway.  Each session gets its own broker link.
type GatewayOpener struct {
	topicBuilder   *TopicBuilder
	qos            byte
	requestTimeout time.Duration
	quiesce        uint
	newClient      clientFactory
}

func NewGatewayOpener(cfg *config.Config, brokerOptions ...MqttClientOptionsFunc) *GatewayOpener {
	opener := &GatewayOpener{
		topicBuilder:   NewTopicBuilder(cfg.MqttTopicPrefix),
		qos:            cfg.MqttPublishQoS,
		requestTimeout: cfg.MqttRequestTimeout,
		quiesce:        cfg.MqttDisconnectQuiesceTime,
	}

	opener.newClient = func(connectionID domain.ConnectionID, onConnectionLost MQTT.ConnectionLostHandler) (MQTT.Client, error) {
		options := append([]MqttClientOptionsFunc{
			WithClientID(cfg.MqttClientIdPrefix + string(connectionID)),
			WithCleanSession(true),
			WithAutoReconnect(false),
			WithConnectionLostHandler(onConnectionLost),
		}, brokerOptions...)

		return CreateBrokerConnection(cfg.MqttBrokerAddress, cfg.MqttConnectionEstablishTimeout, options...)
	}

	return opener
}

func (o *GatewayOpener) Open(ctx context.Context, connectionID domain.ConnectionID, options protocol.Options) (protocol.Handle, error) {
	h := newGatewayHandle(connectionID, o.topicBuilder, o.qos, o.requestTimeout, o.quiesce, options)

	client, err := o.newClient(connectionID, h.onConnectionLost)
	if err != nil {
		return nil, err
	}

	if err := h.start(client); err != nil {
		h.Close()
		return nil, err
	}

	_, err = h.request(ctx, openCommand, OpenArguments{
		Credentials:         options.Credentials,
		Browser:             options.Browser,
		PrintQRInTerminal:   options.PrintQRInTerminal,
		MarkOnlineOnConnect: options.MarkOnlineOnConnect,
		SyncFullHistory:     options.SyncFullHistory,
	})
	if err != nil {
		h.Close()
		return nil, err
	}

	return h, nil
}

type gatewayHandle struct {
	connectionID   domain.ConnectionID
	topicBuilder   *TopicBuilder
	qos            byte
	requestTimeout time.Duration
	quiesce        uint
	options        protocol.Options
	log            *logrus.Entry

	client  MQTT.Client
	started bool

	pendingMu sync.Mutex
	pending   map[string]chan *ResponseContent

	events    *eventQueue
	done      chan struct{}
	closeOnce sync.Once
}

func newGatewayHandle(connectionID domain.ConnectionID, topicBuilder *TopicBuilder, qos byte, requestTimeout time.Duration, quiesce uint, options protocol.Options) *gatewayHandle {
	return &gatewayHandle{
		connectionID:   connectionID,
		topicBuilder:   topicBuilder,
		qos:            qos,
		requestTimeout: requestTimeout,
		quiesce:        quiesce,
		options:        options,
		log:            logger.Log.WithFields(logrus.Fields{"connection_id": connectionID}),
		pending:        make(map[string]chan *ResponseContent),
		events:         newEventQueue(),
		done:           make(chan struct{}),
	}
}

func (h *gatewayHandle) start(client MQTT.Client) error {
	h.client = client

	topic := h.topicBuilder.BuildEventTopic(h.connectionID)
	h.log.Debug("Subscribing to topic: ", topic)

	token := client.Subscribe(topic, h.qos, h.onMessage)
	if !token.WaitTimeout(h.requestTimeout) {
		return ErrTimeout
	}
	if token.Error() != nil {
		h.log.WithFields(logrus.Fields{"error": token.Error()}).Errorf("Subscribing to topic (%s) failed", topic)
		return token.Error()
	}

	h.started = true
	metrics.openHandlesGauge.Inc()

	go h.processEvents()

	return nil
}

// onMessage runs on the paho router.  Responses complete pending requests
// right here; everything else is queued for the event goroutine.
func (h *gatewayHandle) onMessage(client MQTT.Client, message MQTT.Message) {
	if len(message.Payload()) == 0 {
		return
	}

	var event EventMessage
	if err := json.Unmarshal(message.Payload(), &event); err != nil {
		h.log.WithFields(logrus.Fields{"error": err, "topic": message.Topic()}).Error("Failed to unmarshal gateway event")
		return
	}

	metrics.eventReceivedCounter.With(prometheus.Labels{"event": event.Event}).Inc()

	if event.Event == responseEvent {
		h.completeRequest(event)
		return
	}

	h.events.push(event)
}

func (h *gatewayHandle) onConnectionLost(client MQTT.Client, err error) {
	connectErr := ClassifyConnectionLostError(err)

	metrics.connectionLostCounter.With(prometheus.Labels{"category": connectErr.Category}).Inc()
	h.log.WithFields(logrus.Fields{"error": connectErr, "code": connectErr.Code}).Warn("Lost gateway broker connection")

	content, _ := json.Marshal(protocol.ConnectionUpdate{
		Connection: protocol.ClosedState,
		LastDisconnect: &protocol.DisconnectReason{
			StatusCode: connectErr.Code,
			Message:    connectErr.Error(),
		},
	})

	h.events.push(EventMessage{Event: connectionUpdateEvent, Content: content})
}

func (h *gatewayHandle) completeRequest(event EventMessage) {
	h.pendingMu.Lock()
	waiter, found := h.pending[event.ResponseTo]
	delete(h.pending, event.ResponseTo)
	h.pendingMu.Unlock()

	if !found {
		h.log.WithFields(logrus.Fields{"response_to": event.ResponseTo}).Debug("Dropping response to unknown request")
		return
	}

	var response ResponseContent
	if err := json.Unmarshal(event.Content, &response); err != nil {
		response.Error = &ResponseError{Message: fmt.Sprintf("malformed response: %s", err)}
	}

	waiter <- &response
}

func (h *gatewayHandle) publish(command string, arguments interface{}) (string, error) {
	messageID, message, err := buildCommandMessage(command, arguments)
	if err != nil {
		return "", err
	}

	topic := h.topicBuilder.BuildCommandTopic(h.connectionID)

	err = sendMessage(h.client, h.log, h.connectionID, messageID, topic, h.qos, h.requestTimeout, message)

	return messageID.String(), err
}

// request publishes a command and waits for the gateway's response to it
func (h *gatewayHandle) request(ctx context.Context, command string, arguments interface{}) (json.RawMessage, error) {
	select {
	case <-h.done:
		return nil, ErrHandleClosed
	default:
	}

	requestDurationTimer := prometheus.NewTimer(metrics.requestDuration.With(prometheus.Labels{"command": command}))
	defer requestDurationTimer.ObserveDuration()

	messageID, message, err := buildCommandMessage(command, arguments)
	if err != nil {
		return nil, err
	}

	waiter := make(chan *ResponseContent, 1)

	h.pendingMu.Lock()
	h.pending[messageID.String()] = waiter
	h.pendingMu.Unlock()

	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, messageID.String())
		h.pendingMu.Unlock()
	}()

	topic := h.topicBuilder.BuildCommandTopic(h.connectionID)
	if err := sendMessage(h.client, h.log, h.connectionID, messageID, topic, h.qos, h.requestTimeout, message); err != nil {
		return nil, err
	}

	timer := time.NewTimer(h.requestTimeout)
	defer timer.Stop()

	select {
	case response := <-waiter:
		if response.Error != nil {
			return nil, response.Error
		}
		return response.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no response to %s", ErrTimeout, command)
	case <-h.done:
		return nil, ErrHandleClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *gatewayHandle) Send(ctx context.Context, address string, message protocol.OutboundMessage) (*protocol.Receipt, error) {
	result, err := h.request(ctx, sendCommand, SendArguments{Address: address, Message: message})
	if err != nil {
		return nil, err
	}

	var receipt protocol.Receipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, err
	}

	return &receipt, nil
}

func (h *gatewayHandle) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	result, err := h.request(ctx, requestPairingCodeCommand, PairingCodeArguments{PhoneNumber: phoneNumber})
	if err != nil {
		return "", err
	}

	var pairingCode PairingCodeResult
	if err := json.Unmarshal(result, &pairingCode); err != nil {
		return "", err
	}

	return pairingCode.Code, nil
}

func (h *gatewayHandle) FetchGroupMetadata(ctx context.Context, groupID string) (*protocol.GroupMetadata, error) {
	result, err := h.request(ctx, groupMetadataCommand, GroupMetadataArguments{GroupID: groupID})
	if err != nil {
		return nil, err
	}

	var metadata protocol.GroupMetadata
	if err := json.Unmarshal(result, &metadata); err != nil {
		return nil, err
	}

	return &metadata, nil
}

func (h *gatewayHandle) Logout(ctx context.Context) error {
	_, err := h.request(ctx, logoutCommand, nil)
	return err
}

// Close may be called from inside an event handler, so it never waits for
// the event goroutine or the broker disconnect.
func (h *gatewayHandle) Close() {
	h.closeOnce.Do(func() {
		close(h.done)

		if h.client == nil {
			return
		}

		if h.started {
			metrics.openHandlesGauge.Dec()
		}

		go func() {
			h.client.Unsubscribe(h.topicBuilder.BuildEventTopic(h.connectionID))
			h.client.Disconnect(h.quiesce)
		}()
	})
}
