package mqtt

import (
	"encoding/json"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err error
}

func (ft *fakeToken) Wait() bool                     { return true }
func (ft *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (ft *fakeToken) Error() error                   { return ft.err }

func (ft *fakeToken) Done() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (fm *fakeMessage) Duplicate() bool   { return false }
func (fm *fakeMessage) Qos() byte         { return 1 }
func (fm *fakeMessage) Retained() bool    { return false }
func (fm *fakeMessage) Topic() string     { return fm.topic }
func (fm *fakeMessage) MessageID() uint16 { return 1 }
func (fm *fakeMessage) Payload() []byte   { return fm.payload }
func (fm *fakeMessage) Ack()              {}

// fakeClient stands in for the broker.  respond is called for every
// published command and may return events to deliver back to the subscriber.
type fakeClient struct {
	sync.Mutex
	published    []CommandMessage
	subscribed   []string
	handler      MQTT.MessageHandler
	disconnected chan struct{}
	respond      func(CommandMessage) []EventMessage
}

func newFakeClient(respond func(CommandMessage) []EventMessage) *fakeClient {
	return &fakeClient{respond: respond, disconnected: make(chan struct{})}
}

func (fc *fakeClient) IsConnected() bool      { return true }
func (fc *fakeClient) IsConnectionOpen() bool { return true }
func (fc *fakeClient) Connect() MQTT.Token    { return &fakeToken{} }

func (fc *fakeClient) Disconnect(quiesce uint) {
	close(fc.disconnected)
}

func (fc *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	var command CommandMessage
	if err := json.Unmarshal(payload.([]byte), &command); err != nil {
		return &fakeToken{err: err}
	}

	fc.Lock()
	fc.published = append(fc.published, command)
	respond := fc.respond
	fc.Unlock()

	if respond != nil {
		for _, event := range respond(command) {
			fc.deliver("", event)
		}
	}

	return &fakeToken{}
}

func (fc *fakeClient) Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token {
	fc.Lock()
	defer fc.Unlock()
	fc.subscribed = append(fc.subscribed, topic)
	fc.handler = callback
	return &fakeToken{}
}

func (fc *fakeClient) SubscribeMultiple(filters map[string]byte, callback MQTT.MessageHandler) MQTT.Token {
	return &fakeToken{}
}

func (fc *fakeClient) Unsubscribe(topics ...string) MQTT.Token {
	return &fakeToken{}
}

func (fc *fakeClient) AddRoute(topic string, callback MQTT.MessageHandler) {}

func (fc *fakeClient) OptionsReader() MQTT.ClientOptionsReader {
	return MQTT.ClientOptionsReader{}
}

func (fc *fakeClient) deliver(topic string, event EventMessage) {
	fc.Lock()
	handler := fc.handler
	fc.Unlock()

	payload, _ := json.Marshal(event)
	handler(fc, &fakeMessage{topic: topic, payload: payload})
}

func (fc *fakeClient) commands() []CommandMessage {
	fc.Lock()
	defer fc.Unlock()
	return append([]CommandMessage(nil), fc.published...)
}

func respondWith(command CommandMessage, result interface{}) []EventMessage {
	encoded, _ := json.Marshal(result)
	content, _ := json.Marshal(ResponseContent{Result: encoded})
	return []EventMessage{{MessageType: "event", Event: responseEvent, ResponseTo: command.MessageID, Content: content}}
}

func respondWithError(command CommandMessage, code int, message string) []EventMessage {
	content, _ := json.Marshal(ResponseContent{Error: &ResponseError{Code: code, Message: message}})
	return []EventMessage{{MessageType: "event", Event: responseEvent, ResponseTo: command.MessageID, Content: content}}
}

func newEvent(event string, content interface{}) EventMessage {
	encoded, _ := json.Marshal(content)
	return EventMessage{MessageType: "event", MessageID: event + "-1", Event: event, Content: encoded}
}
