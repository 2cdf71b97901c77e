package mqtt

import (
	"errors"
	"strings"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
)

const (
	defaultTopicPrefix string = "messaging-gateway"
	sessionsSegment    string = "sessions"
	eventSegment       string = "event"
	commandSegment     string = "command"
)

var ErrInvalidTopic = errors.New("invalid gateway topic")

// TopicVerifier checks that an incoming topic is <prefix>/sessions/<id>/event
type TopicVerifier struct {
	prefix string
}

func NewTopicVerifier(prefix string) *TopicVerifier {

	topicVerifier := &TopicVerifier{prefix: defaultTopicPrefix}
	if prefix != "" {
		topicVerifier.prefix = prefix
	}

	return topicVerifier
}

func (tv *TopicVerifier) VerifyEventTopic(topic string) (domain.ConnectionID, error) {

	prefix := tv.prefix + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", errors.Join(ErrInvalidTopic, errors.New("topic must start with "+tv.prefix))
	}

	items := strings.Split(strings.TrimPrefix(topic, prefix), "/")
	if len(items) != 3 || items[0] != sessionsSegment || items[2] != eventSegment || items[1] == "" {
		return "", errors.Join(ErrInvalidTopic, errors.New("topic needs to be "+tv.prefix+"/sessions/<connectionID>/event"))
	}

	return domain.ConnectionID(items[1]), nil
}

func NewTopicBuilder(prefix string) *TopicBuilder {

	topicBuilder := &TopicBuilder{prefix: defaultTopicPrefix}
	if prefix != "" {
		topicBuilder.prefix = prefix
	}

	return topicBuilder
}

type TopicBuilder struct {
	prefix string
}

func (tb *TopicBuilder) build(connectionID domain.ConnectionID, segment string) string {
	return strings.Join([]string{tb.prefix, sessionsSegment, string(connectionID), segment}, "/")
}

func (tb *TopicBuilder) BuildEventTopic(connectionID domain.ConnectionID) string {
	return tb.build(connectionID, eventSegment)
}

func (tb *TopicBuilder) BuildCommandTopic(connectionID domain.ConnectionID) string {
	return tb.build(connectionID, commandSegment)
}
