package mqtt

import (
	"context"
	"encoding/json"

	"github.com/RedHatInsights/messaging-connector/internal/protocol"

	"github.com/sirupsen/logrus"
)

// processEvents delivers gateway events to the session's handlers one at a
// time, in the order they arrived
func (h *gatewayHandle) processEvents() {
	for {
		select {
		case <-h.done:
			return
		case <-h.events.signal:
		}

		for _, event := range h.events.drain() {
			select {
			case <-h.done:
				return
			default:
			}

			h.dispatch(event)
		}
	}
}

func (h *gatewayHandle) dispatch(event EventMessage) {
	log := h.log.WithFields(logrus.Fields{"event": event.Event, "message_id": event.MessageID})
	handlers := h.options.Handlers

	switch event.Event {
	case connectionUpdateEvent:
		var update protocol.ConnectionUpdate
		if decodeEvent(log, event, &update) && handlers.OnConnectionUpdate != nil {
			handlers.OnConnectionUpdate(update)
		}

	case credentialsUpdateEvent:
		var credentials protocol.Credentials
		if decodeEvent(log, event, &credentials) && handlers.OnCredentialsUpdate != nil {
			if err := handlers.OnCredentialsUpdate(&credentials); err != nil {
				log.WithFields(logrus.Fields{"error": err}).Error("Credentials update was not persisted")
			}
		}

	case messagesUpsertEvent:
		var messages []protocol.Message
		if decodeEvent(log, event, &messages) && handlers.OnMessagesUpsert != nil {
			handlers.OnMessagesUpsert(messages)
		}

	case messagesUpdateEvent:
		var updates []protocol.MessageUpdate
		if decodeEvent(log, event, &updates) && handlers.OnMessagesUpdate != nil {
			handlers.OnMessagesUpdate(updates)
		}

	case groupsUpdateEvent:
		var updates []protocol.GroupUpdate
		if decodeEvent(log, event, &updates) && handlers.OnGroupsUpdate != nil {
			handlers.OnGroupsUpdate(updates)
		}

	case messageLookupEvent, groupMetadataLookupEvent:
		go h.answerLookup(log, event)

	default:
		log.Debug("Ignoring unknown gateway event")
	}
}

func decodeEvent(log *logrus.Entry, event EventMessage, target interface{}) bool {
	if err := json.Unmarshal(event.Content, target); err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Failed to decode gateway event content")
		return false
	}
	return true
}

// answerLookup serves the gateway's callbacks into this service: message
// retries and cached group metadata
func (h *gatewayHandle) answerLookup(log *logrus.Entry, event EventMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), h.requestTimeout)
	defer cancel()

	answer := LookupResultArguments{LookupID: event.MessageID}

	switch event.Event {
	case messageLookupEvent:
		var lookup MessageLookupRequest
		if !decodeEvent(log, event, &lookup) || h.options.GetMessage == nil {
			break
		}
		content, err := h.options.GetMessage(ctx, lookup.Key)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Warn("Message lookup failed")
			break
		}
		answer.Found = content != nil
		answer.Result = content

	case groupMetadataLookupEvent:
		var lookup GroupMetadataLookupRequest
		if !decodeEvent(log, event, &lookup) || h.options.CachedGroupMetadata == nil {
			break
		}
		metadata, found := h.options.CachedGroupMetadata(ctx, lookup.GroupID)
		answer.Found = found
		if found {
			answer.Result = metadata
		}
	}

	if _, err := h.publish(lookupResultCommand, answer); err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to answer gateway lookup")
	}
}
