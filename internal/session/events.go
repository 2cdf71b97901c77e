package session

import (
	"context"
	"fmt"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"

	"github.com/sirupsen/logrus"
)

func (m *Manager) eventHandlers(s *Session) protocol.EventHandlers {
	return protocol.EventHandlers{
		OnConnectionUpdate: func(update protocol.ConnectionUpdate) {
			m.dispatchEvent(s, "connection.update", func(log *logrus.Entry) {
				m.onConnectionUpdate(log, s, update)
			})
		},
		OnCredentialsUpdate: func(creds *protocol.Credentials) (err error) {
			m.dispatchEvent(s, "creds.update", func(log *logrus.Entry) {
				err = m.onCredentialsUpdate(log, s, creds)
			})
			return err
		},
		OnMessagesUpsert: func(messages []protocol.Message) {
			m.dispatchEvent(s, "messages.upsert", func(log *logrus.Entry) {
				m.onMessagesUpsert(log, s, messages)
			})
		},
		OnMessagesUpdate: func(updates []protocol.MessageUpdate) {
			m.dispatchEvent(s, "messages.update", func(log *logrus.Entry) {
				m.onMessagesUpdate(log, s, updates)
			})
		},
		OnGroupsUpdate: func(events []protocol.GroupUpdate) {
			m.dispatchEvent(s, "groups.update", func(log *logrus.Entry) {
				m.onGroupsUpdate(log, s, events)
			})
		},
	}
}

// dispatchEvent drops events from sessions that are no longer current and
// keeps a panicking handler from taking down the handle's event loop
func (m *Manager) dispatchEvent(s *Session, event string, handler func(*logrus.Entry)) {
	log := logger.Log.WithFields(logrus.Fields{"connection_id": s.connectionID, "generation": s.generation, "event": event})

	if !m.registry.IsCurrent(s.connectionID, s.generation) {
		log.Debug("Ignoring event from a replaced session")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.eventPanicCounter.WithLabelValues(event).Inc()
			log.WithFields(logrus.Fields{"error": fmt.Sprint(r)}).Error("Event handler panicked")
		}
	}()

	handler(log)
}

func (m *Manager) onConnectionUpdate(log *logrus.Entry, s *Session, update protocol.ConnectionUpdate) {
	ctx := context.Background()

	if update.QR != "" && s.config.ConnectionMethod == domain.QRCodeConnectionMethod {
		log.Info("Received QR code")
		m.notifier.Notify(ctx, s.connectionID, domain.QRCodeEvent, map[string]interface{}{"qr": update.QR})
	}

	switch update.Connection {
	case protocol.ClosedState:
		class := ClassifyDisconnect(update.LastDisconnect)
		metrics.disconnectCounter.WithLabelValues(class.String()).Inc()

		log = log.WithFields(logrus.Fields{"class": class.String()})
		if update.LastDisconnect != nil {
			log = log.WithFields(logrus.Fields{"status_code": update.LastDisconnect.StatusCode, "reason": update.LastDisconnect.Message})
		}

		if class == TerminalDisconnect {
			if !m.registry.RemoveIfCurrent(s) {
				return
			}
			s.retire()
			m.forgetCredentials(ctx, log, s.connectionID)
			log.Info("Connection closed permanently")
			m.notifier.UpdateConnectionStatus(ctx, s.connectionID, domain.DisconnectedStatus)
			return
		}

		if !s.setState(ReconnectingState) {
			return
		}
		log.Infof("Connection closed, reconnecting in %s", m.reconnectDelay)
		m.scheduleReconnect(s)

	case protocol.OpenState:
		if !s.setState(OpenState) {
			return
		}
		log.Info("Connection opened")
		m.notifier.UpdateConnectionStatus(ctx, s.connectionID, domain.ConnectedStatus)

	case protocol.ConnectingState:
		s.setState(ConnectingState)
	}
}

// onCredentialsUpdate must not return before the credentials are durable
func (m *Manager) onCredentialsUpdate(log *logrus.Entry, s *Session, creds *protocol.Credentials) error {
	var err error

	for attempt := 1; attempt <= credentialSaveAttempts; attempt++ {
		err = m.store.Save(context.Background(), s.connectionID, creds)
		if err == nil {
			return nil
		}

		log.WithFields(logrus.Fields{"error": err, "attempt": attempt}).Warn("Unable to save credentials")
	}

	metrics.credentialsSaveFailure.Inc()
	log.WithFields(logrus.Fields{"error": err}).Error("Giving up on saving credentials")

	return err
}

func (m *Manager) onMessagesUpsert(log *logrus.Entry, s *Session, messages []protocol.Message) {
	for _, msg := range messages {
		if msg.Message == nil {
			continue
		}

		m.reportInboundMessage(log, s, msg)
	}
}

func (m *Manager) reportInboundMessage(log *logrus.Entry, s *Session, msg protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{"error": fmt.Sprint(r), "message_id": msg.Key.ID}).Error("Unable to process inbound message")
		}
	}()

	inbound := domain.InboundMessage{
		ConnectionID: s.connectionID,
		From:         msg.Key.RemoteJID,
		MessageID:    msg.Key.ID,
		MessageType:  msg.Message.ContentType(),
		Content:      msg.Message.Text(),
		Timestamp:    msg.MessageTimestamp,
	}

	log.WithFields(logrus.Fields{"from": inbound.From, "message_type": inbound.MessageType}).Info("Received message")

	metrics.inboundMessageCounter.Inc()
	m.notifier.SaveIncomingMessage(context.Background(), inbound)
}

func (m *Manager) onMessagesUpdate(log *logrus.Entry, s *Session, updates []protocol.MessageUpdate) {
	for _, update := range updates {
		if update.Status == 0 {
			continue
		}

		status := MessageStatusFromProtocol(update.Status)
		metrics.statusUpdateCounter.WithLabelValues(string(status)).Inc()
		m.notifier.UpdateMessageStatus(context.Background(), update.Key.ID, status)
	}
}

func (m *Manager) onGroupsUpdate(log *logrus.Entry, s *Session, events []protocol.GroupUpdate) {
	handle := s.Handle()
	if handle == nil {
		log.Warn("Group update received before the handle was ready")
		return
	}

	for _, event := range events {
		metadata, err := handle.FetchGroupMetadata(context.Background(), event.ID)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err, "group_id": event.ID}).Error("Unable to fetch group metadata")
			continue
		}

		m.groupCache.Set(event.ID, metadata)
	}
}
