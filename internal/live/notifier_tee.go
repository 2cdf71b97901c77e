package live

import (
	"context"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/notifier"
)

// NotifierTee forwards every backend notification unchanged and mirrors it
// to the live-update clients
type NotifierTee struct {
	next        notifier.Notifier
	broadcaster Broadcaster
}

func NewNotifierTee(next notifier.Notifier, broadcaster Broadcaster) *NotifierTee {
	return &NotifierTee{next: next, broadcaster: broadcaster}
}

func (nt *NotifierTee) Notify(ctx context.Context, connectionID domain.ConnectionID, event domain.EventKind, data map[string]interface{}) {
	nt.next.Notify(ctx, connectionID, event, data)
	nt.broadcaster.Broadcast(Update{
		Type:         ConnectionEventUpdate,
		ConnectionID: connectionID,
		Data:         map[string]interface{}{"event": event, "data": data},
	})
}

func (nt *NotifierTee) UpdateConnectionStatus(ctx context.Context, connectionID domain.ConnectionID, status domain.ConnectionStatus) {
	nt.next.UpdateConnectionStatus(ctx, connectionID, status)
	nt.broadcaster.Broadcast(Update{
		Type:         ConnectionStatusUpdate,
		ConnectionID: connectionID,
		Data:         map[string]interface{}{"status": status},
	})
}

func (nt *NotifierTee) SaveIncomingMessage(ctx context.Context, msg domain.InboundMessage) {
	nt.next.SaveIncomingMessage(ctx, msg)
	nt.broadcaster.Broadcast(Update{
		Type:         IncomingMessageUpdate,
		ConnectionID: msg.ConnectionID,
		Data: map[string]interface{}{
			"from":         msg.From,
			"message_id":   msg.MessageID,
			"message_type": msg.MessageType,
			"timestamp":    msg.Timestamp,
		},
	})
}

func (nt *NotifierTee) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) {
	nt.next.UpdateMessageStatus(ctx, messageID, status)
	nt.broadcaster.Broadcast(Update{
		Type: MessageStatusUpdate,
		Data: map[string]interface{}{"message_id": messageID, "status": status},
	})
}

func (nt *NotifierTee) UpdateJobStatus(ctx context.Context, update notifier.JobStatusUpdate) {
	nt.next.UpdateJobStatus(ctx, update)

	data := map[string]interface{}{"message_log_id": update.CorrelationID, "status": update.Status}
	if update.MessageID != "" {
		data["message_id"] = update.MessageID
	}
	if update.ErrorMessage != "" {
		data["error"] = update.ErrorMessage
	}

	nt.broadcaster.Broadcast(Update{Type: JobStatusUpdate, Data: data})
}
