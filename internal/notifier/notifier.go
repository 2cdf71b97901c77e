package notifier

import (
	"context"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
)

// JobStatusUpdate is the terminal report for an outbound job.  MessageID is
// set for Sent, ErrorMessage for Failed.
type JobStatusUpdate struct {
	CorrelationID string
	Status        domain.MessageStatus
	MessageID     string
	ErrorMessage  string
}

// Notifier forwards events to the backend.  Delivery is best effort: failures
// are logged and counted, never returned to the caller.
type Notifier interface {
	Notify(ctx context.Context, connectionID domain.ConnectionID, event domain.EventKind, data map[string]interface{})
	UpdateConnectionStatus(ctx context.Context, connectionID domain.ConnectionID, status domain.ConnectionStatus)
	SaveIncomingMessage(ctx context.Context, msg domain.InboundMessage)
	UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus)
	UpdateJobStatus(ctx context.Context, update JobStatusUpdate)
}
