package session

import (
	"errors"
	"fmt"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"
)

var (
	ErrHandleNotReady    = errors.New("protocol handle is not ready")
	ErrSessionSuperseded = errors.New("session was replaced while connecting")
)

type ConnectError struct {
	ConnectionID domain.ConnectionID
	Cause        error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("unable to connect %s: %v", e.ConnectionID, e.Cause)
}

func (e *ConnectError) Unwrap() error {
	return e.Cause
}

type NotFoundError struct {
	ConnectionID domain.ConnectionID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("connection not found: %s", e.ConnectionID)
}

type SendError struct {
	ConnectionID domain.ConnectionID
	Recipient    string
	Cause        error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("unable to send message to %s via %s: %v", e.Recipient, e.ConnectionID, e.Cause)
}

func (e *SendError) Unwrap() error {
	return e.Cause
}

type DisconnectClass int

const (
	TransientDisconnect DisconnectClass = iota
	TerminalDisconnect
)

func (dc DisconnectClass) String() string {
	if dc == TerminalDisconnect {
		return "terminal"
	}
	return "transient"
}

// ClassifyDisconnect treats only a remote logout as terminal.  Every other
// close, including one without a reason, is worth a reconnect attempt.
func ClassifyDisconnect(reason *protocol.DisconnectReason) DisconnectClass {
	if reason.LoggedOut() {
		return TerminalDisconnect
	}
	return TransientDisconnect
}

func MessageStatusFromProtocol(status int) domain.MessageStatus {
	switch status {
	case 2:
		return domain.DeliveredMessageStatus
	case 3:
		return domain.ReadMessageStatus
	default:
		return domain.SentMessageStatus
	}
}
