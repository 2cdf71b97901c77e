package domain

import (
	"time"
)

type ConnectionID string

func (cid ConnectionID) String() string {
	return string(cid)
}

type ConnectionMethod string

const (
	QRCodeConnectionMethod      ConnectionMethod = "QR Code"
	PairingCodeConnectionMethod ConnectionMethod = "Pairing Code"
)

type ConnectionConfig struct {
	ConnectionMethod    ConnectionMethod
	PhoneNumber         string
	BrowserName         string
	BrowserVersion      string
	MarkOnlineOnConnect bool
	SyncFullHistory     bool
}

// ConnectionStatus is the externally visible state of a connection as
// reported to the backend.
type ConnectionStatus string

const (
	ConnectedStatus    ConnectionStatus = "Connected"
	DisconnectedStatus ConnectionStatus = "Disconnected"
	FailedStatus       ConnectionStatus = "Failed"
)

type MessageStatus string

const (
	SentMessageStatus      MessageStatus = "Sent"
	DeliveredMessageStatus MessageStatus = "Delivered"
	ReadMessageStatus      MessageStatus = "Read"
	FailedMessageStatus    MessageStatus = "Failed"
)

type EventKind string

const (
	QRCodeEvent      EventKind = "qr_code"
	PairingCodeEvent EventKind = "pairing_code"
)

type OutboundJob struct {
	ConnectionID  ConnectionID           `json:"connection_id"`
	CorrelationID string                 `json:"message_log_id"`
	Recipient     string                 `json:"recipient"`
	Message       map[string]interface{} `json:"message"`
	CampaignID    string                 `json:"campaign_id,omitempty"`

	// Attempt is the 1-based number of the next delivery attempt.
	Attempt   int       `json:"attempt"`
	NotBefore time.Time `json:"not_before,omitempty"`
}

type InboundMessage struct {
	ConnectionID ConnectionID
	From         string
	MessageID    string
	MessageType  string
	Content      string
	Timestamp    int64
}
