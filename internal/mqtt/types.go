package mqtt

import (
	"encoding/json"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/protocol"
)

const messageVersion = 1

// Commands published to <prefix>/sessions/<id>/command
const (
	openCommand               = "open"
	sendCommand               = "send"
	requestPairingCodeCommand = "request_pairing_code"
	groupMetadataCommand      = "group_metadata"
	logoutCommand             = "logout"
	lookupResultCommand       = "lookup_result"
)

// Events received on <prefix>/sessions/<id>/event
const (
	responseEvent            = "response"
	connectionUpdateEvent    = "connection.update"
	credentialsUpdateEvent   = "creds.update"
	messagesUpsertEvent      = "messages.upsert"
	messagesUpdateEvent      = "messages.update"
	groupsUpdateEvent        = "groups.update"
	messageLookupEvent       = "message_lookup"
	groupMetadataLookupEvent = "group_metadata_lookup"
)

type CommandMessage struct {
	MessageType string      `json:"type"`
	MessageID   string      `json:"message_id"` // uuid
	Version     int         `json:"version"`
	Sent        time.Time   `json:"sent"`
	Command     string      `json:"command"`
	Arguments   interface{} `json:"arguments,omitempty"`
}

type EventMessage struct {
	MessageType string          `json:"type"`
	MessageID   string          `json:"message_id"`
	Version     int             `json:"version"`
	Sent        time.Time       `json:"sent"`
	Event       string          `json:"event"`
	ResponseTo  string          `json:"response_to,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (re *ResponseError) Error() string {
	return re.Message
}

type ResponseContent struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

type OpenArguments struct {
	Credentials         *protocol.Credentials `json:"credentials"`
	Browser             [3]string             `json:"browser"`
	PrintQRInTerminal   bool                  `json:"print_qr_in_terminal"`
	MarkOnlineOnConnect bool                  `json:"mark_online_on_connect"`
	SyncFullHistory     bool                  `json:"sync_full_history"`
}

type SendArguments struct {
	Address string                   `json:"address"`
	Message protocol.OutboundMessage `json:"message"`
}

type PairingCodeArguments struct {
	PhoneNumber string `json:"phone_number"`
}

type PairingCodeResult struct {
	Code string `json:"code"`
}

type GroupMetadataArguments struct {
	GroupID string `json:"group_id"`
}

type MessageLookupRequest struct {
	Key protocol.MessageKey `json:"key"`
}

type GroupMetadataLookupRequest struct {
	GroupID string `json:"group_id"`
}

type LookupResultArguments struct {
	LookupID string      `json:"lookup_id"`
	Found    bool        `json:"found"`
	Result   interface{} `json:"result,omitempty"`
}
