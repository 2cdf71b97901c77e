package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
)

// LoggedOutStatusCode is the disconnect status the protocol uses when the
// linked device was removed.  A session closed with it can never be resumed.
const LoggedOutStatusCode = 401

type Credentials struct {
	Registered bool            `json:"registered"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func NewCredentials() *Credentials {
	return &Credentials{}
}

type ConnectionState string

const (
	ConnectingState ConnectionState = "connecting"
	OpenState       ConnectionState = "open"
	ClosedState     ConnectionState = "close"
)

type DisconnectReason struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message,omitempty"`
}

func (dr *DisconnectReason) Error() string {
	return fmt.Sprintf("disconnected (status=%d): %s", dr.StatusCode, dr.Message)
}

func (dr *DisconnectReason) LoggedOut() bool {
	return dr != nil && dr.StatusCode == LoggedOutStatusCode
}

type ConnectionUpdate struct {
	Connection     ConnectionState   `json:"connection,omitempty"`
	LastDisconnect *DisconnectReason `json:"last_disconnect,omitempty"`
	QR             string            `json:"qr,omitempty"`
}

type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type ExtendedText struct {
	Text string `json:"text"`
}

type Media struct {
	Caption  string `json:"caption,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
	URL      string `json:"url,omitempty"`
}

// MessageContent models the fields the service reads.  Every other content
// kind (stickers, locations, reactions...) is only known by its key, which is
// kept in payload order.
type MessageContent struct {
	Conversation        *string       `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedText `json:"extendedTextMessage,omitempty"`
	ImageMessage        *Media        `json:"imageMessage,omitempty"`
	VideoMessage        *Media        `json:"videoMessage,omitempty"`
	DocumentMessage     *Media        `json:"documentMessage,omitempty"`
	AudioMessage        *Media        `json:"audioMessage,omitempty"`

	keys []string
}

type Message struct {
	Key              MessageKey      `json:"key"`
	Message          *MessageContent `json:"message,omitempty"`
	MessageTimestamp int64           `json:"messageTimestamp"`
	PushName         string          `json:"pushName,omitempty"`
}

type MessageUpdate struct {
	Key    MessageKey `json:"key"`
	Status int        `json:"status,omitempty"`
}

type GroupUpdate struct {
	ID string `json:"id"`
}

type GroupParticipant struct {
	ID    string `json:"id"`
	Admin string `json:"admin,omitempty"`
}

type GroupMetadata struct {
	ID           string             `json:"id"`
	Subject      string             `json:"subject"`
	Owner        string             `json:"owner,omitempty"`
	Creation     int64              `json:"creation,omitempty"`
	Participants []GroupParticipant `json:"participants"`
}

// OutboundMessage is the content object handed through to the protocol as-is,
// e.g. {"text": "hello"}
type OutboundMessage map[string]interface{}

type Receipt struct {
	Key MessageKey `json:"key"`
}

// EventHandlers are invoked serially, in emission order, for a single handle
type EventHandlers struct {
	OnConnectionUpdate  func(ConnectionUpdate)
	OnCredentialsUpdate func(*Credentials) error
	OnMessagesUpsert    func([]Message)
	OnMessagesUpdate    func([]MessageUpdate)
	OnGroupsUpdate      func([]GroupUpdate)
}

type Options struct {
	Credentials         *Credentials
	PrintQRInTerminal   bool
	Browser             [3]string
	MarkOnlineOnConnect bool
	SyncFullHistory     bool

	// GetMessage lets the protocol retrieve a previously sent message when a
	// peer asks for a retry
	GetMessage          func(ctx context.Context, key MessageKey) (*MessageContent, error)
	CachedGroupMetadata func(ctx context.Context, groupID string) (*GroupMetadata, bool)

	Handlers EventHandlers
}

type Opener interface {
	Open(ctx context.Context, connectionID domain.ConnectionID, options Options) (Handle, error)
}

type Handle interface {
	Send(ctx context.Context, address string, message OutboundMessage) (*Receipt, error)
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)
	FetchGroupMetadata(ctx context.Context, groupID string) (*GroupMetadata, error)
	Logout(ctx context.Context) error

	// Close releases the transport without logging the device out
	Close()
}
