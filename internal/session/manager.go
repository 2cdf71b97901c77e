package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/credentials"
	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/group_cache"
	"github.com/RedHatInsights/messaging-connector/internal/notifier"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	DefaultReconnectDelay  = 5 * time.Second
	credentialSaveAttempts = 3

	defaultBrowserName    = "Chrome"
	defaultBrowserVersion = "Desktop"
	clientVersion         = "1.0.0"

	placeholderMessageText = "Hello"
)

type AfterFunc func(d time.Duration, f func()) Timer

// MessageLookup resolves a previously sent message so the protocol can
// answer a retry request from a peer
type MessageLookup func(ctx context.Context, connectionID domain.ConnectionID, key protocol.MessageKey) (*protocol.MessageContent, error)

// PlaceholderMessageLookup never consults any history.  It always answers
// with the same placeholder text, which lets the protocol complete a retry
// handshake even though the original content is not recoverable.
func PlaceholderMessageLookup(ctx context.Context, connectionID domain.ConnectionID, key protocol.MessageKey) (*protocol.MessageContent, error) {
	text := placeholderMessageText
	return &protocol.MessageContent{Conversation: &text}, nil
}

type ConnectResult struct {
	Success     bool   `json:"success,omitempty"`
	PairingCode string `json:"pairing_code,omitempty"`
}

type ManagerOption func(*Manager)

func WithReconnectDelay(delay time.Duration) ManagerOption {
	return func(m *Manager) {
		m.reconnectDelay = delay
	}
}

func WithAfterFunc(afterFunc AfterFunc) ManagerOption {
	return func(m *Manager) {
		m.afterFunc = afterFunc
	}
}

func WithMessageLookup(lookup MessageLookup) ManagerOption {
	return func(m *Manager) {
		m.lookupMessage = lookup
	}
}

type Manager struct {
	registry   *Registry
	opener     protocol.Opener
	store      credentials.Store
	notifier   notifier.Notifier
	groupCache *group_cache.Cache

	reconnectDelay time.Duration
	afterFunc      AfterFunc
	lookupMessage  MessageLookup
}

func NewManager(registry *Registry, opener protocol.Opener, store credentials.Store, notifier notifier.Notifier, groupCache *group_cache.Cache, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:       registry,
		opener:         opener,
		store:          store,
		notifier:       notifier,
		groupCache:     groupCache,
		reconnectDelay: DefaultReconnectDelay,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		lookupMessage: PlaceholderMessageLookup,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Manager) ActiveConnections() int {
	return m.registry.Count()
}

func applyConfigDefaults(config domain.ConnectionConfig) domain.ConnectionConfig {
	if config.BrowserName == "" {
		config.BrowserName = defaultBrowserName
	}
	if config.BrowserVersion == "" {
		config.BrowserVersion = defaultBrowserVersion
	}
	if config.ConnectionMethod == "" {
		config.ConnectionMethod = domain.QRCodeConnectionMethod
	}
	return config
}

func (m *Manager) Connect(ctx context.Context, connectionID domain.ConnectionID, config domain.ConnectionConfig) (*ConnectResult, error) {
	return m.connect(ctx, connectionID, config, nil)
}

// connect opens a new session for connectionID.  replacing is the session a
// scheduled reconnect is standing in for; it is dropped when the new one
// cannot even load its credentials.
func (m *Manager) connect(ctx context.Context, connectionID domain.ConnectionID, config domain.ConnectionConfig, replacing *Session) (*ConnectResult, error) {
	config = applyConfigDefaults(config)

	log := logger.Log.WithFields(logrus.Fields{"connection_id": connectionID, "connection_method": config.ConnectionMethod})

	creds, err := m.store.Load(ctx, connectionID)
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to load credentials")
		if replacing != nil {
			if !m.registry.RemoveIfCurrent(replacing) {
				return nil, &ConnectError{ConnectionID: connectionID, Cause: ErrSessionSuperseded}
			}
			replacing.retire()
		}
		return nil, m.connectFailed(ctx, connectionID, err)
	}

	s := newSession(connectionID, config)

	if previous := m.registry.Register(s); previous != nil {
		previous.retire()
	}

	log = log.WithFields(logrus.Fields{"generation": s.generation})

	handle, err := m.opener.Open(ctx, connectionID, m.buildOptions(s, creds))
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to open protocol handle")
		if m.registry.RemoveIfCurrent(s) {
			s.terminate()
			return nil, m.connectFailed(ctx, connectionID, err)
		}
		return nil, &ConnectError{ConnectionID: connectionID, Cause: err}
	}

	if !s.setHandle(handle) {
		log.Info("Session was replaced while its handle was opening")
		handle.Close()
		metrics.connectCounter.WithLabelValues("superseded").Inc()
		return nil, &ConnectError{ConnectionID: connectionID, Cause: ErrSessionSuperseded}
	}

	if config.ConnectionMethod == domain.PairingCodeConnectionMethod && !creds.Registered {
		code, err := handle.RequestPairingCode(ctx, config.PhoneNumber)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to request a pairing code")
			if m.registry.RemoveIfCurrent(s) {
				s.retire()
				return nil, m.connectFailed(ctx, connectionID, err)
			}
			return nil, &ConnectError{ConnectionID: connectionID, Cause: err}
		}

		log.Info("Requested a pairing code")
		m.notifier.Notify(ctx, connectionID, domain.PairingCodeEvent, map[string]interface{}{"code": code})
		metrics.connectCounter.WithLabelValues("pairing_code").Inc()

		return &ConnectResult{PairingCode: code}, nil
	}

	log.Info("Opened protocol handle")
	metrics.connectCounter.WithLabelValues("success").Inc()

	return &ConnectResult{Success: true}, nil
}

func (m *Manager) connectFailed(ctx context.Context, connectionID domain.ConnectionID, cause error) error {
	metrics.connectCounter.WithLabelValues("failure").Inc()
	m.notifier.UpdateConnectionStatus(ctx, connectionID, domain.FailedStatus)
	return &ConnectError{ConnectionID: connectionID, Cause: cause}
}

func (m *Manager) buildOptions(s *Session, creds *protocol.Credentials) protocol.Options {
	return protocol.Options{
		Credentials:         creds,
		PrintQRInTerminal:   s.config.ConnectionMethod == domain.QRCodeConnectionMethod,
		Browser:             [3]string{s.config.BrowserName, s.config.BrowserVersion, clientVersion},
		MarkOnlineOnConnect: s.config.MarkOnlineOnConnect,
		SyncFullHistory:     s.config.SyncFullHistory,
		GetMessage: func(ctx context.Context, key protocol.MessageKey) (*protocol.MessageContent, error) {
			return m.lookupMessage(ctx, s.connectionID, key)
		},
		CachedGroupMetadata: m.groupCache.Lookup,
		Handlers:            m.eventHandlers(s),
	}
}

// Disconnect logs the session out and forgets its credentials.  Calling it
// for a connection without a session is a no-op.
func (m *Manager) Disconnect(ctx context.Context, connectionID domain.ConnectionID) error {
	log := logger.Log.WithFields(logrus.Fields{"connection_id": connectionID})

	s := m.registry.Remove(connectionID)
	if s == nil {
		log.Debug("Disconnect requested for a connection without a session")
		return nil
	}

	var logoutErr error
	if handle := s.terminate(); handle != nil {
		logoutErr = handle.Logout(ctx)
		handle.Close()
	}

	if logoutErr != nil {
		log.WithFields(logrus.Fields{"error": logoutErr}).Error("Logout failed")
	}

	m.forgetCredentials(ctx, log, connectionID)

	metrics.disconnectCounter.WithLabelValues("requested").Inc()
	m.notifier.UpdateConnectionStatus(ctx, connectionID, domain.DisconnectedStatus)

	log.Info("Disconnected session")

	if logoutErr != nil {
		return fmt.Errorf("logout of %s failed: %w", connectionID, logoutErr)
	}

	return nil
}

func (m *Manager) forgetCredentials(ctx context.Context, log *logrus.Entry, connectionID domain.ConnectionID) {
	if err := m.store.Delete(ctx, connectionID); err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to delete credentials")
	}
}

func (m *Manager) Send(ctx context.Context, connectionID domain.ConnectionID, recipient string, message protocol.OutboundMessage) (*protocol.Receipt, error) {
	s, exists := m.registry.Get(connectionID)
	if !exists {
		return nil, &NotFoundError{ConnectionID: connectionID}
	}

	address := protocol.NormalizeAddress(recipient)

	handle := s.Handle()
	if handle == nil {
		return nil, &SendError{ConnectionID: connectionID, Recipient: address, Cause: ErrHandleNotReady}
	}

	callDurationTimer := prometheus.NewTimer(metrics.sendDuration)
	receipt, err := handle.Send(ctx, address, message)
	callDurationTimer.ObserveDuration()

	log := logger.Log.WithFields(logrus.Fields{"connection_id": connectionID, "recipient": address})

	if err != nil {
		metrics.sendFailureCounter.Inc()
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to send message")
		return nil, &SendError{ConnectionID: connectionID, Recipient: address, Cause: err}
	}

	log.WithFields(logrus.Fields{"message_id": receipt.Key.ID}).Info("Message sent")

	return receipt, nil
}

// Shutdown releases every session without logging out, so that the stored
// credentials can resume them after a restart
func (m *Manager) Shutdown(ctx context.Context) {
	for _, s := range m.registry.Sessions() {
		if m.registry.RemoveIfCurrent(s) {
			s.retire()
		}
	}

	logger.Log.Info("Closed all sessions")
}

func (m *Manager) scheduleReconnect(s *Session) {
	connectionID, generation := s.connectionID, s.generation

	timer := m.afterFunc(m.reconnectDelay, func() {
		m.reconnect(connectionID, generation)
	})

	s.setReconnectTimer(timer)
}

func (m *Manager) reconnect(connectionID domain.ConnectionID, generation uint64) {
	log := logger.Log.WithFields(logrus.Fields{"connection_id": connectionID, "generation": generation})

	s, exists := m.registry.Get(connectionID)
	if !exists || s.generation != generation {
		metrics.staleReconnectCounter.Inc()
		log.Debug("Skipping reconnect for a session that was replaced or removed")
		return
	}

	metrics.reconnectCounter.Inc()
	log.Info("Reconnecting session")

	if _, err := m.connect(context.Background(), connectionID, s.config, s); err != nil {
		superseded := errors.Is(err, ErrSessionSuperseded)
		log.WithFields(logrus.Fields{"error": err, "superseded": superseded}).Error("Reconnect failed")
	}
}
