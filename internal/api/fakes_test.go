package api

import (
	"context"
	"errors"
	"sync"

	"github.com/RedHatInsights/messaging-connector/internal/dispatcher"
	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"
	"github.com/RedHatInsights/messaging-connector/internal/session"
)

type connectCall struct {
	ConnectionID domain.ConnectionID
	Config       domain.ConnectionConfig
}

type mockConnectionManager struct {
	sync.Mutex
	connected     map[domain.ConnectionID]bool
	connectCalls  []connectCall
	disconnectErr error
	pairingCode   string
}

func newMockConnectionManager() *mockConnectionManager {
	return &mockConnectionManager{connected: make(map[domain.ConnectionID]bool)}
}

func (m *mockConnectionManager) Connect(ctx context.Context, connectionID domain.ConnectionID, config domain.ConnectionConfig) (*session.ConnectResult, error) {
	m.Lock()
	defer m.Unlock()

	m.connectCalls = append(m.connectCalls, connectCall{connectionID, config})

	if connectionID == "broken" {
		return nil, &session.ConnectError{ConnectionID: connectionID, Cause: errors.New("credential store unavailable")}
	}

	m.connected[connectionID] = true

	if config.ConnectionMethod == domain.PairingCodeConnectionMethod {
		return &session.ConnectResult{PairingCode: m.pairingCode}, nil
	}
	return &session.ConnectResult{Success: true}, nil
}

func (m *mockConnectionManager) Disconnect(ctx context.Context, connectionID domain.ConnectionID) error {
	m.Lock()
	defer m.Unlock()

	delete(m.connected, connectionID)
	return m.disconnectErr
}

func (m *mockConnectionManager) Send(ctx context.Context, connectionID domain.ConnectionID, recipient string, message protocol.OutboundMessage) (*protocol.Receipt, error) {
	m.Lock()
	defer m.Unlock()

	if !m.connected[connectionID] {
		return nil, &session.NotFoundError{ConnectionID: connectionID}
	}

	return &protocol.Receipt{Key: protocol.MessageKey{RemoteJID: recipient, FromMe: true, ID: "MSG-1"}}, nil
}

func (m *mockConnectionManager) ActiveConnections() int {
	m.Lock()
	defer m.Unlock()
	return len(m.connected)
}

type mockDispatcher struct {
	sync.Mutex
	jobs       []domain.OutboundJob
	enqueueErr error
	counters   dispatcher.Counters
}

func (md *mockDispatcher) Enqueue(ctx context.Context, job domain.OutboundJob) error {
	md.Lock()
	defer md.Unlock()

	if md.enqueueErr != nil {
		return md.enqueueErr
	}
	md.jobs = append(md.jobs, job)
	return nil
}

func (md *mockDispatcher) Counters() dispatcher.Counters {
	md.Lock()
	defer md.Unlock()
	return md.counters
}
