package session

import (
	"sync"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"
)

type State int

const (
	ConnectingState State = iota
	OpenState
	ReconnectingState
	TerminalState
)

func (s State) String() string {
	switch s {
	case ConnectingState:
		return "connecting"
	case OpenState:
		return "open"
	case ReconnectingState:
		return "reconnecting"
	case TerminalState:
		return "terminal"
	}
	return "unknown"
}

// Timer is the part of *time.Timer the reconnect scheduling needs
type Timer interface {
	Stop() bool
}

// Session exclusively owns one protocol handle for one connection
type Session struct {
	connectionID domain.ConnectionID
	config       domain.ConnectionConfig
	generation   uint64

	mu             sync.Mutex
	handle         protocol.Handle
	state          State
	reconnectTimer Timer
}

func newSession(connectionID domain.ConnectionID, config domain.ConnectionConfig) *Session {
	return &Session{
		connectionID: connectionID,
		config:       config,
		state:        ConnectingState,
	}
}

func (s *Session) ConnectionID() domain.ConnectionID {
	return s.connectionID
}

func (s *Session) Config() domain.ConnectionConfig {
	return s.config
}

func (s *Session) Generation() uint64 {
	return s.generation
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Handle() protocol.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// setHandle fails once the session has been retired, leaving the caller
// responsible for closing h
func (s *Session) setHandle(h protocol.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == TerminalState {
		return false
	}

	s.handle = h
	return true
}

func (s *Session) setState(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == TerminalState {
		return false
	}

	s.state = state
	return true
}

func (s *Session) setReconnectTimer(timer Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == TerminalState {
		timer.Stop()
		return false
	}

	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	s.reconnectTimer = timer
	return true
}

// terminate moves the session to its terminal state, cancels any pending
// reconnect and hands back the handle for the caller to dispose of
func (s *Session) terminate() protocol.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = TerminalState

	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}

	h := s.handle
	s.handle = nil
	return h
}

// retire terminates the session and releases its transport without logging out
func (s *Session) retire() {
	if h := s.terminate(); h != nil {
		h.Close()
	}
}
