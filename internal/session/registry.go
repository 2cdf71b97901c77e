package session

import (
	"sync"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

// Registry owns the live session for each connection id.  Every Register for
// an id bumps that id's generation, and the counter survives removal so a
// stale callback can never match a later session.
type Registry struct {
	sessions    map[domain.ConnectionID]*Session
	generations map[domain.ConnectionID]uint64
	sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[domain.ConnectionID]*Session),
		generations: make(map[domain.ConnectionID]uint64),
	}
}

// Register makes s the current session for its connection id and returns
// the session it replaced, if any
func (r *Registry) Register(s *Session) *Session {
	r.Lock()
	defer r.Unlock()

	r.generations[s.connectionID]++
	s.generation = r.generations[s.connectionID]

	previous := r.sessions[s.connectionID]
	r.sessions[s.connectionID] = s

	if previous != nil {
		logger.Log.WithFields(logrus.Fields{"connection_id": s.connectionID, "generation": s.generation}).Debug("Replaced a registered session")
	} else {
		logger.Log.WithFields(logrus.Fields{"connection_id": s.connectionID, "generation": s.generation}).Debug("Registered a session")
	}

	return previous
}

func (r *Registry) Get(connectionID domain.ConnectionID) (*Session, bool) {
	r.RLock()
	defer r.RUnlock()

	s, exists := r.sessions[connectionID]
	return s, exists
}

func (r *Registry) IsCurrent(connectionID domain.ConnectionID, generation uint64) bool {
	r.RLock()
	defer r.RUnlock()

	s, exists := r.sessions[connectionID]
	return exists && s.generation == generation
}

// Remove unregisters whatever session is current for the id
func (r *Registry) Remove(connectionID domain.ConnectionID) *Session {
	r.Lock()
	defer r.Unlock()

	s, exists := r.sessions[connectionID]
	if !exists {
		return nil
	}

	delete(r.sessions, connectionID)

	logger.Log.WithFields(logrus.Fields{"connection_id": connectionID, "generation": s.generation}).Debug("Unregistered a session")

	return s
}

// RemoveIfCurrent unregisters s only if it has not been replaced
func (r *Registry) RemoveIfCurrent(s *Session) bool {
	r.Lock()
	defer r.Unlock()

	current, exists := r.sessions[s.connectionID]
	if !exists || current != s {
		return false
	}

	delete(r.sessions, s.connectionID)

	logger.Log.WithFields(logrus.Fields{"connection_id": s.connectionID, "generation": s.generation}).Debug("Unregistered a session")

	return true
}

func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.sessions)
}

func (r *Registry) Sessions() []*Session {
	r.RLock()
	defer r.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}

	return sessions
}
