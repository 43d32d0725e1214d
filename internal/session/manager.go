package session

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/maasd/maasd/internal/ffi"
)

// Manager owns the id -> Session mapping. Its lock covers only the map
// itself: insert, remove, lookup, snapshot. Once a caller holds a Session,
// serializing work on it is the Session's concern, so a slow foreign call
// never stalls session creation or lookup.
//
// Ids are strictly increasing and never reused within the process, even
// after deletions.
type Manager struct {
	surface ffi.Surface
	sink    ffi.EventFunc

	mu       sync.RWMutex
	sessions map[int64]*Session
	lastID   int64
}

// NewManager wires every future session's callback to sink. The sink runs
// on engine-owned threads and must never touch the Manager's lock.
func NewManager(surface ffi.Surface, sink ffi.EventFunc) *Manager {
	return &Manager{
		surface:  surface,
		sink:     sink,
		sessions: make(map[int64]*Session),
	}
}

// Create allocates a new engine instance with the event sink registered
// and inserts it under the next id.
func (m *Manager) Create() (int64, error) {
	inst, err := m.surface.Create(m.sink)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.lastID++
	id := m.lastID
	m.sessions[id] = newSession(id, inst, m.surface.NullSize())
	m.mu.Unlock()

	log.Info().Int64("session_id", id).Msg("session created")
	return id, nil
}

// Get looks up a live session by id.
func (m *Manager) Get(id int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete removes the session from the map and returns it for teardown.
// The caller is expected to Close it. Deleting an absent id reports false;
// doing so twice is a no-op.
func (m *Manager) Delete(id int64) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		log.Info().Int64("session_id", id).Msg("session deleted")
	}
	return s, ok
}

// IDs returns a snapshot of the currently registered session ids.
func (m *Manager) IDs() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int64, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// CloseAll tears down every live session. Used at process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[int64]*Session)
	m.mu.Unlock()

	for id, s := range sessions {
		if err := s.Close(); err != nil {
			log.Warn().Int64("session_id", id).Err(err).Msg("session close failed")
		}
	}
}
