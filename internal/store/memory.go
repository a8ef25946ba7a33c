package store

import "sync"

// Memory is the in-process Store used by tests and short-lived runs.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]SessionRecord
	rounds   map[string][]Round
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]SessionRecord),
		rounds:   make(map[string][]Round),
	}
}

func (m *Memory) SaveSession(rec *SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[rec.SessionID] = *rec
	return nil
}

func (m *Memory) GetSession(sessionID string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) SaveRound(r *Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[r.PlayerID] = append(m.rounds[r.PlayerID], *r)
	return nil
}

func (m *Memory) PlayerRounds(playerID string, limit int64) ([]*Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.rounds[playerID]
	if limit <= 0 || limit > int64(len(all)) {
		limit = int64(len(all))
	}
	out := make([]*Round, 0, limit)
	for i := len(all) - 1; i >= len(all)-int(limit); i-- {
		r := all[i]
		out = append(out, &r)
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
