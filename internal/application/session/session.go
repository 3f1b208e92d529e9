package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 2 * time.Hour

const sweepEvery = time.Minute

// Session holds one user's working state: the current upload, its parsed table and the last analysis.
type Session struct {
	ID string

	mu         sync.Mutex
	uploadPath string
	filename   string
	table      *dataset.Table
	result     analysis.Result
	lastSeen   time.Time
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID         string
	UploadPath string
	Filename   string
	Table      *dataset.Table
	Result     analysis.Result
}

// HasDataset reports whether a table is loaded.
func (s Snapshot) HasDataset() bool { return s.Table != nil }

// SetDataset replaces the current dataset and drops any previous analysis.
func (s *Session) SetDataset(path, filename string, t *dataset.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadPath, s.filename, s.table = path, filename, t
	s.result = analysis.Result{}
}

// SetResult stores r if the session still holds table t; a dataset replaced mid-analysis wins.
func (s *Session) SetResult(t *dataset.Table, r analysis.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table != t {
		return false
	}
	s.result = r
	return true
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadPath, s.filename, s.table = "", "", nil
	s.result = analysis.Result{}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{ID: s.ID, UploadPath: s.uploadPath, Filename: s.filename, Table: s.table, Result: s.result}
}

// touch records activity and reports whether the session had already expired.
func (s *Session) touch(now time.Time, ttl time.Duration) (expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSeen) > ttl {
		return true
	}
	s.lastSeen = now
	return false
}

func (s *Session) idle(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > ttl
}

// Manager keeps sessions in memory keyed by a random ID. Expired sessions are dropped lazily.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	ttl       time.Duration
	lastSweep time.Time
	Now       func() time.Time
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{sessions: map[string]*Session{}, ttl: ttl, Now: time.Now}
}

// Get returns a live session. Expired sessions are removed and reported as missing.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.touch(m.Now(), m.ttl) {
		m.Delete(id)
		return nil, false
	}
	return s, true
}

// GetOrCreate returns the session for id, or a new one when id is unknown or expired.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, false
		}
	}
	now := m.Now()
	s = &Session{ID: uuid.NewString(), lastSeen: now}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	if now.Sub(m.lastSweep) >= sweepEvery {
		m.sweepLocked(now)
	}
	return s, true
}

func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) sweepLocked(now time.Time) {
	for id, s := range m.sessions {
		if s.idle(now, m.ttl) {
			delete(m.sessions, id)
		}
	}
	m.lastSweep = now
}
