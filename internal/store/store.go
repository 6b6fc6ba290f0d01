package store

import (
	"errors"
	"sync"
	"time"

	"kelly/agent/internal/types"
)

var ErrSessionExists = errors.New("session already exists")

// Store keeps sessions, their audit event logs, and per-session decision
// counters in memory. Everything is scoped to the process lifetime.
type Store struct {
	mu            sync.RWMutex
	sessions      map[string]*types.Session
	events        map[string][]types.Event
	workerRunning map[string]bool
	decisions     map[string]map[string]int64
}

func New() *Store {
	return &Store{
		sessions:      make(map[string]*types.Session),
		events:        make(map[string][]types.Event),
		workerRunning: make(map[string]bool),
		decisions:     make(map[string]map[string]int64),
	}
}

func (s *Store) CreateSession(sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrSessionExists
	}
	s.sessions[sess.ID] = sess
	s.events[sess.ID] = []types.Event{}
	return nil
}

func (s *Store) GetSession(id string) *types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

func (s *Store) AppendEvent(sessionID, typ string, payload map[string]any) types.Event {
	evt := types.Event{Type: typ, Ts: time.Now().UTC(), Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[sessionID] = append(s.events[sessionID], evt)
	// Cap total events per session to avoid unbounded growth
	const maxEvents = 200
	if l := len(s.events[sessionID]); l > maxEvents {
		keep := maxEvents - 1
		dropped := l - keep
		s.events[sessionID] = append([]types.Event(nil), s.events[sessionID][l-keep:]...)
		warn := types.Event{Type: "events_truncated", Ts: time.Now().UTC(), Payload: map[string]any{"dropped": dropped, "kept": keep}}
		s.events[sessionID] = append(s.events[sessionID], warn)
	}
	return evt
}

func (s *Store) ListEvents(sessionID string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[sessionID]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}

// IncDecision bumps the per-session counter for a classification kind.
func (s *Store) IncDecision(sessionID, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.decisions[sessionID]
	if m == nil {
		m = make(map[string]int64)
		s.decisions[sessionID] = m
	}
	m[kind]++
}

// DecisionCounts returns a copy of the per-session decision counters.
func (s *Store) DecisionCounts(sessionID string) map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.decisions[sessionID]))
	for k, v := range s.decisions[sessionID] {
		out[k] = v
	}
	return out
}

func (s *Store) SetWorkerRunning(sessionID string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workerRunning[sessionID] = running
}

func (s *Store) IsWorkerRunning(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workerRunning[sessionID]
}

func (s *Store) SetWorkerPID(sessionID string, pid int) {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.WorkerPID = pid
	}
	s.mu.Unlock()
}

func (s *Store) SetWorkerExit(sessionID string, code int, at time.Time) {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.WorkerLastExitCode = code
		sess.WorkerLastExitAt = &at
	}
	s.mu.Unlock()
}

func (s *Store) ListSessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}
