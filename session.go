package main

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SolveSession tracks one asynchronous solve started over HTTP.
type SolveSession struct {
	ID        string
	Size      int
	Seed      int64
	CreatedAt time.Time

	mu     sync.Mutex
	state  State
	seq    int
	events []Event
	result *Result
}

// SessionView is the JSON form of a session.
type SessionView struct {
	ID        string    `json:"id"`
	Size      int       `json:"size"`
	Seed      int64     `json:"seed"`
	State     State     `json:"state"`
	Events    int       `json:"events"`
	Result    *Result   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Record numbers a solver event, appends it and tracks the current state.
// Terminal states are only entered through Finish, so a session never
// reports one without its result.
func (s *SolveSession) Record(e Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.State != "" && !e.State.Terminal() && !s.state.Terminal() {
		s.state = e.State
	}
	return s.appendLocked(e)
}

func (s *SolveSession) appendLocked(e Event) Event {
	s.seq++
	e.Seq = s.seq
	s.events = append(s.events, e)
	return e
}

// Finish stores the final result and records the closing done event,
// which it returns.
func (s *SolveSession) Finish(r Result) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = r.State
	s.result = &r
	return s.appendLocked(doneEvent(r))
}

// Done reports whether the solve reached a terminal state.
func (s *SolveSession) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Terminal()
}

// Events returns a copy of the recorded events.
func (s *SolveSession) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// View returns a consistent snapshot.
func (s *SolveSession) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		ID:        s.ID,
		Size:      s.Size,
		Seed:      s.Seed,
		State:     s.state,
		Events:    len(s.events),
		Result:    s.result,
		CreatedAt: s.CreatedAt,
	}
}

// SessionStore holds solve sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*SolveSession
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*SolveSession)}
}

// Create registers a new pending session.
func (st *SessionStore) Create(size int, seed int64) *SolveSession {
	s := &SolveSession{
		ID:        uuid.NewString(),
		Size:      size,
		Seed:      seed,
		CreatedAt: time.Now(),
		state:     StateProbing,
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns a session by ID, or nil if not found.
func (st *SessionStore) Get(id string) *SolveSession {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// List returns all sessions, most recent first.
func (st *SessionStore) List() []*SolveSession {
	st.mu.RLock()
	list := make([]*SolveSession, 0, len(st.sessions))
	for _, s := range st.sessions {
		list = append(list, s)
	}
	st.mu.RUnlock()

	slices.SortFunc(list, func(a, b *SolveSession) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return list
}
