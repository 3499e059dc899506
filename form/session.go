package form

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/mbolis/merchant-survey/geo"
	"github.com/mbolis/merchant-survey/model"
)

type State int

const (
	StateSelecting State = iota
	StateInvalid
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSelecting:
		return "selecting"
	case StateInvalid:
		return "invalid"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Session is the per-user context of the survey entry flow.
type Session struct {
	ID string

	mu           sync.Mutex
	category     string
	merchantName string
	answers      model.Answers
	location     *geo.Location
	state        State
	messages     []string
	lastID       int64
	confirmed    model.SurveyResponse
	lastSeen     time.Time
}

func NewSession() (*Session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &Session{ID: id.String(), lastSeen: time.Now()}, nil
}

// Snapshot is a consistent copy of a session, safe to render.
type Snapshot struct {
	ID           string
	Category     string
	MerchantName string
	Answers      model.Answers
	Location     *geo.Location
	State        State
	Messages     []string
	// Confirmed is the last stored response, valid in StateConfirmed.
	Confirmed model.SurveyResponse
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.ID,
		Category:     s.category,
		MerchantName: s.merchantName,
		Answers:      s.answers.Clone(),
		State:        s.state,
		Messages:     append([]string(nil), s.messages...),
	}
	if s.location != nil {
		loc := *s.location
		snap.Location = &loc
	}
	if s.state == StateConfirmed {
		snap.Confirmed = s.confirmed
		snap.Confirmed.Answers = s.confirmed.Answers.Clone()
	}
	return snap
}

// LastID returns the id of the last response stored from this session, or 0.
func (s *Session) LastID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// Sessions is an in-process registry of sessions. Sessions idle for longer
// than the registry TTL are forgotten.
type Sessions struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl:      ttl,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
}

// Get returns the live session with the given id.
func (ss *Sessions) Get(id string) (*Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	s, ok := ss.sessions[id]
	if !ok {
		return nil, false
	}
	now := ss.now()
	if now.Sub(s.lastSeen) > ss.ttl {
		delete(ss.sessions, id)
		return nil, false
	}
	s.lastSeen = now
	return s, true
}

// New creates and registers a session, evicting expired ones.
func (ss *Sessions) New() (*Session, error) {
	s, err := NewSession()
	if err != nil {
		return nil, err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.now()
	for id, old := range ss.sessions {
		if now.Sub(old.lastSeen) > ss.ttl {
			delete(ss.sessions, id)
		}
	}
	s.lastSeen = now
	ss.sessions[s.ID] = s
	return s, nil
}

func (ss *Sessions) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}
