// Package session holds per-conversation state. Sessions expire lazily: an
// idle session is reset on its next access, there is no background sweep.
// Turns for one session are serialized through a lease; turns for different
// sessions proceed in parallel.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
)

// Turn is one utterance the session has seen, with its classified intent.
type Turn struct {
	Utterance string        `json:"utterance"`
	Intent    intent.Intent `json:"intent"`
	At        time.Time     `json:"at"`
}

// State is the conversational memory for one session id.
type State struct {
	ID              string        `json:"session_id"`
	History         []Turn        `json:"history"`
	LastIntent      intent.Intent `json:"last_intent,omitempty"`
	LastAction      string        `json:"last_action,omitempty"`
	PendingFollowup intent.Intent `json:"pending_followup,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	LastActiveAt    time.Time     `json:"last_active_at"`
}

type entry struct {
	mu    sync.Mutex
	state State
}

// Store is the session arena: a map keyed by session id with one lock per
// key. The store-level mutex only guards the map and the activity index, so
// holding one session's lease never blocks another session.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	// lastActive mirrors each session's LastActiveAt under s.mu only, so
	// ActiveCount never has to touch a per-entry lock a turn may be holding.
	lastActive   map[string]time.Time
	idleTimeout  time.Duration
	historyLimit int
	now          func() time.Time
}

func NewStore(idleTimeout time.Duration, historyLimit int) *Store {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	if historyLimit <= 0 {
		historyLimit = 12
	}
	return &Store{
		entries:      make(map[string]*entry),
		lastActive:   make(map[string]time.Time),
		idleTimeout:  idleTimeout,
		historyLimit: historyLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Lease is exclusive access to one session for the duration of a turn. The
// working state is a deep copy: mutations only land when Commit is called,
// so an abandoned turn leaves the session exactly as it was.
type Lease struct {
	store     *Store
	entry     *entry
	working   State
	committed bool
	released  bool
}

// Begin locks the session for id, creating it if unseen and resetting it if
// idle-expired, and returns a lease over a working copy. An empty id gets a
// generated one.
func (s *Store) Begin(id string) *Lease {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{state: s.freshState(id)}
		s.entries[id] = e
		s.lastActive[id] = e.state.LastActiveAt
	}
	s.mu.Unlock()

	// Lock the entry outside the store lock so a long turn on one session
	// cannot stall every other session.
	e.mu.Lock()

	now := s.now()
	if now.Sub(e.state.LastActiveAt) > s.idleTimeout {
		// Idle expiry: same id, fresh memory. Not an error.
		e.state = s.freshState(id)
		s.touch(id, e.state.LastActiveAt)
	}

	return &Lease{store: s, entry: e, working: cloneState(e.state)}
}

// State returns the lease's mutable working copy.
func (l *Lease) State() *State { return &l.working }

// Commit writes the working copy back, stamps activity time and trims
// history to the configured bound.
func (l *Lease) Commit() {
	if l.released || l.committed {
		return
	}
	l.working.LastActiveAt = l.store.now()
	if n := len(l.working.History); n > l.store.historyLimit {
		trimmed := make([]Turn, l.store.historyLimit)
		copy(trimmed, l.working.History[n-l.store.historyLimit:])
		l.working.History = trimmed
	}
	l.entry.state = cloneState(l.working)
	l.store.touch(l.working.ID, l.working.LastActiveAt)
	l.committed = true
}

// Release unlocks the session. Without a prior Commit the stored state is
// untouched. Safe to call more than once.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	l.entry.mu.Unlock()
}

// Clear resets the session for id to a fresh state, keeping the id valid.
// Clearing an unseen id is a no-op.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.state = s.freshState(id)
	s.touch(id, e.state.LastActiveAt)
	e.mu.Unlock()
}

// ActiveCount reports sessions whose idle window has not yet elapsed. It
// reads only the store-level activity index, so it is safe to call while
// any lease is held, including from inside the holding turn.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for _, at := range s.lastActive {
		if now.Sub(at) <= s.idleTimeout {
			count++
		}
	}
	return count
}

func (s *Store) touch(id string, at time.Time) {
	s.mu.Lock()
	s.lastActive[id] = at
	s.mu.Unlock()
}

func (s *Store) freshState(id string) State {
	now := s.now()
	return State{ID: id, CreatedAt: now, LastActiveAt: now}
}

func cloneState(st State) State {
	c := st
	c.History = make([]Turn, len(st.History))
	copy(c.History, st.History)
	return c
}
