package dialog

import (
	"sync"
	"time"
)

// Store keeps active sessions keyed by chat. All methods are safe for
// concurrent use; sessions returned to callers are deep copies.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	now      func() time.Time
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Create registers a new session for the chat at the dialogue's entry state.
// When the chat already has a session it fails with ErrAlreadyActive unless
// replace is set, in which case the old session is discarded.
func (st *Store) Create(chatID int64, dialog string, state State, replace bool) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[chatID]; ok && !replace {
		return Session{}, ErrAlreadyActive
	}
	now := st.now()
	s := &Session{
		ChatID:       chatID,
		Dialog:       dialog,
		State:        state,
		StartedAt:    now,
		LastActivity: now,
	}
	st.sessions[chatID] = s
	return s.Clone(), nil
}

// Get returns a copy of the chat's session or ErrNotFound.
func (st *Store) Get(chatID int64) (Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[chatID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s.Clone(), nil
}

// Update applies the mutator to the chat's session under the store lock and
// stamps LastActivity. Returns ErrNotFound when the session no longer exists,
// which is how results computed for an already-reaped session get discarded.
func (st *Store) Update(chatID int64, mutate func(*Session)) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[chatID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if mutate != nil {
		mutate(s)
	}
	now := st.now()
	if now.After(s.LastActivity) {
		s.LastActivity = now
	}
	return s.Clone(), nil
}

// Remove deletes the chat's session. Removing an absent session is a no-op,
// so duplicate exits never error.
func (st *Store) Remove(chatID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, chatID)
}

// Expire removes the chat's session only if its LastActivity is not after the
// cutoff, reporting whether the removal happened. The check and the delete
// run under one lock acquisition so a concurrent Update either refreshes the
// session before the check or finds it gone.
func (st *Store) Expire(chatID int64, cutoff time.Time) (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[chatID]
	if !ok {
		return Session{}, false
	}
	if s.LastActivity.After(cutoff) {
		return Session{}, false
	}
	snapshot := s.Clone()
	delete(st.sessions, chatID)
	return snapshot, true
}

// All returns copies of every active session.
func (st *Store) All() []Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s.Clone())
	}
	return out
}

// Len reports the number of active sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
