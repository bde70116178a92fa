package service

import (
	"slices"

	"github.com/set-night/mindchat/internal/domain"
)

// SessionStore is the canonical in-memory session list, most recently created
// first, plus the focused session id. It is not safe for concurrent use; the
// Coordinator guards it with its mutex and hands out copies only.
type SessionStore struct {
	sessions []*domain.Session
	current  int64
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Replace swaps the whole list, keeping focus if the focused id survives.
func (s *SessionStore) Replace(list []*domain.Session) {
	s.sessions = slices.Clone(list)
	if s.Find(s.current) == nil {
		s.current = 0
	}
}

func (s *SessionStore) All() []*domain.Session {
	return s.sessions
}

func (s *SessionStore) Len() int {
	return len(s.sessions)
}

func (s *SessionStore) Find(id int64) *domain.Session {
	if id == 0 {
		return nil
	}
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

// Insert puts sess at the front.
func (s *SessionStore) Insert(sess *domain.Session) {
	s.sessions = slices.Insert(s.sessions, 0, sess)
}

// Remove drops the session and clears focus if it was focused.
func (s *SessionStore) Remove(id int64) bool {
	i := slices.IndexFunc(s.sessions, func(sess *domain.Session) bool { return sess.ID == id })
	if i < 0 {
		return false
	}
	s.sessions = slices.Delete(s.sessions, i, i+1)
	if s.current == id {
		s.current = 0
	}
	return true
}

func (s *SessionStore) Current() *domain.Session {
	return s.Find(s.current)
}

func (s *SessionStore) CurrentID() int64 {
	return s.current
}

func (s *SessionStore) SetCurrent(id int64) bool {
	if s.Find(id) == nil {
		return false
	}
	s.current = id
	return true
}

// Front returns the most recently created session, or nil.
func (s *SessionStore) Front() *domain.Session {
	if len(s.sessions) == 0 {
		return nil
	}
	return s.sessions[0]
}
