package inmem

import (
	"sync"

	"github.com/socialpin/pin"
)

type SessionStore struct {
	sessions map[pin.Site]pin.CachedSession
	saves    int
	mutex    sync.RWMutex
}

func NewSessionStore() SessionStore {
	return SessionStore{
		sessions: map[pin.Site]pin.CachedSession{},
	}
}

var _ pin.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Load(site pin.Site) (pin.CachedSession, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[site]
	if !ok {
		return nil, pin.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Save(site pin.Site, session pin.CachedSession) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sessions[site] = session
	s.saves++
	return nil
}

// Saves reports how many times Save ran. Test helper.
func (s *SessionStore) Saves() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.saves
}
