package persistent

import (
	"errors"
	"fmt"

	"github.com/socialpin/pin"
	"github.com/tidwall/buntdb"
)

const sessionKeyPrefix = "scrape_session:"

// SessionService keeps one serialized scrape session per site in buntdb.
// Entries never expire on their own; a session stays until the next
// successful login overwrites it or the site starts rejecting it.
type SessionService struct {
	Buntdb *buntdb.DB
}

var _ pin.SessionStore = (*SessionService)(nil)

func (s *SessionService) Load(site pin.Site) (pin.CachedSession, error) {
	var raw string
	err := s.Buntdb.View(func(tx *buntdb.Tx) error {
		var err error
		raw, err = tx.Get(sessionKeyPrefix + string(site))
		return err
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil, pin.ErrSessionNotFound
		}
		return nil, fmt.Errorf("bunt view: %w", err)
	}
	return pin.CachedSession(raw), nil
}

func (s *SessionService) Save(site pin.Site, session pin.CachedSession) error {
	err := s.Buntdb.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(sessionKeyPrefix+string(site), string(session), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}
