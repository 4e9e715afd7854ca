package pin

import "errors"

var ErrSessionNotFound = errors.New("cached session not found")

// CachedSession is an opaque, site-scoped serialized session blob. At most
// one live entry exists per site; every successful login overwrites it.
// Staleness is detected reactively by the next authenticated request, there
// is no expiry field.
type CachedSession []byte

type SessionStore interface {
	// Load returns the cached session for a site or ErrSessionNotFound.
	// A stored entry that no longer deserializes is reported as not found
	// so callers fall through to a fresh login.
	Load(site Site) (CachedSession, error)

	// Save overwrites the cached session for a site.
	Save(site Site, session CachedSession) error
}
