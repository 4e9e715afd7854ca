package pin

import (
	"errors"
	"fmt"
)

// ErrBadCredentials means the site rejected our login, typically a
// configuration problem. Operators need to see it distinctly from generic
// site flakiness.
var ErrBadCredentials = errors.New("site rejected credentials")

// ErrDownloadFailed means a binary asset could not be retrieved.
var ErrDownloadFailed = errors.New("download failed")

// TransientError is a network or availability failure. Safe to retry later.
type TransientError struct {
	StatusCode int
	Message    string
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (http %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

// ProtocolError means the target site's markup no longer matches our
// selectors: the scraper needs maintenance. Subscribers see it as a generic
// unknown error, logs keep the selector that broke.
type ProtocolError struct {
	Selector string
	Detail   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("site markup mismatch at %q: %s", e.Selector, e.Detail)
}
