package scraper

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/socialpin/pin"
)

// Scraper is the per-site protocol: authenticate once (or reuse the cached
// session), fetch an account's home page, extract typed fields from its
// markup. Implementations do no persistence and publish nothing.
type Scraper interface {
	Site() pin.Site

	// Authenticate returns a client ready for profile fetches. A valid
	// cached session is reused without any network I/O; otherwise the site
	// login handshake runs and the fresh session is cached.
	Authenticate(ctx context.Context) (*resty.Client, error)

	// FetchHome retrieves the public home page of the named account.
	// A 404 maps to pin.ErrProfileNotFound, any other non-200 to
	// pin.TransientError carrying the status code.
	FetchHome(ctx context.Context, client *resty.Client, name string) (*goquery.Document, error)

	// Extract pulls the fixed field set out of a fetched page. A missing
	// identity selector means the page is not a profile page
	// (pin.ErrProfileNotFound); any other missing or malformed field is a
	// pin.ProtocolError.
	Extract(doc *goquery.Document, name string) (pin.ProfileFields, error)
}

// Registry is the closed site-to-scraper mapping. Unsupported sites are
// rejected here, before any I/O happens.
type Registry map[pin.Site]Scraper

func (r Registry) For(site pin.Site) (Scraper, error) {
	s, ok := r[site]
	if !ok {
		return nil, pin.ErrUnsupportedSite
	}
	return s, nil
}

// Credentials for a site login handshake. Injected from configuration,
// never embedded in source.
type Credentials struct {
	Username string
	Password string
}
