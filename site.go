package pin

import "errors"

var ErrUnsupportedSite = errors.New("unsupported site")

// Site is a supported external platform the scraper targets. The set is
// closed: anything outside it is rejected at the boundary before any I/O.
type Site string

const SiteTwitter Site = "twitter"

var supportedSites = map[Site]bool{
	SiteTwitter: true,
}

func ParseSite(raw string) (Site, error) {
	site := Site(raw)
	if !supportedSites[site] {
		return "", ErrUnsupportedSite
	}
	return site, nil
}
