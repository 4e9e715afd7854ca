package mock

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/socialpin/pin"
)

type Scraper struct {
	SiteFn         func() pin.Site
	AuthenticateFn func(ctx context.Context) (*resty.Client, error)
	FetchHomeFn    func(ctx context.Context, client *resty.Client, name string) (*goquery.Document, error)
	ExtractFn      func(doc *goquery.Document, name string) (pin.ProfileFields, error)
}

func (s Scraper) Site() pin.Site {
	return s.SiteFn()
}

func (s Scraper) Authenticate(ctx context.Context) (*resty.Client, error) {
	return s.AuthenticateFn(ctx)
}

func (s Scraper) FetchHome(ctx context.Context, client *resty.Client, name string) (*goquery.Document, error) {
	return s.FetchHomeFn(ctx, client, name)
}

func (s Scraper) Extract(doc *goquery.Document, name string) (pin.ProfileFields, error) {
	return s.ExtractFn(doc, name)
}
