package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/socialpin/pin"
	"github.com/socialpin/pin/inmem"
	"github.com/socialpin/pin/mock"
	"github.com/socialpin/pin/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFields = pin.ProfileFields{
	ExternalId:    "13370042",
	Name:          "makin",
	Description:   "Scraping the web, one page at a time.",
	PostCount:     12345,
	FriendCount:   321,
	FollowerCount: 6789,
	AvatarUrl:     "https://pbs.example.com/avatar/makin_400x400.jpg",
}

type harness struct {
	profiles *inmem.ProfileStore
	worker   *Worker

	profileMsgs []pin.ProfileMessage
	failureMsgs []pin.ProfileFailureMessage
	avatarMsgs  []pin.AvatarMessage
	avatarJobs  []pin.ProfileId
	indexJobs   []pin.ProfileId
}

func newHarness(scrapers scraper.Registry) *harness {
	profiles := inmem.NewProfileStore()
	h := &harness{profiles: &profiles}
	h.worker = &Worker{
		Scrapers: scrapers,
		Profiles: h.profiles,
		Dispatcher: mock.JobDispatcher{
			EnqueueScrapeFn: func(ctx context.Context, site pin.Site, name string) error {
				return nil
			},
			EnqueueAvatarFn: func(ctx context.Context, profileId pin.ProfileId, url string) error {
				h.avatarJobs = append(h.avatarJobs, profileId)
				return nil
			},
			EnqueueIndexFn: func(ctx context.Context, profileId pin.ProfileId) error {
				h.indexJobs = append(h.indexJobs, profileId)
				return nil
			},
		},
		Publisher: mock.ResultPublisher{
			PublishProfileFn: func(ctx context.Context, msg pin.ProfileMessage) error {
				h.profileMsgs = append(h.profileMsgs, msg)
				return nil
			},
			PublishFailureFn: func(ctx context.Context, msg pin.ProfileFailureMessage) error {
				h.failureMsgs = append(h.failureMsgs, msg)
				return nil
			},
			PublishAvatarFn: func(ctx context.Context, msg pin.AvatarMessage) error {
				h.avatarMsgs = append(h.avatarMsgs, msg)
				return nil
			},
		},
		Downloader: resty.New(),
	}
	return h
}

func emptyDoc(t *testing.T) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html></html>"))
	require.NoError(t, err)
	return doc
}

func happyScraper(t *testing.T, fields pin.ProfileFields) mock.Scraper {
	return mock.Scraper{
		SiteFn: func() pin.Site { return pin.SiteTwitter },
		AuthenticateFn: func(ctx context.Context) (*resty.Client, error) {
			return resty.New(), nil
		},
		FetchHomeFn: func(ctx context.Context, client *resty.Client, name string) (*goquery.Document, error) {
			return emptyDoc(t), nil
		},
		ExtractFn: func(doc *goquery.Document, name string) (pin.ProfileFields, error) {
			return fields, nil
		},
	}
}

func TestScrapeAccountSuccess(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(scraper.Registry{pin.SiteTwitter: happyScraper(t, testFields)})
	err := h.worker.ScrapeAccount(context.Background(), pin.SiteTwitter, "makin")
	if !assert.NoError(err) {
		return
	}

	profile, err := h.profiles.BySiteId(context.Background(), pin.SiteTwitter, testFields.ExternalId)
	if !assert.NoError(err) {
		return
	}
	assert.Equal("makin", profile.Name)
	assert.Equal(12345, profile.PostCount)

	assert.Equal([]pin.ProfileId{profile.Id}, h.avatarJobs)
	assert.Equal([]pin.ProfileId{profile.Id}, h.indexJobs)

	if assert.Len(h.profileMsgs, 1) {
		assert.Equal(pin.ProfileMessage{
			Name:          "makin",
			Site:          pin.SiteTwitter,
			Description:   testFields.Description,
			PostCount:     testFields.PostCount,
			FriendCount:   testFields.FriendCount,
			FollowerCount: testFields.FollowerCount,
			Id:            int64(profile.Id),
		}, h.profileMsgs[0])
	}
}

func TestScrapeAccountRepeatedKeepsOneProfile(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(scraper.Registry{pin.SiteTwitter: happyScraper(t, testFields)})
	ctx := context.Background()
	assert.NoError(h.worker.ScrapeAccount(ctx, pin.SiteTwitter, "makin"))

	updated := testFields
	updated.FollowerCount = 7000
	h.worker.Scrapers = scraper.Registry{pin.SiteTwitter: happyScraper(t, updated)}
	assert.NoError(h.worker.ScrapeAccount(ctx, pin.SiteTwitter, "makin"))

	profile, err := h.profiles.BySiteId(ctx, pin.SiteTwitter, testFields.ExternalId)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(7000, profile.FollowerCount)
	assert.Len(h.profileMsgs, 2)
	assert.Equal(h.profileMsgs[0].Id, h.profileMsgs[1].Id)
}

func TestScrapeAccountUnsupportedSite(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(scraper.Registry{})
	err := h.worker.ScrapeAccount(context.Background(), pin.Site("myspace"), "makin")
	assert.ErrorIs(err, pin.ErrUnsupportedSite)
	assert.Empty(h.profileMsgs)
	assert.Empty(h.failureMsgs)
	assert.Empty(h.avatarJobs)
	assert.Empty(h.indexJobs)
}

func TestScrapeAccountNotFound(t *testing.T) {
	assert := assert.New(t)

	scr := happyScraper(t, testFields)
	scr.FetchHomeFn = func(ctx context.Context, client *resty.Client, name string) (*goquery.Document, error) {
		return nil, pin.ErrProfileNotFound
	}
	h := newHarness(scraper.Registry{pin.SiteTwitter: scr})

	err := h.worker.ScrapeAccount(context.Background(), pin.SiteTwitter, "nobody_here")
	assert.NoError(err)
	assert.Empty(h.avatarJobs)
	assert.Empty(h.indexJobs)
	assert.Empty(h.profileMsgs)

	if assert.Len(h.failureMsgs, 1) {
		assert.Equal(pin.ProfileFailureMessage{
			Name:      "nobody_here",
			Site:      pin.SiteTwitter,
			Error:     "Profile not found.",
			ErrorCode: http.StatusNotFound,
		}, h.failureMsgs[0])
	}
}

func TestScrapeAccountTransient(t *testing.T) {
	assert := assert.New(t)

	scr := happyScraper(t, testFields)
	scr.AuthenticateFn = func(ctx context.Context) (*resty.Client, error) {
		return nil, &pin.TransientError{StatusCode: http.StatusServiceUnavailable, Message: "twitter is down"}
	}
	h := newHarness(scraper.Registry{pin.SiteTwitter: scr})

	err := h.worker.ScrapeAccount(context.Background(), pin.SiteTwitter, "makin")
	assert.NoError(err)

	if assert.Len(h.failureMsgs, 1) {
		msg := h.failureMsgs[0]
		assert.Equal("Error while communicating with twitter.", msg.Error)
		assert.Equal(http.StatusServiceUnavailable, msg.ErrorCode)
	}
}

func TestScrapeAccountBadCredentials(t *testing.T) {
	assert := assert.New(t)

	scr := happyScraper(t, testFields)
	scr.AuthenticateFn = func(ctx context.Context) (*resty.Client, error) {
		return nil, pin.ErrBadCredentials
	}
	h := newHarness(scraper.Registry{pin.SiteTwitter: scr})

	err := h.worker.ScrapeAccount(context.Background(), pin.SiteTwitter, "makin")
	assert.NoError(err)

	if assert.Len(h.failureMsgs, 1) {
		msg := h.failureMsgs[0]
		assert.Equal("Could not log in to twitter: check the configured credentials.", msg.Error)
		assert.Zero(msg.ErrorCode)
	}
}

func TestScrapeAccountMarkupMismatchSwallowed(t *testing.T) {
	assert := assert.New(t)

	scr := happyScraper(t, testFields)
	scr.ExtractFn = func(doc *goquery.Document, name string) (pin.ProfileFields, error) {
		return pin.ProfileFields{}, &pin.ProtocolError{Selector: ".ProfileHeaderCard-bio", Detail: "no matches"}
	}
	h := newHarness(scraper.Registry{pin.SiteTwitter: scr})

	err := h.worker.ScrapeAccount(context.Background(), pin.SiteTwitter, "makin")
	assert.NoError(err)

	if assert.Len(h.failureMsgs, 1) {
		assert.Equal("Unknown error while fetching profile.", h.failureMsgs[0].Error)
		assert.Zero(h.failureMsgs[0].ErrorCode)
	}
}

func TestScrapeAccountUnknownErrorEscalates(t *testing.T) {
	assert := assert.New(t)

	cause := errors.New("kv store is on fire")
	scr := happyScraper(t, testFields)
	scr.AuthenticateFn = func(ctx context.Context) (*resty.Client, error) {
		return nil, cause
	}
	h := newHarness(scraper.Registry{pin.SiteTwitter: scr})

	err := h.worker.ScrapeAccount(context.Background(), pin.SiteTwitter, "makin")
	assert.ErrorIs(err, cause)

	// Escalated failures still get their terminal message.
	if assert.Len(h.failureMsgs, 1) {
		assert.Equal("Unknown error while fetching profile.", h.failureMsgs[0].Error)
	}
}

func TestScrapeAccountPublishesFailureWhenContextDone(t *testing.T) {
	assert := assert.New(t)

	scr := happyScraper(t, testFields)
	scr.FetchHomeFn = func(ctx context.Context, client *resty.Client, name string) (*goquery.Document, error) {
		return nil, pin.ErrProfileNotFound
	}
	h := newHarness(scraper.Registry{pin.SiteTwitter: scr})
	var published int
	h.worker.Publisher = mock.ResultPublisher{
		PublishFailureFn: func(ctx context.Context, msg pin.ProfileFailureMessage) error {
			assert.NoError(ctx.Err())
			published++
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.worker.ScrapeAccount(ctx, pin.SiteTwitter, "makin")
	assert.NoError(err)
	assert.Equal(1, published)
}

func TestScrapeAccountPublishesSuccessWhenContextDone(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(scraper.Registry{pin.SiteTwitter: happyScraper(t, testFields)})
	var published int
	h.worker.Publisher = mock.ResultPublisher{
		PublishProfileFn: func(ctx context.Context, msg pin.ProfileMessage) error {
			assert.NoError(ctx.Err())
			published++
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.worker.ScrapeAccount(ctx, pin.SiteTwitter, "makin")
	assert.NoError(err)
	assert.Equal(1, published)
}

func TestFetchAvatar(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg bytes"))
	}))
	defer server.Close()

	h := newHarness(scraper.Registry{})
	ctx := context.Background()
	profile, err := h.profiles.Upsert(ctx, pin.SiteTwitter, testFields.ExternalId, testFields)
	require.NoError(t, err)

	err = h.worker.FetchAvatar(ctx, profile.Id, server.URL+"/avatar/makin_400x400.jpg")
	if !assert.NoError(err) {
		return
	}

	assert.Equal(1, h.profiles.AvatarCount(profile.Id))
	if assert.Len(h.avatarMsgs, 1) {
		assert.Equal(int64(profile.Id), h.avatarMsgs[0].Id)
		assert.Equal("/api/file/1", h.avatarMsgs[0].Url)
	}

	avatar, err := h.profiles.AvatarById(ctx, pin.AvatarId(1))
	if assert.NoError(err) {
		assert.Equal("makin_400x400.jpg", avatar.Name)
		assert.Equal("image/jpeg", avatar.Mime)
		assert.Equal([]byte("jpeg bytes"), avatar.Content)
	}
}

func TestFetchAvatarDefaultMime(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Suppress content type sniffing so the response has no mime at all.
		w.Header()["Content-Type"] = nil
		w.Write([]byte{0x00, 0x01})
	}))
	defer server.Close()

	h := newHarness(scraper.Registry{})
	ctx := context.Background()
	profile, err := h.profiles.Upsert(ctx, pin.SiteTwitter, testFields.ExternalId, testFields)
	require.NoError(t, err)

	err = h.worker.FetchAvatar(ctx, profile.Id, server.URL+"/raw")
	if !assert.NoError(err) {
		return
	}

	avatar, err := h.profiles.AvatarById(ctx, pin.AvatarId(1))
	if assert.NoError(err) {
		assert.Equal("application/octet-stream", avatar.Mime)
	}
}

func TestFetchAvatarDownloadFailed(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	h := newHarness(scraper.Registry{})
	ctx := context.Background()
	profile, err := h.profiles.Upsert(ctx, pin.SiteTwitter, testFields.ExternalId, testFields)
	require.NoError(t, err)

	err = h.worker.FetchAvatar(ctx, profile.Id, server.URL+"/gone.jpg")
	assert.ErrorIs(err, pin.ErrDownloadFailed)
	assert.Equal(0, h.profiles.AvatarCount(profile.Id))
	assert.Empty(h.avatarMsgs)
}

func TestFetchAvatarProfileGone(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg bytes"))
	}))
	defer server.Close()

	h := newHarness(scraper.Registry{})
	err := h.worker.FetchAvatar(context.Background(), pin.ProfileId(404), server.URL+"/a.jpg")
	assert.ErrorIs(err, pin.ErrProfileNotFound)
	assert.Empty(h.avatarMsgs)
}

func TestAssetName(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		url  string
		name string
	}{
		{"https://pbs.example.com/avatar/makin_400x400.jpg", "makin_400x400.jpg"},
		{"https://pbs.example.com/avatar/makin.png?size=big", "makin.png"},
		{"/relative/path/pic.gif", "pic.gif"},
	}
	for i, tc := range cases {
		assert.Equal(tc.name, assetName(tc.url), "index: %d", i)
	}
}
