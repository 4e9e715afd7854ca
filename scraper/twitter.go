package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/socialpin/pin"
)

const (
	twitterIdentitySelector      = ".ProfileNav-item--userActions .user-actions"
	twitterBioSelector           = ".ProfileHeaderCard-bio"
	twitterPostCountSelector     = ".ProfileNav-item--tweets .ProfileNav-value"
	twitterFriendCountSelector   = ".ProfileNav-item--following .ProfileNav-value"
	twitterFollowerCountSelector = ".ProfileNav-item--followers .ProfileNav-value"
	twitterAvatarSelector        = ".ProfileAvatar-image"
	twitterLoginTokenSelector    = "input[name=authenticity_token]"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Twitter struct {
	baseUrl  *url.URL
	sessions pin.SessionStore
	creds    Credentials
	timeout  time.Duration
}

type TwitterOptions struct {
	// BaseUrl defaults to https://twitter.com. Tests point it at a fake.
	BaseUrl     string
	Sessions    pin.SessionStore
	Credentials Credentials
	Timeout     time.Duration
}

func NewTwitter(opts TwitterOptions) (*Twitter, error) {
	rawUrl := opts.BaseUrl
	if rawUrl == "" {
		rawUrl = "https://twitter.com"
	}
	baseUrl, err := url.Parse(rawUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Twitter{
		baseUrl:  baseUrl,
		sessions: opts.Sessions,
		creds:    opts.Credentials,
		timeout:  timeout,
	}, nil
}

func (t *Twitter) Site() pin.Site {
	return pin.SiteTwitter
}

func (t *Twitter) Authenticate(ctx context.Context) (*resty.Client, error) {
	saved, err := t.sessions.Load(pin.SiteTwitter)
	if err == nil {
		client, restoreErr := t.restoreClient(saved)
		if restoreErr == nil {
			return client, nil
		}
		logrus.WithError(restoreErr).
			WithField("site", pin.SiteTwitter).
			Warningln("Discarding cached session.")
	} else if !errors.Is(err, pin.ErrSessionNotFound) {
		return nil, fmt.Errorf("load cached session: %w", err)
	}
	return t.login(ctx)
}

func (t *Twitter) login(ctx context.Context) (*resty.Client, error) {
	client, err := t.newClient()
	if err != nil {
		return nil, err
	}

	res, err := client.R().
		SetContext(ctx).
		Get("/login")
	if err != nil {
		return nil, &pin.TransientError{Message: fmt.Sprintf("fetch twitter login page: %s", err)}
	}
	if res.StatusCode() != http.StatusOK {
		return nil, &pin.TransientError{
			StatusCode: res.StatusCode(),
			Message:    "could not fetch twitter login page",
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse login page: %w", err)
	}

	// The page may carry several token inputs, but they all hold the same
	// value, so the first one is taken.
	token, ok := doc.Find(twitterLoginTokenSelector).First().Attr("value")
	if !ok {
		return nil, &pin.ProtocolError{
			Selector: twitterLoginTokenSelector,
			Detail:   "login token input is gone",
		}
	}

	res, err = client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"authenticity_token":         token,
			"session[username_or_email]": t.creds.Username,
			"session[password]":          t.creds.Password,
			"remember_me":                "1",
			"return_to_ssl":              "true",
		}).
		Post("/sessions")
	if err != nil {
		return nil, &pin.TransientError{Message: fmt.Sprintf("submit twitter login form: %s", err)}
	}
	if res.StatusCode() != http.StatusFound {
		return nil, &pin.TransientError{
			StatusCode: res.StatusCode(),
			Message:    "twitter login did not redirect",
		}
	}
	if strings.HasPrefix(res.Header().Get("Location"), t.baseUrl.JoinPath("login").String()) {
		// Bounced back to the login form: credentials were rejected.
		return nil, pin.ErrBadCredentials
	}

	session, err := t.snapshotSession(client)
	if err != nil {
		return nil, fmt.Errorf("serialize session: %w", err)
	}
	if err := t.sessions.Save(pin.SiteTwitter, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return client, nil
}

func (t *Twitter) FetchHome(ctx context.Context, client *resty.Client, name string) (*goquery.Document, error) {
	res, err := client.R().
		SetContext(ctx).
		Get("/" + name)
	if err != nil {
		return nil, &pin.TransientError{Message: fmt.Sprintf("fetch home page for %q: %s", name, err)}
	}
	switch res.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, pin.ErrProfileNotFound
	default:
		return nil, &pin.TransientError{
			StatusCode: res.StatusCode(),
			Message:    fmt.Sprintf("could not get home page for %q", name),
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse home page: %w", err)
	}
	return doc, nil
}

func (t *Twitter) Extract(doc *goquery.Document, name string) (pin.ProfileFields, error) {
	idEl := doc.Find(twitterIdentitySelector)
	if idEl.Length() == 0 {
		// No user id anywhere in the markup: whatever this page is, it is
		// not a profile page.
		return pin.ProfileFields{}, pin.ErrProfileNotFound
	}
	externalId, ok := idEl.First().Attr("data-user-id")
	if !ok || externalId == "" {
		return pin.ProfileFields{}, &pin.ProtocolError{
			Selector: twitterIdentitySelector,
			Detail:   "data-user-id attribute is gone",
		}
	}

	description, err := textField(doc, twitterBioSelector)
	if err != nil {
		return pin.ProfileFields{}, err
	}
	postCount, err := countField(doc, twitterPostCountSelector)
	if err != nil {
		return pin.ProfileFields{}, err
	}
	friendCount, err := countField(doc, twitterFriendCountSelector)
	if err != nil {
		return pin.ProfileFields{}, err
	}
	followerCount, err := countField(doc, twitterFollowerCountSelector)
	if err != nil {
		return pin.ProfileFields{}, err
	}

	avatarEl := doc.Find(twitterAvatarSelector)
	if avatarEl.Length() == 0 {
		return pin.ProfileFields{}, &pin.ProtocolError{Selector: twitterAvatarSelector, Detail: "no matches"}
	}
	avatarUrl, ok := avatarEl.First().Attr("src")
	if !ok {
		return pin.ProfileFields{}, &pin.ProtocolError{Selector: twitterAvatarSelector, Detail: "src attribute is gone"}
	}

	return pin.ProfileFields{
		ExternalId:    externalId,
		Name:          name,
		Description:   description,
		PostCount:     postCount,
		FriendCount:   friendCount,
		FollowerCount: followerCount,
		AvatarUrl:     avatarUrl,
	}, nil
}

func (t *Twitter) newClient() (*resty.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	client := resty.New()
	client.SetBaseURL(t.baseUrl.String())
	client.SetCookieJar(jar)
	client.SetTimeout(t.timeout)
	client.SetHeader("user-agent", defaultUserAgent)
	// The login form post must not follow its redirect: the Location header
	// is what tells a successful login apart from a rejected one.
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if len(via) > 0 && strings.HasSuffix(via[0].URL.Path, "/sessions") {
			return http.ErrUseLastResponse
		}
		return nil
	}))
	return client, nil
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type sessionSnapshot struct {
	Cookies []savedCookie `json:"cookies"`
}

func (t *Twitter) snapshotSession(client *resty.Client) (pin.CachedSession, error) {
	var snapshot sessionSnapshot
	for _, c := range client.GetClient().Jar.Cookies(t.baseUrl) {
		snapshot.Cookies = append(snapshot.Cookies, savedCookie{Name: c.Name, Value: c.Value})
	}
	serialized, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("serialize session: %w", err)
	}
	return pin.CachedSession(serialized), nil
}

func (t *Twitter) restoreClient(saved pin.CachedSession) (*resty.Client, error) {
	var snapshot sessionSnapshot
	if err := json.Unmarshal(saved, &snapshot); err != nil {
		return nil, fmt.Errorf("deserialize session: %w", err)
	}
	if len(snapshot.Cookies) == 0 {
		return nil, errors.New("deserialize session: no cookies")
	}
	client, err := t.newClient()
	if err != nil {
		return nil, err
	}
	cookies := make([]*http.Cookie, len(snapshot.Cookies))
	for i, c := range snapshot.Cookies {
		cookies[i] = &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"}
	}
	client.GetClient().Jar.SetCookies(t.baseUrl, cookies)
	return client, nil
}

func textField(doc *goquery.Document, selector string) (string, error) {
	el := doc.Find(selector)
	if el.Length() == 0 {
		return "", &pin.ProtocolError{Selector: selector, Detail: "no matches"}
	}
	return strings.TrimSpace(el.First().Text()), nil
}

func countField(doc *goquery.Document, selector string) (int, error) {
	text, err := textField(doc, selector)
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(strings.ReplaceAll(text, ",", ""))
	if err != nil || count < 0 {
		return 0, &pin.ProtocolError{
			Selector: selector,
			Detail:   fmt.Sprintf("expected a count, got %q", text),
		}
	}
	return count, nil
}
