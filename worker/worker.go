package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/socialpin/pin"
	"github.com/socialpin/pin/scraper"
)

// Worker runs scrape jobs end to end: authenticate, fetch, extract,
// upsert, enqueue follow-on jobs, publish the terminal result. Every
// attempt publishes exactly one terminal message; only the unknown error
// class is returned to the caller for retry supervision.
type Worker struct {
	Scrapers   scraper.Registry
	Profiles   pin.ProfileStore
	Dispatcher pin.JobDispatcher
	Publisher  pin.ResultPublisher

	// Downloader fetches static assets; avatars need no authentication.
	Downloader *resty.Client
}

func (w *Worker) ScrapeAccount(ctx context.Context, site pin.Site, name string) error {
	scr, err := w.Scrapers.For(site)
	if err != nil {
		// Caller error. Nothing was attempted, so nothing is published.
		return err
	}

	profile, err := w.scrape(ctx, scr, name)
	if err != nil {
		return w.publishFailure(ctx, site, name, err)
	}

	msg := pin.ProfileMessage{
		Name:          name,
		Site:          site,
		Description:   profile.Description,
		PostCount:     profile.PostCount,
		FriendCount:   profile.FriendCount,
		FollowerCount: profile.FollowerCount,
		Id:            int64(profile.Id),
	}
	// Same rule as the failure path: once the attempt ran, its terminal
	// message goes out even if the job's own context died meanwhile.
	if err := w.Publisher.PublishProfile(context.WithoutCancel(ctx), msg); err != nil {
		return fmt.Errorf("publish scrape result: %w", err)
	}
	return nil
}

func (w *Worker) scrape(ctx context.Context, scr scraper.Scraper, name string) (pin.Profile, error) {
	client, err := scr.Authenticate(ctx)
	if err != nil {
		return pin.Profile{}, err
	}
	doc, err := scr.FetchHome(ctx, client, name)
	if err != nil {
		return pin.Profile{}, err
	}
	fields, err := scr.Extract(doc, name)
	if err != nil {
		return pin.Profile{}, err
	}

	profile, err := w.Profiles.Upsert(ctx, scr.Site(), fields.ExternalId, fields)
	if err != nil {
		return pin.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	if err := w.Dispatcher.EnqueueAvatar(ctx, profile.Id, fields.AvatarUrl); err != nil {
		return pin.Profile{}, fmt.Errorf("enqueue avatar job: %w", err)
	}
	if err := w.Dispatcher.EnqueueIndex(ctx, profile.Id); err != nil {
		return pin.Profile{}, fmt.Errorf("enqueue index job: %w", err)
	}
	return profile, nil
}

// publishFailure converts a failed attempt into its terminal message.
// Input-classified failures (not found, bad credentials, transient,
// markup mismatch) are swallowed after publishing; anything else is
// returned so the queue's retry supervision sees it, because it may mean
// the worker itself is unhealthy rather than the input.
func (w *Worker) publishFailure(ctx context.Context, site pin.Site, name string, cause error) error {
	msg := pin.ProfileFailureMessage{Name: name, Site: site}
	var escalate error

	var transient *pin.TransientError
	var protocol *pin.ProtocolError
	switch {
	case errors.Is(cause, pin.ErrProfileNotFound):
		msg.Error = "Profile not found."
		msg.ErrorCode = http.StatusNotFound
	case errors.As(cause, &transient):
		msg.Error = fmt.Sprintf("Error while communicating with %s.", site)
		msg.ErrorCode = transient.StatusCode
	case errors.Is(cause, pin.ErrBadCredentials):
		msg.Error = fmt.Sprintf("Could not log in to %s: check the configured credentials.", site)
	case errors.As(cause, &protocol):
		// A markup change is our maintenance problem, not the subscriber's.
		logrus.WithError(cause).
			WithField("site", site).
			WithField("selector", protocol.Selector).
			Errorln("Site markup no longer matches the scraper.")
		msg.Error = "Unknown error while fetching profile."
	default:
		msg.Error = "Unknown error while fetching profile."
		escalate = cause
	}

	// Publish even when the job's own context is done, so subscribers are
	// never left without a terminal message. Best effort only.
	if err := w.Publisher.PublishFailure(context.WithoutCancel(ctx), msg); err != nil {
		logrus.WithError(err).
			WithField("site", site).
			WithField("name", name).
			Warningln("Could not publish failure message.")
		if escalate == nil {
			return fmt.Errorf("publish failure message: %w", err)
		}
	}
	return escalate
}

// FetchAvatar downloads the asset at url and attaches it to the profile's
// avatar collection. The profile existence check runs after the download:
// wasted bandwidth on a since-deleted profile beats an extra round trip on
// every job.
func (w *Worker) FetchAvatar(ctx context.Context, profileId pin.ProfileId, rawUrl string) error {
	res, err := w.Downloader.R().
		SetContext(ctx).
		Get(rawUrl)
	if err != nil {
		return fmt.Errorf("%w: %s", pin.ErrDownloadFailed, err)
	}
	if res.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: http %d", pin.ErrDownloadFailed, res.StatusCode())
	}

	if _, err := w.Profiles.ById(ctx, profileId); err != nil {
		return fmt.Errorf("profile %d: %w", profileId, err)
	}

	mime := res.Header().Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	avatar, err := w.Profiles.AttachAvatar(ctx, profileId, pin.Avatar{
		ProfileId: profileId,
		Name:      assetName(rawUrl),
		Mime:      mime,
		Content:   res.Body(),
	})
	if err != nil {
		return fmt.Errorf("attach avatar: %w", err)
	}

	msg := pin.AvatarMessage{
		Id:  int64(profileId),
		Url: "/api/file/" + strconv.FormatInt(int64(avatar.Id), 10),
	}
	if err := w.Publisher.PublishAvatar(ctx, msg); err != nil {
		return fmt.Errorf("publish avatar message: %w", err)
	}
	return nil
}

func assetName(rawUrl string) string {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return path.Base(rawUrl)
	}
	return path.Base(parsed.Path)
}
