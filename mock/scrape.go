package mock

import (
	"context"

	"github.com/socialpin/pin"
)

type JobDispatcher struct {
	EnqueueScrapeFn func(ctx context.Context, site pin.Site, name string) error
	EnqueueAvatarFn func(ctx context.Context, profileId pin.ProfileId, url string) error
	EnqueueIndexFn  func(ctx context.Context, profileId pin.ProfileId) error
}

func (d JobDispatcher) EnqueueScrape(ctx context.Context, site pin.Site, name string) error {
	return d.EnqueueScrapeFn(ctx, site, name)
}

func (d JobDispatcher) EnqueueAvatar(ctx context.Context, profileId pin.ProfileId, url string) error {
	return d.EnqueueAvatarFn(ctx, profileId, url)
}

func (d JobDispatcher) EnqueueIndex(ctx context.Context, profileId pin.ProfileId) error {
	return d.EnqueueIndexFn(ctx, profileId)
}

type ResultPublisher struct {
	PublishProfileFn func(ctx context.Context, msg pin.ProfileMessage) error
	PublishFailureFn func(ctx context.Context, msg pin.ProfileFailureMessage) error
	PublishAvatarFn  func(ctx context.Context, msg pin.AvatarMessage) error
}

func (p ResultPublisher) PublishProfile(ctx context.Context, msg pin.ProfileMessage) error {
	return p.PublishProfileFn(ctx, msg)
}

func (p ResultPublisher) PublishFailure(ctx context.Context, msg pin.ProfileFailureMessage) error {
	return p.PublishFailureFn(ctx, msg)
}

func (p ResultPublisher) PublishAvatar(ctx context.Context, msg pin.AvatarMessage) error {
	return p.PublishAvatarFn(ctx, msg)
}
