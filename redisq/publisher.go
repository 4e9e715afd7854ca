package redisq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/socialpin/pin"
)

const (
	ProfileChannel = "profile"
	AvatarChannel  = "avatar"
)

// Publisher emits terminal scrape results over redis pub/sub.
type Publisher struct {
	Redis *redis.Client
}

var _ pin.ResultPublisher = (*Publisher)(nil)

func (p *Publisher) PublishProfile(ctx context.Context, msg pin.ProfileMessage) error {
	return p.publish(ctx, ProfileChannel, msg)
}

func (p *Publisher) PublishFailure(ctx context.Context, msg pin.ProfileFailureMessage) error {
	return p.publish(ctx, ProfileChannel, msg)
}

func (p *Publisher) PublishAvatar(ctx context.Context, msg pin.AvatarMessage) error {
	return p.publish(ctx, AvatarChannel, msg)
}

func (p *Publisher) publish(ctx context.Context, channel string, msg interface{}) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("serialize %s message: %w", channel, err)
	}
	if err := p.Redis.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publish on %s: %w", channel, err)
	}
	return nil
}
