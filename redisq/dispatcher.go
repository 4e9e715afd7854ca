package redisq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/socialpin/pin"
)

// Dispatcher pushes job envelopes onto redis lists. Fire and forget:
// nothing here waits for the job to run.
type Dispatcher struct {
	Redis *redis.Client
}

var _ pin.JobDispatcher = (*Dispatcher)(nil)

func (d *Dispatcher) EnqueueScrape(ctx context.Context, site pin.Site, name string) error {
	return d.enqueue(ctx, ScrapeQueue, JobScrapeAccount, ScrapeAccountPayload{
		Site: string(site),
		Name: name,
	})
}

func (d *Dispatcher) EnqueueAvatar(ctx context.Context, profileId pin.ProfileId, url string) error {
	return d.enqueue(ctx, ScrapeQueue, JobScrapeAvatar, ScrapeAvatarPayload{
		ProfileId: int64(profileId),
		Url:       url,
	})
}

func (d *Dispatcher) EnqueueIndex(ctx context.Context, profileId pin.ProfileId) error {
	return d.enqueue(ctx, IndexQueue, JobIndexProfile, IndexProfilePayload{
		ProfileId: int64(profileId),
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue string, jobType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serialize %s payload: %w", jobType, err)
	}
	raw, err := json.Marshal(Job{
		Id:      uuid.New().String(),
		Type:    jobType,
		Payload: body,
	})
	if err != nil {
		return fmt.Errorf("serialize %s job: %w", jobType, err)
	}
	if err := d.Redis.LPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("push %s job: %w", jobType, err)
	}
	return nil
}
