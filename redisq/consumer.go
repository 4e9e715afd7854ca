package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/socialpin/pin"
	"github.com/socialpin/pin/worker"
)

const popTimeout = 5 * time.Second

// Consumer drains the scrape queue on a pool of workers. Jobs are
// independent units of work; nothing is shared between them in process.
// A job whose handler escalates an error goes back on the queue up to
// MaxAttempts times.
type Consumer struct {
	Redis  *redis.Client
	Worker *worker.Worker

	// Workers defaults to 4, MaxAttempts to 3.
	Workers     int
	MaxAttempts int
}

// Run blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	workers := c.Workers
	if workers <= 0 {
		workers = 4
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.loop(ctx)
		}()
	}
	wg.Wait()
}

func (c *Consumer) loop(ctx context.Context) {
	for {
		res, err := c.Redis.BRPop(ctx, popTimeout, ScrapeQueue).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			logrus.WithError(err).Warningln("Queue pop failed.")
			time.Sleep(time.Second)
			continue
		}
		// BRPop result is [key, value].
		c.handle(ctx, []byte(res[1]))
	}
}

func (c *Consumer) handle(ctx context.Context, raw []byte) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		logrus.WithError(err).Warningln("Dropping undecodable job.")
		return
	}

	err := c.dispatch(ctx, job)
	if err == nil {
		return
	}

	log := logrus.WithError(err).
		WithField("job_id", job.Id).
		WithField("job_type", job.Type).
		WithField("attempt", job.Attempt)

	if errors.Is(err, pin.ErrUnsupportedSite) || errors.Is(err, pin.ErrProfileNotFound) {
		// Bad input stays bad, retrying cannot help. NotFound only escapes
		// here from the avatar job's post-download profile check; scrape
		// jobs publish and swallow it.
		log.Errorln("Dropping job with invalid input.")
		return
	}

	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	job.Attempt++
	if job.Attempt >= maxAttempts {
		log.Errorln("Dropping job, attempts exhausted.")
		return
	}
	log.Warningln("Job failed, requeueing.")

	requeued, marshalErr := json.Marshal(job)
	if marshalErr != nil {
		log.WithError(marshalErr).Errorln("Could not reserialize job.")
		return
	}
	if err := c.Redis.LPush(context.WithoutCancel(ctx), ScrapeQueue, requeued).Err(); err != nil {
		log.WithError(err).Errorln("Could not requeue job.")
	}
}

func (c *Consumer) dispatch(ctx context.Context, job Job) error {
	switch job.Type {
	case JobScrapeAccount:
		var payload ScrapeAccountPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			logrus.WithError(err).WithField("job_id", job.Id).Warningln("Dropping malformed scrape job.")
			return nil
		}
		site, err := pin.ParseSite(payload.Site)
		if err != nil {
			return err
		}
		return c.Worker.ScrapeAccount(ctx, site, payload.Name)
	case JobScrapeAvatar:
		var payload ScrapeAvatarPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			logrus.WithError(err).WithField("job_id", job.Id).Warningln("Dropping malformed avatar job.")
			return nil
		}
		return c.Worker.FetchAvatar(ctx, pin.ProfileId(payload.ProfileId), payload.Url)
	default:
		logrus.WithField("job_type", job.Type).Warningln("Dropping job of unknown type.")
		return nil
	}
}
