package pin

import "context"

// ProfileMessage is the terminal message published on the "profile"
// channel after a successful scrape attempt. Every key is always on the
// wire: a fresh account legitimately has zero posts and an empty bio, and
// subscribers rely on the full key set.
type ProfileMessage struct {
	Name          string `json:"name"`
	Site          Site   `json:"site"`
	Description   string `json:"description"`
	PostCount     int    `json:"post_count"`
	FriendCount   int    `json:"friend_count"`
	FollowerCount int    `json:"follower_count"`
	Id            int64  `json:"id"`
}

// ProfileFailureMessage is the terminal message for a failed attempt,
// published on the same channel. ErrorCode is only present when a concrete
// HTTP-ish status is known.
type ProfileFailureMessage struct {
	Name      string `json:"name"`
	Site      Site   `json:"site"`
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// AvatarMessage is published on the "avatar" channel once an avatar asset
// has been attached. Url is a file-reference path, not the origin url.
type AvatarMessage struct {
	Id  int64  `json:"id"`
	Url string `json:"url"`
}

type ResultPublisher interface {
	PublishProfile(ctx context.Context, msg ProfileMessage) error

	PublishFailure(ctx context.Context, msg ProfileFailureMessage) error

	PublishAvatar(ctx context.Context, msg AvatarMessage) error
}

// JobDispatcher hands follow-on work to the external queue. Fire and
// forget: delivery and retry semantics belong to the queue.
type JobDispatcher interface {
	EnqueueScrape(ctx context.Context, site Site, name string) error

	EnqueueAvatar(ctx context.Context, profileId ProfileId, url string) error

	EnqueueIndex(ctx context.Context, profileId ProfileId) error
}
