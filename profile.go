package pin

import (
	"context"
	"errors"
	"time"
)

var ErrProfileNotFound = errors.New("profile not found")

var ErrAvatarNotFound = errors.New("avatar not found")

type ProfileId int64

// Profile is the persisted record of an external account's scraped
// attributes. Identity is (Site, ExternalId); a pair maps to exactly one
// profile regardless of how many scrapes race on it.
type Profile struct {
	Id            ProfileId
	Site          Site
	ExternalId    string
	Name          string
	Description   string
	PostCount     int
	FriendCount   int
	FollowerCount int
	CreatedAt     time.Time
}

// ProfileFields is what a single successful page extraction yields.
// Name is the scraped handle supplied by the caller, not read from markup.
type ProfileFields struct {
	ExternalId    string
	Name          string
	Description   string
	PostCount     int
	FriendCount   int
	FollowerCount int
	AvatarUrl     string
}

type AvatarId int64

// Avatar is a stored binary asset owned exclusively by one profile.
// The most recently attached avatar is "current" by convention.
type Avatar struct {
	Id        AvatarId
	ProfileId ProfileId
	Name      string
	Mime      string
	Content   []byte
	CreatedAt time.Time
}

type ProfileStore interface {
	// Upsert creates the profile on first scrape or updates field values on
	// subsequent ones. Concurrent first-time upserts of the same
	// (site, externalId) converge to a single row; last writer wins on
	// field values once the row exists.
	Upsert(ctx context.Context, site Site, externalId string, fields ProfileFields) (Profile, error)

	ById(ctx context.Context, id ProfileId) (Profile, error)

	BySiteId(ctx context.Context, site Site, externalId string) (Profile, error)

	AttachAvatar(ctx context.Context, profileId ProfileId, avatar Avatar) (Avatar, error)

	AvatarById(ctx context.Context, id AvatarId) (Avatar, error)
}
