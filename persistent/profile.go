package persistent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/socialpin/pin"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Profile struct {
	bun.BaseModel `bun:"table:profile"`

	Id            int64     `bun:",pk,autoincrement"`
	Site          string    `bun:",notnull,unique:profile_site_original_id"`
	OriginalId    string    `bun:"original_id,notnull,unique:profile_site_original_id"`
	Name          string    `bun:",notnull"`
	Description   string    `bun:""`
	PostCount     int       `bun:",notnull,default:0"`
	FriendCount   int       `bun:",notnull,default:0"`
	FollowerCount int       `bun:",notnull,default:0"`
	CreatedAt     time.Time `bun:",nullzero,notnull,default:current_timestamp"`

	Avatars []*Avatar `bun:"rel:has-many,join:id=profile_id"`
}

func (p Profile) ToDomain() pin.Profile {
	return pin.Profile{
		Id:            pin.ProfileId(p.Id),
		Site:          pin.Site(p.Site),
		ExternalId:    p.OriginalId,
		Name:          p.Name,
		Description:   p.Description,
		PostCount:     p.PostCount,
		FriendCount:   p.FriendCount,
		FollowerCount: p.FollowerCount,
		CreatedAt:     p.CreatedAt,
	}
}

type Avatar struct {
	bun.BaseModel `bun:"table:avatar"`

	Id        int64     `bun:",pk,autoincrement"`
	ProfileId int64     `bun:",notnull"`
	Profile   *Profile  `bun:"rel:belongs-to,join:profile_id=id"`
	Name      string    `bun:",notnull"`
	Mime      string    `bun:",notnull"`
	Content   []byte    `bun:",notnull"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (a Avatar) ToDomain() pin.Avatar {
	return pin.Avatar{
		Id:        pin.AvatarId(a.Id),
		ProfileId: pin.ProfileId(a.ProfileId),
		Name:      a.Name,
		Mime:      a.Mime,
		Content:   a.Content,
		CreatedAt: a.CreatedAt,
	}
}

type ProfileService struct {
	DB *bun.DB
}

var _ pin.ProfileStore = (*ProfileService)(nil)

// Upsert inserts the profile and, when the (site, original_id) constraint
// fires because a concurrent scrape created the row first, re-reads the
// existing row instead of retrying the insert. Field values are then
// applied to the resolved row in one statement; last writer wins on
// values, identity is never duplicated.
func (s *ProfileService) Upsert(ctx context.Context, site pin.Site, externalId string, fields pin.ProfileFields) (pin.Profile, error) {
	model := &Profile{
		Site:       string(site),
		OriginalId: externalId,
		Name:       fields.Name,
	}
	_, err := s.DB.NewInsert().
		Model(model).
		Returning("id, created_at").
		Exec(ctx)
	if err != nil {
		if !integrityViolation(err) {
			return pin.Profile{}, fmt.Errorf("insert profile: %w", err)
		}
		model = new(Profile)
		err = s.DB.NewSelect().
			Model(model).
			Where(`site=?`, string(site)).
			Where(`original_id=?`, externalId).
			Scan(ctx)
		if err != nil {
			return pin.Profile{}, fmt.Errorf("select existing profile: %w", err)
		}
	}

	model.Name = fields.Name
	model.Description = fields.Description
	model.PostCount = fields.PostCount
	model.FriendCount = fields.FriendCount
	model.FollowerCount = fields.FollowerCount
	_, err = s.DB.NewUpdate().
		Model(model).
		Column("name", "description", "post_count", "friend_count", "follower_count").
		WherePK().
		Exec(ctx)
	if err != nil {
		return pin.Profile{}, fmt.Errorf("update profile fields: %w", err)
	}
	return model.ToDomain(), nil
}

func (s *ProfileService) ById(ctx context.Context, id pin.ProfileId) (pin.Profile, error) {
	profile := new(Profile)
	err := s.DB.NewSelect().
		Model(profile).
		Where(`id=?`, int64(id)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pin.Profile{}, pin.ErrProfileNotFound
		}
		return pin.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return profile.ToDomain(), nil
}

func (s *ProfileService) BySiteId(ctx context.Context, site pin.Site, externalId string) (pin.Profile, error) {
	profile := new(Profile)
	err := s.DB.NewSelect().
		Model(profile).
		Where(`site=?`, string(site)).
		Where(`original_id=?`, externalId).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pin.Profile{}, pin.ErrProfileNotFound
		}
		return pin.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return profile.ToDomain(), nil
}

func (s *ProfileService) AttachAvatar(ctx context.Context, profileId pin.ProfileId, avatar pin.Avatar) (pin.Avatar, error) {
	model := &Avatar{
		ProfileId: int64(profileId),
		Name:      avatar.Name,
		Mime:      avatar.Mime,
		Content:   avatar.Content,
	}
	_, err := s.DB.NewInsert().
		Model(model).
		Returning("id, created_at").
		Exec(ctx)
	if err != nil {
		if integrityViolation(err) {
			// Foreign key fired: the profile vanished between the caller's
			// existence check and this insert.
			return pin.Avatar{}, pin.ErrProfileNotFound
		}
		return pin.Avatar{}, fmt.Errorf("insert avatar: %w", err)
	}
	return model.ToDomain(), nil
}

func (s *ProfileService) AvatarById(ctx context.Context, id pin.AvatarId) (pin.Avatar, error) {
	avatar := new(Avatar)
	err := s.DB.NewSelect().
		Model(avatar).
		Where(`id=?`, int64(id)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pin.Avatar{}, pin.ErrAvatarNotFound
		}
		return pin.Avatar{}, fmt.Errorf("select avatar: %w", err)
	}
	return avatar.ToDomain(), nil
}

func integrityViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}
