package persistent

import (
	"context"
	"sync"
	"testing"

	"github.com/socialpin/pin"
	"github.com/stretchr/testify/assert"
)

var twitterFields = pin.ProfileFields{
	ExternalId:    "13370042",
	Name:          "makin",
	Description:   "Scraping the web, one page at a time.",
	PostCount:     12345,
	FriendCount:   321,
	FollowerCount: 6789,
}

func TestProfileServiceUpsert(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
		return
	}
	assert := assert.New(t)
	ctx := context.Background()

	db := PgOpenTest(ctx)
	defer db.Close()

	service := &ProfileService{DB: db}

	created, err := service.Upsert(ctx, pin.SiteTwitter, "800100", twitterFields)
	if !assert.NoError(err) {
		return
	}
	assert.NotZero(created.Id)
	assert.False(created.CreatedAt.IsZero())
	assert.Equal(pin.SiteTwitter, created.Site)
	assert.Equal("800100", created.ExternalId)
	assert.Equal(twitterFields.Name, created.Name)
	assert.Equal(twitterFields.Description, created.Description)
	assert.Equal(twitterFields.PostCount, created.PostCount)
	assert.Equal(twitterFields.FriendCount, created.FriendCount)
	assert.Equal(twitterFields.FollowerCount, created.FollowerCount)

	updatedFields := twitterFields
	updatedFields.FollowerCount = 7000
	updatedFields.Description = "New bio."
	updated, err := service.Upsert(ctx, pin.SiteTwitter, "800100", updatedFields)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(created.Id, updated.Id)
	assert.Equal(7000, updated.FollowerCount)
	assert.Equal("New bio.", updated.Description)

	reread, err := service.BySiteId(ctx, pin.SiteTwitter, "800100")
	if !assert.NoError(err) {
		return
	}
	assert.Equal(updated.Id, reread.Id)
	assert.Equal(7000, reread.FollowerCount)
}

func TestProfileServiceUpsertConcurrent(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
		return
	}
	assert := assert.New(t)
	ctx := context.Background()

	db := PgOpenTest(ctx)
	defer db.Close()

	service := &ProfileService{DB: db}

	const writers = 8
	ids := make([]pin.ProfileId, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			profile, err := service.Upsert(ctx, pin.SiteTwitter, "800200", twitterFields)
			ids[i] = profile.Id
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		if !assert.NoError(errs[i], "writer: %d", i) {
			return
		}
		assert.Equal(ids[0], ids[i], "writer: %d", i)
	}

	count, err := db.NewSelect().
		Model((*Profile)(nil)).
		Where(`site=?`, string(pin.SiteTwitter)).
		Where(`original_id=?`, "800200").
		Count(ctx)
	assert.NoError(err)
	assert.Equal(1, count)
}

func TestProfileServiceByIdNotFound(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
		return
	}
	assert := assert.New(t)
	ctx := context.Background()

	db := PgOpenTest(ctx)
	defer db.Close()

	service := &ProfileService{DB: db}

	_, err := service.ById(ctx, pin.ProfileId(987654321))
	assert.ErrorIs(err, pin.ErrProfileNotFound)

	_, err = service.BySiteId(ctx, pin.SiteTwitter, "no_such_external_id")
	assert.ErrorIs(err, pin.ErrProfileNotFound)
}

func TestProfileServiceAttachAvatar(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
		return
	}
	assert := assert.New(t)
	ctx := context.Background()

	db := PgOpenTest(ctx)
	defer db.Close()

	service := &ProfileService{DB: db}

	profile, err := service.Upsert(ctx, pin.SiteTwitter, "800300", twitterFields)
	if !assert.NoError(err) {
		return
	}

	attached, err := service.AttachAvatar(ctx, profile.Id, pin.Avatar{
		Name:    "makin_400x400.jpg",
		Mime:    "image/jpeg",
		Content: []byte("jpeg bytes"),
	})
	if !assert.NoError(err) {
		return
	}
	assert.NotZero(attached.Id)
	assert.Equal(profile.Id, attached.ProfileId)

	avatar, err := service.AvatarById(ctx, attached.Id)
	if !assert.NoError(err) {
		return
	}
	assert.Equal("makin_400x400.jpg", avatar.Name)
	assert.Equal("image/jpeg", avatar.Mime)
	assert.Equal([]byte("jpeg bytes"), avatar.Content)
}

func TestProfileServiceAttachAvatarProfileGone(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
		return
	}
	assert := assert.New(t)
	ctx := context.Background()

	db := PgOpenTest(ctx)
	defer db.Close()

	service := &ProfileService{DB: db}

	_, err := service.AttachAvatar(ctx, pin.ProfileId(987654321), pin.Avatar{
		Name:    "orphan.jpg",
		Mime:    "image/jpeg",
		Content: []byte("jpeg bytes"),
	})
	assert.ErrorIs(err, pin.ErrProfileNotFound)
}

func TestProfileServiceAvatarByIdNotFound(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
		return
	}
	assert := assert.New(t)
	ctx := context.Background()

	db := PgOpenTest(ctx)
	defer db.Close()

	service := &ProfileService{DB: db}

	_, err := service.AvatarById(ctx, pin.AvatarId(987654321))
	assert.ErrorIs(err, pin.ErrAvatarNotFound)
}
