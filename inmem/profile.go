package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/socialpin/pin"
)

type ProfileStore struct {
	lastProfileId int64
	lastAvatarId  int64
	profiles      map[pin.ProfileId]pin.Profile
	avatars       map[pin.AvatarId]pin.Avatar
	mutex         sync.RWMutex
}

func NewProfileStore() ProfileStore {
	return ProfileStore{
		profiles: map[pin.ProfileId]pin.Profile{},
		avatars:  map[pin.AvatarId]pin.Avatar{},
	}
}

var _ pin.ProfileStore = (*ProfileStore)(nil)

func (s *ProfileStore) Upsert(ctx context.Context, site pin.Site, externalId string, fields pin.ProfileFields) (pin.Profile, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	profile, ok := s.bySiteId(site, externalId)
	if !ok {
		s.lastProfileId++
		profile = pin.Profile{
			Id:         pin.ProfileId(s.lastProfileId),
			Site:       site,
			ExternalId: externalId,
			CreatedAt:  time.Now(),
		}
	}
	profile.Name = fields.Name
	profile.Description = fields.Description
	profile.PostCount = fields.PostCount
	profile.FriendCount = fields.FriendCount
	profile.FollowerCount = fields.FollowerCount
	s.profiles[profile.Id] = profile

	return profile, nil
}

func (s *ProfileStore) ById(ctx context.Context, id pin.ProfileId) (pin.Profile, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	profile, ok := s.profiles[id]
	if !ok {
		return pin.Profile{}, pin.ErrProfileNotFound
	}
	return profile, nil
}

func (s *ProfileStore) BySiteId(ctx context.Context, site pin.Site, externalId string) (pin.Profile, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	profile, ok := s.bySiteId(site, externalId)
	if !ok {
		return pin.Profile{}, pin.ErrProfileNotFound
	}
	return profile, nil
}

func (s *ProfileStore) bySiteId(site pin.Site, externalId string) (pin.Profile, bool) {
	for _, p := range s.profiles {
		if p.Site == site && p.ExternalId == externalId {
			return p, true
		}
	}
	return pin.Profile{}, false
}

func (s *ProfileStore) AttachAvatar(ctx context.Context, profileId pin.ProfileId, avatar pin.Avatar) (pin.Avatar, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.profiles[profileId]; !ok {
		return pin.Avatar{}, pin.ErrProfileNotFound
	}
	s.lastAvatarId++
	avatar.Id = pin.AvatarId(s.lastAvatarId)
	avatar.ProfileId = profileId
	avatar.CreatedAt = time.Now()
	s.avatars[avatar.Id] = avatar

	return avatar, nil
}

func (s *ProfileStore) AvatarById(ctx context.Context, id pin.AvatarId) (pin.Avatar, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	avatar, ok := s.avatars[id]
	if !ok {
		return pin.Avatar{}, pin.ErrAvatarNotFound
	}
	return avatar, nil
}

// AvatarCount reports how many assets a profile owns. Test helper.
func (s *ProfileStore) AvatarCount(profileId pin.ProfileId) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	count := 0
	for _, a := range s.avatars {
		if a.ProfileId == profileId {
			count++
		}
	}
	return count
}
