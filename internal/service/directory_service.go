package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/peerlearn/peerlearn/internal/cache"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/repository"
	"github.com/peerlearn/peerlearn/pkg/log"
)

const (
	DefaultProfileCacheTTL = 5 * time.Minute

	profileBatchSize       = 100
	profileLoadParallelism = 4
)

type directoryServiceImpl struct {
	profiles repository.ProfileRepository
	cache    cache.ProfileCache
	ttl      time.Duration
	group    singleflight.Group
}

// NewDirectoryService creates a directory service with a cache-aside profile lookup.
func NewDirectoryService(profiles repository.ProfileRepository, profileCache cache.ProfileCache, ttl time.Duration) DirectoryService {
	if ttl <= 0 {
		ttl = DefaultProfileCacheTTL
	}
	return &directoryServiceImpl{
		profiles: profiles,
		cache:    profileCache,
		ttl:      ttl,
	}
}

// SearchUsers matches usernames containing query. Short queries return nothing.
func (s *directoryServiceImpl) SearchUsers(ctx context.Context, query string) ([]*domain.UserSummary, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < domain.MinSearchQueryLen {
		return []*domain.UserSummary{}, nil
	}

	profiles, err := s.profiles.SearchByUsername(ctx, query, domain.MaxSearchResults)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to search users")
		return nil, err
	}

	results := make([]*domain.UserSummary, 0, len(profiles))
	for _, p := range profiles {
		results = append(results, &domain.UserSummary{
			ID:        p.ID,
			Username:  p.Username,
			AvatarURL: p.AvatarURL,
		})
	}
	return results, nil
}

func (s *directoryServiceImpl) GetUserInfo(ctx context.Context, userID string) (*domain.UserInfo, error) {
	profile, err := s.getProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.UserInfo{Username: profile.Username, AvatarURL: profile.AvatarURL}, nil
}

func (s *directoryServiceImpl) getProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	l := log.Ctx(ctx)
	key := s.cache.BuildKeyByID(userID)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		p := cached.Profile
		return &p, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("profile cache read failed")
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		profile, err := s.profiles.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.store(ctx, profile)
		return profile, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrUserNotFound
		}
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to get profile")
		return nil, err
	}
	return v.(*domain.Profile), nil
}

// GetProfiles serves cached profiles and loads the rest in batched IN
// queries, running up to profileLoadParallelism batches at once.
func (s *directoryServiceImpl) GetProfiles(ctx context.Context, ids []string) (map[string]*domain.Profile, error) {
	result := make(map[string]*domain.Profile, len(ids))
	var missing []string

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		cached, err := s.cache.Get(ctx, s.cache.BuildKeyByID(id))
		if err == nil {
			p := cached.Profile
			result[id] = &p
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileLoadParallelism)

	for start := 0; start < len(missing); start += profileBatchSize {
		batch := missing[start:min(start+profileBatchSize, len(missing))]
		g.Go(func() error {
			profiles, err := s.profiles.GetByIDs(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range profiles {
				result[p.ID] = p
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int("count", len(missing)).Msg("failed to load profiles")
		return nil, err
	}

	for _, id := range missing {
		if p, ok := result[id]; ok {
			s.store(ctx, p)
		}
	}
	return result, nil
}

func (s *directoryServiceImpl) InvalidateProfile(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, s.cache.BuildKeyByID(userID)); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to invalidate profile cache")
	}
}

func (s *directoryServiceImpl) store(ctx context.Context, p *domain.Profile) {
	if err := s.cache.Set(ctx, s.cache.BuildKeyByID(p.ID), &cache.ProfileCacheResult{Profile: *p}, s.ttl); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldUserID, p.ID).Msg("failed to cache profile")
	}
}
