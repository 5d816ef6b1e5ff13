package cache

import (
	"context"
	"errors"
	"time"

	"github.com/peerlearn/peerlearn/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type ProfileCacheResult struct {
	Profile domain.Profile `json:"profile"`
}

// ProfileCache caches profile rows by id.
type ProfileCache interface {
	Get(ctx context.Context, key string) (*ProfileCacheResult, error)
	Set(ctx context.Context, key string, result *ProfileCacheResult, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	BuildKeyByID(profileID string) string
	Close() error
}
