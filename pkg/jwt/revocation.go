package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore records, per user, the instant before which tokens are void.
type RevocationStore interface {
	Revoke(ctx context.Context, userID string, at time.Time, ttl time.Duration) error
	RevokedAt(ctx context.Context, userID string) (time.Time, bool, error)
}

type memoryEntry struct {
	at     time.Time
	expiry time.Time
}

// MemoryRevocationStore keeps revocations in process memory.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryRevocationStore creates an empty in-memory store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, userID string, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = memoryEntry{at: at, expiry: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryRevocationStore) RevokedAt(_ context.Context, userID string) (time.Time, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false, nil
	}
	if time.Now().After(entry.expiry) {
		s.mu.Lock()
		delete(s.entries, userID)
		s.mu.Unlock()
		return time.Time{}, false, nil
	}
	return entry.at, true, nil
}

// RedisRevocationStore shares revocations between instances.
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationStore creates a store writing "<prefix>:<userID>" keys.
func NewRedisRevocationStore(client *redis.Client, prefix string) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, prefix: prefix}
}

func (s *RedisRevocationStore) key(userID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, userID)
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(userID), at.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revocation: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) RevokedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read revocation: %w", err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed revocation for %s: %w", userID, err)
	}
	return time.UnixMilli(ms), true, nil
}
