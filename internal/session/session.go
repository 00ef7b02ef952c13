// Package session tracks which links a visitor session has unlocked with a
// correct password. The state is scoped to the session, never global.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// UnlockStore records password unlocks per (session, link) pair. A zero TTL
// means the unlock lives as long as the store (the session lifetime).
type UnlockStore interface {
	Unlock(ctx context.Context, sessionID string, linkID int64, ttl time.Duration) error
	Unlocked(ctx context.Context, sessionID string, linkID int64) (bool, error)
}

type memoryEntry struct {
	expiresAt time.Time
}

// MemoryStore is the in-process UnlockStore. Expired entries are swept by a
// background goroutine so the map stays bounded.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	done    chan struct{}
	once    sync.Once
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}

	go s.sweep()

	return s
}

func unlockKey(sessionID string, linkID int64) string {
	return fmt.Sprintf("%s:%d", sessionID, linkID)
}

func (s *MemoryStore) Unlock(_ context.Context, sessionID string, linkID int64, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[unlockKey(sessionID, linkID)] = memoryEntry{expiresAt: expiresAt}
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) Unlocked(_ context.Context, sessionID string, linkID int64) (bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[unlockKey(sessionID, linkID)]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if !entry.expiresAt.IsZero() && entry.expiresAt.Before(time.Now()) {
		return false, nil
	}

	return true, nil
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		close(s.done)
	})
	return nil
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for k, entry := range s.entries {
				if !entry.expiresAt.IsZero() && entry.expiresAt.Before(now) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// RedisStore keeps unlocks in Redis, so they survive process restarts and
// are shared between instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

func redisKey(sessionID string, linkID int64) string {
	return fmt.Sprintf("shortlink:unlock:%s:%d", sessionID, linkID)
}

func (s *RedisStore) Unlock(ctx context.Context, sessionID string, linkID int64, ttl time.Duration) error {
	const op = "session.RedisStore.Unlock"

	if err := s.client.Set(ctx, redisKey(sessionID, linkID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to set unlock key: %w", op, err)
	}

	return nil
}

func (s *RedisStore) Unlocked(ctx context.Context, sessionID string, linkID int64) (bool, error) {
	const op = "session.RedisStore.Unlocked"

	n, err := s.client.Exists(ctx, redisKey(sessionID, linkID)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: failed to check unlock key: %w", op, err)
	}

	return n > 0, nil
}
