package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/jwtx"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "hms:session:"
	DefaultSlot   = "token"
)

// Store keeps the token in Redis, for kiosks and shared workstations where
// several processes act for the same logged-in user. Keys expire together
// with the token they hold.
type Store struct {
	client redis.UniversalClient
	key    string
}

// NewStore wraps an existing client.
func NewStore(client redis.UniversalClient, prefix, slot string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if slot == "" {
		slot = DefaultSlot
	}
	return &Store{client: client, key: prefix + slot}
}

// NewStoreFromURL parses a redis:// URL and creates the client.
func NewStoreFromURL(url, prefix, slot string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewStore(redis.NewClient(opts), prefix, slot), nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Get(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", hmssdk.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return token, nil
}

// Set stores token with a TTL matching its exp claim. A token that is
// already expired, or has less than a second left, clears the slot instead,
// since Redis reads a zero TTL as "keep forever". Tokens without a readable
// exp are stored without expiry.
func (s *Store) Set(ctx context.Context, token string) error {
	var ttl time.Duration
	if claims, err := jwtx.Inspect(token); err == nil {
		ttl = claims.Remaining(time.Now()).Truncate(time.Second)
		if ttl < time.Second {
			return s.Remove(ctx)
		}
	}

	if err := s.client.Set(ctx, s.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}
