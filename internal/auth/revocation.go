package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "blacklisted:"

// ErrRevocationUnavailable means the store could not confirm a token's state.
// It must never be read as "not revoked".
var ErrRevocationUnavailable = errors.New("revocation store unavailable")

// RevocationStore records tokens invalidated before their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RedisRevocationStore keeps one expiring marker key per revoked token.
type RedisRevocationStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedisRevocationStore wires the store. Every call is bounded by timeout.
func NewRedisRevocationStore(client redis.UniversalClient, timeout time.Duration) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, timeout: timeout}
}

// Revoke writes the marker with the given ttl so it vanishes with the token.
// A non-positive ttl means the token is already dead and nothing is written.
func (s *RedisRevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Set(ctx, revocationKey(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return nil
}

// IsRevoked performs a single point lookup.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.client.Exists(ctx, revocationKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// revocationKey hashes the raw token so store keys never carry signature material.
func revocationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revocationKeyPrefix + hex.EncodeToString(sum[:])
}
