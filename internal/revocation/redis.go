package revocation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisList keeps revoked bearer tokens in Redis until they would have
// expired anyway. A nil client disables it: nothing is ever revoked.
type RedisList struct {
	client *redis.Client
	prefix string
}

// NewRedisList creates a revocation list. Prefix may be empty.
func NewRedisList(client *redis.Client, prefix string) *RedisList {
	if prefix == "" {
		prefix = "revoked:access:"
	}
	return &RedisList{client: client, prefix: prefix}
}

// Revoke stores the token with TTL. A non-positive TTL is raised to one second.
func (l *RedisList) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if l == nil || l.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return l.client.Set(ctx, l.prefix+token, "1", ttl).Err()
}

// IsRevoked returns true when the token is in the list.
func (l *RedisList) IsRevoked(ctx context.Context, token string) (bool, error) {
	if l == nil || l.client == nil {
		return false, nil
	}
	exists, err := l.client.Exists(ctx, l.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
