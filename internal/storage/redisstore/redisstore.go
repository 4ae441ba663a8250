// Package redisstore backs the threshold claim store with redis for
// deployments where the debounce state should not live in postgres.
package redisstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type ThresholdClaimStore struct {
	rdb *redis.Client
}

func New(ctx context.Context, redisURL string) (*ThresholdClaimStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	// Harden client timeouts and retries
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 1 * time.Second

	if opts.TLSConfig == nil && strings.HasPrefix(redisURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)

	// Fail fast if not reachable
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &ThresholdClaimStore{rdb: rdb}, nil
}

// Claim relies on SET NX with a cooldown-length TTL: the first writer wins and
// the key expires exactly when the threshold may notify again.
func (s *ThresholdClaimStore) Claim(ctx context.Context, userID int64, capID string, thresholdPercent int, now time.Time, cooldown time.Duration) (bool, error) {
	key := fmt.Sprintf("threshold_claim:%d:%s:%d", userID, capID, thresholdPercent)
	ok, err := s.rdb.SetNX(ctx, key, now.UTC().Format(time.RFC3339Nano), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	return ok, nil
}

func (s *ThresholdClaimStore) Close() error {
	return s.rdb.Close()
}
