// hunt/store/leaderboard_cache.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	sharedredis "github.com/Ftotnem/astar-livesearch/shared/redis"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

// LeaderboardCache keeps the latest leaderboard snapshot in Redis. It is never
// read on the verification path.
type LeaderboardCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewLeaderboardCache(client redis.UniversalClient, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

// Get returns ErrCacheMiss when no snapshot is stored or it has expired.
func (lc *LeaderboardCache) Get(ctx context.Context) (*models.LeaderboardSnapshot, error) {
	raw, err := lc.client.Get(ctx, sharedredis.LeaderboardSnapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read leaderboard snapshot: %w", err)
	}
	var snap models.LeaderboardSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard snapshot: %w", err)
	}
	return &snap, nil
}

// Set stores snap with the cache TTL.
func (lc *LeaderboardCache) Set(ctx context.Context, snap *models.LeaderboardSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard snapshot: %w", err)
	}
	if err := lc.client.Set(ctx, sharedredis.LeaderboardSnapshotKey, raw, lc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write leaderboard snapshot: %w", err)
	}
	return nil
}
