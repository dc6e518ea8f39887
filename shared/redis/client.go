// shared/redis/client.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient creates a Redis client for the given addresses and pings it.
// With cluster=true a ClusterClient is returned, otherwise a single-node client
// for addrs[0]. Both satisfy redis.UniversalClient.
func NewClient(ctx context.Context, addrs []string, password string, cluster bool, logger *zap.Logger) (redis.UniversalClient, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no Redis addresses provided")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var rdb redis.UniversalClient
	if cluster {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        addrs,
			Password:     password,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolTimeout:  6 * time.Second,
			PoolSize:     10,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:         addrs[0],
			Password:     password,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolTimeout:  6 * time.Second,
			PoolSize:     10,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %v: %w", addrs, err)
	}
	logger.Info("connected to Redis", zap.Strings("addrs", addrs), zap.Bool("cluster", cluster))
	return rdb, nil
}
