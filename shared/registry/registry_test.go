package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ftotnem/astar-livesearch/shared/config"
)

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestHeartbeatIsVisibleToClient(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	cfg := &config.CommonConfig{ServiceIP: "10.0.0.5", ServicePort: 8080, HeartbeatTTL: time.Minute}

	reg := NewServiceRegistrar(rdb, "hunt-service", "test", cfg, nil)
	reg.Heartbeat(ctx)

	client := NewRegistryClient(rdb, time.Minute, nil)
	active, err := client.GetActiveServices(ctx, "hunt-service")
	require.NoError(t, err)
	require.Contains(t, active, reg.GetServiceID())

	info := active[reg.GetServiceID()]
	assert.Equal(t, "10.0.0.5", info.IP)
	assert.Equal(t, 8080, info.Port)
	assert.Equal(t, "test", info.Metadata["version"])
}

func TestCleanupRemovesStaleAndMalformedEntries(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	cfg := &config.CommonConfig{HeartbeatTTL: 15 * time.Second}

	stale, err := json.Marshal(ServiceInfo{ServiceID: "old", LastSeen: time.Now().Add(-time.Hour).UnixMilli()})
	require.NoError(t, err)
	require.NoError(t, rdb.HSet(ctx, HashKey("hunt-service"), "old", stale, "junk", "{not json").Err())

	reg := NewServiceRegistrar(rdb, "hunt-service", "test", cfg, nil)
	reg.Heartbeat(ctx)
	reg.Cleanup(ctx)

	keys, err := rdb.HKeys(ctx, HashKey("hunt-service")).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{reg.GetServiceID()}, keys)
}

func TestGetActiveServicesSkipsExpired(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)

	old, err := json.Marshal(ServiceInfo{ServiceID: "old", LastSeen: time.Now().Add(-time.Minute).UnixMilli()})
	require.NoError(t, err)
	require.NoError(t, rdb.HSet(ctx, HashKey("hunt-service"), "old", old).Err())

	active, err := NewRegistryClient(rdb, 10*time.Second, nil).GetActiveServices(ctx, "hunt-service")
	require.NoError(t, err)
	assert.Empty(t, active)
}
