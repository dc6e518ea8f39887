package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ftotnem/astar-livesearch/hunt/events"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) (*models.LeaderboardSnapshot, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &models.LeaderboardSnapshot{}, nil
}

type fixedLeader struct {
	ok  bool
	err error
}

func (l fixedLeader) IsResponsible(string) (bool, error) { return l.ok, l.err }

func TestSyncRespectsLeadership(t *testing.T) {
	tests := []struct {
		name   string
		leader Leader
		want   bool
	}{
		{"no leader configured", nil, true},
		{"leader", fixedLeader{ok: true}, true},
		{"follower", fixedLeader{ok: false}, false},
		{"ring unavailable", fixedLeader{err: errors.New("no active services")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingRefresher{}
			s := NewLeaderboardSyncer(r, tt.leader, nil, time.Hour, time.Second, nil)
			assert.Equal(t, tt.want, s.Sync())
			if tt.want {
				assert.EqualValues(t, 1, r.calls.Load())
			} else {
				assert.Zero(t, r.calls.Load())
			}
		})
	}
}

func TestSyncReportsRefreshFailure(t *testing.T) {
	r := &countingRefresher{err: errors.New("mongo down")}
	s := NewLeaderboardSyncer(r, nil, nil, time.Hour, time.Second, nil)
	assert.False(t, s.Sync())
}

func TestSyncerRefreshesOnProgressEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	pub := events.NewRedisPublisher(client, nil)

	r := &countingRefresher{}
	s := NewLeaderboardSyncer(r, fixedLeader{ok: true}, pub, time.Hour, time.Second, nil)
	go s.Start()
	t.Cleanup(s.Stop)

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond, "initial sync")

	require.Eventually(t, func() bool {
		_ = pub.Publish(context.Background(), events.ProgressEvent{Type: events.TypeAdvanced, TeamID: "t1", GroupID: "ab123"})
		return r.calls.Load() >= 2
	}, 2*time.Second, 20*time.Millisecond, "event-driven sync")
}

func TestStopWithoutStart(t *testing.T) {
	s := NewLeaderboardSyncer(&countingRefresher{}, nil, nil, time.Hour, time.Second, nil)
	s.Stop()
}
