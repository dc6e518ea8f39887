// hunt/syncer/leaderboard_syncer.go
package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Ftotnem/astar-livesearch/hunt/events"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

// LeaderboardTaskKey is hashed onto the instance ring; the owner refreshes the snapshot.
const LeaderboardTaskKey = "leaderboard-snapshot"

// Refresher rebuilds and caches the leaderboard snapshot.
type Refresher interface {
	Refresh(ctx context.Context) (*models.LeaderboardSnapshot, error)
}

// Leader reports whether this instance owns a task key.
type Leader interface {
	IsResponsible(entityID string) (bool, error)
}

// Subscriber yields a pub/sub subscription on progress events.
type Subscriber interface {
	Subscribe(ctx context.Context, teamID string) *redis.PubSub
}

// LeaderboardSyncer keeps the cached leaderboard snapshot fresh. It refreshes
// on every tick and as soon as a progress event arrives, but only on the
// instance that owns LeaderboardTaskKey.
type LeaderboardSyncer struct {
	refresher  Refresher
	leader     Leader
	subscriber Subscriber
	interval   time.Duration
	timeout    time.Duration
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	started    atomic.Bool
	done       chan struct{}
}

// NewLeaderboardSyncer accepts a nil leader (always responsible) and a nil
// subscriber (tick only).
func NewLeaderboardSyncer(refresher Refresher, leader Leader, subscriber Subscriber, interval, timeout time.Duration, logger *zap.Logger) *LeaderboardSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LeaderboardSyncer{
		refresher:  refresher,
		leader:     leader,
		subscriber: subscriber,
		interval:   interval,
		timeout:    timeout,
		logger:     logger.Named("leaderboard-syncer"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start runs the sync loop until Stop. Run it in a goroutine.
func (s *LeaderboardSyncer) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	defer close(s.done)
	s.logger.Info("leaderboard syncer starting", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var msgs <-chan *redis.Message
	if s.subscriber != nil {
		sub := s.subscriber.Subscribe(s.ctx, "")
		defer sub.Close()
		msgs = sub.Channel()
	}

	s.Sync()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("leaderboard syncer shutting down")
			return
		case <-ticker.C:
			s.Sync()
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			ev, err := events.Decode(msg)
			if err != nil {
				s.logger.Warn("dropping malformed progress event", zap.Error(err))
				continue
			}
			s.logger.Debug("progress event received", zap.String("type", ev.Type), zap.String("group_id", ev.GroupID))
			s.Sync()
		}
	}
}

// Stop ends the loop and waits for it to exit.
func (s *LeaderboardSyncer) Stop() {
	s.cancel()
	if s.started.Load() {
		<-s.done
	}
}

// Sync refreshes the snapshot if this instance owns the task. It reports
// whether a refresh happened.
func (s *LeaderboardSyncer) Sync() bool {
	if s.leader != nil {
		ok, err := s.leader.IsResponsible(LeaderboardTaskKey)
		if err != nil {
			s.logger.Warn("leadership check failed", zap.Error(err))
			return false
		}
		if !ok {
			return false
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	snap, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.logger.Error("leaderboard refresh failed", zap.Error(err))
		return false
	}
	s.logger.Debug("leaderboard refreshed", zap.Int("teams", len(snap.Standings)))
	return true
}
