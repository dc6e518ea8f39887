// hunt/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	sharedredis "github.com/Ftotnem/astar-livesearch/shared/redis"
)

// Event types.
const (
	TypeRegistered      = "registered"
	TypeAttempt         = "attempt"
	TypeAdvanced        = "advanced"
	TypeCompleted       = "completed"
	TypeIdentityRebound = "identity_rebound"
)

// ProgressEvent describes one change to a team.
type ProgressEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	TeamID    string    `json:"teamId"`
	GroupID   string    `json:"groupId"`
	Node      string    `json:"node,omitempty"`
	Correct   bool      `json:"correct"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers progress events to whoever listens.
type Publisher interface {
	Publish(ctx context.Context, ev ProgressEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ProgressEvent) error { return nil }

// RedisPublisher fans events out on the global progress channel and on the
// team's own channel.
type RedisPublisher struct {
	client redis.UniversalClient
	logger *zap.Logger
}

func NewRedisPublisher(client redis.UniversalClient, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, logger: logger}
}

// Publish fills in ID and Timestamp when unset.
func (p *RedisPublisher) Publish(ctx context.Context, ev ProgressEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, sharedredis.ProgressChannel, payload)
	pipe.Publish(ctx, sharedredis.TeamProgressChannel(ev.TeamID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish progress event for team %s: %w", ev.TeamID, err)
	}
	p.logger.Debug("progress event published", zap.String("type", ev.Type), zap.String("team_id", ev.TeamID))
	return nil
}

// Subscribe listens on the global channel, or on one team's channel when teamID is set.
func (p *RedisPublisher) Subscribe(ctx context.Context, teamID string) *redis.PubSub {
	if teamID == "" {
		return p.client.Subscribe(ctx, sharedredis.ProgressChannel)
	}
	return p.client.Subscribe(ctx, sharedredis.TeamProgressChannel(teamID))
}

// Decode parses a message received from Subscribe.
func Decode(msg *redis.Message) (ProgressEvent, error) {
	var ev ProgressEvent
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		return ev, fmt.Errorf("failed to decode progress event: %w", err)
	}
	return ev, nil
}
