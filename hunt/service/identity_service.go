// hunt/service/identity_service.go
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Ftotnem/astar-livesearch/hunt/events"
	"github.com/Ftotnem/astar-livesearch/hunt/store"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

// RecoverRequest rebinds a team to a new device fingerprint. ResumeNode and
// ResumeColor describe the scan that failed with an unknown identity, if any.
type RecoverRequest struct {
	GroupID      string
	NewIdentity  string
	RecoveryCode string
	ResumeNode   string
	ResumeColor  int
}

// RecoverResult tells the client where to continue.
type RecoverResult struct {
	TeamID     string
	ResumePath string
}

// IdentityService maps fingerprints to teams and runs the recovery flow.
type IdentityService struct {
	teams          TeamRepository
	recoverySecret string
	publisher      events.Publisher
	logger         *zap.Logger
}

// NewIdentityService gates recovery behind recoverySecret when it is non-empty.
func NewIdentityService(teams TeamRepository, recoverySecret string, publisher events.Publisher, logger *zap.Logger) *IdentityService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{
		teams:          teams,
		recoverySecret: recoverySecret,
		publisher:      publisher,
		logger:         logger,
	}
}

// Resolve finds the team bound to identity.
func (is *IdentityService) Resolve(ctx context.Context, identity string) (*models.Team, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrUnknownIdentity
	}
	team, err := is.teams.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, store.ErrTeamNotFound) {
			return nil, ErrUnknownIdentity
		}
		return nil, storeError("find by identity", err)
	}
	return team, nil
}

// RecoveryRequired reports whether a recovery code must accompany Recover.
func (is *IdentityService) RecoveryRequired() bool {
	return is.recoverySecret != ""
}

// Recover overwrites the identity of the team registered under GroupID.
func (is *IdentityService) Recover(ctx context.Context, req RecoverRequest) (*RecoverResult, error) {
	groupID := strings.TrimSpace(req.GroupID)
	newIdentity := strings.TrimSpace(req.NewIdentity)
	if groupID == "" || newIdentity == "" {
		return nil, ErrMissingFields
	}

	if is.recoverySecret != "" &&
		subtle.ConstantTimeCompare([]byte(req.RecoveryCode), []byte(is.recoverySecret)) != 1 {
		is.logger.Warn("recovery code rejected", zap.String("group_id", groupID))
		return nil, ErrRecoveryDenied
	}

	team, err := is.teams.FindByGroupID(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrTeamNotFound) {
			return nil, ErrUnknownGroupID
		}
		return nil, storeError("find by group id", err)
	}

	if team.Identity != newIdentity {
		if err := is.teams.RebindIdentity(ctx, groupID, newIdentity); err != nil {
			switch {
			case errors.Is(err, store.ErrDuplicateIdentity):
				return nil, ErrIdentityInUse
			case errors.Is(err, store.ErrTeamNotFound):
				return nil, ErrUnknownGroupID
			default:
				return nil, storeError("rebind identity", err)
			}
		}
		is.logger.Info("identity rebound", zap.String("group_id", groupID), zap.String("team_id", team.ID.Hex()))
		ev := events.ProgressEvent{
			Type:      events.TypeIdentityRebound,
			TeamID:    team.ID.Hex(),
			GroupID:   team.GroupID,
			Completed: len(team.GoodProgress),
			Total:     len(team.IdealRoute),
		}
		if err := is.publisher.Publish(ctx, ev); err != nil {
			is.logger.Warn("failed to publish progress event", zap.String("group_id", groupID), zap.Error(err))
		}
	}

	return &RecoverResult{
		TeamID:     team.ID.Hex(),
		ResumePath: ResumePath(req.ResumeColor, req.ResumeNode),
	}, nil
}

// ResumePath is the client page that replays the interrupted scan, or "" when
// there is nothing to replay.
func ResumePath(color int, node string) string {
	if color == 0 || node == "" {
		return ""
	}
	q := url.Values{}
	q.Set("num", strconv.Itoa(color))
	q.Set("qr", node)
	return fmt.Sprintf("/check-route?%s", q.Encode())
}
