// hunt/service/route_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ftotnem/astar-livesearch/hunt/events"
	"github.com/Ftotnem/astar-livesearch/hunt/store"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

// Outcome of a successful verification.
type Outcome string

const (
	OutcomeAdvanced      Outcome = "Advanced"
	OutcomeRouteComplete Outcome = "RouteComplete"
)

// VerifyRequest is one scan with the participant's computed cost.
type VerifyRequest struct {
	Identity               string
	ClaimedRouteColorIndex int
	ScannedNode            string
	ClaimedCost            int
}

// VerifyResult is returned when the scan advanced the route.
type VerifyResult struct {
	Outcome      Outcome
	NextNodeHint string // node after the next one; empty when fewer than two remain
	Completed    int
	Total        int
}

// NodeCheckRequest is the pre-check made when a code is scanned, before a cost is entered.
type NodeCheckRequest struct {
	Identity               string
	ClaimedRouteColorIndex int
	ScannedNode            string
}

// RouteService runs the route progress state machine.
type RouteService struct {
	teams     TeamRepository
	resolver  *IdentityService
	cost      CostRule
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewRouteService(teams TeamRepository, resolver *IdentityService, cost CostRule, publisher events.Publisher, logger *zap.Logger) *RouteService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteService{
		teams:     teams,
		resolver:  resolver,
		cost:      cost,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Verify decides whether one scan advances the team. Every attempt past the
// group check is written to the progress log before the outcome is returned.
func (rs *RouteService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	team, err := rs.resolver.Resolve(ctx, req.Identity)
	if err != nil {
		return nil, err
	}

	remaining := team.Remaining()

	if team.RouteColorIndex != req.ClaimedRouteColorIndex {
		return nil, &WrongGroupError{Expected: team.RouteColorIndex, Submitted: req.ClaimedRouteColorIndex}
	}

	entry := models.ProgressEntry{
		Node:      req.ScannedNode,
		Timestamp: rs.now().UTC(),
		Cost:      req.ClaimedCost,
	}

	if len(remaining) == 0 {
		if err := rs.recordAttempt(ctx, team, entry); err != nil {
			return nil, err
		}
		return nil, ErrRouteAlreadyComplete
	}

	position := len(team.GoodProgress)
	expectedCost, err := rs.cost(position)
	if err != nil {
		rs.logger.Error("no expected cost for position", zap.Int("position", position), zap.Error(err))
		if !errors.Is(err, ErrCostUndefined) {
			err = fmt.Errorf("%w: %v", ErrCostUndefined, err)
		}
		return nil, err
	}

	costOK := req.ClaimedCost == expectedCost
	nodeOK := req.ScannedNode == remaining[0]
	entry.WasCorrect = costOK && nodeOK

	if !entry.WasCorrect {
		if err := rs.recordAttempt(ctx, team, entry); err != nil {
			return nil, err
		}
		if !costOK {
			return nil, &AttemptError{Kind: ErrWrongCost}
		}
		return nil, &AttemptError{Kind: ErrWrongNode, ExpectedNode: remaining[0]}
	}

	advanced, err := rs.teams.AdvanceProgress(ctx, team.ID, position, req.ScannedNode, entry)
	if err != nil {
		return nil, storeError("advance progress", err)
	}
	if !advanced {
		// another scan moved the team first; keep the audit trail and report it
		entry.WasCorrect = false
		if err := rs.recordAttempt(ctx, team, entry); err != nil {
			return nil, err
		}
		rs.logger.Info("progress conflict", zap.String("group_id", team.GroupID), zap.String("node", req.ScannedNode))
		return nil, ErrProgressConflict
	}

	result := &VerifyResult{
		Completed: position + 1,
		Total:     len(team.IdealRoute),
	}
	evType := events.TypeAdvanced
	if result.Completed >= result.Total {
		result.Outcome = OutcomeRouteComplete
		evType = events.TypeCompleted
	} else {
		result.Outcome = OutcomeAdvanced
		// remaining after this scan is remaining[1:]; the hint is its second node
		if after := remaining[1:]; len(after) > 1 {
			result.NextNodeHint = after[1]
		}
	}

	rs.logger.Info("team advanced",
		zap.String("group_id", team.GroupID),
		zap.String("node", req.ScannedNode),
		zap.Int("completed", result.Completed),
		zap.Int("total", result.Total))
	rs.publish(ctx, team, evType, entry, result.Completed)
	return result, nil
}

// CheckNode validates a scanned code before the cost is entered. A node other
// than the next one is logged as an incorrect attempt.
func (rs *RouteService) CheckNode(ctx context.Context, req NodeCheckRequest) error {
	team, err := rs.resolver.Resolve(ctx, req.Identity)
	if err != nil {
		return err
	}
	if team.RouteColorIndex != req.ClaimedRouteColorIndex {
		return &WrongGroupError{Expected: team.RouteColorIndex, Submitted: req.ClaimedRouteColorIndex}
	}

	remaining := team.Remaining()
	if len(remaining) > 0 && req.ScannedNode == remaining[0] {
		return nil
	}

	entry := models.ProgressEntry{Node: req.ScannedNode, Timestamp: rs.now().UTC()}
	if err := rs.recordAttempt(ctx, team, entry); err != nil {
		return err
	}
	if len(remaining) == 0 {
		return ErrRouteAlreadyComplete
	}
	return &AttemptError{Kind: ErrWrongNode, ExpectedNode: remaining[0]}
}

func (rs *RouteService) recordAttempt(ctx context.Context, team *models.Team, entry models.ProgressEntry) error {
	if err := rs.teams.AppendAttempt(ctx, team.ID, entry); err != nil {
		if errors.Is(err, store.ErrTeamNotFound) {
			return ErrUnknownIdentity
		}
		return storeError("append attempt", err)
	}
	rs.publish(ctx, team, events.TypeAttempt, entry, len(team.GoodProgress))
	return nil
}

func (rs *RouteService) publish(ctx context.Context, team *models.Team, evType string, entry models.ProgressEntry, completed int) {
	ev := events.ProgressEvent{
		Type:      evType,
		TeamID:    team.ID.Hex(),
		GroupID:   team.GroupID,
		Node:      entry.Node,
		Correct:   entry.WasCorrect,
		Completed: completed,
		Total:     len(team.IdealRoute),
		Timestamp: entry.Timestamp,
	}
	if err := rs.publisher.Publish(ctx, ev); err != nil {
		rs.logger.Warn("failed to publish progress event", zap.String("group_id", team.GroupID), zap.Error(err))
	}
}
