// hunt/service/registration_service.go
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ftotnem/astar-livesearch/hunt/events"
	"github.com/Ftotnem/astar-livesearch/hunt/store"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

// RegisterRequest is the registration form of one group.
type RegisterRequest struct {
	Identity   string
	GroupID    string
	FullName   string
	Section    string
	Members    []models.Member
	IdealRoute []string
}

// RegisterResult identifies the created team.
type RegisterResult struct {
	TeamID          string
	RouteColorIndex int
	RouteColor      models.RouteColor
}

// RegistrationService creates teams and assigns route colors round-robin.
type RegistrationService struct {
	teams        TeamRepository
	colors       ColorSequence
	defaultRoute []string
	publisher    events.Publisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewRegistrationService uses defaultRoute for requests that carry no route.
func NewRegistrationService(teams TeamRepository, colors ColorSequence, defaultRoute []string, publisher events.Publisher, logger *zap.Logger) *RegistrationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		teams:        teams,
		colors:       colors,
		defaultRoute: append([]string(nil), defaultRoute...),
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// Register validates the form, rejects duplicates and creates the team.
func (rs *RegistrationService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	req.Identity = strings.TrimSpace(req.Identity)
	req.GroupID = strings.TrimSpace(req.GroupID)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Section = strings.TrimSpace(req.Section)

	route := req.IdealRoute
	if len(route) == 0 {
		route = rs.defaultRoute
	}
	if req.Identity == "" || req.GroupID == "" || req.FullName == "" || len(route) == 0 {
		return nil, ErrMissingFields
	}
	route, err := normalizeRoute(route)
	if err != nil {
		return nil, err
	}

	if err := rs.checkUnique(ctx, req.Identity, req.GroupID); err != nil {
		return nil, err
	}

	colorIndex, err := rs.colors.NextColorIndex(ctx)
	if err != nil {
		return nil, storeError("next color index", err)
	}

	now := rs.now().UTC()
	team := &models.Team{
		Identity:        req.Identity,
		GroupID:         req.GroupID,
		FullName:        req.FullName,
		Section:         req.Section,
		Members:         normalizeMembers(req.Members),
		RouteColorIndex: colorIndex,
		IdealRoute:      route,
		GoodProgress:    []string{},
		ProgressLog:     []models.ProgressEntry{models.NewInitialEntry(now)},
		RegisteredAt:    now,
	}

	if err := rs.teams.CreateTeam(ctx, team); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateIdentity):
			return nil, ErrDuplicateIdentity
		case errors.Is(err, store.ErrDuplicateGroupID):
			return nil, ErrDuplicateGroupID
		default:
			return nil, storeError("create team", err)
		}
	}

	rs.logger.Info("team registered",
		zap.String("group_id", team.GroupID),
		zap.String("team_id", team.ID.Hex()),
		zap.Int("route_color", colorIndex))

	ev := events.ProgressEvent{
		Type:      events.TypeRegistered,
		TeamID:    team.ID.Hex(),
		GroupID:   team.GroupID,
		Total:     len(team.IdealRoute),
		Timestamp: now,
	}
	if err := rs.publisher.Publish(ctx, ev); err != nil {
		rs.logger.Warn("failed to publish progress event", zap.String("group_id", team.GroupID), zap.Error(err))
	}

	return &RegisterResult{
		TeamID:          team.ID.Hex(),
		RouteColorIndex: colorIndex,
		RouteColor:      models.ColorFor(colorIndex),
	}, nil
}

// checkUnique reports duplicates before a color is consumed. The unique indexes
// still decide races between concurrent registrations.
func (rs *RegistrationService) checkUnique(ctx context.Context, identity, groupID string) error {
	if _, err := rs.teams.FindByIdentity(ctx, identity); err == nil {
		return ErrDuplicateIdentity
	} else if !errors.Is(err, store.ErrTeamNotFound) {
		return storeError("find by identity", err)
	}
	if _, err := rs.teams.FindByGroupID(ctx, groupID); err == nil {
		return ErrDuplicateGroupID
	} else if !errors.Is(err, store.ErrTeamNotFound) {
		return storeError("find by group id", err)
	}
	return nil
}

func normalizeRoute(route []string) ([]string, error) {
	seen := make(map[string]struct{}, len(route))
	out := make([]string, 0, len(route))
	for _, n := range route {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, ErrInvalidRoute
		}
		if _, dup := seen[n]; dup {
			return nil, ErrInvalidRoute
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

func normalizeMembers(members []models.Member) []models.Member {
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		m.GroupID = strings.TrimSpace(m.GroupID)
		m.DisplayName = strings.TrimSpace(m.DisplayName)
		m.Section = strings.TrimSpace(m.Section)
		if m.GroupID == "" && m.DisplayName == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}
