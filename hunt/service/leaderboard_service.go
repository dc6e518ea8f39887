// hunt/service/leaderboard_service.go
package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ftotnem/astar-livesearch/hunt/store"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

const (
	DefaultPageSize    = 25
	MaxPageSize        = 100
	DefaultRecentLimit = 10
	recentAttemptCount = 5
)

// Board status filters.
const (
	StatusAll       = "all"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// SnapshotCache stores the last computed leaderboard. Get returns
// store.ErrCacheMiss when nothing fresh is cached.
type SnapshotCache interface {
	Get(ctx context.Context) (*models.LeaderboardSnapshot, error)
	Set(ctx context.Context, snap *models.LeaderboardSnapshot) error
}

// BoardQuery filters and pages the leaderboard.
type BoardQuery struct {
	Status   string
	Search   string
	Page     int
	PageSize int
}

// BoardPage is one page of the filtered leaderboard.
type BoardPage struct {
	Standings      []models.TeamStanding `json:"teams"`
	Total          int                   `json:"total"`
	Page           int                   `json:"page"`
	PageSize       int                   `json:"pageSize"`
	TotalPages     int                   `json:"totalPages"`
	TeamCount      int                   `json:"teamCount"`
	CompletedCount int                   `json:"completedCount"`
	RecentActivity []models.ActivityItem `json:"recentActivity"`
	GeneratedAt    time.Time             `json:"generatedAt"`
}

// ProgressSummary is a participant's own view of their team. Only the next
// node of the route is disclosed.
type ProgressSummary struct {
	GroupID         string                 `json:"groupId"`
	FullName        string                 `json:"fullName"`
	RouteColorIndex int                    `json:"routeColorIndex"`
	RouteColor      models.RouteColor      `json:"routeColor"`
	Completed       int                    `json:"completed"`
	Total           int                    `json:"total"`
	Remaining       int                    `json:"remaining"`
	Percent         float64                `json:"percent"`
	Complete        bool                   `json:"complete"`
	NextNode        string                 `json:"nextNode,omitempty"`
	CurrentProgress []string               `json:"currentProgress"`
	RecentAttempts  []models.ProgressEntry `json:"recentAttempts"`
}

// LeaderboardService projects teams into the ranked leaderboard.
type LeaderboardService struct {
	teams       TeamRepository
	resolver    *IdentityService
	cache       SnapshotCache
	recentLimit int
	logger      *zap.Logger
	now         func() time.Time
}

// NewLeaderboardService accepts a nil cache; every read then hits the repository.
func NewLeaderboardService(teams TeamRepository, resolver *IdentityService, cache SnapshotCache, recentLimit int, logger *zap.Logger) *LeaderboardService {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaderboardService{
		teams:       teams,
		resolver:    resolver,
		cache:       cache,
		recentLimit: recentLimit,
		logger:      logger,
		now:         time.Now,
	}
}

// Build computes a fresh snapshot from the repository.
func (ls *LeaderboardService) Build(ctx context.Context) (*models.LeaderboardSnapshot, error) {
	teams, err := ls.teams.ListTeams(ctx)
	if err != nil {
		return nil, storeError("list teams", err)
	}
	return &models.LeaderboardSnapshot{
		GeneratedAt:    ls.now().UTC(),
		Standings:      Rank(teams),
		RecentActivity: RecentActivity(teams, ls.recentLimit),
	}, nil
}

// Refresh builds a snapshot and writes it to the cache.
func (ls *LeaderboardService) Refresh(ctx context.Context) (*models.LeaderboardSnapshot, error) {
	snap, err := ls.Build(ctx)
	if err != nil {
		return nil, err
	}
	if ls.cache != nil {
		if err := ls.cache.Set(ctx, snap); err != nil {
			ls.logger.Warn("failed to cache leaderboard snapshot", zap.Error(err))
		}
	}
	return snap, nil
}

// Snapshot serves the cached snapshot when fresh and rebuilds it otherwise.
func (ls *LeaderboardService) Snapshot(ctx context.Context) (*models.LeaderboardSnapshot, error) {
	if ls.cache != nil {
		snap, err := ls.cache.Get(ctx)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, store.ErrCacheMiss) {
			ls.logger.Warn("leaderboard cache read failed", zap.Error(err))
		}
	}
	return ls.Refresh(ctx)
}

// Board returns one filtered page of the leaderboard.
func (ls *LeaderboardService) Board(ctx context.Context, q BoardQuery) (*BoardPage, error) {
	snap, err := ls.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Paginate(snap, q), nil
}

// Progress summarizes the team bound to identity.
func (ls *LeaderboardService) Progress(ctx context.Context, identity string) (*ProgressSummary, error) {
	team, err := ls.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	remaining := team.Remaining()
	summary := &ProgressSummary{
		GroupID:         team.GroupID,
		FullName:        team.FullName,
		RouteColorIndex: team.RouteColorIndex,
		RouteColor:      models.ColorFor(team.RouteColorIndex),
		Completed:       len(team.GoodProgress),
		Total:           len(team.IdealRoute),
		Remaining:       len(remaining),
		Percent:         team.Completion() * 100,
		Complete:        team.IsComplete(),
		CurrentProgress: append([]string{}, team.GoodProgress...),
	}
	if len(remaining) > 0 {
		summary.NextNode = remaining[0]
	}

	attempts := team.Attempts()
	if len(attempts) > recentAttemptCount {
		attempts = attempts[len(attempts)-recentAttemptCount:]
	}
	summary.RecentAttempts = make([]models.ProgressEntry, 0, len(attempts))
	for i := len(attempts) - 1; i >= 0; i-- {
		summary.RecentAttempts = append(summary.RecentAttempts, attempts[i])
	}
	return summary, nil
}

// Rank orders teams by completion fraction, then by most recent activity, then
// by group id.
func Rank(teams []models.Team) []models.TeamStanding {
	standings := make([]models.TeamStanding, 0, len(teams))
	for i := range teams {
		t := &teams[i]
		color := models.ColorFor(t.RouteColorIndex)
		standings = append(standings, models.TeamStanding{
			TeamID:          t.ID.Hex(),
			GroupID:         t.GroupID,
			FullName:        t.FullName,
			Section:         t.Section,
			Members:         t.Members,
			RouteColorIndex: t.RouteColorIndex,
			RouteColor:      color.Name,
			RouteColorHex:   color.Hex,
			Completed:       len(t.GoodProgress),
			Total:           len(t.IdealRoute),
			Completion:      t.Completion(),
			Complete:        t.IsComplete(),
			Attempts:        len(t.Attempts()),
			LastActivity:    t.LastActivity(),
			RegisteredAt:    t.RegisteredAt,
		})
	}

	slices.SortFunc(standings, func(a, b models.TeamStanding) int {
		if c := cmp.Compare(b.Completion, a.Completion); c != 0 {
			return c
		}
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.GroupID, b.GroupID)
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

// RecentActivity flattens every team's attempts, newest first, keeping at most n.
func RecentActivity(teams []models.Team, n int) []models.ActivityItem {
	var items []models.ActivityItem
	for i := range teams {
		t := &teams[i]
		for _, e := range t.ProgressLog {
			if !e.IsAttempt() {
				continue
			}
			items = append(items, models.ActivityItem{
				TeamID:          t.ID.Hex(),
				GroupID:         t.GroupID,
				FullName:        t.FullName,
				RouteColorIndex: t.RouteColorIndex,
				Node:            e.Node,
				Timestamp:       e.Timestamp,
				WasCorrect:      e.WasCorrect,
				Inferred:        e.Legacy,
			})
		}
	}
	slices.SortStableFunc(items, func(a, b models.ActivityItem) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	if items == nil {
		items = []models.ActivityItem{}
	}
	return items
}

// Paginate applies the status filter, search and paging to a snapshot.
func Paginate(snap *models.LeaderboardSnapshot, q BoardQuery) *BoardPage {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	filtered := make([]models.TeamStanding, 0, len(snap.Standings))
	completed := 0
	for _, s := range snap.Standings {
		if s.Complete {
			completed++
		}
		switch q.Status {
		case StatusActive:
			if s.Complete {
				continue
			}
		case StatusCompleted:
			if !s.Complete {
				continue
			}
		}
		if search != "" && !matchesSearch(s, search) {
			continue
		}
		filtered = append(filtered, s)
	}

	totalPages := (len(filtered) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, len(filtered))

	return &BoardPage{
		Standings:      filtered[start:end],
		Total:          len(filtered),
		Page:           page,
		PageSize:       pageSize,
		TotalPages:     totalPages,
		TeamCount:      len(snap.Standings),
		CompletedCount: completed,
		RecentActivity: snap.RecentActivity,
		GeneratedAt:    snap.GeneratedAt,
	}
}

func matchesSearch(s models.TeamStanding, needle string) bool {
	if strings.Contains(strings.ToLower(s.GroupID), needle) ||
		strings.Contains(strings.ToLower(s.FullName), needle) {
		return true
	}
	for _, m := range s.Members {
		if strings.Contains(strings.ToLower(m.GroupID), needle) ||
			strings.Contains(strings.ToLower(m.DisplayName), needle) {
			return true
		}
	}
	return false
}
