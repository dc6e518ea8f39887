package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ftotnem/astar-livesearch/hunt/store"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func seededTeam(groupID string, route, good []string, log ...models.ProgressEntry) models.Team {
	return models.Team{
		Identity:        "fp-" + groupID,
		GroupID:         groupID,
		FullName:        "Team " + groupID,
		RouteColorIndex: 1,
		IdealRoute:      route,
		GoodProgress:    good,
		ProgressLog:     append([]models.ProgressEntry{models.NewInitialEntry(t0)}, log...),
		RegisteredAt:    t0,
	}
}

func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

func TestRankOrdering(t *testing.T) {
	route := []string{"A", "B", "C", "D"}
	teams := []models.Team{
		seededTeam("slow", route, []string{"A"}, models.ProgressEntry{Node: "A", Timestamp: at(5), WasCorrect: true}),
		seededTeam("done", route, route, models.ProgressEntry{Node: "D", Timestamp: at(50), WasCorrect: true}),
		seededTeam("tie-old", route, []string{"A", "B"}, models.ProgressEntry{Node: "B", Timestamp: at(10), WasCorrect: true}),
		seededTeam("tie-new", route, []string{"A", "B"}, models.ProgressEntry{Node: "X", Timestamp: at(30)}),
		seededTeam("empty-route", nil, nil),
	}

	standings := Rank(teams)
	var order []string
	for _, s := range standings {
		order = append(order, s.GroupID)
	}
	assert.Equal(t, []string{"done", "tie-new", "tie-old", "slow", "empty-route"}, order)
	assert.Equal(t, 1, standings[0].Rank)
	assert.True(t, standings[0].Complete)
	assert.Equal(t, 0.0, standings[4].Completion)
	assert.Equal(t, "Yellow", standings[0].RouteColor)
}

func TestRecentActivityNormalizesLegacyEntries(t *testing.T) {
	teams := []models.Team{
		seededTeam("a", []string{"A"}, nil,
			models.ProgressEntry{Node: "A", Timestamp: at(1), WasCorrect: true, Legacy: true},
			models.ProgressEntry{Node: "B", Timestamp: at(4)},
		),
		seededTeam("b", []string{"A"}, nil,
			models.ProgressEntry{Node: "C", Timestamp: at(3), WasCorrect: true},
		),
	}

	items := RecentActivity(teams, 10)
	require.Len(t, items, 3, "initial markers are excluded")
	assert.Equal(t, "B", items[0].Node)
	assert.Equal(t, "C", items[1].Node)
	assert.Equal(t, "A", items[2].Node)
	assert.Equal(t, "a", items[2].GroupID)
	assert.True(t, items[2].Inferred)
	assert.False(t, items[0].Inferred)

	assert.Len(t, RecentActivity(teams, 2), 2)
	assert.NotNil(t, RecentActivity(nil, 10))
}

func TestPaginateFiltersAndSearches(t *testing.T) {
	route := []string{"A", "B"}
	var teams []models.Team
	for i := 0; i < 30; i++ {
		teams = append(teams, seededTeam(string(rune('a'+i%26))+string(rune('0'+i/26)), route, nil))
	}
	done := seededTeam("winner", route, route)
	done.Members = []models.Member{{GroupID: "mx42", DisplayName: "Grace Hopper"}}
	teams = append(teams, done)

	snap := &models.LeaderboardSnapshot{Standings: Rank(teams)}

	page := Paginate(snap, BoardQuery{})
	assert.Equal(t, 31, page.Total)
	assert.Len(t, page.Standings, DefaultPageSize)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CompletedCount)

	page = Paginate(snap, BoardQuery{Page: 2})
	assert.Len(t, page.Standings, 6)

	page = Paginate(snap, BoardQuery{Page: 99, PageSize: 10})
	assert.Equal(t, 4, page.Page)

	page = Paginate(snap, BoardQuery{Status: StatusCompleted})
	require.Len(t, page.Standings, 1)
	assert.Equal(t, "winner", page.Standings[0].GroupID)

	page = Paginate(snap, BoardQuery{Status: StatusActive})
	assert.Equal(t, 30, page.Total)

	page = Paginate(snap, BoardQuery{Search: "hopper"})
	require.Len(t, page.Standings, 1)
	assert.Equal(t, "winner", page.Standings[0].GroupID)

	page = Paginate(snap, BoardQuery{Search: "nobody-matches"})
	assert.Empty(t, page.Standings)
	assert.Equal(t, 1, page.TotalPages)
}

func TestProgressSummary(t *testing.T) {
	h := newHarness(t, nil)
	reg := h.register(t, "fp-1", "ab123", "A", "B", "C", "D")

	for _, n := range []string{"C", "D", "B", "C", "D"} {
		_, _ = verify(h, "fp-1", reg.RouteColorIndex, n, testCosts[0])
	}
	_, err := verify(h, "fp-1", reg.RouteColorIndex, "A", testCosts[0])
	require.NoError(t, err)

	sum, err := h.board.Progress(context.Background(), "fp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 3, sum.Remaining)
	assert.Equal(t, 25.0, sum.Percent)
	assert.Equal(t, "B", sum.NextNode)
	assert.Equal(t, []string{"A"}, sum.CurrentProgress)
	require.Len(t, sum.RecentAttempts, 5)
	assert.Equal(t, "A", sum.RecentAttempts[0].Node, "newest first")
	assert.True(t, sum.RecentAttempts[0].WasCorrect)

	_, err = h.board.Progress(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnknownIdentity)
}

type memoryCache struct {
	snap *models.LeaderboardSnapshot
	sets int
}

func (c *memoryCache) Get(context.Context) (*models.LeaderboardSnapshot, error) {
	if c.snap == nil {
		return nil, store.ErrCacheMiss
	}
	return c.snap, nil
}

func (c *memoryCache) Set(_ context.Context, s *models.LeaderboardSnapshot) error {
	c.snap = s
	c.sets++
	return nil
}

func TestBoardUsesCacheWhenFresh(t *testing.T) {
	h := newHarness(t, nil)
	h.register(t, "fp-1", "ab123", "A")
	cache := &memoryCache{}
	board := NewLeaderboardService(h.repo, h.identity, cache, 10, nil)
	ctx := context.Background()

	page, err := board.Board(ctx, BoardQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, cache.sets)

	h.register(t, "fp-2", "cd456", "A")
	page, err = board.Board(ctx, BoardQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "served from cache")

	_, err = board.Refresh(ctx)
	require.NoError(t, err)
	page, err = board.Board(ctx, BoardQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}
