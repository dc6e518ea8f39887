package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Ftotnem/astar-livesearch/hunt/events"
	"github.com/Ftotnem/astar-livesearch/hunt/store"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

var testCosts = []int{50, 100, 150, 200, 250}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ProgressEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// flakyRepo fails writes on demand.
type flakyRepo struct {
	*store.MemoryTeamStore
	failWrites bool
}

var errDown = errors.New("connection refused")

func (f *flakyRepo) AppendAttempt(ctx context.Context, id primitive.ObjectID, e models.ProgressEntry) error {
	if f.failWrites {
		return errDown
	}
	return f.MemoryTeamStore.AppendAttempt(ctx, id, e)
}

func (f *flakyRepo) AdvanceProgress(ctx context.Context, id primitive.ObjectID, n int, node string, e models.ProgressEntry) (bool, error) {
	if f.failWrites {
		return false, errDown
	}
	return f.MemoryTeamStore.AdvanceProgress(ctx, id, n, node, e)
}

type harness struct {
	repo     *flakyRepo
	pub      *recordingPublisher
	identity *IdentityService
	routes   *RouteService
	reg      *RegistrationService
	board    *LeaderboardService
}

func newHarness(t *testing.T, cost CostRule) *harness {
	t.Helper()
	if cost == nil {
		cost = CostTable(testCosts)
	}
	clock := &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	repo := &flakyRepo{MemoryTeamStore: store.NewMemoryTeamStore()}
	pub := &recordingPublisher{}

	identity := NewIdentityService(repo, "", pub, nil)
	routes := NewRouteService(repo, identity, cost, pub, nil)
	routes.now = clock.Now
	reg := NewRegistrationService(repo, &store.MemoryColorSequence{}, nil, pub, nil)
	reg.now = clock.Now
	board := NewLeaderboardService(repo, identity, nil, 0, nil)
	board.now = clock.Now

	return &harness{repo: repo, pub: pub, identity: identity, routes: routes, reg: reg, board: board}
}

func (h *harness) register(t *testing.T, identity, groupID string, route ...string) *RegisterResult {
	t.Helper()
	res, err := h.reg.Register(context.Background(), RegisterRequest{
		Identity:   identity,
		GroupID:    groupID,
		FullName:   "Team " + groupID,
		IdealRoute: route,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) team(t *testing.T, identity string) *models.Team {
	t.Helper()
	team, err := h.repo.FindByIdentity(context.Background(), identity)
	require.NoError(t, err)
	return team
}
