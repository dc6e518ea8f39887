// hunt/store/memory_store.go
package store

import (
	"context"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Ftotnem/astar-livesearch/shared/models"
)

// MemoryTeamStore keeps teams in process memory with the same contract as
// TeamStore, including the conditional advance. Used for local runs
// (HUNT_STORAGE=memory) and tests.
type MemoryTeamStore struct {
	mu    sync.RWMutex
	teams map[primitive.ObjectID]*models.Team
	order []primitive.ObjectID
}

func NewMemoryTeamStore() *MemoryTeamStore {
	return &MemoryTeamStore{teams: make(map[primitive.ObjectID]*models.Team)}
}

func (ms *MemoryTeamStore) CreateTeam(_ context.Context, team *models.Team) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, t := range ms.teams {
		if t.Identity == team.Identity {
			return ErrDuplicateIdentity
		}
		if t.GroupID == team.GroupID {
			return ErrDuplicateGroupID
		}
	}
	if team.ID.IsZero() {
		team.ID = primitive.NewObjectID()
	}
	ms.teams[team.ID] = cloneTeam(team)
	ms.order = append(ms.order, team.ID)
	return nil
}

func (ms *MemoryTeamStore) find(match func(*models.Team) bool) (*models.Team, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	for _, t := range ms.teams {
		if match(t) {
			return cloneTeam(t), nil
		}
	}
	return nil, ErrTeamNotFound
}

func (ms *MemoryTeamStore) FindByIdentity(_ context.Context, identity string) (*models.Team, error) {
	return ms.find(func(t *models.Team) bool { return t.Identity == identity })
}

func (ms *MemoryTeamStore) FindByGroupID(_ context.Context, groupID string) (*models.Team, error) {
	return ms.find(func(t *models.Team) bool { return t.GroupID == groupID })
}

func (ms *MemoryTeamStore) AppendAttempt(_ context.Context, teamID primitive.ObjectID, entry models.ProgressEntry) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	t, ok := ms.teams[teamID]
	if !ok {
		return ErrTeamNotFound
	}
	t.ProgressLog = append(t.ProgressLog, entry)
	return nil
}

func (ms *MemoryTeamStore) AdvanceProgress(_ context.Context, teamID primitive.ObjectID, observedLen int, node string, entry models.ProgressEntry) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	t, ok := ms.teams[teamID]
	if !ok || len(t.GoodProgress) != observedLen {
		return false, nil
	}
	t.GoodProgress = append(t.GoodProgress, node)
	t.ProgressLog = append(t.ProgressLog, entry)
	return true, nil
}

func (ms *MemoryTeamStore) RebindIdentity(_ context.Context, groupID, identity string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var target *models.Team
	for _, t := range ms.teams {
		if t.GroupID == groupID {
			target = t
		} else if t.Identity == identity {
			return ErrDuplicateIdentity
		}
	}
	if target == nil {
		return ErrTeamNotFound
	}
	target.Identity = identity
	return nil
}

// ListTeams returns every team, newest registration first.
func (ms *MemoryTeamStore) ListTeams(_ context.Context) ([]models.Team, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := make([]models.Team, 0, len(ms.order))
	for _, id := range slices.Backward(ms.order) {
		out = append(out, *cloneTeam(ms.teams[id]))
	}
	return out, nil
}

func cloneTeam(t *models.Team) *models.Team {
	c := *t
	c.Members = slices.Clone(t.Members)
	c.IdealRoute = slices.Clone(t.IdealRoute)
	c.GoodProgress = slices.Clone(t.GoodProgress)
	c.ProgressLog = slices.Clone(t.ProgressLog)
	if c.GoodProgress == nil {
		c.GoodProgress = []string{}
	}
	return &c
}

// MemoryColorSequence is an in-process ColorSequence.
type MemoryColorSequence struct {
	mu  sync.Mutex
	seq int64
}

func (s *MemoryColorSequence) NextColorIndex(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return models.ColorFromSequence(s.seq), nil
}
