package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ftotnem/astar-livesearch/shared/models"
)

func newTeam(identity, groupID string) *models.Team {
	now := time.Now().UTC()
	return &models.Team{
		Identity:     identity,
		GroupID:      groupID,
		FullName:     "Test " + groupID,
		IdealRoute:   []string{"A", "B", "C"},
		GoodProgress: []string{},
		ProgressLog:  []models.ProgressEntry{models.NewInitialEntry(now)},
		RegisteredAt: now,
	}
}

func TestMemoryTeamStoreUniqueness(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryTeamStore()

	require.NoError(t, ms.CreateTeam(ctx, newTeam("fp-1", "ab123")))
	assert.ErrorIs(t, ms.CreateTeam(ctx, newTeam("fp-1", "cd456")), ErrDuplicateIdentity)
	assert.ErrorIs(t, ms.CreateTeam(ctx, newTeam("fp-2", "ab123")), ErrDuplicateGroupID)

	_, err := ms.FindByIdentity(ctx, "nobody")
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestMemoryTeamStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryTeamStore()
	require.NoError(t, ms.CreateTeam(ctx, newTeam("fp-1", "ab123")))

	got, err := ms.FindByIdentity(ctx, "fp-1")
	require.NoError(t, err)
	got.GoodProgress = append(got.GoodProgress, "A")

	again, err := ms.FindByIdentity(ctx, "fp-1")
	require.NoError(t, err)
	assert.Empty(t, again.GoodProgress)
}

func TestMemoryTeamStoreAdvanceIsConditional(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryTeamStore()
	team := newTeam("fp-1", "ab123")
	require.NoError(t, ms.CreateTeam(ctx, team))

	entry := models.ProgressEntry{Node: "A", Timestamp: time.Now().UTC(), WasCorrect: true}

	var wg sync.WaitGroup
	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ms.AdvanceProgress(ctx, team.ID, 0, "A", entry)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	applied := 0
	for ok := range results {
		if ok {
			applied++
		}
	}
	assert.Equal(t, 1, applied)

	got, err := ms.FindByGroupID(ctx, "ab123")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got.GoodProgress)
	assert.Len(t, got.ProgressLog, 2)
}

func TestMemoryTeamStoreRebindIdentity(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryTeamStore()
	require.NoError(t, ms.CreateTeam(ctx, newTeam("fp-1", "ab123")))
	require.NoError(t, ms.CreateTeam(ctx, newTeam("fp-2", "cd456")))

	assert.ErrorIs(t, ms.RebindIdentity(ctx, "ab123", "fp-2"), ErrDuplicateIdentity)
	assert.ErrorIs(t, ms.RebindIdentity(ctx, "zz999", "fp-9"), ErrTeamNotFound)
	require.NoError(t, ms.RebindIdentity(ctx, "ab123", "fp-new"))

	got, err := ms.FindByIdentity(ctx, "fp-new")
	require.NoError(t, err)
	assert.Equal(t, "ab123", got.GroupID)
}

func TestMemoryTeamStoreListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryTeamStore()
	require.NoError(t, ms.CreateTeam(ctx, newTeam("fp-1", "first")))
	require.NoError(t, ms.CreateTeam(ctx, newTeam("fp-2", "second")))

	teams, err := ms.ListTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "second", teams[0].GroupID)
	assert.Equal(t, "first", teams[1].GroupID)
}

func TestMemoryColorSequenceRoundRobin(t *testing.T) {
	seq := &MemoryColorSequence{}
	var got []int
	for i := 0; i < 9; i++ {
		c, err := seq.NextColorIndex(context.Background())
		require.NoError(t, err)
		got = append(got, c)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 1, 2, 3, 4, 1}, got)
}
