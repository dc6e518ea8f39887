package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ftotnem/astar-livesearch/shared/models"
)

// setupMongo connects to HUNT_TEST_MONGO_URI and returns a throwaway database.
func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("HUNT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("HUNT_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database(fmt.Sprintf("hunt_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func setupTeamStore(t *testing.T) (*TeamStore, *mongo.Collection) {
	t.Helper()
	coll := setupMongo(t).Collection("teams")
	ts := NewTeamStore(coll)
	require.NoError(t, ts.EnsureIndexes(context.Background()))
	return ts, coll
}

func TestTeamStoreDuplicateKeysMapToSentinels(t *testing.T) {
	ts, _ := setupTeamStore(t)
	ctx := context.Background()

	require.NoError(t, ts.CreateTeam(ctx, newTeam("fp-1", "ab123")))
	assert.ErrorIs(t, ts.CreateTeam(ctx, newTeam("fp-1", "cd456")), ErrDuplicateIdentity)
	assert.ErrorIs(t, ts.CreateTeam(ctx, newTeam("fp-2", "ab123")), ErrDuplicateGroupID)

	require.NoError(t, ts.CreateTeam(ctx, newTeam("fp-2", "cd456")))
	assert.ErrorIs(t, ts.RebindIdentity(ctx, "cd456", "fp-1"), ErrDuplicateIdentity)
	assert.ErrorIs(t, ts.RebindIdentity(ctx, "none", "fp-9"), ErrTeamNotFound)
}

func TestTeamStoreConditionalAdvance(t *testing.T) {
	ts, _ := setupTeamStore(t)
	ctx := context.Background()

	team := newTeam("fp-1", "ab123")
	require.NoError(t, ts.CreateTeam(ctx, team))

	entry := models.ProgressEntry{Node: "A", Timestamp: time.Now().UTC(), Cost: 50, WasCorrect: true}

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ts.AdvanceProgress(ctx, team.ID, 0, "A", entry)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, applied)

	require.NoError(t, ts.AppendAttempt(ctx, team.ID, models.ProgressEntry{Node: "C", Timestamp: time.Now().UTC(), Cost: 1}))

	got, err := ts.FindByIdentity(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got.GoodProgress)
	require.Len(t, got.ProgressLog, 3)
	assert.Equal(t, models.MarkerInitial, got.ProgressLog[0].Marker)
	assert.True(t, got.ProgressLog[1].WasCorrect)
	assert.Equal(t, 50, got.ProgressLog[1].Cost)
	assert.False(t, got.ProgressLog[2].WasCorrect)

	assert.ErrorIs(t, ts.AppendAttempt(ctx, primitive.NewObjectID(), entry), ErrTeamNotFound)
}

func TestTeamStoreReadsLegacyDocuments(t *testing.T) {
	ts, coll := setupTeamStore(t)
	ctx := context.Background()

	registered := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
	_, err := coll.InsertOne(ctx, bson.M{
		"_id":               primitive.NewObjectID(),
		"fingerPrint":       "legacy-fp",
		"netID":             "old01",
		"fullName":          "Legacy Team",
		"groupColorCounter": 3,
		"idealRoute":        bson.A{"A", "B", "C", "D", "E"},
		"progress": bson.A{
			bson.M{"initial": registered.Format(time.RFC3339Nano)},
			bson.M{"A": registered.Add(10 * time.Minute)},
			bson.M{"node": "C", "timestamp": registered.Add(20 * time.Minute), "isCorrect": false},
		},
		"timestamp": registered,
	})
	require.NoError(t, err)

	team, err := ts.FindByIdentity(ctx, "legacy-fp")
	require.NoError(t, err)
	require.Len(t, team.ProgressLog, 3)
	assert.Equal(t, models.MarkerInitial, team.ProgressLog[0].Marker)
	assert.True(t, team.ProgressLog[0].Timestamp.Equal(registered))
	assert.Equal(t, "A", team.ProgressLog[1].Node)
	assert.True(t, team.ProgressLog[1].Legacy)
	assert.Equal(t, "C", team.ProgressLog[2].Node)
	assert.False(t, team.ProgressLog[2].WasCorrect)

	// goodProgress is absent on these documents; the first advance must still apply
	ok, err := ts.AdvanceProgress(ctx, team.ID, 0, "A", models.ProgressEntry{Node: "A", Timestamp: time.Now().UTC(), WasCorrect: true})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestColorSequenceStore(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	seq := NewColorSequenceStore(db.Collection("counters"))

	require.NoError(t, seq.Seed(ctx, 2))
	require.NoError(t, seq.Seed(ctx, 4), "seeding twice keeps the first value")

	var got []int
	for i := 0; i < 5; i++ {
		c, err := seq.NextColorIndex(ctx)
		require.NoError(t, err)
		got = append(got, c)
	}
	assert.Equal(t, []int{3, 4, 1, 2, 3}, got)
}

func TestTeamStoreLatestTeam(t *testing.T) {
	ts, _ := setupTeamStore(t)
	ctx := context.Background()

	_, err := ts.LatestTeam(ctx)
	assert.ErrorIs(t, err, ErrTeamNotFound)

	first := newTeam("fp-1", "first")
	first.RegisteredAt = time.Now().Add(-time.Hour).UTC()
	require.NoError(t, ts.CreateTeam(ctx, first))
	require.NoError(t, ts.CreateTeam(ctx, newTeam("fp-2", "second")))

	latest, err := ts.LatestTeam(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", latest.GroupID)

	teams, err := ts.ListTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "second", teams[0].GroupID)
}
