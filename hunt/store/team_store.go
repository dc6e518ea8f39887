// hunt/store/team_store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ftotnem/astar-livesearch/shared/models"
)

const (
	indexFingerprint  = "uniq_fingerprint"
	indexGroupID      = "uniq_group_id"
	indexRegisteredAt = "idx_registered_at"
)

// TeamStore is the MongoDB collection of teams.
type TeamStore struct {
	collection *mongo.Collection
}

func NewTeamStore(collection *mongo.Collection) *TeamStore {
	return &TeamStore{collection: collection}
}

// EnsureIndexes creates the unique and recency indexes. It is idempotent.
func (ts *TeamStore) EnsureIndexes(ctx context.Context) error {
	_, err := ts.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fingerPrint", Value: 1}},
			Options: options.Index().SetName(indexFingerprint).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "netID", Value: 1}},
			Options: options.Index().SetName(indexGroupID).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName(indexRegisteredAt),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create team indexes: %w", err)
	}
	return nil
}

// CreateTeam inserts team and sets its ID.
func (ts *TeamStore) CreateTeam(ctx context.Context, team *models.Team) error {
	if team.ID.IsZero() {
		team.ID = primitive.NewObjectID()
	}
	if _, err := ts.collection.InsertOne(ctx, team); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateKeyError(err)
		}
		return fmt.Errorf("failed to create team %s: %w", team.GroupID, err)
	}
	return nil
}

// duplicateKeyError tells the two unique indexes apart by name.
func duplicateKeyError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexFingerprint):
		return ErrDuplicateIdentity
	case strings.Contains(msg, indexGroupID):
		return ErrDuplicateGroupID
	default:
		return fmt.Errorf("duplicate key: %w", err)
	}
}

func (ts *TeamStore) findOne(ctx context.Context, filter bson.M) (*models.Team, error) {
	var team models.Team
	if err := ts.collection.FindOne(ctx, filter).Decode(&team); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return &team, nil
}

// FindByIdentity looks a team up by fingerprint.
func (ts *TeamStore) FindByIdentity(ctx context.Context, identity string) (*models.Team, error) {
	return ts.findOne(ctx, bson.M{"fingerPrint": identity})
}

// FindByGroupID looks a team up by its group id.
func (ts *TeamStore) FindByGroupID(ctx context.Context, groupID string) (*models.Team, error) {
	return ts.findOne(ctx, bson.M{"netID": groupID})
}

// LatestTeam returns the most recently registered team.
func (ts *TeamStore) LatestTeam(ctx context.Context) (*models.Team, error) {
	var team models.Team
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if err := ts.collection.FindOne(ctx, bson.M{}, opts).Decode(&team); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to find latest team: %w", err)
	}
	return &team, nil
}

// AppendAttempt pushes entry onto the progress log.
func (ts *TeamStore) AppendAttempt(ctx context.Context, teamID primitive.ObjectID, entry models.ProgressEntry) error {
	res, err := ts.collection.UpdateOne(ctx,
		bson.M{"_id": teamID},
		bson.M{"$push": bson.M{"progress": entry}},
	)
	if err != nil {
		return fmt.Errorf("failed to append attempt for team %s: %w", teamID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrTeamNotFound
	}
	return nil
}

// AdvanceProgress appends node and entry only while goodProgress still has
// observedLen elements.
func (ts *TeamStore) AdvanceProgress(ctx context.Context, teamID primitive.ObjectID, observedLen int, node string, entry models.ProgressEntry) (bool, error) {
	filter := bson.M{"_id": teamID, "goodProgress": bson.M{"$size": observedLen}}
	if observedLen == 0 {
		// documents written before goodProgress existed
		filter = bson.M{"_id": teamID, "$or": bson.A{
			bson.M{"goodProgress": bson.M{"$size": 0}},
			bson.M{"goodProgress": bson.M{"$exists": false}},
		}}
	}
	update := bson.M{"$push": bson.M{
		"progress":     entry,
		"goodProgress": node,
	}}

	res, err := ts.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to advance progress for team %s: %w", teamID.Hex(), err)
	}
	return res.ModifiedCount == 1, nil
}

// RebindIdentity points the team registered under groupID at a new fingerprint.
func (ts *TeamStore) RebindIdentity(ctx context.Context, groupID, identity string) error {
	res, err := ts.collection.UpdateOne(ctx,
		bson.M{"netID": groupID},
		bson.M{"$set": bson.M{"fingerPrint": identity}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateKeyError(err)
		}
		return fmt.Errorf("failed to rebind identity for group %s: %w", groupID, err)
	}
	if res.MatchedCount == 0 {
		return ErrTeamNotFound
	}
	return nil
}

// ListTeams returns every team, newest registration first.
func (ts *TeamStore) ListTeams(ctx context.Context) ([]models.Team, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := ts.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer cursor.Close(ctx)

	var teams []models.Team
	if err := cursor.All(ctx, &teams); err != nil {
		return nil, fmt.Errorf("failed to decode teams: %w", err)
	}
	return teams, nil
}
