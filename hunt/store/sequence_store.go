// hunt/store/sequence_store.go
package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ftotnem/astar-livesearch/shared/models"
)

const routeColorCounterID = "route_color"

// ColorSequenceStore issues route colors from an atomic counter document.
type ColorSequenceStore struct {
	collection *mongo.Collection
}

func NewColorSequenceStore(collection *mongo.Collection) *ColorSequenceStore {
	return &ColorSequenceStore{collection: collection}
}

// NextColorIndex increments the counter and maps it onto 1..4.
func (cs *ColorSequenceStore) NextColorIndex(ctx context.Context) (int, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := cs.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": routeColorCounterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to increment route color counter: %w", err)
	}
	return models.ColorFromSequence(counter.Seq), nil
}

// Seed creates the counter at lastColorIndex unless it already exists, so a
// database populated before the counter existed continues its rotation.
func (cs *ColorSequenceStore) Seed(ctx context.Context, lastColorIndex int) error {
	_, err := cs.collection.UpdateOne(ctx,
		bson.M{"_id": routeColorCounterID},
		bson.M{"$setOnInsert": bson.M{"seq": int64(lastColorIndex)}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to seed route color counter: %w", err)
	}
	return nil
}
