// hunt/service/repository.go
package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Ftotnem/astar-livesearch/shared/models"
)

// TeamRepository is the persistence the services need. Implementations must
// return store.ErrTeamNotFound, store.ErrDuplicateIdentity and
// store.ErrDuplicateGroupID for the matching conditions.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team *models.Team) error
	FindByIdentity(ctx context.Context, identity string) (*models.Team, error)
	FindByGroupID(ctx context.Context, groupID string) (*models.Team, error)
	// AppendAttempt pushes entry onto the progress log unconditionally.
	AppendAttempt(ctx context.Context, teamID primitive.ObjectID, entry models.ProgressEntry) error
	// AdvanceProgress appends node to good progress and entry to the log in one
	// write, only while good progress still has observedLen elements. It reports
	// whether the write applied.
	AdvanceProgress(ctx context.Context, teamID primitive.ObjectID, observedLen int, node string, entry models.ProgressEntry) (bool, error)
	RebindIdentity(ctx context.Context, groupID, identity string) error
	ListTeams(ctx context.Context) ([]models.Team, error)
}

// ColorSequence issues route colors atomically.
type ColorSequence interface {
	NextColorIndex(ctx context.Context) (int, error)
}
