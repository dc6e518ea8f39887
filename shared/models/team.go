// shared/models/team.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member is one participant listed on a team at registration.
type Member struct {
	GroupID     string `bson:"netID" json:"groupId"`
	DisplayName string `bson:"name" json:"name"`
	Section     string `bson:"section" json:"section"`
}

// Team is the persisted record for one registered participant group.
type Team struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Identity        string             `bson:"fingerPrint" json:"identity"`
	GroupID         string             `bson:"netID" json:"groupId"`
	FullName        string             `bson:"fullName" json:"fullName"`
	Section         string             `bson:"section" json:"section"`
	Members         []Member           `bson:"members" json:"members"`
	RouteColorIndex int                `bson:"groupColorCounter" json:"routeColorIndex"`
	IdealRoute      []string           `bson:"idealRoute" json:"idealRoute"`
	GoodProgress    []string           `bson:"goodProgress" json:"goodProgress"`
	ProgressLog     []ProgressEntry    `bson:"progress" json:"progressLog"`
	RegisteredAt    time.Time          `bson:"timestamp" json:"registeredAt"`
}

// Remaining returns the nodes still to visit, in route order.
func (t *Team) Remaining() []string {
	return RemainingNodes(t.IdealRoute, t.GoodProgress)
}

// IsComplete reports whether every node of the ideal route has been reached.
func (t *Team) IsComplete() bool {
	return len(t.IdealRoute) > 0 && len(t.GoodProgress) >= len(t.IdealRoute)
}

// Completion is len(goodProgress)/len(idealRoute), or 0 for an empty route.
func (t *Team) Completion() float64 {
	if len(t.IdealRoute) == 0 {
		return 0
	}
	return float64(len(t.GoodProgress)) / float64(len(t.IdealRoute))
}

// LastActivity is the timestamp of the newest log entry, falling back to the
// registration time when the log is empty.
func (t *Team) LastActivity() time.Time {
	latest := t.RegisteredAt
	for _, e := range t.ProgressLog {
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	return latest
}

// Attempts returns the log entries that record a scan, skipping the initial marker.
func (t *Team) Attempts() []ProgressEntry {
	out := make([]ProgressEntry, 0, len(t.ProgressLog))
	for _, e := range t.ProgressLog {
		if e.IsAttempt() {
			out = append(out, e)
		}
	}
	return out
}

// RemainingNodes is the order-preserving difference ideal − good.
func RemainingNodes(ideal, good []string) []string {
	done := make(map[string]struct{}, len(good))
	for _, n := range good {
		done[n] = struct{}{}
	}
	remaining := make([]string, 0, len(ideal))
	for _, n := range ideal {
		if _, ok := done[n]; !ok {
			remaining = append(remaining, n)
		}
	}
	return remaining
}

// IsPrefix reports whether prefix is a prefix of route.
func IsPrefix(prefix, route []string) bool {
	if len(prefix) > len(route) {
		return false
	}
	for i := range prefix {
		if prefix[i] != route[i] {
			return false
		}
	}
	return true
}
