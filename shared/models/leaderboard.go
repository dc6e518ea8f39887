// shared/models/leaderboard.go
package models

import "time"

// TeamStanding is one row of the leaderboard projection.
type TeamStanding struct {
	Rank            int       `json:"rank"`
	TeamID          string    `json:"teamId"`
	GroupID         string    `json:"groupId"`
	FullName        string    `json:"fullName"`
	Section         string    `json:"section"`
	Members         []Member  `json:"members"`
	RouteColorIndex int       `json:"routeColorIndex"`
	RouteColor      string    `json:"routeColor"`
	RouteColorHex   string    `json:"routeColorHex"`
	Completed       int       `json:"completed"`
	Total           int       `json:"total"`
	Completion      float64   `json:"completion"`
	Complete        bool      `json:"complete"`
	Attempts        int       `json:"attempts"`
	LastActivity    time.Time `json:"lastActivity"`
	RegisteredAt    time.Time `json:"registeredAt"`
}

// ActivityItem is one flattened progress log entry for the recent activity feed.
type ActivityItem struct {
	TeamID          string    `json:"teamId"`
	GroupID         string    `json:"groupId"`
	FullName        string    `json:"fullName"`
	RouteColorIndex int       `json:"routeColorIndex"`
	Node            string    `json:"node"`
	Timestamp       time.Time `json:"timestamp"`
	WasCorrect      bool      `json:"wasCorrect"`
	// Inferred marks entries read from the keyed log form, where correctness was not stored.
	Inferred bool `json:"inferred,omitempty"`
}

// LeaderboardSnapshot is the fully ranked projection at a point in time.
type LeaderboardSnapshot struct {
	GeneratedAt    time.Time      `json:"generatedAt"`
	Standings      []TeamStanding `json:"standings"`
	RecentActivity []ActivityItem `json:"recentActivity"`
}
