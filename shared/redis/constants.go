// shared/redis/constants.go
package redis

import "fmt"

const (
	// LeaderboardSnapshotKey holds the JSON encoded leaderboard projection.
	LeaderboardSnapshotKey = "leaderboard:{snapshot}:"
	// ProgressChannel carries every progress event.
	ProgressChannel = "progress:events"
	// TeamProgressChannelPrefix carries the events of one team: progress:{teamID}:
	TeamProgressChannelPrefix = "progress:{%s}:"
)

// TeamProgressChannel returns the pub/sub channel for one team.
func TeamProgressChannel(teamID string) string {
	return fmt.Sprintf(TeamProgressChannelPrefix, teamID)
}
