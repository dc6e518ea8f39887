// hunt/store/errors.go
package store

import "errors"

var (
	ErrTeamNotFound      = errors.New("team not found")
	ErrDuplicateIdentity = errors.New("duplicate fingerprint")
	ErrDuplicateGroupID  = errors.New("duplicate group id")
	ErrCacheMiss         = errors.New("leaderboard snapshot not cached")
)
