package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("scout not found")
	ErrNoReport     = errors.New("no rating report published yet")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrNoTeamData   = errors.New("no observations for team")
)
