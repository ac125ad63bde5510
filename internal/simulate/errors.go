package simulate

import "errors"

// Sentinel kinds for simulator errors.
var (
	ErrTooFewScouts  = errors.New("need at least one scout per alliance position")
	ErrInvalidConfig = errors.New("invalid simulator config")
	ErrVerify        = errors.New("leaderboard does not match scout biases")
	ErrNotIngested   = errors.New("observations were not ingested in time")
)

// StatusError is a non-2xx response from the rating service.
type StatusError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return "rating service returned " + httpStatus(e.Status)
	}
	return "rating service returned " + httpStatus(e.Status) + ": " + e.Code + ": " + e.Message
}
