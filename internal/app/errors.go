package service

import "errors"

// unavailableError marks errors that mean the service is not serving, which
// the HTTP layer answers with 503.
type unavailableError string

func (e unavailableError) Error() string { return string(e) }

// Unavailable reports true for every unavailableError.
func (unavailableError) Unavailable() bool { return true }

// Sentinel kinds for service errors.
var (
	ErrNotStarted error = unavailableError("service not started")
	ErrSchema           = errors.New("load scoring schema")
)
