package spr

import "errors"

// ErrInvalidOptions is returned when solver options cannot produce a solve.
var ErrInvalidOptions = errors.New("invalid solver options")
