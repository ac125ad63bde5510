package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks a setting that loaded but cannot be used.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a file or environment source that failed to load.
	ErrLoadConfig = errors.New("load config failed")
)

// FieldError names the koanf key of a rejected setting.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidConfig }

func invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
