package scoring

import "errors"

// Sentinel kinds for schema errors.
var (
	ErrInvalidSchema = errors.New("invalid scoring schema")
	ErrLoadSchema    = errors.New("load scoring schema failed")
)
