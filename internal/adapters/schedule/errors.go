package schedule

import "errors"

// Sentinel kinds for scheduler errors.
var (
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrUnknownJob      = errors.New("unknown job")
	ErrDuplicateJob    = errors.New("job already registered")
)
