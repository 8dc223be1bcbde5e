package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrInvalidPost        = errors.New("invalid post")
	ErrInvalidPlayer      = errors.New("invalid player")
)
