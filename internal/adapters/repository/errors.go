package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrInvalidName  = errors.New("player name must not be empty")
	ErrNameTaken    = errors.New("player name already taken")

	// ErrDuplicateInteraction reports a record whose post, source, target
	// and action were already stored. Records without a post id never
	// collide.
	ErrDuplicateInteraction = errors.New("interaction already recorded")
)
