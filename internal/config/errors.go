package config

import "errors"

// Validation errors name the whisper.yaml block at fault.
var (
	ErrConfigSource      = errors.New("whisper config source unreadable")
	ErrServerConfig      = errors.New("invalid server settings")
	ErrProgressionConfig = errors.New("invalid progression settings")
	ErrSocialConfig      = errors.New("invalid social settings")
)
