// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load layers a file and env on top.
// - Progression and social constants live in nested sections so they can be
//   tuned without code changes.
package config

import (
	"fmt"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorePath is the SQLite database file. Empty keeps everything in memory.
	StorePath string `koanf:"store_path"`

	// CatalogPath points at a YAML action catalog. Empty uses the embedded one.
	CatalogPath string `koanf:"catalog_path"`

	// PostQueueSize bounds the in-memory post queue.
	PostQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of post workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many recent post ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// RecomputeSchedule is a cron expression for the profile batch. Empty disables it.
	RecomputeSchedule string `koanf:"recompute_schedule"`

	// MaxTopLimit caps GET /players/top?limit.
	MaxTopLimit int `koanf:"max_top_limit"`

	Progression Progression `koanf:"progression"`
	Social      Social      `koanf:"social"`
}

// Progression holds the level curve and the activity delta constants.
type Progression struct {
	BaseXP                 float64 `koanf:"base_xp"`
	XPExponent             float64 `koanf:"xp_exponent"`
	MaxLevel               int     `koanf:"max_level"`
	BaseCredits            int     `koanf:"base_credits"`
	CreditsPerPost         int     `koanf:"credits_per_post"`
	BaseInfection          float64 `koanf:"base_infection"`
	InfectionReliefPerPost float64 `koanf:"infection_relief_per_post"`
	MaxInfectionRelief     float64 `koanf:"max_infection_relief"`
	WhisperPerTopic        float64 `koanf:"whisper_per_topic"`
	DisplayCap             float64 `koanf:"display_cap"`
	WhisperMin             float64 `koanf:"whisper_min"`
	WhisperMax             float64 `koanf:"whisper_max"`
}

// Social holds ledger, effect and profile constants.
type Social struct {
	ScoreMin            int     `koanf:"score_min"`
	ScoreMax            int     `koanf:"score_max"`
	HistoryLimit        int     `koanf:"history_limit"`
	ProfileHistoryLimit int     `koanf:"profile_history_limit"`
	DescriptionLimit    int     `koanf:"description_limit"`
	ModifierMin         float64 `koanf:"modifier_min"`
	ModifierMax         float64 `koanf:"modifier_max"`
	EffectStep          int     `koanf:"effect_step"`
	TrendThreshold      int     `koanf:"trend_threshold"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		PostQueueSize:     10_000,
		WorkerCount:       runtime.NumCPU() * 2,
		DedupeSize:        100_000,
		RecomputeSchedule: "@daily",
		MaxTopLimit:       100,
		Progression: Progression{
			BaseXP:                 1000,
			XPExponent:             1.8,
			MaxLevel:               100,
			BaseCredits:            5,
			CreditsPerPost:         10,
			BaseInfection:          0.2,
			InfectionReliefPerPost: 0.03,
			MaxInfectionRelief:     0.15,
			WhisperPerTopic:        3,
			DisplayCap:             100,
			WhisperMin:             -100,
			WhisperMax:             500,
		},
		Social: Social{
			ScoreMin:            -100,
			ScoreMax:            100,
			HistoryLimit:        50,
			ProfileHistoryLimit: 20,
			DescriptionLimit:    200,
			ModifierMin:         0.3,
			ModifierMax:         3.0,
			EffectStep:          5,
			TrendThreshold:      10,
		},
	}
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrServerConfig)
	case c.Progression.BaseXP <= 0:
		return fmt.Errorf("%w: progression.base_xp must be positive", ErrProgressionConfig)
	case c.Progression.XPExponent <= 0:
		return fmt.Errorf("%w: progression.xp_exponent must be positive", ErrProgressionConfig)
	case c.Progression.MaxLevel <= 0:
		return fmt.Errorf("%w: progression.max_level must be positive", ErrProgressionConfig)
	case c.Progression.WhisperMin > c.Progression.WhisperMax:
		return fmt.Errorf("%w: progression.whisper_min exceeds whisper_max", ErrProgressionConfig)
	case c.Social.ModifierMin > c.Social.ModifierMax:
		return fmt.Errorf("%w: social.modifier_min exceeds modifier_max", ErrSocialConfig)
	case c.Social.ScoreMin >= c.Social.ScoreMax:
		return fmt.Errorf("%w: social.score_min must be below score_max", ErrSocialConfig)
	case c.Social.EffectStep <= 0:
		return fmt.Errorf("%w: social.effect_step must be positive", ErrSocialConfig)
	case c.Social.HistoryLimit <= 0 || c.Social.ProfileHistoryLimit <= 0:
		return fmt.Errorf("%w: social.history_limit and social.profile_history_limit must be positive", ErrSocialConfig)
	case c.PostQueueSize <= 0 || c.WorkerCount <= 0:
		return fmt.Errorf("%w: queue_size and worker_count must be positive", ErrServerConfig)
	}
	return nil
}
