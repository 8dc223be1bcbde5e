package model

import "time"

// PlayerResources are the persisted resource values of one participant.
// Display values are derived and never stored.
type PlayerResources struct {
	Credits       int     `json:"credits"`
	InfectionReal float64 `json:"infectionReal"`
	WhisperReal   float64 `json:"whisperReal"`
}

// Player is a registered participant together with its latest evaluation.
type Player struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	RegisteredAt time.Time       `json:"registeredAt"`
	Resources    PlayerResources `json:"resources"`
	XP           int             `json:"xp"`
	Level        int             `json:"level"`
	EvaluatedAt  time.Time       `json:"evaluatedAt,omitzero"`
}

// DaysSinceRegistration returns whole days between registration and now, never negative.
func (p Player) DaysSinceRegistration(now time.Time) int {
	if p.RegisteredAt.IsZero() || now.Before(p.RegisteredAt) {
		return 0
	}
	return int(now.Sub(p.RegisteredAt).Hours() / 24)
}
