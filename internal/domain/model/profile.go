package model

import "time"

// Trend describes the direction of a profile score.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
)

// ProfileIcons is the visual summary of a profile.
type ProfileIcons struct {
	Main     string `json:"main"`
	MainName string `json:"mainName"`
	Sub      string `json:"sub"`
	SubName  string `json:"subName"`
	Display  string `json:"display"`
	FullName string `json:"fullName"`
}

// SocialProfile is derived from every record touching a participant.
type SocialProfile struct {
	ParticipantID    int64            `json:"participantId"`
	TotalScore       int              `json:"totalScore"`
	CategoryScores   map[Category]int `json:"categoryScores"`
	CategoryCounts   map[Category]int `json:"categoryCounts"`
	Percentages      map[Category]int `json:"percentages"`
	DominantCategory Category         `json:"dominantCategory"`
	InteractionCount int              `json:"interactionCount"`
	Icons            ProfileIcons     `json:"icons"`
	Description      string           `json:"description"`
	Trend            Trend            `json:"trend"`
	CalculatedAt     time.Time        `json:"calculatedAt"`
}

// ProfileSnapshot is one entry of a participant's profile history.
type ProfileSnapshot struct {
	Score            int       `json:"score"`
	DominantCategory Category  `json:"dominantCategory"`
	TakenAt          time.Time `json:"takenAt"`
}

// Snapshot captures the fields trend detection needs.
func (p SocialProfile) Snapshot() ProfileSnapshot {
	return ProfileSnapshot{Score: p.TotalScore, DominantCategory: p.DominantCategory, TakenAt: p.CalculatedAt}
}
