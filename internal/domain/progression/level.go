// Package progression turns activity counts and status bonuses into new
// player resources, experience and level.
package progression

import "math"

// Level curve defaults.
const (
	DefaultBaseXP     = 1000
	DefaultXPExponent = 1.8
	DefaultMaxLevel   = 100
)

// LevelBonuses are the per-level perks reported with a snapshot.
type LevelBonuses struct {
	BonusCredits        int     `json:"bonusCredits"`
	InfectionResistance float64 `json:"infectionResistance"`
	WhisperBonus        int     `json:"whisperBonus"`
}

// LevelTable maps levels to required experience. The zero value is not
// usable; build one with NewLevelTable.
type LevelTable struct {
	baseXP   float64
	exponent float64
	maxLevel int
}

// NewLevelTable returns a table for the curve floor(baseXP * level^exponent).
// Non-positive arguments fall back to the defaults.
func NewLevelTable(baseXP, exponent float64, maxLevel int) LevelTable {
	t := LevelTable{baseXP: DefaultBaseXP, exponent: DefaultXPExponent, maxLevel: DefaultMaxLevel}
	if baseXP > 0 {
		t.baseXP = baseXP
	}
	if exponent > 0 {
		t.exponent = exponent
	}
	if maxLevel > 0 {
		t.maxLevel = maxLevel
	}
	return t
}

// MaxLevel is the highest reachable level.
func (t LevelTable) MaxLevel() int { return t.maxLevel }

// RequiredXP returns the experience needed to reach level. Levels below 1 need none.
func (t LevelTable) RequiredXP(level int) int {
	if level < 1 {
		return 0
	}
	return int(math.Floor(t.baseXP * math.Pow(float64(level), t.exponent)))
}

// LevelFromXP returns the greatest level in [1, MaxLevel] whose requirement is met.
// Below the first requirement the level is 1.
func (t LevelTable) LevelFromXP(xp int) int {
	lo, hi := 1, t.maxLevel
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t.RequiredXP(mid) <= xp {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// XPToNext returns the experience missing for the next level, 0 at the cap.
func (t LevelTable) XPToNext(level, xp int) int {
	if level >= t.maxLevel {
		return 0
	}
	return max(0, t.RequiredXP(level+1)-xp)
}

// BonusesFor returns the perks granted at level.
func (t LevelTable) BonusesFor(level int) LevelBonuses {
	return LevelBonuses{
		BonusCredits:        level * 5,
		InfectionResistance: math.Min(float64(level)*0.5, 30),
		WhisperBonus:        level * 2,
	}
}
