package progression

import (
	"math"

	"github.com/okian/whisper/internal/domain/model"
)

// Params are the tunable constants of the progression formulas.
type Params struct {
	BaseXP                 float64
	XPExponent             float64
	MaxLevel               int
	BaseCredits            int
	CreditsPerPost         int
	BaseInfection          float64
	InfectionReliefPerPost float64
	MaxInfectionRelief     float64
	WhisperPerTopic        float64
	DisplayCap             float64
	WhisperMin             float64
	WhisperMax             float64
}

// DefaultParams returns the stock progression constants.
func DefaultParams() Params {
	return Params{
		BaseXP:                 DefaultBaseXP,
		XPExponent:             DefaultXPExponent,
		MaxLevel:               DefaultMaxLevel,
		BaseCredits:            5,
		CreditsPerPost:         10,
		BaseInfection:          0.2,
		InfectionReliefPerPost: 0.03,
		MaxInfectionRelief:     0.15,
		WhisperPerTopic:        3,
		DisplayCap:             DefaultDisplayCap,
		WhisperMin:             -100,
		WhisperMax:             500,
	}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithParams replaces the engine constants.
func WithParams(p Params) Option {
	return func(e *Engine) {
		e.params = p
	}
}

// Input is everything one evaluation needs. A nil Bonus means no bonus.
type Input struct {
	Resources             model.PlayerResources
	Activity              model.ActivitySample
	Bonus                 *StatusBonus
	DaysSinceRegistration int
}

// Changes are the activity-derived deltas. Bonus is reported separately and
// is already included in the new resource values.
type Changes struct {
	CreditsDelta   int         `json:"creditsDelta"`
	InfectionDelta float64     `json:"infectionDelta"`
	WhisperDelta   float64     `json:"whisperDelta"`
	Bonus          StatusBonus `json:"bonus"`
}

// LevelSnapshot is the experience state derived from resources.
type LevelSnapshot struct {
	XP       int          `json:"xp"`
	Level    int          `json:"level"`
	XPToNext int          `json:"xpToNext"`
	Bonuses  LevelBonuses `json:"bonuses"`
}

// Result is the outcome of one evaluation. The new resources and the level
// snapshot are flattened into the top level of its JSON form.
type Result struct {
	model.PlayerResources
	InfectionDisplay  float64 `json:"infectionDisplay"`
	WhisperDisplay    float64 `json:"whisperDisplay"`
	ExceededInfection bool    `json:"exceededInfection"`
	ExceededWhisper   bool    `json:"exceededWhisper"`
	LevelSnapshot
	Changes Changes `json:"changes"`
}

// Engine evaluates progression. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	params Params
	table  LevelTable
	caps   Caps
}

// NewEngine creates an engine with default constants unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{params: DefaultParams()}
	for _, opt := range opts {
		opt(e)
	}
	e.table = NewLevelTable(e.params.BaseXP, e.params.XPExponent, e.params.MaxLevel)
	e.caps = NewCaps(e.params.DisplayCap)
	return e
}

// Table exposes the level curve in use.
func (e *Engine) Table() LevelTable { return e.table }

// Caps exposes the display caps in use.
func (e *Engine) Caps() Caps { return e.caps }

// Evaluate applies one window of activity to the given resources.
func (e *Engine) Evaluate(in Input) Result {
	posts := max(0, in.Activity.PostCount)
	topics := max(0, in.Activity.UniqueTopicCount)
	days := max(0, in.DaysSinceRegistration)

	changes := Changes{
		CreditsDelta:   e.params.BaseCredits + posts*e.params.CreditsPerPost,
		InfectionDelta: e.params.BaseInfection - math.Min(e.params.MaxInfectionRelief, float64(posts)*e.params.InfectionReliefPerPost),
		WhisperDelta:   float64(topics) * e.params.WhisperPerTopic,
	}
	if in.Bonus != nil {
		changes.Bonus = *in.Bonus
	}

	next := model.PlayerResources{
		Credits:       max(0, in.Resources.Credits+changes.CreditsDelta+changes.Bonus.Credits),
		InfectionReal: math.Max(0, in.Resources.InfectionReal+changes.InfectionDelta+float64(changes.Bonus.Infection)),
		WhisperReal: clamp(in.Resources.WhisperReal+changes.WhisperDelta+float64(changes.Bonus.Whisper),
			e.params.WhisperMin, e.params.WhisperMax),
	}

	res := Result{
		PlayerResources:   next,
		InfectionDisplay:  e.caps.Display(next.InfectionReal),
		WhisperDisplay:    e.caps.Display(next.WhisperReal),
		ExceededInfection: e.caps.Exceeded(next.InfectionReal),
		ExceededWhisper:   e.caps.Exceeded(next.WhisperReal),
		Changes:           changes,
	}
	res.LevelSnapshot = e.Snapshot(e.XP(next, days, posts))
	return res
}

// XP computes experience from resources. Infection and whisper enter through
// their display values, credits through the real value.
func (e *Engine) XP(r model.PlayerResources, days, posts int) int {
	inf := e.caps.Display(r.InfectionReal)
	wh := e.caps.Display(r.WhisperReal)

	xp := 0.3*float64(r.Credits) +
		0.2*(inf*10*(1+inf/100)) +
		0.4*(wh*25*(1+math.Abs(wh)/100)) +
		0.1*(float64(days)*50*(1+float64(posts)*0.1))

	return max(0, int(xp))
}

// Snapshot derives level data for xp.
func (e *Engine) Snapshot(xp int) LevelSnapshot {
	level := e.table.LevelFromXP(xp)
	return LevelSnapshot{
		XP:       xp,
		Level:    level,
		XPToNext: e.table.XPToNext(level, xp),
		Bonuses:  e.table.BonusesFor(level),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
