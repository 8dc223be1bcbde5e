package social

import (
	"math"
	"strings"

	"github.com/okian/whisper/internal/domain/catalog"
	"github.com/okian/whisper/internal/domain/model"
)

// Effect defaults.
const (
	DefaultModifierMin = 0.3
	DefaultModifierMax = 3.0
	DefaultEffectStep  = 5
)

// EffectOption applies a configuration option to the EffectCalculator.
type EffectOption func(*EffectCalculator)

// WithModifierBounds sets the clamp applied to the modifier product.
func WithModifierBounds(lo, hi float64) EffectOption {
	return func(c *EffectCalculator) {
		if lo > 0 && hi >= lo {
			c.modMin, c.modMax = lo, hi
		}
	}
}

// WithEffectStep sets the multiple effects are rounded to.
func WithEffectStep(step int) EffectOption {
	return func(c *EffectCalculator) {
		if step > 0 {
			c.step = step
		}
	}
}

// EffectCalculator turns a validated tag into a signed effect.
type EffectCalculator struct {
	catalog *catalog.Catalog
	modMin  float64
	modMax  float64
	step    int
}

// NewEffectCalculator creates a calculator bound to c.
func NewEffectCalculator(c *catalog.Catalog, opts ...EffectOption) *EffectCalculator {
	calc := &EffectCalculator{
		catalog: c,
		modMin:  DefaultModifierMin,
		modMax:  DefaultModifierMax,
		step:    DefaultEffectStep,
	}
	for _, opt := range opts {
		opt(calc)
	}
	return calc
}

// Effect computes round_to_step(round(base * clamp(Π modifiers))).
// Both roundings are half away from zero. Unknown actions score 0.
func (c *EffectCalculator) Effect(tag model.InteractionTag, context string) int {
	base := c.Base(tag.Action, context)

	total := 1.0
	for _, m := range tag.Modifiers {
		if mult, ok := c.catalog.Modifier(m); ok {
			total *= mult
		}
	}
	total = math.Max(c.modMin, math.Min(c.modMax, total))

	raw := int(math.Round(float64(base) * total))
	return RoundToStep(raw, c.step)
}

// Base returns the base effect of action. Variable actions score High when
// any rule keyword occurs in context, else Low; without a rule they score 0.
func (c *EffectCalculator) Base(action, context string) int {
	a, ok := c.catalog.Action(action)
	if !ok {
		return 0
	}
	if !a.Variable {
		return a.Base
	}

	rule, ok := c.catalog.Rule(a.Key)
	if !ok {
		return 0
	}
	folded := catalog.Fold(context)
	for _, kw := range rule.Keywords {
		if strings.Contains(folded, kw) {
			return rule.High
		}
	}
	return rule.Low
}

// RoundToStep rounds v to the nearest multiple of step, half away from zero.
func RoundToStep(v, step int) int {
	if step <= 0 {
		return v
	}
	return int(math.Round(float64(v)/float64(step))) * step
}
