// Package catalog holds the action and modifier tables that drive social
// scoring. A Catalog is built once and never mutated.
package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/okian/whisper/internal/domain/model"
)

const variableMarker = "variable"

// CategoryInfo is a category key and its display name.
type CategoryInfo struct {
	Key  model.Category `json:"key"`
	Name string         `json:"name"`
}

// Action is one catalog entry. Variable actions take their base from a rule.
type Action struct {
	Key      string         `json:"key"`
	Category model.Category `json:"category"`
	Base     int            `json:"base"`
	Variable bool           `json:"variable"`
}

// VariableRule picks High when any keyword occurs in the context, else Low.
type VariableRule struct {
	Keywords []string `koanf:"keywords" json:"keywords"`
	High     int      `koanf:"high" json:"high"`
	Low      int      `koanf:"low" json:"low"`
}

// Definition is the raw, unvalidated catalog shape as read from YAML.
type Definition struct {
	Categories    []CategoryDef           `koanf:"categories"`
	Actions       map[string]ActionDef    `koanf:"actions"`
	Modifiers     map[string]float64      `koanf:"modifiers"`
	VariableRules map[string]VariableRule `koanf:"variable_rules"`
}

// CategoryDef declares a category.
type CategoryDef struct {
	Key  string `koanf:"key"`
	Name string `koanf:"name"`
}

// ActionDef declares an action. BaseEffect is an integer or "variable".
type ActionDef struct {
	Category   string `koanf:"category"`
	BaseEffect any    `koanf:"base_effect"`
}

// Catalog is the validated, case-folded action table.
type Catalog struct {
	categories []CategoryInfo
	names      map[model.Category]string
	actions    map[string]Action
	modifiers  map[string]float64
	rules      map[string]VariableRule
}

// Fold returns the case-folded form used for every catalog key.
func Fold(s string) string {
	// cases.Caser is stateful, so one per call.
	return cases.Fold().String(strings.TrimSpace(s))
}

// New validates def and builds a Catalog.
func New(def Definition) (*Catalog, error) {
	if len(def.Actions) == 0 {
		return nil, fmt.Errorf("%w: no actions defined", ErrConfigurationMissing)
	}
	if len(def.Categories) == 0 {
		return nil, fmt.Errorf("%w: no categories defined", ErrInvalidCatalog)
	}

	c := &Catalog{
		names:     make(map[model.Category]string, len(def.Categories)),
		actions:   make(map[string]Action, len(def.Actions)),
		modifiers: make(map[string]float64, len(def.Modifiers)),
		rules:     make(map[string]VariableRule, len(def.VariableRules)),
	}

	for _, cd := range def.Categories {
		key := model.Category(Fold(cd.Key))
		if key == "" {
			return nil, fmt.Errorf("%w: category with empty key", ErrInvalidCatalog)
		}
		if _, dup := c.names[key]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidCatalog, key)
		}
		c.names[key] = cd.Name
		c.categories = append(c.categories, CategoryInfo{Key: key, Name: cd.Name})
	}

	for raw, ad := range def.Actions {
		key := Fold(raw)
		if _, dup := c.actions[key]; dup || key == "" {
			return nil, fmt.Errorf("%w: duplicate or empty action %q", ErrInvalidCatalog, raw)
		}
		cat := model.Category(Fold(ad.Category))
		if _, ok := c.names[cat]; !ok {
			return nil, fmt.Errorf("%w: action %q has unknown category %q", ErrInvalidCatalog, raw, ad.Category)
		}
		base, variable, err := parseBase(ad.BaseEffect)
		if err != nil {
			return nil, fmt.Errorf("%w: action %q: %w", ErrInvalidCatalog, raw, err)
		}
		c.actions[key] = Action{Key: key, Category: cat, Base: base, Variable: variable}
	}

	for raw, mult := range def.Modifiers {
		key := Fold(raw)
		if key == "" || mult <= 0 || math.IsNaN(mult) || math.IsInf(mult, 0) {
			return nil, fmt.Errorf("%w: modifier %q must have a positive multiplier", ErrInvalidCatalog, raw)
		}
		if _, dup := c.modifiers[key]; dup {
			return nil, fmt.Errorf("%w: duplicate modifier %q", ErrInvalidCatalog, raw)
		}
		c.modifiers[key] = mult
	}

	for raw, rule := range def.VariableRules {
		key := Fold(raw)
		a, ok := c.actions[key]
		if !ok || !a.Variable {
			return nil, fmt.Errorf("%w: rule %q does not name a variable action", ErrInvalidCatalog, raw)
		}
		kw := make([]string, 0, len(rule.Keywords))
		for _, k := range rule.Keywords {
			if f := Fold(k); f != "" {
				kw = append(kw, f)
			}
		}
		c.rules[key] = VariableRule{Keywords: kw, High: rule.High, Low: rule.Low}
	}

	return c, nil
}

func parseBase(v any) (int, bool, error) {
	switch b := v.(type) {
	case int:
		return b, false, nil
	case int64:
		return int(b), false, nil
	case uint64:
		return int(b), false, nil
	case float64:
		if b != math.Trunc(b) {
			return 0, false, fmt.Errorf("base effect %v is not an integer", b)
		}
		return int(b), false, nil
	case string:
		if strings.EqualFold(strings.TrimSpace(b), variableMarker) {
			return 0, true, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return 0, false, fmt.Errorf("base effect %q is neither an integer nor %q", b, variableMarker)
		}
		return n, false, nil
	case nil:
		return 0, false, fmt.Errorf("base effect missing")
	default:
		return 0, false, fmt.Errorf("unsupported base effect %v", v)
	}
}

// Action looks up an action by keyword, ignoring case.
func (c *Catalog) Action(keyword string) (Action, bool) {
	a, ok := c.actions[Fold(keyword)]
	return a, ok
}

// Modifier looks up a modifier multiplier by keyword, ignoring case.
func (c *Catalog) Modifier(keyword string) (float64, bool) {
	m, ok := c.modifiers[Fold(keyword)]
	return m, ok
}

// Rule returns the keyword rule of a variable action.
func (c *Catalog) Rule(action string) (VariableRule, bool) {
	r, ok := c.rules[Fold(action)]
	return r, ok
}

// Categories returns the categories in catalog order.
func (c *Catalog) Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(c.categories))
	copy(out, c.categories)
	return out
}

// CategoryName returns the display name of a category.
func (c *Catalog) CategoryName(cat model.Category) string {
	return c.names[cat]
}

// Actions returns the number of known actions.
func (c *Catalog) Actions() int { return len(c.actions) }
