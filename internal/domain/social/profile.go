package social

import (
	"math"
	"strings"
	"time"

	"github.com/okian/whisper/internal/domain/catalog"
	"github.com/okian/whisper/internal/domain/model"
)

// Profile defaults.
const (
	DefaultTrendThreshold      = 10
	DefaultProfileHistoryLimit = 20

	defaultDescription = "Новый в Хёльвании. Его социальный профиль ещё формируется."
)

type icon struct {
	glyph string
	name  string
}

type scoreBracket struct {
	upTo int
	icon
}

//nolint:gochecknoglobals // fixed lookup tables
var (
	scoreBrackets = []scoreBracket{
		{-60, icon{"🌑", "Новолуние"}},
		{-30, icon{"🌒", "Убывающий серп"}},
		{-10, icon{"🌓", "Лунный серп"}},
		{9, icon{"🌔", "Полумесяц"}},
		{29, icon{"🌕", "Полнолуние"}},
		{59, icon{"🌤️", "Солнечный свет"}},
		{100, icon{"☀️", "Яркое солнце"}},
	}
	neutralIcon = scoreBrackets[3].icon

	categoryIcons = map[model.Category]icon{
		model.CategoryBetrayal:  {"🗡️", "Кинжал в спине"},
		model.CategoryHostility: {"⚔️", "Скрещенные мечи"},
		model.CategoryContract:  {"🤝", "Рукопожатие"},
		model.CategoryAlliance:  {"🕊️", "Голубь мира"},
		model.CategoryPassion:   {"🔥", "Пламя сердца"},
	}

	categoryDescriptions = map[model.Category]string{
		model.CategoryBetrayal:  "Опасный предатель. Известен вероломными поступками.",
		model.CategoryHostility: "Конфликтная личность. Часто вступает в противостояния.",
		model.CategoryContract:  "Расчётливый переговорщик. Всё взвешивает.",
		model.CategoryAlliance:  "Надёжный союзник. Всегда придёт на помощь.",
		model.CategoryPassion:   "Эмоциональная натура. Живёт чувствами, а не расчётом.",
	}

	intensityBands = []struct {
		upTo   int
		prefix string
	}{
		{-50, "Абсолютно "},
		{-20, "Явно "},
		{-5, "Слегка "},
		{5, ""},
		{20, "Достаточно "},
		{50, "Очень "},
		{math.MaxInt, "Невероятно "},
	}
)

// AggregatorOption applies a configuration option to the Aggregator.
type AggregatorOption func(*Aggregator)

// WithTrendThreshold sets the score change needed to leave "stable".
func WithTrendThreshold(threshold int) AggregatorOption {
	return func(a *Aggregator) {
		if threshold >= 0 {
			a.trendThreshold = threshold
		}
	}
}

// Aggregator derives social profiles from interaction records.
type Aggregator struct {
	catalog        *catalog.Catalog
	trendThreshold int
}

// NewAggregator creates an aggregator using c for category order and lookup.
func NewAggregator(c *catalog.Catalog, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{catalog: c, trendThreshold: DefaultTrendThreshold}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate summarizes every record involving participant. prior is the
// participant's snapshot history before this run, oldest first. Records not
// involving participant are ignored. The result depends only on its inputs.
func (a *Aggregator) Aggregate(participant int64, records []model.InteractionRecord, prior []model.ProfileSnapshot, now time.Time) model.SocialProfile {
	cats := a.catalog.Categories()
	p := model.SocialProfile{
		ParticipantID:  participant,
		CategoryScores: make(map[model.Category]int, len(cats)),
		CategoryCounts: make(map[model.Category]int, len(cats)),
		Percentages:    make(map[model.Category]int, len(cats)),
		CalculatedAt:   now,
	}
	for _, c := range cats {
		p.CategoryScores[c.Key] = 0
		p.CategoryCounts[c.Key] = 0
		p.Percentages[c.Key] = 0
	}

	for _, r := range records {
		if !r.Involves(participant) {
			continue
		}
		p.InteractionCount++
		p.TotalScore += r.Effect

		cat := a.categoryOf(r)
		if _, known := p.CategoryScores[cat]; !known {
			continue
		}
		p.CategoryScores[cat] += abs(r.Effect)
		p.CategoryCounts[cat]++
	}

	if p.InteractionCount == 0 {
		return a.Default(participant, now)
	}

	sum := 0
	best := -1
	for _, c := range cats {
		s := p.CategoryScores[c.Key]
		sum += s
		if s > best {
			best = s
			p.DominantCategory = c.Key
		}
	}
	if sum > 0 {
		for _, c := range cats {
			p.Percentages[c.Key] = int(math.Round(100 * float64(p.CategoryScores[c.Key]) / float64(sum)))
		}
	}

	p.Icons = profileIcons(p.TotalScore, p.DominantCategory)
	p.Description = describe(p.TotalScore, p.DominantCategory)
	p.Trend = a.trend(p.TotalScore, prior)
	return p
}

// Default is the profile of a participant without interactions.
func (a *Aggregator) Default(participant int64, now time.Time) model.SocialProfile {
	cats := a.catalog.Categories()
	p := model.SocialProfile{
		ParticipantID:    participant,
		CategoryScores:   make(map[model.Category]int, len(cats)),
		CategoryCounts:   make(map[model.Category]int, len(cats)),
		Percentages:      make(map[model.Category]int, len(cats)),
		DominantCategory: model.CategoryContract,
		Description:      defaultDescription,
		Trend:            model.TrendStable,
		CalculatedAt:     now,
	}
	for _, c := range cats {
		p.CategoryScores[c.Key] = 0
		p.CategoryCounts[c.Key] = 0
		p.Percentages[c.Key] = 0
	}
	p.Icons = composeIcons(neutralIcon, icon{"•", "Неизвестно"})
	return p
}

func (a *Aggregator) categoryOf(r model.InteractionRecord) model.Category {
	if r.Category != "" {
		return r.Category
	}
	if act, ok := a.catalog.Action(r.Action); ok {
		return act.Category
	}
	return ""
}

// trend compares against the second-to-last prior snapshot; the last one
// is the profile about to be replaced.
func (a *Aggregator) trend(score int, prior []model.ProfileSnapshot) model.Trend {
	if len(prior) < 2 {
		return model.TrendStable
	}
	prev := prior[len(prior)-2].Score
	switch {
	case score-prev > a.trendThreshold:
		return model.TrendImproving
	case score-prev < -a.trendThreshold:
		return model.TrendWorsening
	default:
		return model.TrendStable
	}
}

// AppendSnapshot appends s to history keeping at most limit entries.
func AppendSnapshot(history []model.ProfileSnapshot, s model.ProfileSnapshot, limit int) []model.ProfileSnapshot {
	out := append(append(make([]model.ProfileSnapshot, 0, len(history)+1), history...), s)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func profileIcons(score int, dominant model.Category) model.ProfileIcons {
	main := neutralIcon
	clamped := min(DefaultScoreMax, max(DefaultScoreMin, score))
	for _, b := range scoreBrackets {
		if clamped <= b.upTo {
			main = b.icon
			break
		}
	}

	sub, ok := categoryIcons[dominant]
	if !ok {
		sub = icon{"•", ""}
	}
	return composeIcons(main, sub)
}

func composeIcons(main, sub icon) model.ProfileIcons {
	return model.ProfileIcons{
		Main:     main.glyph,
		MainName: main.name,
		Sub:      sub.glyph,
		SubName:  sub.name,
		Display:  main.glyph + sub.glyph,
		FullName: main.name + " • " + sub.name,
	}
}

func describe(score int, dominant model.Category) string {
	base, ok := categoryDescriptions[dominant]
	if !ok {
		base = "Загадочная личность."
	}

	prefix := ""
	for _, band := range intensityBands {
		if score <= band.upTo {
			prefix = band.prefix
			break
		}
	}
	// The template is always lowercased, also in the neutral band.
	return prefix + strings.ToLower(base)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
