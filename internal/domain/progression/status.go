package progression

import (
	"regexp"
	"strconv"
)

// StatusBonus holds the additive bonuses found in a status line.
type StatusBonus struct {
	Credits   int `json:"credits"`
	Infection int `json:"infection"`
	Whisper   int `json:"whisper"`
}

// IsZero reports whether no bonus was found.
func (b StatusBonus) IsZero() bool { return b == StatusBonus{} }

type statusMarker struct {
	primary *regexp.Regexp
	alt     []*regexp.Regexp
}

//nolint:gochecknoglobals // compiled once
var (
	creditsMarker = statusMarker{
		primary: regexp.MustCompile(`(?i)К:\s*([+-]?\d+)`),
		alt: []*regexp.Regexp{
			regexp.MustCompile(`(?i)credits?:\s*([+-]?\d+)`),
			regexp.MustCompile(`(?i)кредит\pL*:\s*([+-]?\d+)`),
		},
	}
	infectionMarker = statusMarker{
		primary: regexp.MustCompile(`(?i)З:\s*([+-]?\d+)%?`),
		alt: []*regexp.Regexp{
			regexp.MustCompile(`(?i)заражен\pL*:\s*([+-]?\d+)%?`),
			regexp.MustCompile(`(?i)inf(?:ection)?:\s*([+-]?\d+)%?`),
		},
	}
	whisperMarker = statusMarker{
		primary: regexp.MustCompile(`(?i)Ш:\s*([+-]?\d+)%?`),
		alt: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ш[её]пот\pL*:\s*([+-]?\d+)%?`),
			regexp.MustCompile(`(?i)whisper:\s*([+-]?\d+)%?`),
		},
	}
)

// ParseStatus extracts bonuses from a free-form status line such as
// "К:+200 З:+13% Ш:+312%". Missing or garbled markers yield 0.
func ParseStatus(text string) StatusBonus {
	return StatusBonus{
		Credits:   creditsMarker.find(text),
		Infection: infectionMarker.find(text),
		Whisper:   whisperMarker.find(text),
	}
}

func (m statusMarker) find(text string) int {
	if v, ok := firstInt(m.primary, text); ok {
		return v
	}
	for _, re := range m.alt {
		if v, ok := firstInt(re, text); ok {
			return v
		}
	}
	return 0
}

func firstInt(re *regexp.Regexp, text string) (int, bool) {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	v, err := strconv.Atoi(match[1])
	if err != nil {
		// out of range
		return 0, false
	}
	return v, true
}
