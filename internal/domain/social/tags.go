// Package social parses interaction tags out of posts, scores them and folds
// the results into relationship ledgers and social profiles.
package social

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/okian/whisper/internal/domain/catalog"
	"github.com/okian/whisper/internal/domain/model"
)

//nolint:gochecknoglobals // compiled once
var tagPattern = regexp.MustCompile(`#([\p{L}\p{M}\p{N}_]+)`)

// TagParser extracts #Name_action[_modifier...] tokens validated against a catalog.
type TagParser struct {
	catalog *catalog.Catalog
}

// NewTagParser creates a parser bound to c.
func NewTagParser(c *catalog.Catalog) *TagParser {
	return &TagParser{catalog: c}
}

// Extract returns every valid tag in text, in order of appearance. Tags with
// an unknown action are skipped; unknown or repeated modifiers are dropped.
func (p *TagParser) Extract(text string) []model.InteractionTag {
	text = norm.NFC.String(text)

	var tags []model.InteractionTag
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		if tag, ok := p.parse(m[1]); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (p *TagParser) parse(body string) (model.InteractionTag, bool) {
	parts := strings.Split(body, "_")
	if len(parts) < 2 || parts[0] == "" {
		return model.InteractionTag{}, false
	}

	action, ok := p.catalog.Action(parts[1])
	if !ok {
		return model.InteractionTag{}, false
	}

	tag := model.InteractionTag{TargetName: parts[0], Action: action.Key}
	seen := make(map[string]struct{}, len(parts)-2)
	for _, raw := range parts[2:] {
		mod := catalog.Fold(raw)
		if _, known := p.catalog.Modifier(mod); !known {
			continue
		}
		if _, dup := seen[mod]; dup {
			continue
		}
		seen[mod] = struct{}{}
		tag.Modifiers = append(tag.Modifiers, mod)
	}
	return tag, true
}

// Describe builds a record description: of the first three lines, those not
// starting with '#', trimmed and joined by spaces, cut to limit runes.
func Describe(content string, limit int) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 3 {
		lines = lines[:3]
	}

	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "#") {
			continue
		}
		kept = append(kept, l)
	}

	desc := strings.Join(kept, " ")
	if limit > 0 {
		if r := []rune(desc); len(r) > limit {
			desc = string(r[:limit])
		}
	}
	return desc
}
