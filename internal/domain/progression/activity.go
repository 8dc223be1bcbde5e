package progression

import (
	"time"

	"github.com/okian/whisper/internal/domain/model"
)

// SummarizeActivity counts posts and distinct topics per author for posts
// posted in [from, to). A zero from or to leaves that side open.
func SummarizeActivity(posts []model.Post, from, to time.Time) map[int64]model.ActivitySample {
	topics := make(map[int64]map[string]struct{})
	out := make(map[int64]model.ActivitySample)

	for _, p := range posts {
		if !from.IsZero() && p.PostedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !p.PostedAt.Before(to) {
			continue
		}
		s := out[p.AuthorID]
		s.PostCount++
		if p.TopicID != "" {
			seen, ok := topics[p.AuthorID]
			if !ok {
				seen = make(map[string]struct{})
				topics[p.AuthorID] = seen
			}
			if _, dup := seen[p.TopicID]; !dup {
				seen[p.TopicID] = struct{}{}
				s.UniqueTopicCount++
			}
		}
		out[p.AuthorID] = s
	}
	return out
}
