package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/whisper/internal/adapters/repository"
	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/internal/domain/social"
	"github.com/okian/whisper/pkg/logger"
	"github.com/okian/whisper/pkg/metrics"
)

// Reasons a parsed tag produced no record.
const (
	DropSelfTarget         = "self_target"
	DropUnknownParticipant = "unknown_participant"
)

// SubmitStatus is the outcome of SubmitPost.
type SubmitStatus string

const (
	SubmitAccepted  SubmitStatus = "accepted"
	SubmitDuplicate SubmitStatus = "duplicate"
)

// DroppedTag is a tag that parsed but did not become a record.
type DroppedTag struct {
	Tag    model.InteractionTag `json:"tag"`
	Reason string               `json:"reason"`
}

// PostOutcome is what processing a post produced.
type PostOutcome struct {
	PostID  string                    `json:"postId"`
	Records []model.InteractionRecord `json:"records"`
	Dropped []DroppedTag              `json:"dropped,omitempty"`
	Entries []model.RelationshipEntry `json:"entries"`
}

// TagPreview is a parsed tag with the effect it would have.
type TagPreview struct {
	Tag          model.InteractionTag `json:"tag"`
	Category     model.Category       `json:"category"`
	CategoryName string               `json:"categoryName"`
	Effect       int                  `json:"effect"`
}

func validatePost(p model.Post) error { //nolint:gocritic // posts travel by value
	switch {
	case strings.TrimSpace(p.PostID) == "":
		return fmt.Errorf("%w: missing post id", ErrInvalidPost)
	case p.AuthorID <= 0:
		return fmt.Errorf("%w: author id must be positive", ErrInvalidPost)
	}
	return nil
}

// SubmitPost deduplicates a post by id and queues it for the workers.
// Queue rejections are returned as queue.ErrFull or queue.ErrClosed and the
// id is forgotten so the post can be resubmitted.
func (s *Service) SubmitPost(ctx context.Context, p model.Post) (SubmitStatus, error) { //nolint:gocritic // posts travel by value
	if err := s.ready(); err != nil {
		return "", err
	}
	if err := validatePost(p); err != nil {
		return "", err
	}

	if s.deduper.SeenAndRecord(ctx, p.PostID) {
		metrics.RecordPostDuplicate()
		s.logger.Debug(ctx, "duplicate post skipped", logger.String("post_id", p.PostID))
		return SubmitDuplicate, nil
	}
	if err := s.postQueue.Enqueue(ctx, p); err != nil {
		s.deduper.Unrecord(ctx, p.PostID)
		return "", err
	}
	return SubmitAccepted, nil
}

// ProcessPost runs the social pipeline for one post synchronously: tags are
// resolved to participants, records are stored and folded into the author's
// relationships, and the profiles of everyone involved are recomputed.
func (s *Service) ProcessPost(ctx context.Context, p model.Post) (PostOutcome, error) { //nolint:gocritic // posts travel by value
	if err := s.ready(); err != nil {
		return PostOutcome{}, err
	}
	if err := validatePost(p); err != nil {
		return PostOutcome{}, err
	}

	start := time.Now()
	defer func() {
		metrics.RecordPostLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if _, err := s.store.Player(ctx, p.AuthorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return PostOutcome{}, fmt.Errorf("%w: author %d", ErrUnknownParticipant, p.AuthorID)
		}
		return PostOutcome{}, fmt.Errorf("load author %d: %w", p.AuthorID, err)
	}

	out := PostOutcome{PostID: p.PostID}
	now := s.clock()
	postedAt := p.PostedAt
	if postedAt.IsZero() {
		postedAt = now
	}
	description := social.Describe(p.Content, s.cfg.Social.DescriptionLimit)

	var targets []int64
	for _, tag := range s.parser.Extract(p.Content) {
		target, err := s.store.PlayerByName(ctx, tag.TargetName)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			s.drop(ctx, &out, tag, DropUnknownParticipant, p)
			continue
		case err != nil:
			return out, fmt.Errorf("resolve %q: %w", tag.TargetName, err)
		case target.ID == p.AuthorID:
			s.drop(ctx, &out, tag, DropSelfTarget, p)
			continue
		}

		act, _ := s.catalog.Action(tag.Action)
		out.Records = append(out.Records, model.InteractionRecord{
			ID:          s.newID(),
			PostID:      p.PostID,
			SourceID:    p.AuthorID,
			TargetID:    target.ID,
			Action:      act.Key,
			Category:    act.Category,
			Modifiers:   tag.Modifiers,
			Effect:      s.effects.Effect(tag, p.Content),
			Description: description,
			PostedAt:    postedAt,
			ProcessedAt: now,
		})
		if !slices.Contains(targets, target.ID) {
			targets = append(targets, target.ID)
		}
	}

	if len(out.Records) > 0 {
		if err := s.foldRecords(ctx, p.AuthorID, &out); err != nil {
			return out, err
		}
	}
	metrics.RecordPostProcessed()

	// Profiles are recomputed one participant at a time so no two
	// participant locks are ever held together.
	if len(out.Records) > 0 {
		for _, id := range append([]int64{p.AuthorID}, targets...) {
			if _, err := s.RecomputeProfile(ctx, id); err != nil {
				return out, fmt.Errorf("recompute profile %d: %w", id, err)
			}
		}
	}

	s.logger.Debug(ctx, "post processed",
		logger.String("post_id", p.PostID),
		logger.Int("records", len(out.Records)),
		logger.Int("dropped", len(out.Dropped)),
	)
	return out, nil
}

// foldRecords stores the records and folds them into the author's entries
// under the author's lock; every record has the author as source. Records
// the store already holds for this post are neither kept nor folded again.
func (s *Service) foldRecords(ctx context.Context, author int64, out *PostOutcome) error {
	unlock := s.locks.Lock(author)
	defer unlock()

	stored := out.Records[:0]
	defer func() { out.Records = stored }()
	for _, rec := range out.Records {
		err := s.store.SaveInteraction(ctx, rec)
		if errors.Is(err, repository.ErrDuplicateInteraction) {
			s.logger.Debug(ctx, "interaction already recorded",
				logger.String("post_id", rec.PostID),
				logger.Int64("target", rec.TargetID),
				logger.String("action", rec.Action),
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("save interaction %s: %w", rec.ID, err)
		}
		stored = append(stored, rec)
		entry, err := s.ledger.Fold(ctx, rec)
		if err != nil {
			return fmt.Errorf("fold interaction %s: %w", rec.ID, err)
		}
		metrics.RecordTagResolved(rec.Effect)
		out.Entries = append(out.Entries, entry)
	}
	return nil
}

func (s *Service) drop(ctx context.Context, out *PostOutcome, tag model.InteractionTag, reason string, p model.Post) { //nolint:gocritic // posts travel by value
	out.Dropped = append(out.Dropped, DroppedTag{Tag: tag, Reason: reason})
	metrics.RecordTagDropped(reason)
	if reason == DropUnknownParticipant {
		s.logger.Warn(ctx, "tag dropped",
			logger.String("post_id", p.PostID),
			logger.String("target", tag.TargetName),
			logger.Error(ErrUnknownParticipant),
		)
	}
}

// PreviewTags parses text and computes effects without touching the store.
// It works before Start when a catalog was injected.
func (s *Service) PreviewTags(text string) ([]TagPreview, error) {
	s.mu.Lock()
	if s.catalog == nil {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	if s.parser == nil || s.effects == nil {
		s.buildTagging()
	}
	cat, parser, effects := s.catalog, s.parser, s.effects
	s.mu.Unlock()

	tags := parser.Extract(text)
	out := make([]TagPreview, len(tags))
	for i, tag := range tags {
		act, _ := cat.Action(tag.Action)
		out[i] = TagPreview{
			Tag:          tag,
			Category:     act.Category,
			CategoryName: cat.CategoryName(act.Category),
			Effect:       effects.Effect(tag, text),
		}
	}
	return out, nil
}
