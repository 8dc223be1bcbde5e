package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/whisper/internal/adapters/repository"
	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/pkg/logger"
	"github.com/okian/whisper/pkg/metrics"
)

// Relationship returns the directional entry from source to target.
func (s *Service) Relationship(ctx context.Context, source, target int64) (model.RelationshipEntry, error) {
	if err := s.ready(); err != nil {
		return model.RelationshipEntry{}, err
	}
	key := model.PairKey{SourceID: source, TargetID: target}
	entry, found, err := s.store.LoadRelationship(ctx, key)
	if err != nil {
		return model.RelationshipEntry{}, fmt.Errorf("relationship %s: %w", key, err)
	}
	if !found {
		return model.RelationshipEntry{}, fmt.Errorf("relationship %s: %w", key, repository.ErrNotFound)
	}
	return entry, nil
}

// Profile returns the stored social profile. A registered player that was
// never profiled gets the default profile.
func (s *Service) Profile(ctx context.Context, id int64) (model.SocialProfile, error) {
	if err := s.ready(); err != nil {
		return model.SocialProfile{}, err
	}
	p, err := s.store.Profile(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.SocialProfile{}, fmt.Errorf("profile %d: %w", id, err)
	}
	if _, err := s.store.Player(ctx, id); err != nil {
		return model.SocialProfile{}, fmt.Errorf("profile %d: %w", id, err)
	}
	return s.aggregator.Default(id, s.clock()), nil
}

// ProfileHistory returns the participant's recent profile snapshots, oldest
// first. A registered player that was never profiled has an empty history.
func (s *Service) ProfileHistory(ctx context.Context, id int64) ([]model.ProfileSnapshot, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	hist, err := s.store.ProfileHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("profile history %d: %w", id, err)
	}
	if len(hist) > 0 {
		return hist, nil
	}
	if _, err := s.store.Player(ctx, id); err != nil {
		return nil, fmt.Errorf("profile history %d: %w", id, err)
	}
	return []model.ProfileSnapshot{}, nil
}

// RecomputeProfile rebuilds a participant's profile from every record that
// involves it and appends a snapshot to its history.
func (s *Service) RecomputeProfile(ctx context.Context, id int64) (model.SocialProfile, error) {
	if err := s.ready(); err != nil {
		return model.SocialProfile{}, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	records, err := s.store.InteractionsFor(ctx, id)
	if err != nil {
		return model.SocialProfile{}, fmt.Errorf("interactions of %d: %w", id, err)
	}
	prior, err := s.store.ProfileHistory(ctx, id)
	if err != nil {
		return model.SocialProfile{}, fmt.Errorf("profile history of %d: %w", id, err)
	}

	profile := s.aggregator.Aggregate(id, records, prior, s.clock())
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return model.SocialProfile{}, fmt.Errorf("save profile %d: %w", id, err)
	}
	if err := s.store.AppendProfileSnapshot(ctx, id, profile.Snapshot(), s.cfg.Social.ProfileHistoryLimit); err != nil {
		return model.SocialProfile{}, fmt.Errorf("append snapshot %d: %w", id, err)
	}
	metrics.RecordProfileRecompute()
	return profile, nil
}

// RecomputeAllProfiles recomputes every registered player's profile. One
// failure does not stop the batch.
func (s *Service) RecomputeAllProfiles(ctx context.Context) BatchReport {
	report := newBatchReport("recompute", 0)
	if err := s.ready(); err != nil {
		return *report
	}
	players, err := s.store.Players(ctx)
	if err != nil {
		s.logger.Error(ctx, "listing players for recompute failed", logger.Error(err))
		return *report
	}

	for _, p := range players {
		if err := ctx.Err(); err != nil {
			report.add(p.ID, err)
			continue
		}
		_, err := s.RecomputeProfile(ctx, p.ID)
		if err != nil {
			s.logger.Warn(ctx, "profile recompute failed", logger.Int64("player_id", p.ID), logger.Error(err))
		}
		report.add(p.ID, err)
	}
	s.logger.Info(ctx, "profile recompute finished",
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed),
	)
	return *report
}
