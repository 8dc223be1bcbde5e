package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/whisper/internal/adapters/repository"
	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/internal/domain/progression"
	"github.com/okian/whisper/pkg/logger"
	"github.com/okian/whisper/pkg/metrics"
)

// PlayerView is a player with its derived display values and XP rank.
type PlayerView struct {
	model.Player
	InfectionDisplay  float64                  `json:"infectionDisplay"`
	WhisperDisplay    float64                  `json:"whisperDisplay"`
	ExceededInfection bool                     `json:"exceededInfection"`
	ExceededWhisper   bool                     `json:"exceededWhisper"`
	XPToNext          int                      `json:"xpToNext"`
	Bonuses           progression.LevelBonuses `json:"bonuses"`
	Rank              int                      `json:"rank,omitempty"`
}

// EvaluationRequest is one participant's input for an evaluation cycle.
type EvaluationRequest struct {
	PlayerID   int64                `json:"playerId"`
	Activity   model.ActivitySample `json:"activity"`
	StatusText string               `json:"statusText,omitempty"`
}

// RegisterPlayer creates a player or renames an existing one. Existing
// resources and XP are kept; a new player starts from p.Resources.
func (s *Service) RegisterPlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if err := s.ready(); err != nil {
		return model.Player{}, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.ID <= 0 || p.Name == "" {
		return model.Player{}, fmt.Errorf("%w: id must be positive and name non-empty", ErrInvalidPlayer)
	}

	unlock := s.locks.Lock(p.ID)
	defer unlock()

	now := s.clock()
	existing, err := s.store.Player(ctx, p.ID)
	switch {
	case err == nil:
		existing.Name = p.Name
		if !p.RegisteredAt.IsZero() {
			existing.RegisteredAt = p.RegisteredAt
		}
		p = existing
	case errors.Is(err, repository.ErrNotFound):
		if p.RegisteredAt.IsZero() {
			p.RegisteredAt = now
		}
		p.Resources.Credits = max(0, p.Resources.Credits)
		p.Resources.InfectionReal = max(0, p.Resources.InfectionReal)
		snap := s.engine.Snapshot(s.engine.XP(p.Resources, p.DaysSinceRegistration(now), 0))
		p.XP, p.Level = snap.XP, snap.Level
	default:
		return model.Player{}, fmt.Errorf("load player %d: %w", p.ID, err)
	}

	if err := s.store.UpsertPlayer(ctx, p); err != nil {
		return model.Player{}, fmt.Errorf("save player %d: %w", p.ID, err)
	}
	if n, err := s.store.CountPlayers(ctx); err == nil {
		metrics.UpdateTotalPlayers(n)
	}
	s.logger.Debug(ctx, "player registered", logger.Int64("player_id", p.ID), logger.String("name", p.Name))
	return p, nil
}

// Player returns a player with display values and rank.
func (s *Service) Player(ctx context.Context, id int64) (PlayerView, error) {
	if err := s.ready(); err != nil {
		return PlayerView{}, err
	}
	p, err := s.store.Player(ctx, id)
	if err != nil {
		return PlayerView{}, fmt.Errorf("player %d: %w", id, err)
	}
	v := s.view(p)
	if rank, err := s.store.PlayerRank(ctx, id); err == nil {
		v.Rank = rank
	}
	return v, nil
}

// TopPlayers returns up to n players by XP.
func (s *Service) TopPlayers(ctx context.Context, n int) ([]PlayerView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	players, err := s.store.TopPlayers(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]PlayerView, len(players))
	for i, p := range players {
		out[i] = s.view(p)
		out[i].Rank = i + 1
	}
	return out, nil
}

func (s *Service) view(p model.Player) PlayerView {
	caps := s.engine.Caps()
	table := s.engine.Table()
	return PlayerView{
		Player:            p,
		InfectionDisplay:  caps.Display(p.Resources.InfectionReal),
		WhisperDisplay:    caps.Display(p.Resources.WhisperReal),
		ExceededInfection: caps.Exceeded(p.Resources.InfectionReal),
		ExceededWhisper:   caps.Exceeded(p.Resources.WhisperReal),
		XPToNext:          table.XPToNext(p.Level, p.XP),
		Bonuses:           table.BonusesFor(p.Level),
	}
}

// Evaluate runs one progression cycle for a player and persists the result.
func (s *Service) Evaluate(ctx context.Context, req EvaluationRequest) (progression.Result, error) {
	if err := s.ready(); err != nil {
		return progression.Result{}, err
	}

	unlock := s.locks.Lock(req.PlayerID)
	defer unlock()

	p, err := s.store.Player(ctx, req.PlayerID)
	if err != nil {
		return progression.Result{}, fmt.Errorf("player %d: %w", req.PlayerID, err)
	}

	now := s.clock()
	in := progression.Input{
		Resources:             p.Resources,
		Activity:              req.Activity,
		DaysSinceRegistration: p.DaysSinceRegistration(now),
	}
	if bonus := progression.ParseStatus(req.StatusText); !bonus.IsZero() {
		in.Bonus = &bonus
	}

	res := s.engine.Evaluate(in)
	p.Resources = res.PlayerResources
	p.XP, p.Level = res.XP, res.Level
	p.EvaluatedAt = now

	if err := s.store.UpsertPlayer(ctx, p); err != nil {
		return progression.Result{}, fmt.Errorf("save player %d: %w", p.ID, err)
	}
	metrics.RecordEvaluation(res.Level, res.ExceededInfection, res.ExceededWhisper)
	return res, nil
}

// EvaluateAll evaluates every request independently.
func (s *Service) EvaluateAll(ctx context.Context, reqs []EvaluationRequest) BatchReport {
	report := newBatchReport("evaluate", len(reqs))
	if err := s.ready(); err != nil {
		for _, req := range reqs {
			report.add(req.PlayerID, err)
		}
		return *report
	}
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			report.add(req.PlayerID, err)
			continue
		}
		_, err := s.Evaluate(ctx, req)
		if err != nil {
			s.logger.Warn(ctx, "evaluation failed", logger.Int64("player_id", req.PlayerID), logger.Error(err))
		}
		report.add(req.PlayerID, err)
	}
	s.logger.Info(ctx, "evaluation batch finished",
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed),
	)
	return *report
}

// EvaluateActivity runs the daily cycle: every registered player is
// evaluated with the activity found in posts between from and to.
// Players without posts still receive the base deltas.
func (s *Service) EvaluateActivity(ctx context.Context, posts []model.Post, from, to time.Time, statuses map[int64]string) (BatchReport, error) {
	if err := s.ready(); err != nil {
		return BatchReport{}, err
	}
	players, err := s.store.Players(ctx)
	if err != nil {
		return BatchReport{}, fmt.Errorf("list players: %w", err)
	}

	activity := progression.SummarizeActivity(posts, from, to)
	reqs := make([]EvaluationRequest, len(players))
	for i, p := range players {
		reqs[i] = EvaluationRequest{PlayerID: p.ID, Activity: activity[p.ID], StatusText: statuses[p.ID]}
	}
	return s.EvaluateAll(ctx, reqs), nil
}
