package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/okian/whisper/internal/domain/catalog"
	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/internal/domain/social"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu sync.RWMutex

	players  map[int64]model.Player
	byName   map[string]int64
	ranking  *ranking
	records  []model.InteractionRecord
	seen     map[interactionKey]struct{}
	touching map[int64][]int // participant id -> indexes into records
	entries  map[model.PairKey]model.RelationshipEntry
	profiles map[int64]model.SocialProfile
	history  map[int64][]model.ProfileSnapshot
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:  make(map[int64]model.Player),
		byName:   make(map[string]int64),
		ranking:  newRanking(),
		seen:     make(map[interactionKey]struct{}),
		touching: make(map[int64][]int),
		entries:  make(map[model.PairKey]model.RelationshipEntry),
		profiles: make(map[int64]model.SocialProfile),
		history:  make(map[int64][]model.ProfileSnapshot),
	}
}

// UpsertPlayer implements Store.
func (s *MemoryStore) UpsertPlayer(ctx context.Context, p model.Player) error {
	defer observe("upsert_player")()

	key := catalog.Fold(p.Name)
	if key == "" {
		return ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byName[key]; ok && owner != p.ID {
		return ErrNameTaken
	}
	if old, ok := s.players[p.ID]; ok {
		delete(s.byName, catalog.Fold(old.Name))
	}
	s.players[p.ID] = p
	s.byName[key] = p.ID
	s.ranking.set(p.ID, p.XP)
	return nil
}

// Player implements Store.
func (s *MemoryStore) Player(_ context.Context, id int64) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return model.Player{}, ErrNotFound
	}
	return p, nil
}

// PlayerByName implements Store.
func (s *MemoryStore) PlayerByName(_ context.Context, name string) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[catalog.Fold(name)]
	if !ok {
		return model.Player{}, ErrNotFound
	}
	return s.players[id], nil
}

// Players implements Store.
func (s *MemoryStore) Players(_ context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.Player) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// TopPlayers implements Store.
func (s *MemoryStore) TopPlayers(_ context.Context, n int) ([]model.Player, error) {
	defer observe("top_players")()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.ranking.top(n)
	out := make([]model.Player, len(ids))
	for i, id := range ids {
		out[i] = s.players[id]
	}
	return out, nil
}

// PlayerRank implements Store.
func (s *MemoryStore) PlayerRank(_ context.Context, id int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r := s.ranking.rank(id); r > 0 {
		return r, nil
	}
	return 0, ErrNotFound
}

// CountPlayers implements Store.
func (s *MemoryStore) CountPlayers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ranking.size(), nil
}

// SaveInteraction implements Store.
func (s *MemoryStore) SaveInteraction(_ context.Context, rec model.InteractionRecord) error { //nolint:gocritic // records are immutable values
	defer observe("save_interaction")()

	rec.Modifiers = slices.Clone(rec.Modifiers)

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.PostID != "" {
		key := interactionKey{post: rec.PostID, source: rec.SourceID, target: rec.TargetID, action: rec.Action}
		if _, dup := s.seen[key]; dup {
			return ErrDuplicateInteraction
		}
		s.seen[key] = struct{}{}
	}

	idx := len(s.records)
	s.records = append(s.records, rec)
	s.touching[rec.SourceID] = append(s.touching[rec.SourceID], idx)
	if rec.TargetID != rec.SourceID {
		s.touching[rec.TargetID] = append(s.touching[rec.TargetID], idx)
	}
	return nil
}

type interactionKey struct {
	post   string
	source int64
	target int64
	action string
}

// InteractionsFor implements Store.
func (s *MemoryStore) InteractionsFor(_ context.Context, id int64) ([]model.InteractionRecord, error) {
	defer observe("interactions_for")()

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.touching[id]
	out := make([]model.InteractionRecord, len(idx))
	for i, j := range idx {
		out[i] = s.records[j]
		out[i].Modifiers = slices.Clone(out[i].Modifiers)
	}
	return out, nil
}

// LoadRelationship implements Store.
func (s *MemoryStore) LoadRelationship(_ context.Context, key model.PairKey) (model.RelationshipEntry, bool, error) {
	defer observe("load_relationship")()

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return model.RelationshipEntry{}, false, nil
	}
	e.History = slices.Clone(e.History)
	return e, true, nil
}

// SaveRelationship implements Store.
func (s *MemoryStore) SaveRelationship(_ context.Context, entry model.RelationshipEntry) error {
	defer observe("save_relationship")()

	entry.History = slices.Clone(entry.History)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
	return nil
}

// SaveProfile implements Store.
func (s *MemoryStore) SaveProfile(_ context.Context, p model.SocialProfile) error { //nolint:gocritic // profiles are values
	defer observe("save_profile")()

	p = cloneProfile(p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ParticipantID] = p
	return nil
}

// Profile implements Store.
func (s *MemoryStore) Profile(_ context.Context, id int64) (model.SocialProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return model.SocialProfile{}, ErrNotFound
	}
	return cloneProfile(p), nil
}

// cloneProfile detaches the category maps so callers never share them with the store.
func cloneProfile(p model.SocialProfile) model.SocialProfile { //nolint:gocritic // profiles are values
	p.CategoryScores = maps.Clone(p.CategoryScores)
	p.CategoryCounts = maps.Clone(p.CategoryCounts)
	p.Percentages = maps.Clone(p.Percentages)
	return p
}

// ProfileHistory implements Store.
func (s *MemoryStore) ProfileHistory(_ context.Context, id int64) ([]model.ProfileSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history[id]), nil
}

// AppendProfileSnapshot implements Store.
func (s *MemoryStore) AppendProfileSnapshot(_ context.Context, id int64, snap model.ProfileSnapshot, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[id] = social.AppendSnapshot(s.history[id], snap, keep)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
