package social

import (
	"context"
	"fmt"
	"slices"

	"github.com/okian/whisper/internal/domain/model"
)

// Ledger defaults.
const (
	DefaultScoreMin     = -100
	DefaultScoreMax     = 100
	DefaultHistoryLimit = 50
)

// LedgerLimits bound a relationship entry.
type LedgerLimits struct {
	ScoreMin     int
	ScoreMax     int
	HistoryLimit int
}

// DefaultLedgerLimits returns [-100, 100] with 50 records of history.
func DefaultLedgerLimits() LedgerLimits {
	return LedgerLimits{ScoreMin: DefaultScoreMin, ScoreMax: DefaultScoreMax, HistoryLimit: DefaultHistoryLimit}
}

// FoldEntry adds rec to entry and returns the new entry and whether the
// running score hit a bound. entry is not modified. Folding is order
// sensitive once the score touches a bound.
func FoldEntry(entry model.RelationshipEntry, rec model.InteractionRecord, lim LedgerLimits) (model.RelationshipEntry, bool) {
	out := entry
	out.Key = model.PairKey{SourceID: rec.SourceID, TargetID: rec.TargetID}
	out.UnclampedScore = entry.UnclampedScore + rec.Effect

	sum := entry.TotalScore + rec.Effect
	out.TotalScore = min(lim.ScoreMax, max(lim.ScoreMin, sum))
	clamped := out.TotalScore != sum

	hist := append(slices.Clone(entry.History), rec)
	if lim.HistoryLimit > 0 && len(hist) > lim.HistoryLimit {
		hist = slices.Clone(hist[len(hist)-lim.HistoryLimit:])
	}
	out.History = hist
	out.UpdatedAt = rec.ProcessedAt
	return out, clamped
}

// EntryStore persists relationship entries.
type EntryStore interface {
	// LoadRelationship returns the entry for key; found is false when none exists yet.
	LoadRelationship(ctx context.Context, key model.PairKey) (entry model.RelationshipEntry, found bool, err error)
	SaveRelationship(ctx context.Context, entry model.RelationshipEntry) error
}

// LedgerOption applies a configuration option to the Ledger.
type LedgerOption func(*Ledger)

// WithLedgerLimits overrides score bounds and history length.
func WithLedgerLimits(lim LedgerLimits) LedgerOption {
	return func(l *Ledger) {
		if lim.ScoreMin < lim.ScoreMax && lim.HistoryLimit > 0 {
			l.limits = lim
		}
	}
}

// WithFoldObserver registers a callback invoked after every successful fold.
func WithFoldObserver(fn func(entry model.RelationshipEntry, clamped bool)) LedgerOption {
	return func(l *Ledger) {
		l.observe = fn
	}
}

// Ledger folds interaction records into persisted relationship entries.
// Callers serialize folds for the same pair.
type Ledger struct {
	store   EntryStore
	limits  LedgerLimits
	observe func(model.RelationshipEntry, bool)
}

// NewLedger creates a ledger over store.
func NewLedger(store EntryStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{store: store, limits: DefaultLedgerLimits()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limits returns the bounds in use.
func (l *Ledger) Limits() LedgerLimits { return l.limits }

// Fold loads or creates the entry for the record's pair, folds the record
// into it and saves the result.
func (l *Ledger) Fold(ctx context.Context, rec model.InteractionRecord) (model.RelationshipEntry, error) {
	key := model.PairKey{SourceID: rec.SourceID, TargetID: rec.TargetID}

	entry, found, err := l.store.LoadRelationship(ctx, key)
	if err != nil {
		return model.RelationshipEntry{}, fmt.Errorf("load relationship %s: %w", key, err)
	}
	if !found {
		entry = model.RelationshipEntry{Key: key}
	}

	next, clamped := FoldEntry(entry, rec, l.limits)
	if err := l.store.SaveRelationship(ctx, next); err != nil {
		return model.RelationshipEntry{}, fmt.Errorf("save relationship %s: %w", key, err)
	}
	if l.observe != nil {
		l.observe(next, clamped)
	}
	return next, nil
}
