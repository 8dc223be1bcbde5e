// Package repository persists players, interaction records, relationship
// entries and social profiles.
package repository

import (
	"context"
	"time"

	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/pkg/metrics"
)

// Store provides read/write access to the engine state.
//
// Writes for one participant are serialized by the caller; implementations
// only guarantee that individual calls are atomic.
type Store interface {
	// UpsertPlayer inserts or replaces a player. Names are unique after
	// case folding; ErrNameTaken is returned on a clash with another id.
	UpsertPlayer(ctx context.Context, p model.Player) error

	// Player returns ErrNotFound for an unknown id.
	Player(ctx context.Context, id int64) (model.Player, error)

	// PlayerByName looks a player up by case-folded name.
	PlayerByName(ctx context.Context, name string) (model.Player, error)

	// Players returns every player ordered by id.
	Players(ctx context.Context) ([]model.Player, error)

	// TopPlayers returns up to n players ordered by XP desc, then id asc.
	TopPlayers(ctx context.Context, n int) ([]model.Player, error)

	// PlayerRank returns the 1-based position of id in the XP ranking.
	PlayerRank(ctx context.Context, id int64) (int, error)

	CountPlayers(ctx context.Context) (int, error)

	// SaveInteraction appends an immutable record. A second record for the
	// same post, source, target and action returns ErrDuplicateInteraction.
	SaveInteraction(ctx context.Context, rec model.InteractionRecord) error

	// InteractionsFor returns every record where id is source or target, oldest first.
	InteractionsFor(ctx context.Context, id int64) ([]model.InteractionRecord, error)

	LoadRelationship(ctx context.Context, key model.PairKey) (model.RelationshipEntry, bool, error)
	SaveRelationship(ctx context.Context, entry model.RelationshipEntry) error

	SaveProfile(ctx context.Context, p model.SocialProfile) error

	// Profile returns ErrNotFound when no profile was ever computed.
	Profile(ctx context.Context, id int64) (model.SocialProfile, error)

	// ProfileHistory returns snapshots oldest first.
	ProfileHistory(ctx context.Context, id int64) ([]model.ProfileSnapshot, error)

	// AppendProfileSnapshot appends s and keeps only the newest keep snapshots.
	AppendProfileSnapshot(ctx context.Context, id int64, s model.ProfileSnapshot, keep int) error

	Close() error
}

// observe records the latency of one store operation; call the result when done.
func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	}
}
