package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/whisper/internal/domain/catalog"
	"github.com/okian/whisper/internal/domain/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS players (
	id             INTEGER PRIMARY KEY,
	name           TEXT NOT NULL,
	name_key       TEXT NOT NULL UNIQUE,
	registered_at  INTEGER NOT NULL,
	credits        INTEGER NOT NULL,
	infection_real REAL NOT NULL,
	whisper_real   REAL NOT NULL,
	xp             INTEGER NOT NULL,
	level          INTEGER NOT NULL,
	evaluated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS interactions (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	post_id      TEXT NOT NULL,
	source_id    INTEGER NOT NULL,
	target_id    INTEGER NOT NULL,
	action       TEXT NOT NULL,
	category     TEXT NOT NULL,
	modifiers    TEXT NOT NULL,
	effect       INTEGER NOT NULL,
	description  TEXT NOT NULL,
	posted_at    INTEGER NOT NULL,
	processed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS relationships (
	source_id       INTEGER NOT NULL,
	target_id       INTEGER NOT NULL,
	total_score     INTEGER NOT NULL,
	unclamped_score INTEGER NOT NULL,
	history         TEXT NOT NULL,
	updated_at      INTEGER NOT NULL,
	PRIMARY KEY (source_id, target_id)
);

CREATE TABLE IF NOT EXISTS profiles (
	participant_id INTEGER PRIMARY KEY,
	body           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS profile_history (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	participant_id    INTEGER NOT NULL,
	score             INTEGER NOT NULL,
	dominant_category TEXT NOT NULL,
	taken_at          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_players_xp ON players(xp DESC, id ASC);
CREATE INDEX IF NOT EXISTS idx_interactions_source ON interactions(source_id);
CREATE INDEX IF NOT EXISTS idx_interactions_target ON interactions(target_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_interactions_post
	ON interactions(post_id, source_id, target_id, action) WHERE post_id <> '';
CREATE INDEX IF NOT EXISTS idx_profile_history_participant ON profile_history(participant_id, seq);
`

// SQLiteStore persists state in a SQLite database file.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path and migrates the schema.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	cfg := sqliteSettings{busyTimeout: defaultBusyTimeout, maxOpenConns: defaultMaxOpenConns}
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)",
		path, cfg.busyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(cfg.maxOpenConns)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type playerRow struct {
	ID            int64   `db:"id"`
	Name          string  `db:"name"`
	RegisteredAt  int64   `db:"registered_at"`
	Credits       int     `db:"credits"`
	InfectionReal float64 `db:"infection_real"`
	WhisperReal   float64 `db:"whisper_real"`
	XP            int     `db:"xp"`
	Level         int     `db:"level"`
	EvaluatedAt   int64   `db:"evaluated_at"`
}

const playerColumns = `id, name, registered_at, credits, infection_real, whisper_real, xp, level, evaluated_at`

func (r playerRow) player() model.Player {
	return model.Player{
		ID:           r.ID,
		Name:         r.Name,
		RegisteredAt: fromUnix(r.RegisteredAt),
		Resources: model.PlayerResources{
			Credits:       r.Credits,
			InfectionReal: r.InfectionReal,
			WhisperReal:   r.WhisperReal,
		},
		XP:          r.XP,
		Level:       r.Level,
		EvaluatedAt: fromUnix(r.EvaluatedAt),
	}
}

// UpsertPlayer implements Store.
func (s *SQLiteStore) UpsertPlayer(ctx context.Context, p model.Player) error {
	defer observe("upsert_player")()

	key := catalog.Fold(p.Name)
	if key == "" {
		return ErrInvalidName
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert player %d: %w", p.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var owner int64
	err = tx.GetContext(ctx, &owner, `SELECT id FROM players WHERE name_key = ?`, key)
	switch {
	case err == nil && owner != p.ID:
		return ErrNameTaken
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("lookup name %q: %w", p.Name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO players (id, name, name_key, registered_at, credits, infection_real, whisper_real, xp, level, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			name_key = excluded.name_key,
			registered_at = excluded.registered_at,
			credits = excluded.credits,
			infection_real = excluded.infection_real,
			whisper_real = excluded.whisper_real,
			xp = excluded.xp,
			level = excluded.level,
			evaluated_at = excluded.evaluated_at`,
		p.ID, p.Name, key, toUnix(p.RegisteredAt),
		p.Resources.Credits, p.Resources.InfectionReal, p.Resources.WhisperReal,
		p.XP, p.Level, toUnix(p.EvaluatedAt))
	if err != nil {
		return fmt.Errorf("upsert player %d: %w", p.ID, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) getPlayer(ctx context.Context, where string, arg any) (model.Player, error) {
	var row playerRow
	err := s.db.GetContext(ctx, &row, `SELECT `+playerColumns+` FROM players WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Player{}, ErrNotFound
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("select player: %w", err)
	}
	return row.player(), nil
}

// Player implements Store.
func (s *SQLiteStore) Player(ctx context.Context, id int64) (model.Player, error) {
	defer observe("player")()
	return s.getPlayer(ctx, "id = ?", id)
}

// PlayerByName implements Store.
func (s *SQLiteStore) PlayerByName(ctx context.Context, name string) (model.Player, error) {
	defer observe("player_by_name")()
	return s.getPlayer(ctx, "name_key = ?", catalog.Fold(name))
}

func (s *SQLiteStore) selectPlayers(ctx context.Context, query string, args ...any) ([]model.Player, error) {
	var rows []playerRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}
	out := make([]model.Player, len(rows))
	for i, r := range rows {
		out[i] = r.player()
	}
	return out, nil
}

// Players implements Store.
func (s *SQLiteStore) Players(ctx context.Context) ([]model.Player, error) {
	defer observe("players")()
	return s.selectPlayers(ctx, `SELECT `+playerColumns+` FROM players ORDER BY id`)
}

// TopPlayers implements Store.
func (s *SQLiteStore) TopPlayers(ctx context.Context, n int) ([]model.Player, error) {
	defer observe("top_players")()
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	return s.selectPlayers(ctx, `SELECT `+playerColumns+` FROM players ORDER BY xp DESC, id ASC LIMIT ?`, n)
}

// PlayerRank implements Store.
func (s *SQLiteStore) PlayerRank(ctx context.Context, id int64) (int, error) {
	defer observe("player_rank")()

	p, err := s.Player(ctx, id)
	if err != nil {
		return 0, err
	}
	var ahead int
	err = s.db.GetContext(ctx, &ahead,
		`SELECT COUNT(*) FROM players WHERE xp > ? OR (xp = ? AND id < ?)`, p.XP, p.XP, p.ID)
	if err != nil {
		return 0, fmt.Errorf("rank player %d: %w", id, err)
	}
	return ahead + 1, nil
}

// CountPlayers implements Store.
func (s *SQLiteStore) CountPlayers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM players`); err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}
	return n, nil
}

type interactionRow struct {
	ID          string `db:"id"`
	PostID      string `db:"post_id"`
	SourceID    int64  `db:"source_id"`
	TargetID    int64  `db:"target_id"`
	Action      string `db:"action"`
	Category    string `db:"category"`
	Modifiers   string `db:"modifiers"`
	Effect      int    `db:"effect"`
	Description string `db:"description"`
	PostedAt    int64  `db:"posted_at"`
	ProcessedAt int64  `db:"processed_at"`
}

func (r interactionRow) record() (model.InteractionRecord, error) {
	var mods []string
	if err := json.Unmarshal([]byte(r.Modifiers), &mods); err != nil {
		return model.InteractionRecord{}, fmt.Errorf("decode modifiers of %s: %w", r.ID, err)
	}
	return model.InteractionRecord{
		ID:          r.ID,
		PostID:      r.PostID,
		SourceID:    r.SourceID,
		TargetID:    r.TargetID,
		Action:      r.Action,
		Category:    model.Category(r.Category),
		Modifiers:   mods,
		Effect:      r.Effect,
		Description: r.Description,
		PostedAt:    fromUnix(r.PostedAt),
		ProcessedAt: fromUnix(r.ProcessedAt),
	}, nil
}

// SaveInteraction implements Store.
func (s *SQLiteStore) SaveInteraction(ctx context.Context, rec model.InteractionRecord) error { //nolint:gocritic // records are immutable values
	defer observe("save_interaction")()

	mods, err := json.Marshal(nonNil(rec.Modifiers))
	if err != nil {
		return fmt.Errorf("encode modifiers of %s: %w", rec.ID, err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, post_id, source_id, target_id, action, category, modifiers, effect, description, posted_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		rec.ID, rec.PostID, rec.SourceID, rec.TargetID, rec.Action, string(rec.Category),
		string(mods), rec.Effect, rec.Description, toUnix(rec.PostedAt), toUnix(rec.ProcessedAt))
	if err != nil {
		return fmt.Errorf("insert interaction %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert interaction %s: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: post %s %d->%d %s", ErrDuplicateInteraction, rec.PostID, rec.SourceID, rec.TargetID, rec.Action)
	}
	return nil
}

// InteractionsFor implements Store.
func (s *SQLiteStore) InteractionsFor(ctx context.Context, id int64) ([]model.InteractionRecord, error) {
	defer observe("interactions_for")()

	var rows []interactionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, post_id, source_id, target_id, action, category, modifiers, effect, description, posted_at, processed_at
		FROM interactions WHERE source_id = ? OR target_id = ? ORDER BY seq`, id, id)
	if err != nil {
		return nil, fmt.Errorf("select interactions for %d: %w", id, err)
	}
	out := make([]model.InteractionRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

type relationshipRow struct {
	SourceID       int64  `db:"source_id"`
	TargetID       int64  `db:"target_id"`
	TotalScore     int    `db:"total_score"`
	UnclampedScore int    `db:"unclamped_score"`
	History        string `db:"history"`
	UpdatedAt      int64  `db:"updated_at"`
}

// LoadRelationship implements Store.
func (s *SQLiteStore) LoadRelationship(ctx context.Context, key model.PairKey) (model.RelationshipEntry, bool, error) {
	defer observe("load_relationship")()

	var row relationshipRow
	err := s.db.GetContext(ctx, &row, `
		SELECT source_id, target_id, total_score, unclamped_score, history, updated_at
		FROM relationships WHERE source_id = ? AND target_id = ?`, key.SourceID, key.TargetID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RelationshipEntry{}, false, nil
	}
	if err != nil {
		return model.RelationshipEntry{}, false, fmt.Errorf("select relationship %s: %w", key, err)
	}

	entry := model.RelationshipEntry{
		Key:            key,
		TotalScore:     row.TotalScore,
		UnclampedScore: row.UnclampedScore,
		UpdatedAt:      fromUnix(row.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(row.History), &entry.History); err != nil {
		return model.RelationshipEntry{}, false, fmt.Errorf("decode history of %s: %w", key, err)
	}
	return entry, true, nil
}

// SaveRelationship implements Store.
func (s *SQLiteStore) SaveRelationship(ctx context.Context, entry model.RelationshipEntry) error {
	defer observe("save_relationship")()

	hist, err := json.Marshal(nonNil(entry.History))
	if err != nil {
		return fmt.Errorf("encode history of %s: %w", entry.Key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relationships (source_id, target_id, total_score, unclamped_score, history, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id) DO UPDATE SET
			total_score = excluded.total_score,
			unclamped_score = excluded.unclamped_score,
			history = excluded.history,
			updated_at = excluded.updated_at`,
		entry.Key.SourceID, entry.Key.TargetID, entry.TotalScore, entry.UnclampedScore, string(hist), toUnix(entry.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert relationship %s: %w", entry.Key, err)
	}
	return nil
}

// SaveProfile implements Store.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p model.SocialProfile) error { //nolint:gocritic // profiles are values
	defer observe("save_profile")()

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %d: %w", p.ParticipantID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (participant_id, body) VALUES (?, ?)
		ON CONFLICT(participant_id) DO UPDATE SET body = excluded.body`,
		p.ParticipantID, string(body))
	if err != nil {
		return fmt.Errorf("upsert profile %d: %w", p.ParticipantID, err)
	}
	return nil
}

// Profile implements Store.
func (s *SQLiteStore) Profile(ctx context.Context, id int64) (model.SocialProfile, error) {
	defer observe("profile")()

	var body string
	err := s.db.GetContext(ctx, &body, `SELECT body FROM profiles WHERE participant_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SocialProfile{}, ErrNotFound
	}
	if err != nil {
		return model.SocialProfile{}, fmt.Errorf("select profile %d: %w", id, err)
	}
	var p model.SocialProfile
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return model.SocialProfile{}, fmt.Errorf("decode profile %d: %w", id, err)
	}
	return p, nil
}

type snapshotRow struct {
	Score            int    `db:"score"`
	DominantCategory string `db:"dominant_category"`
	TakenAt          int64  `db:"taken_at"`
}

// ProfileHistory implements Store.
func (s *SQLiteStore) ProfileHistory(ctx context.Context, id int64) ([]model.ProfileSnapshot, error) {
	var rows []snapshotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT score, dominant_category, taken_at FROM profile_history
		WHERE participant_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("select profile history %d: %w", id, err)
	}
	out := make([]model.ProfileSnapshot, len(rows))
	for i, r := range rows {
		out[i] = model.ProfileSnapshot{
			Score:            r.Score,
			DominantCategory: model.Category(r.DominantCategory),
			TakenAt:          fromUnix(r.TakenAt),
		}
	}
	return out, nil
}

// AppendProfileSnapshot implements Store.
func (s *SQLiteStore) AppendProfileSnapshot(ctx context.Context, id int64, snap model.ProfileSnapshot, keep int) error {
	defer observe("append_profile_snapshot")()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile snapshot %d: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profile_history (participant_id, score, dominant_category, taken_at) VALUES (?, ?, ?, ?)`,
		id, snap.Score, string(snap.DominantCategory), toUnix(snap.TakenAt))
	if err != nil {
		return fmt.Errorf("insert profile snapshot %d: %w", id, err)
	}
	if keep > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM profile_history WHERE participant_id = ? AND seq NOT IN (
				SELECT seq FROM profile_history WHERE participant_id = ? ORDER BY seq DESC LIMIT ?)`,
			id, id, keep)
		if err != nil {
			return fmt.Errorf("trim profile history %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// Timestamps are stored as unix nanoseconds; 0 is the zero time.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
