// Package sqlite provides the SQLite-backed game store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sbliven/crew9bot/internal/crew/game"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
	"github.com/sbliven/crew9bot/internal/platform/storage/sqlitemigrate"
	"github.com/sbliven/crew9bot/internal/storage"
	"github.com/sbliven/crew9bot/internal/storage/sqlite/migrations"
)

// Store is a SQLite-backed implementation of storage.Store.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite game store at the provided path and applies
// embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveSnapshot inserts or replaces the snapshot for its game id.
func (s *Store) SaveSnapshot(ctx context.Context, snap game.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.GameID, err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO game_snapshots (game_id, version, phase, payload, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (game_id) DO UPDATE SET
    version = excluded.version,
    phase = excluded.phase,
    payload = excluded.payload,
    updated_at = excluded.updated_at
`, snap.GameID, snap.Version, string(snap.Phase), string(payload), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.GameID, err)
	}
	return nil
}

// LoadSnapshot returns the snapshot for a game id.
func (s *Store) LoadSnapshot(ctx context.Context, gameID string) (game.Snapshot, error) {
	var payload string
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT payload FROM game_snapshots WHERE game_id = ?", gameID).Scan(&payload)
	if err == sql.ErrNoRows {
		return game.Snapshot{}, apperrors.WithMetadata(apperrors.CodeNotFound,
			"game snapshot not found", map[string]string{"GameID": gameID})
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("load snapshot %s: %w", gameID, err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("unmarshal snapshot %s: %w", gameID, err)
	}
	return snap, nil
}

// DeleteSnapshot removes a snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, gameID string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM game_snapshots WHERE game_id = ?", gameID); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", gameID, err)
	}
	return nil
}

// ListSnapshots returns all persisted snapshots.
func (s *Store) ListSnapshots(ctx context.Context) ([]game.Snapshot, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT payload FROM game_snapshots ORDER BY updated_at")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []game.Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap game.Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

// AppendRound appends a finished round to the journal.
func (s *Store) AppendRound(ctx context.Context, round storage.Round) error {
	won := 0
	if round.Won {
		won = 1
	}
	finishedAt := round.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO rounds (game_id, mission, won, finished_at) VALUES (?, ?, ?, ?)
`, round.GameID, round.Mission, won, toMillis(finishedAt)); err != nil {
		return fmt.Errorf("append round for %s: %w", round.GameID, err)
	}
	return nil
}

// ListRounds returns the rounds of a game, oldest first.
func (s *Store) ListRounds(ctx context.Context, gameID string) ([]storage.Round, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT mission, won, finished_at FROM rounds WHERE game_id = ? ORDER BY id
`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list rounds for %s: %w", gameID, err)
	}
	defer rows.Close()

	var rounds []storage.Round
	for rows.Next() {
		var (
			mission    int
			won        int
			finishedAt int64
		)
		if err := rows.Scan(&mission, &won, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, storage.Round{
			GameID:     gameID,
			Mission:    mission,
			Won:        won != 0,
			FinishedAt: fromMillis(finishedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rounds for %s: %w", gameID, err)
	}
	return rounds, nil
}
