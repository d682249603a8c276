// Package storage defines the persistence interfaces for hosted games.
package storage

import (
	"context"
	"time"

	"github.com/sbliven/crew9bot/internal/crew/game"
)

// GameStore persists live game snapshots keyed by game id.
type GameStore interface {
	// SaveSnapshot inserts or replaces the snapshot for its game id.
	SaveSnapshot(ctx context.Context, snap game.Snapshot) error
	// LoadSnapshot returns the snapshot for a game id, or a NOT_FOUND
	// coded error.
	LoadSnapshot(ctx context.Context, gameID string) (game.Snapshot, error)
	// DeleteSnapshot removes a snapshot. Deleting a missing snapshot is
	// not an error.
	DeleteSnapshot(ctx context.Context, gameID string) error
	// ListSnapshots returns all persisted snapshots.
	ListSnapshots(ctx context.Context) ([]game.Snapshot, error)
}

// Round is one finished round of a game.
type Round struct {
	GameID     string
	Mission    int
	Won        bool
	FinishedAt time.Time
}

// HistoryStore records finished rounds.
type HistoryStore interface {
	// AppendRound appends a finished round to the journal.
	AppendRound(ctx context.Context, round Round) error
	// ListRounds returns the rounds of a game, oldest first.
	ListRounds(ctx context.Context, gameID string) ([]Round, error)
}

// Store combines all storage interfaces.
type Store interface {
	GameStore
	HistoryStore
}
