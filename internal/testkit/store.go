package testkit

import (
	"context"
	"sync"

	"github.com/sbliven/crew9bot/internal/crew/game"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
	"github.com/sbliven/crew9bot/internal/storage"
)

// MemStore is an in-memory storage.Store for tests.
type MemStore struct {
	mu        sync.Mutex
	snapshots map[string]game.Snapshot
	rounds    []storage.Round
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{snapshots: make(map[string]game.Snapshot)}
}

// SaveSnapshot implements storage.GameStore.
func (s *MemStore) SaveSnapshot(ctx context.Context, snap game.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.GameID] = snap
	return nil
}

// LoadSnapshot implements storage.GameStore.
func (s *MemStore) LoadSnapshot(ctx context.Context, gameID string) (game.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[gameID]
	if !ok {
		return game.Snapshot{}, apperrors.New(apperrors.CodeNotFound, "game snapshot not found")
	}
	return snap, nil
}

// DeleteSnapshot implements storage.GameStore.
func (s *MemStore) DeleteSnapshot(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, gameID)
	return nil
}

// ListSnapshots implements storage.GameStore.
func (s *MemStore) ListSnapshots(ctx context.Context) ([]game.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snaps []game.Snapshot
	for _, snap := range s.snapshots {
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// AppendRound implements storage.HistoryStore.
func (s *MemStore) AppendRound(ctx context.Context, round storage.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds = append(s.rounds, round)
	return nil
}

// ListRounds implements storage.HistoryStore.
func (s *MemStore) ListRounds(ctx context.Context, gameID string) ([]storage.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rounds []storage.Round
	for _, round := range s.rounds {
		if round.GameID == gameID {
			rounds = append(rounds, round)
		}
	}
	return rounds, nil
}

// Snapshots returns the stored snapshots keyed by game id.
func (s *MemStore) Snapshots() map[string]game.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]game.Snapshot, len(s.snapshots))
	for id, snap := range s.snapshots {
		out[id] = snap
	}
	return out
}
