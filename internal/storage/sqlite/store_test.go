package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sbliven/crew9bot/internal/crew/game"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
	"github.com/sbliven/crew9bot/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "crew9bot.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	})
	return store
}

func testSnapshot(gameID string) game.Snapshot {
	return game.Snapshot{
		Version: game.SnapshotVersion,
		GameID:  gameID,
		Phase:   game.PhaseWaiting,
		Mission: 1,
		Seats: []game.SeatSnapshot{
			{ID: "p1", Name: "Ann"},
			{ID: "p2", Name: "Ben"},
			{ID: "p3", Name: "Cid"},
		},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("Open() expected error for empty path")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snap := testSnapshot("AAAAAAAA")
	snap.Hands = [][]string{{"9b", "1p"}, {"4r"}, {"5y"}}
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	got, err := store.LoadSnapshot(ctx, snap.GameID)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if got.GameID != snap.GameID || got.Phase != snap.Phase {
		t.Fatalf("LoadSnapshot() = %+v, want %+v", got, snap)
	}
	if len(got.Seats) != 3 || got.Seats[0].Name != "Ann" {
		t.Fatalf("LoadSnapshot() seats = %+v", got.Seats)
	}
	if len(got.Hands) != 3 || got.Hands[0][0] != "9b" {
		t.Fatalf("LoadSnapshot() hands = %+v", got.Hands)
	}
}

func TestSaveSnapshotReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snap := testSnapshot("AAAAAAAA")
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	snap.Phase = game.PhasePlaying
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot() update error = %v", err)
	}

	got, err := store.LoadSnapshot(ctx, snap.GameID)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if got.Phase != game.PhasePlaying {
		t.Fatalf("LoadSnapshot() phase = %s, want %s", got.Phase, game.PhasePlaying)
	}

	snaps, err := store.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("ListSnapshots() returned %d snapshots, want 1", len(snaps))
	}
}

func TestLoadSnapshotNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.LoadSnapshot(context.Background(), "ZZZZZZZZ")
	if !errors.Is(err, apperrors.New(apperrors.CodeNotFound, "")) {
		t.Fatalf("LoadSnapshot() error = %v, want code %s", err, apperrors.CodeNotFound)
	}
}

func TestDeleteSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snap := testSnapshot("AAAAAAAA")
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if err := store.DeleteSnapshot(ctx, snap.GameID); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}
	if _, err := store.LoadSnapshot(ctx, snap.GameID); err == nil {
		t.Fatal("LoadSnapshot() after delete expected error")
	}
	// Deleting again is not an error.
	if err := store.DeleteSnapshot(ctx, snap.GameID); err != nil {
		t.Fatalf("DeleteSnapshot() repeat error = %v", err)
	}
}

func TestRoundJournal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	finished := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	rounds := []storage.Round{
		{GameID: "AAAAAAAA", Mission: 1, Won: true, FinishedAt: finished},
		{GameID: "AAAAAAAA", Mission: 2, Won: false, FinishedAt: finished.Add(time.Minute)},
		{GameID: "BBBBBBBB", Mission: 1, Won: false, FinishedAt: finished},
	}
	for _, round := range rounds {
		if err := store.AppendRound(ctx, round); err != nil {
			t.Fatalf("AppendRound(%+v) error = %v", round, err)
		}
	}

	got, err := store.ListRounds(ctx, "AAAAAAAA")
	if err != nil {
		t.Fatalf("ListRounds() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRounds() returned %d rounds, want 2", len(got))
	}
	if got[0].Mission != 1 || !got[0].Won {
		t.Fatalf("ListRounds()[0] = %+v", got[0])
	}
	if !got[0].FinishedAt.Equal(finished) {
		t.Fatalf("ListRounds()[0].FinishedAt = %v, want %v", got[0].FinishedAt, finished)
	}
	if got[1].Mission != 2 || got[1].Won {
		t.Fatalf("ListRounds()[1] = %+v", got[1])
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crew9bot.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	second, err := Open(path)
	if err != nil {
		t.Fatalf("Open() reopen error = %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("Close() reopen error = %v", err)
	}
}
