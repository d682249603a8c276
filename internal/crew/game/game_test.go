package game_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/sbliven/crew9bot/internal/crew/cards"
	"github.com/sbliven/crew9bot/internal/crew/event"
	"github.com/sbliven/crew9bot/internal/crew/game"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
	"github.com/sbliven/crew9bot/internal/player"
	"github.com/sbliven/crew9bot/internal/testkit"
)

func codeIs(err error, code apperrors.Code) bool {
	return errors.Is(err, apperrors.New(code, ""))
}

func seatPlayers(t *testing.T, g *game.Game, n int) []*testkit.FakePlayer {
	t.Helper()
	ctx := context.Background()
	players := make([]*testkit.FakePlayer, n)
	for i := range players {
		players[i] = testkit.NewFakePlayer(
			string(rune('a'+i)), "Player"+string(rune('0'+i)))
		if err := g.Join(ctx, players[i]); err != nil {
			t.Fatalf("join player %d: %v", i, err)
		}
	}
	return players
}

func TestIDEncodeDecodeRoundTrip(t *testing.T) {
	g := game.New(rand.New(rand.NewSource(0)))
	id := g.ID()
	if len(id) != 8 {
		t.Fatalf("expected 8-character id, got %q", id)
	}
	decoded, err := game.DecodeID(id)
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	if game.EncodeID(decoded) != id {
		t.Fatalf("round trip mismatch: %q vs %q", game.EncodeID(decoded), id)
	}

	if _, err := game.DecodeID("not an id"); !codeIs(err, apperrors.CodeGameIDInvalid) {
		t.Fatalf("expected GAME_ID_INVALID, got %v", err)
	}
}

func TestJoinNotifies(t *testing.T) {
	ctx := context.Background()
	g := game.New(rand.New(rand.NewSource(0)))
	players := seatPlayers(t, g, 3)

	if evt, ok := players[0].LastEvent().(event.PlayerJoined); !ok || evt.PlayerName != "Player2" {
		t.Fatalf("expected PlayerJoined for Player2, got %#v", players[0].LastEvent())
	}
	joins := players[2].EventsOf(event.KindJoinedGame)
	if len(joins) != 1 {
		t.Fatalf("expected 1 JoinedGame event, got %d", len(joins))
	}
	if joins[0].(event.JoinedGame).GameID != g.ID() {
		t.Fatal("JoinedGame carries wrong game id")
	}

	if err := g.Join(ctx, players[0]); !codeIs(err, apperrors.CodePlayerSeated) {
		t.Fatalf("expected PLAYER_ALREADY_SEATED, got %v", err)
	}
}

func TestJoinToleratesBrokenTransport(t *testing.T) {
	ctx := context.Background()
	g := game.New(rand.New(rand.NewSource(0)))
	players := seatPlayers(t, g, 2)
	players[0].NotifyErr = errors.New("chat blocked the bot")

	broken := testkit.NewFakePlayer("z", "Zoe")
	broken.NotifyErr = errors.New("chat blocked the bot")
	if err := g.Join(ctx, broken); err != nil {
		t.Fatalf("join with broken transport: %v", err)
	}
	if g.Seats() != 3 {
		t.Fatalf("seats = %d, want 3", g.Seats())
	}
	// The reachable player still heard about the join.
	if evt, ok := players[1].LastEvent().(event.PlayerJoined); !ok || evt.PlayerName != "Zoe" {
		t.Fatalf("expected PlayerJoined for Zoe, got %#v", players[1].LastEvent())
	}
}

func TestJoinRejectedAfterBegin(t *testing.T) {
	ctx := context.Background()
	g := game.New(rand.New(rand.NewSource(0)))
	seatPlayers(t, g, 4)
	if err := g.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := g.Join(ctx, testkit.NewFakePlayer("z", "Late")); !codeIs(err, apperrors.CodeGameNotWaiting) {
		t.Fatalf("expected GAME_NOT_WAITING, got %v", err)
	}
}

func TestBeginRequiresEnoughPlayers(t *testing.T) {
	ctx := context.Background()
	g := game.New(rand.New(rand.NewSource(0)))
	seatPlayers(t, g, 2)
	if err := g.Begin(ctx); !codeIs(err, apperrors.CodeGameTooFewSeats) {
		t.Fatalf("expected GAME_TOO_FEW_SEATS, got %v", err)
	}
}

func TestBeginDealsFullDeck(t *testing.T) {
	ctx := context.Background()
	g := game.New(rand.New(rand.NewSource(42)))
	players := seatPlayers(t, g, 4)
	if err := g.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}

	seen := map[cards.Card]bool{}
	commanderSeats := 0
	turnPrompts := 0
	for _, p := range players {
		dealt := p.EventsOf(event.KindCardsDealt)
		if len(dealt) != 1 {
			t.Fatalf("expected 1 CardsDealt, got %d", len(dealt))
		}
		hand := dealt[0].(event.CardsDealt).Hand
		if len(hand) != 10 {
			t.Fatalf("expected 10 cards, got %d", len(hand))
		}
		for _, card := range hand {
			if seen[card] {
				t.Fatalf("card dealt twice: %s", card)
			}
			seen[card] = true
		}
		if cards.Contains(hand, cards.Commander) {
			commanderSeats++
			if len(p.EventsOf(event.KindYourTurn)) != 1 {
				t.Fatal("commander should be prompted for the first trick")
			}
		}
		turnPrompts += len(p.EventsOf(event.KindYourTurn))
		if len(p.EventsOf(event.KindTasksAssigned)) != 1 {
			t.Fatal("every seat should see the task assignment")
		}
	}
	if len(seen) != cards.DeckSize {
		t.Fatalf("expected full deck dealt, got %d cards", len(seen))
	}
	if commanderSeats != 1 {
		t.Fatalf("expected exactly one commander, got %d", commanderSeats)
	}
	if turnPrompts != 1 {
		t.Fatalf("expected exactly one turn prompt, got %d", turnPrompts)
	}
	if g.Phase() != game.PhasePlaying {
		t.Fatalf("expected playing phase, got %s", g.Phase())
	}
}

func TestThreePlayerDealIsUneven(t *testing.T) {
	ctx := context.Background()
	g := game.New(rand.New(rand.NewSource(1)))
	players := seatPlayers(t, g, 3)
	if err := g.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	sizes := map[int]int{}
	for _, p := range players {
		hand := p.EventsOf(event.KindCardsDealt)[0].(event.CardsDealt).Hand
		sizes[len(hand)]++
	}
	if sizes[14] != 1 || sizes[13] != 2 {
		t.Fatalf("expected 14/13/13 split, got %v", sizes)
	}
}

// buildGame revives a snapshot against four fixed fake players so trick
// outcomes are fully deterministic.
func buildGame(t *testing.T, snap game.Snapshot) (*game.Game, []*testkit.FakePlayer) {
	t.Helper()
	players := []*testkit.FakePlayer{
		testkit.NewFakePlayer("a", "Ann"),
		testkit.NewFakePlayer("b", "Ben"),
		testkit.NewFakePlayer("c", "Cat"),
		testkit.NewFakePlayer("d", "Dee"),
	}
	g, err := game.FromSnapshot(snap, rand.New(rand.NewSource(0)), func(seat game.SeatSnapshot) (player.Player, error) {
		for _, p := range players {
			if p.PlayerID == seat.ID {
				return p, nil
			}
		}
		return nil, errors.New("unknown seat")
	})
	if err != nil {
		t.Fatalf("from snapshot: %v", err)
	}
	return g, players
}

// scriptedGame builds a four-seat game in the playing phase with small,
// fixed hands.
func scriptedGame(t *testing.T, taskOwner int) (*game.Game, []*testkit.FakePlayer) {
	t.Helper()
	return buildGame(t, game.Snapshot{
		Version:   game.SnapshotVersion,
		GameID:    "MLMCYB6N",
		Phase:     game.PhasePlaying,
		Commander: 0,
		Mission:   1,
		Next:      0,
		Hands: [][]string{
			{"9b", "1p"},
			{"8b", "2p"},
			{"6b", "3p"},
			{"4b", "4r"},
		},
		Played:       [][]string{{}, {}, {}, {}},
		TrickWinners: nil,
		Tasks:        []game.TaskSnapshot{{Card: "6b", Owner: taskOwner}},
		Hinted:       []bool{false, false, false, false},
		Seats: []game.SeatSnapshot{
			{ID: "a", Name: "Ann"}, {ID: "b", Name: "Ben"},
			{ID: "c", Name: "Cat"}, {ID: "d", Name: "Dee"},
		},
	})
}

func mustCard(t *testing.T, s string) cards.Card {
	t.Helper()
	card, err := cards.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return card
}

func TestScriptedRoundWin(t *testing.T) {
	ctx := context.Background()
	g, players := scriptedGame(t, 0)

	if _, err := g.Play(ctx, "b", mustCard(t, "8b")); !codeIs(err, apperrors.CodePlayOutOfTurn) {
		t.Fatalf("expected PLAY_OUT_OF_TURN, got %v", err)
	}

	outcome, err := g.Play(ctx, "a", mustCard(t, "9b"))
	if err != nil {
		t.Fatalf("play 9b: %v", err)
	}
	if outcome != nil {
		t.Fatal("round should not end on the first card")
	}

	// Ben holds 8b and must follow blue.
	if _, err := g.Play(ctx, "b", mustCard(t, "2p")); !codeIs(err, apperrors.CodeMustFollowSuit) {
		t.Fatalf("expected MUST_FOLLOW_SUIT, got %v", err)
	}
	if _, err := g.Play(ctx, "b", mustCard(t, "7b")); !codeIs(err, apperrors.CodeCardNotHeld) {
		t.Fatalf("expected CARD_NOT_HELD, got %v", err)
	}

	for _, play := range []struct{ id, card string }{
		{"b", "8b"}, {"c", "6b"},
	} {
		if _, err := g.Play(ctx, play.id, mustCard(t, play.card)); err != nil {
			t.Fatalf("play %s: %v", play.card, err)
		}
	}

	outcome, err = g.Play(ctx, "d", mustCard(t, "4b"))
	if err != nil {
		t.Fatalf("play 4b: %v", err)
	}
	if outcome == nil || !outcome.Won {
		t.Fatalf("expected a won round, got %#v", outcome)
	}
	if g.Phase() != game.PhaseWaiting {
		t.Fatalf("expected waiting phase after round, got %s", g.Phase())
	}
	if g.Mission().Number != 2 {
		t.Fatalf("expected mission ladder advance to 2, got %d", g.Mission().Number)
	}
	history := g.History()
	if len(history) != 1 || !history[0].Won || history[0].Mission.Number != 1 {
		t.Fatalf("unexpected history %#v", history)
	}

	for _, p := range players {
		over := p.EventsOf(event.KindGameOver)
		if len(over) != 1 || !over[0].(event.GameOver).Won {
			t.Fatalf("player %s missing won GameOver, got %#v", p.PlayerID, over)
		}
		tricks := p.EventsOf(event.KindTrickWon)
		if len(tricks) != 1 || tricks[0].(event.TrickWon).WinnerName != "Ann" {
			t.Fatalf("player %s missing TrickWon by Ann", p.PlayerID)
		}
	}
}

func TestScriptedRoundLoss(t *testing.T) {
	ctx := context.Background()
	g, _ := scriptedGame(t, 2) // Cat must win her own 6b, but Ann takes the trick.

	for _, play := range []struct{ id, card string }{
		{"a", "9b"}, {"b", "8b"}, {"c", "6b"},
	} {
		if _, err := g.Play(ctx, play.id, mustCard(t, play.card)); err != nil {
			t.Fatalf("play %s: %v", play.card, err)
		}
	}
	outcome, err := g.Play(ctx, "d", mustCard(t, "4b"))
	if err != nil {
		t.Fatalf("play 4b: %v", err)
	}
	if outcome == nil || outcome.Won {
		t.Fatalf("expected a lost round, got %#v", outcome)
	}
	if g.Mission().Number != 1 {
		t.Fatalf("mission should not advance on a loss, got %d", g.Mission().Number)
	}
}

func TestRoundLostWhenCardsRunOut(t *testing.T) {
	ctx := context.Background()
	// Ann is dealt one card more than the rest; her 1p is Ben's task and
	// is still unplayed when the shorter hands empty.
	g, _ := buildGame(t, game.Snapshot{
		Version:   game.SnapshotVersion,
		GameID:    "MLMCYB6N",
		Phase:     game.PhasePlaying,
		Commander: 0,
		Mission:   1,
		Next:      0,
		Hands: [][]string{
			{"9b", "8b", "1p"},
			{"7b", "6b"},
			{"5b", "4b"},
			{"3b", "2b"},
		},
		Played: [][]string{{}, {}, {}, {}},
		Tasks:  []game.TaskSnapshot{{Card: "1p", Owner: 1}},
		Hinted: []bool{false, false, false, false},
		Seats: []game.SeatSnapshot{
			{ID: "a", Name: "Ann"}, {ID: "b", Name: "Ben"},
			{ID: "c", Name: "Cat"}, {ID: "d", Name: "Dee"},
		},
	})

	for _, play := range []struct{ id, card string }{
		{"a", "9b"}, {"b", "7b"}, {"c", "5b"}, {"d", "3b"},
		{"a", "8b"}, {"b", "6b"}, {"c", "4b"},
	} {
		outcome, err := g.Play(ctx, play.id, mustCard(t, play.card))
		if err != nil {
			t.Fatalf("play %s: %v", play.card, err)
		}
		if outcome != nil {
			t.Fatalf("round ended early on %s: %#v", play.card, outcome)
		}
	}

	// The last full trick: Ann keeps 1p but nobody else can play again.
	outcome, err := g.Play(ctx, "d", mustCard(t, "2b"))
	if err != nil {
		t.Fatalf("play 2b: %v", err)
	}
	if outcome == nil || outcome.Won {
		t.Fatalf("expected exhaustion loss, got %#v", outcome)
	}
	if g.Phase() != game.PhaseWaiting {
		t.Fatalf("expected waiting phase after exhaustion, got %s", g.Phase())
	}
	if g.Mission().Number != 1 {
		t.Fatalf("mission should not advance on exhaustion, got %d", g.Mission().Number)
	}
}

func TestPlayToleratesBrokenTransport(t *testing.T) {
	ctx := context.Background()
	g, players := scriptedGame(t, 0)
	players[3].NotifyErr = errors.New("chat blocked the bot")

	for _, play := range []struct{ id, card string }{
		{"a", "9b"}, {"b", "8b"}, {"c", "6b"},
	} {
		if _, err := g.Play(ctx, play.id, mustCard(t, play.card)); err != nil {
			t.Fatalf("play %s: %v", play.card, err)
		}
	}
	outcome, err := g.Play(ctx, "d", mustCard(t, "4b"))
	if err != nil {
		t.Fatalf("play with broken seat: %v", err)
	}
	if outcome == nil || !outcome.Won {
		t.Fatalf("expected a won round despite broken seat, got %#v", outcome)
	}
	// The reachable seats still got the result.
	if len(players[0].EventsOf(event.KindGameOver)) != 1 {
		t.Fatal("reachable seat missing GameOver")
	}
}

func TestRocketTrumpsTrick(t *testing.T) {
	ctx := context.Background()
	g, _ := buildGame(t, game.Snapshot{
		Version:   game.SnapshotVersion,
		GameID:    "MLMCYB6N",
		Phase:     game.PhasePlaying,
		Commander: 0,
		Mission:   1,
		Next:      0,
		Hands: [][]string{
			{"9b", "1p"},
			{"8b", "2p"},
			{"6b", "3p"},
			{"5p", "4r"},
		},
		Played: [][]string{{}, {}, {}, {}},
		// Dee owns 6b and takes it with her rocket.
		Tasks:  []game.TaskSnapshot{{Card: "6b", Owner: 3}},
		Hinted: []bool{false, false, false, false},
		Seats: []game.SeatSnapshot{
			{ID: "a", Name: "Ann"}, {ID: "b", Name: "Ben"},
			{ID: "c", Name: "Cat"}, {ID: "d", Name: "Dee"},
		},
	})

	for _, play := range []struct{ id, card string }{
		{"a", "9b"}, {"b", "8b"}, {"c", "6b"},
	} {
		if _, err := g.Play(ctx, play.id, mustCard(t, play.card)); err != nil {
			t.Fatalf("play %s: %v", play.card, err)
		}
	}
	// Dee has no blue and may trump with the rocket.
	outcome, err := g.Play(ctx, "d", mustCard(t, "4r"))
	if err != nil {
		t.Fatalf("play 4r: %v", err)
	}
	if outcome == nil || !outcome.Won {
		t.Fatalf("expected rocket capture to win the round, got %#v", outcome)
	}
}

func TestHint(t *testing.T) {
	ctx := context.Background()
	g, players := scriptedGame(t, 0)

	// 1p is Ann's only pink card.
	if err := g.Hint(ctx, "a", mustCard(t, "1p")); err != nil {
		t.Fatalf("hint: %v", err)
	}
	for _, p := range players {
		hints := p.EventsOf(event.KindCardHinted)
		if len(hints) != 1 {
			t.Fatalf("player %s expected 1 hint, got %d", p.PlayerID, len(hints))
		}
		hint := hints[0].(event.CardHinted)
		if hint.Position != "only" || hint.PlayerName != "Ann" {
			t.Fatalf("unexpected hint %#v", hint)
		}
	}

	if err := g.Hint(ctx, "a", mustCard(t, "9b")); !codeIs(err, apperrors.CodeHintTokenUsed) {
		t.Fatalf("expected HINT_TOKEN_USED, got %v", err)
	}
	if err := g.Hint(ctx, "d", mustCard(t, "4r")); !codeIs(err, apperrors.CodeHintRocket) {
		t.Fatalf("expected HINT_ROCKET, got %v", err)
	}

	if _, err := g.Play(ctx, "a", mustCard(t, "9b")); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := g.Hint(ctx, "b", mustCard(t, "2p")); !codeIs(err, apperrors.CodeHintMidTrick) {
		t.Fatalf("expected HINT_MID_TRICK, got %v", err)
	}
}

func TestObserverSeesOnlyPublicEvents(t *testing.T) {
	ctx := context.Background()
	var observed []event.Kind
	g := game.New(rand.New(rand.NewSource(3)), game.WithObserver(func(gameID string, evt event.Event) {
		observed = append(observed, evt.Kind())
	}))
	seatPlayers(t, g, 4)
	if err := g.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, kind := range observed {
		if kind == event.KindCardsDealt || kind == event.KindYourTurn || kind == event.KindJoinedGame {
			t.Fatalf("private event %s leaked to observer", kind)
		}
	}
	var sawTasks bool
	for _, kind := range observed {
		if kind == event.KindTasksAssigned {
			sawTasks = true
		}
	}
	if !sawTasks {
		t.Fatal("observer should see task assignment")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := game.New(rand.New(rand.NewSource(9)))
	players := seatPlayers(t, g, 4)
	if err := g.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}

	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.DisplayName
	}
	snap := g.Snapshot(names)
	if snap.Version != game.SnapshotVersion || snap.Phase != game.PhasePlaying {
		t.Fatalf("unexpected snapshot header %#v", snap)
	}

	revived, err := game.FromSnapshot(snap, rand.New(rand.NewSource(10)), func(seat game.SeatSnapshot) (player.Player, error) {
		return testkit.NewFakePlayer(seat.ID, seat.Name), nil
	})
	if err != nil {
		t.Fatalf("from snapshot: %v", err)
	}
	if revived.ID() != g.ID() {
		t.Fatalf("id mismatch: %s vs %s", revived.ID(), g.ID())
	}
	if revived.Phase() != game.PhasePlaying {
		t.Fatalf("phase mismatch: %s", revived.Phase())
	}
	again := revived.Snapshot(names)
	if again.GameID != snap.GameID || again.Mission != snap.Mission || again.Next != snap.Next {
		t.Fatal("snapshot did not survive the round trip")
	}
	if len(again.Hands) != len(snap.Hands) {
		t.Fatal("hands lost in round trip")
	}

	bad := snap
	bad.Version = 99
	if _, err := game.FromSnapshot(bad, rand.New(rand.NewSource(0)), func(seat game.SeatSnapshot) (player.Player, error) {
		return testkit.NewFakePlayer(seat.ID, seat.Name), nil
	}); !codeIs(err, apperrors.CodeSnapshotUnsupported) {
		t.Fatalf("expected SNAPSHOT_VERSION_UNSUPPORTED, got %v", err)
	}
}
