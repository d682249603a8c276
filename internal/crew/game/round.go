package game

import (
	"context"
	"fmt"
	"log"

	"github.com/sbliven/crew9bot/internal/crew/cards"
	"github.com/sbliven/crew9bot/internal/crew/event"
	"github.com/sbliven/crew9bot/internal/crew/missions"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
	"github.com/sbliven/crew9bot/internal/player"
)

// Begin deals a new round and starts play.
//
// The first round of a game shuffles the seat order; later rounds keep
// it. The commander is the seat dealt the 4🚀 and leads the first trick.
func (g *Game) Begin(ctx context.Context) error {
	g.mu.Lock()
	if g.phase != PhaseWaiting {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodeGameNotWaiting,
			fmt.Sprintf("cannot begin game in phase %s", g.phase))
	}
	n := len(g.players)
	if n < MinPlayers {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodeGameTooFewSeats,
			fmt.Sprintf("need at least %d players, have %d", MinPlayers, n))
	}

	if len(g.history) == 0 {
		g.rng.Shuffle(n, func(i, j int) {
			g.players[i], g.players[j] = g.players[j], g.players[i]
		})
	}

	// Deal: ceil-boundary split of the shuffled deck.
	g.phase = PhaseDealing
	deck := cards.Shuffled(g.rng)
	g.hands = make([][]cards.Card, n)
	for i := 0; i < n; i++ {
		lo := (cards.DeckSize*i + n - 1) / n
		hi := (cards.DeckSize*(i+1) + n - 1) / n
		hand := make([]cards.Card, hi-lo)
		copy(hand, deck[lo:hi])
		cards.Sort(hand)
		g.hands[i] = hand
		if cards.Contains(hand, cards.Commander) {
			g.commander = i
		}
	}
	g.played = make([][]cards.Card, n)
	g.trickWinners = nil
	g.hinted = make([]bool, n)

	g.phase = PhaseTasks
	g.tasks = g.mission.Assign(g.rng, g.hands, g.commander)

	g.phase = PhasePlaying
	g.next = g.commander

	all := append([]player.Player(nil), g.players...)
	hands := g.hands
	tasks := g.tasks
	g.mu.Unlock()

	owners := make([]string, len(all))
	for i, p := range all {
		owners[i] = playerName(ctx, p)
	}

	for i, p := range all {
		g.notify(ctx, []player.Player{p}, event.CardsDealt{Hand: hands[i]}, false)
	}
	g.notify(ctx, all, event.TasksAssigned{Tasks: tasks, Owners: owners}, true)
	g.promptTurn(ctx)
	return nil
}

// Play accepts a card from the player whose turn it is.
//
// A non-nil outcome means the round ended and the game is back in the
// waiting phase.
func (g *Game) Play(ctx context.Context, playerID string, card cards.Card) (*RoundOutcome, error) {
	g.mu.Lock()
	if g.phase != PhasePlaying {
		g.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeGameNotPlaying,
			fmt.Sprintf("cannot play in phase %s", g.phase))
	}
	seat, err := g.seatOf(playerID)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}
	if seat != g.next {
		g.mu.Unlock()
		return nil, apperrors.New(apperrors.CodePlayOutOfTurn, "it is not this player's turn")
	}

	remaining := g.remaining(seat)
	if !cards.Contains(remaining, card) {
		g.mu.Unlock()
		return nil, apperrors.WithMetadata(apperrors.CodeCardNotHeld,
			"card is not in hand", map[string]string{"Card": card.String()})
	}
	if !cards.Contains(g.validMoves(seat), card) {
		g.mu.Unlock()
		return nil, apperrors.WithMetadata(apperrors.CodeMustFollowSuit,
			"must follow the lead suit", map[string]string{"Card": card.String()})
	}

	trick := len(g.trickWinners)
	g.played[seat] = append(g.played[seat], card)

	all := append([]player.Player(nil), g.players...)
	actor := g.players[seat]
	others := make([]player.Player, 0, len(all)-1)
	for i, p := range all {
		if i != seat {
			others = append(others, p)
		}
	}

	trickDone := true
	for i := range g.players {
		if len(g.played[i]) <= trick {
			trickDone = false
			break
		}
	}

	var (
		outcome *RoundOutcome
		winner  int
	)
	if trickDone {
		lead := g.leadSuit(trick)
		trickCards := make([]cards.Card, len(g.players))
		for i := range g.players {
			trickCards[i] = g.played[i][trick]
		}
		winner = cards.TrickWinner(trickCards, lead)
		g.trickWinners = append(g.trickWinners, winner)
		g.next = winner

		switch missions.Evaluate(g.tasks, g.played, g.trickWinners) {
		case missions.Won:
			outcome = g.finishRound(true)
		case missions.Lost:
			outcome = g.finishRound(false)
		default:
			// Out of cards with tasks left means the mission failed.
			if len(g.remaining(g.exhaustedSeat())) == 0 {
				outcome = g.finishRound(false)
			}
		}
	} else {
		g.next = (g.next + 1) % len(g.players)
	}
	g.mu.Unlock()

	g.notify(ctx, others,
		event.CardPlayed{PlayerName: playerName(ctx, actor), Card: card}, true)

	if trickDone {
		g.notify(ctx, all,
			event.TrickWon{Trick: trick, WinnerName: playerName(ctx, all[winner])}, true)
	}
	if outcome != nil {
		g.notify(ctx, all,
			event.GameOver{Won: outcome.Won, Mission: outcome.Mission}, true)
	} else {
		g.promptTurn(ctx)
	}
	return outcome, nil
}

// Hint spends the player's communication token on a card.
//
// Communication happens between tricks: the card must be the holder's
// highest, lowest, or only card of a color suit.
func (g *Game) Hint(ctx context.Context, playerID string, card cards.Card) error {
	g.mu.Lock()
	if g.phase != PhasePlaying {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodeGameNotPlaying,
			fmt.Sprintf("cannot communicate in phase %s", g.phase))
	}
	seat, err := g.seatOf(playerID)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if g.hinted[seat] {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodeHintTokenUsed, "communication token already spent")
	}
	trick := len(g.trickWinners)
	for i := range g.players {
		if len(g.played[i]) > trick {
			g.mu.Unlock()
			return apperrors.New(apperrors.CodeHintMidTrick, "cannot communicate during a trick")
		}
	}
	if card.Suit == cards.Rocket {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodeHintRocket, "rockets cannot be communicated")
	}
	remaining := g.remaining(seat)
	if !cards.Contains(remaining, card) {
		g.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeCardNotHeld,
			"card is not in hand", map[string]string{"Card": card.String()})
	}
	position, ok := hintPosition(remaining, card)
	if !ok {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodeHintNotExtreme,
			"card must be the highest, lowest, or only card of its suit")
	}
	g.hinted[seat] = true
	all := append([]player.Player(nil), g.players...)
	actor := g.players[seat]
	g.mu.Unlock()

	g.notify(ctx, all, event.CardHinted{
		PlayerName: playerName(ctx, actor),
		Card:       card,
		Position:   position,
	}, true)
	return nil
}

// Hand returns the player's remaining cards.
func (g *Game) Hand(playerID string) ([]cards.Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	seat, err := g.seatOf(playerID)
	if err != nil {
		return nil, err
	}
	if g.phase != PhasePlaying {
		return nil, apperrors.New(apperrors.CodeGameNotPlaying, "no cards dealt yet")
	}
	return g.remaining(seat), nil
}

// finishRound records the outcome and resets for the next round.
// Callers hold g.mu.
func (g *Game) finishRound(won bool) *RoundOutcome {
	outcome := RoundOutcome{Mission: g.mission, Won: won}
	g.history = append(g.history, outcome)
	if won {
		g.mission = missions.Next(g.mission)
	}
	g.phase = PhaseWaiting
	g.hands = nil
	g.played = nil
	g.tasks = nil
	g.trickWinners = nil
	g.hinted = nil
	return &outcome
}

// promptTurn notifies the next player of their valid moves.
func (g *Game) promptTurn(ctx context.Context) {
	g.mu.Lock()
	if g.phase != PhasePlaying {
		g.mu.Unlock()
		return
	}
	p := g.players[g.next]
	valid := g.validMoves(g.next)
	g.mu.Unlock()

	if err := p.Notify(ctx, event.YourTurn{Valid: valid}); err != nil {
		log.Printf("game %s: prompt player %s: %v", g.ID(), p.ID(), err)
	}
}

// remaining returns the unplayed cards for a seat. Callers hold g.mu.
func (g *Game) remaining(seat int) []cards.Card {
	playedSet := make(map[cards.Card]bool, len(g.played[seat]))
	for _, c := range g.played[seat] {
		playedSet[c] = true
	}
	var out []cards.Card
	for _, c := range g.hands[seat] {
		if !playedSet[c] {
			out = append(out, c)
		}
	}
	return out
}

// validMoves returns the cards a seat may legally play right now.
// Callers hold g.mu.
func (g *Game) validMoves(seat int) []cards.Card {
	remaining := g.remaining(seat)
	trick := len(g.trickWinners)
	leadSeat := g.leadSeat(trick)
	if len(g.played[leadSeat]) <= trick {
		// Trick not started; anything goes.
		return remaining
	}
	lead := g.played[leadSeat][trick].Suit
	var follow []cards.Card
	for _, c := range remaining {
		if c.Suit == lead {
			follow = append(follow, c)
		}
	}
	if len(follow) > 0 {
		return follow
	}
	return remaining
}

// leadSeat returns the seat that leads the given trick. Callers hold g.mu.
func (g *Game) leadSeat(trick int) int {
	if trick == 0 {
		return g.commander
	}
	return g.trickWinners[trick-1]
}

// leadSuit returns the suit that led a started trick. Callers hold g.mu.
func (g *Game) leadSuit(trick int) cards.Suit {
	return g.played[g.leadSeat(trick)][trick].Suit
}

// exhaustedSeat returns the seat with the fewest remaining cards.
// Callers hold g.mu.
func (g *Game) exhaustedSeat() int {
	min := 0
	for i := 1; i < len(g.players); i++ {
		if len(g.remaining(i)) < len(g.remaining(min)) {
			min = i
		}
	}
	return min
}

// hintPosition classifies card within the holder's remaining suit cards.
func hintPosition(remaining []cards.Card, card cards.Card) (string, bool) {
	var suited []cards.Card
	for _, c := range remaining {
		if c.Suit == card.Suit {
			suited = append(suited, c)
		}
	}
	if len(suited) == 1 {
		return "only", true
	}
	highest, lowest := suited[0], suited[0]
	for _, c := range suited[1:] {
		if c.Value > highest.Value {
			highest = c
		}
		if c.Value < lowest.Value {
			lowest = c
		}
	}
	switch card {
	case highest:
		return "highest", true
	case lowest:
		return "lowest", true
	}
	return "", false
}
