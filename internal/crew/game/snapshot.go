package game

import (
	"fmt"
	"math/rand"

	"github.com/sbliven/crew9bot/internal/crew/cards"
	"github.com/sbliven/crew9bot/internal/crew/missions"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
	"github.com/sbliven/crew9bot/internal/player"
)

// SnapshotVersion is the current snapshot document version.
const SnapshotVersion = 1

// SeatSnapshot captures a seated player for persistence.
type SeatSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskSnapshot captures a mission task for persistence.
type TaskSnapshot struct {
	Card  string `json:"card"`
	Owner int    `json:"owner"`
}

// RoundSnapshot captures one finished round for persistence.
type RoundSnapshot struct {
	Mission int  `json:"mission"`
	Won     bool `json:"won"`
}

// Snapshot is the JSON-serializable state of a game.
type Snapshot struct {
	Version      int            `json:"version"`
	GameID       string         `json:"game_id"`
	Phase        Phase          `json:"phase"`
	Seats        []SeatSnapshot `json:"seats"`
	Commander    int            `json:"commander"`
	Mission      int            `json:"mission"`
	Hands        [][]string     `json:"hands,omitempty"`
	Played       [][]string     `json:"played,omitempty"`
	TrickWinners []int          `json:"trick_winners,omitempty"`
	Tasks        []TaskSnapshot `json:"tasks,omitempty"`
	Next         int            `json:"next"`
	Hinted       []bool         `json:"hinted,omitempty"`
	History      []RoundSnapshot `json:"history,omitempty"`
}

// Snapshot captures the full game state for persistence. Player names
// are resolved so revived games can describe themselves without the
// original transport connections.
func (g *Game) Snapshot(names []string) Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := Snapshot{
		Version:   SnapshotVersion,
		GameID:    EncodeID(g.id),
		Phase:     g.phase,
		Commander: g.commander,
		Mission:   g.mission.Number,
		Next:      g.next,
	}
	for i, p := range g.players {
		seat := SeatSnapshot{ID: p.ID()}
		if i < len(names) {
			seat.Name = names[i]
		}
		snap.Seats = append(snap.Seats, seat)
	}
	snap.Hands = encodeDeals(g.hands)
	snap.Played = encodeDeals(g.played)
	snap.TrickWinners = append([]int(nil), g.trickWinners...)
	snap.Hinted = append([]bool(nil), g.hinted...)
	for _, task := range g.tasks {
		snap.Tasks = append(snap.Tasks, TaskSnapshot{Card: task.Card.Key(), Owner: task.Owner})
	}
	for _, round := range g.history {
		snap.History = append(snap.History, RoundSnapshot{Mission: round.Mission.Number, Won: round.Won})
	}
	return snap
}

// FromSnapshot revives a game from a persisted snapshot. The resolve
// function rebinds each seat to a live player transport.
func FromSnapshot(snap Snapshot, rng *rand.Rand, resolve func(SeatSnapshot) (player.Player, error), opts ...Option) (*Game, error) {
	if snap.Version != SnapshotVersion {
		return nil, apperrors.WithMetadata(apperrors.CodeSnapshotUnsupported,
			fmt.Sprintf("snapshot version %d is not supported", snap.Version),
			map[string]string{"GameID": snap.GameID})
	}
	id, err := DecodeID(snap.GameID)
	if err != nil {
		return nil, err
	}
	mission, err := missions.ByNumber(snap.Mission)
	if err != nil {
		return nil, err
	}

	g := &Game{
		rng:       rng,
		id:        id,
		botName:   "Crew9Bot",
		phase:     snap.Phase,
		commander: snap.Commander,
		mission:   mission,
		next:      snap.Next,
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, seat := range snap.Seats {
		p, err := resolve(seat)
		if err != nil {
			return nil, fmt.Errorf("resolve seat %s: %w", seat.ID, err)
		}
		g.players = append(g.players, p)
	}

	if g.hands, err = decodeDeals(snap.Hands); err != nil {
		return nil, err
	}
	if g.played, err = decodeDeals(snap.Played); err != nil {
		return nil, err
	}
	g.trickWinners = append([]int(nil), snap.TrickWinners...)
	g.hinted = append([]bool(nil), snap.Hinted...)
	for _, task := range snap.Tasks {
		card, err := cards.Parse(task.Card)
		if err != nil {
			return nil, err
		}
		g.tasks = append(g.tasks, missions.Task{Card: card, Owner: task.Owner})
	}
	for _, round := range snap.History {
		mission, err := missions.ByNumber(round.Mission)
		if err != nil {
			return nil, err
		}
		g.history = append(g.history, RoundOutcome{Mission: mission, Won: round.Won})
	}
	return g, nil
}

func encodeDeals(deals [][]cards.Card) [][]string {
	if deals == nil {
		return nil
	}
	out := make([][]string, len(deals))
	for i, hand := range deals {
		out[i] = make([]string, len(hand))
		for j, card := range hand {
			out[i][j] = card.Key()
		}
	}
	return out
}

func decodeDeals(deals [][]string) ([][]cards.Card, error) {
	if deals == nil {
		return nil, nil
	}
	out := make([][]cards.Card, len(deals))
	for i, hand := range deals {
		out[i] = make([]cards.Card, len(hand))
		for j, key := range hand {
			card, err := cards.Parse(key)
			if err != nil {
				return nil, err
			}
			out[i][j] = card
		}
	}
	return out, nil
}
