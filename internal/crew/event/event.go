// Package event defines the notifications a game fans out to its seats
// and to the spectator feed.
package event

import (
	"github.com/sbliven/crew9bot/internal/crew/cards"
	"github.com/sbliven/crew9bot/internal/crew/missions"
)

// Kind identifies an event type on the wire and in transport rendering.
type Kind string

const (
	KindJoinedGame     Kind = "game.joined"
	KindPlayerJoined   Kind = "game.player_joined"
	KindPlayerLeft     Kind = "game.player_left"
	KindMissionChanged Kind = "game.mission_changed"
	KindCardsDealt     Kind = "round.cards_dealt"
	KindTasksAssigned  Kind = "round.tasks_assigned"
	KindYourTurn       Kind = "round.your_turn"
	KindCardPlayed     Kind = "round.card_played"
	KindCardHinted     Kind = "round.card_hinted"
	KindTrickWon       Kind = "round.trick_won"
	KindGameOver       Kind = "round.over"
)

// Event is a game notification.
type Event interface {
	Kind() Kind
}

// JoinedGame notifies a player that they took a seat in a game.
type JoinedGame struct {
	GameID    string `json:"game_id"`
	InviteURL string `json:"invite_url"`
}

func (JoinedGame) Kind() Kind { return KindJoinedGame }

// PlayerJoined notifies existing seats that a new player sat down.
type PlayerJoined struct {
	PlayerName string `json:"player_name"`
}

func (PlayerJoined) Kind() Kind { return KindPlayerJoined }

// PlayerLeft notifies remaining seats that a player stood up.
type PlayerLeft struct {
	PlayerName string `json:"player_name"`
}

func (PlayerLeft) Kind() Kind { return KindPlayerLeft }

// MissionChanged notifies seats of the mission for the next round.
type MissionChanged struct {
	Mission missions.Mission `json:"mission"`
}

func (MissionChanged) Kind() Kind { return KindMissionChanged }

// CardsDealt carries a seat's dealt hand.
type CardsDealt struct {
	Hand []cards.Card `json:"hand"`
}

func (CardsDealt) Kind() Kind { return KindCardsDealt }

// TasksAssigned lists the round's tasks with owner names by seat order.
type TasksAssigned struct {
	Tasks  []missions.Task `json:"tasks"`
	Owners []string        `json:"owners"`
}

func (TasksAssigned) Kind() Kind { return KindTasksAssigned }

// YourTurn prompts a seat to play one of the valid cards.
type YourTurn struct {
	Valid []cards.Card `json:"valid"`
}

func (YourTurn) Kind() Kind { return KindYourTurn }

// CardPlayed reports a play to the other seats.
type CardPlayed struct {
	PlayerName string     `json:"player_name"`
	Card       cards.Card `json:"card"`
}

func (CardPlayed) Kind() Kind { return KindCardPlayed }

// CardHinted reports a communication token: the player reveals that the
// card is their highest, lowest, or only card of its suit.
type CardHinted struct {
	PlayerName string     `json:"player_name"`
	Card       cards.Card `json:"card"`
	Position   string     `json:"position"`
}

func (CardHinted) Kind() Kind { return KindCardHinted }

// TrickWon reports the winner of a completed trick.
type TrickWon struct {
	Trick      int    `json:"trick"`
	WinnerName string `json:"winner_name"`
}

func (TrickWon) Kind() Kind { return KindTrickWon }

// GameOver reports the round outcome.
type GameOver struct {
	Won     bool             `json:"won"`
	Mission missions.Mission `json:"mission"`
}

func (GameOver) Kind() Kind { return KindGameOver }
