// Package game tracks one crew game through its round lifecycle.
//
// Games move through the following phases:
//
//  1. waiting: players take seats, the mission can be set. Begin() leaves.
//  2. dealing: the deck is split and the commander located.
//  3. tasks: mission task cards are drawn and assigned.
//  4. playing: seats play tricks in turn until the mission resolves.
//  5. The round ends back in waiting with the mission ladder advanced on
//     a win, ready for the next Begin().
package game

import (
	"context"
	"encoding/base32"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"

	"github.com/sbliven/crew9bot/internal/crew/cards"
	"github.com/sbliven/crew9bot/internal/crew/event"
	"github.com/sbliven/crew9bot/internal/crew/missions"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
	"github.com/sbliven/crew9bot/internal/player"
)

const (
	// MinPlayers and MaxPlayers bound the seat count for a round.
	MinPlayers = 3
	MaxPlayers = 5

	idBytes = 5
)

// Phase is the lifecycle phase of a game.
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseDealing Phase = "dealing"
	PhaseTasks   Phase = "tasks"
	PhasePlaying Phase = "playing"
)

// RoundOutcome records one finished round.
type RoundOutcome struct {
	Mission missions.Mission
	Won     bool
}

// Observer receives the public events of a game, e.g. for a spectator feed.
// Seat-private events (hands, turn prompts) are never observed.
type Observer func(gameID string, evt event.Event)

// Option configures a game at construction.
type Option func(*Game)

// WithBotUsername sets the Telegram username used in invite deep links.
func WithBotUsername(name string) Option {
	return func(g *Game) { g.botName = name }
}

// WithObserver attaches a public-event observer.
func WithObserver(observer Observer) Option {
	return func(g *Game) { g.observer = observer }
}

// Game is a single hosted game. All methods are safe for concurrent use.
type Game struct {
	mu  sync.Mutex
	rng *rand.Rand

	id       uint64
	botName  string
	observer Observer

	phase        Phase
	players      []player.Player
	commander    int
	mission      missions.Mission
	tasks        []missions.Task
	hands        [][]cards.Card
	played       [][]cards.Card
	trickWinners []int
	next         int
	hinted       []bool
	history      []RoundOutcome
}

// New creates a game with a random identifier drawn from rng.
//
// The rng also drives dealing and task assignment, which keeps a whole
// game replayable from its seed.
func New(rng *rand.Rand, opts ...Option) *Game {
	g := &Game{
		rng:     rng,
		botName: "Crew9Bot",
		phase:   PhaseWaiting,
		mission: missions.First,
	}
	var raw [idBytes]byte
	_, _ = rng.Read(raw[:])
	for _, b := range raw {
		g.id = g.id<<8 | uint64(b)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeID renders a numeric game identifier in its human-readable form:
// five bytes as unpadded base32, eight characters.
func EncodeID(id uint64) string {
	var raw [idBytes]byte
	for i := idBytes - 1; i >= 0; i-- {
		raw[i] = byte(id)
		id >>= 8
	}
	return idEncoding.EncodeToString(raw[:])
}

// DecodeID parses a human-readable game identifier.
func DecodeID(s string) (uint64, error) {
	raw, err := idEncoding.DecodeString(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil || len(raw) != idBytes {
		return 0, apperrors.WithMetadata(apperrors.CodeGameIDInvalid,
			"game id must be 8 base32 characters", map[string]string{"Input": s})
	}
	var id uint64
	for _, b := range raw {
		id = id<<8 | uint64(b)
	}
	return id, nil
}

// ID returns the human-readable game identifier.
func (g *Game) ID() string {
	return EncodeID(g.id)
}

// Phase returns the current lifecycle phase.
func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Mission returns the mission for the current or next round.
func (g *Game) Mission() missions.Mission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mission
}

// History returns the outcomes of finished rounds, oldest first.
func (g *Game) History() []RoundOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]RoundOutcome, len(g.history))
	copy(out, g.history)
	return out
}

// Seats returns the number of seated players.
func (g *Game) Seats() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

// Players returns the seated players in seat order.
func (g *Game) Players() []player.Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]player.Player(nil), g.players...)
}

// InviteURL returns the deep link players forward to join this game.
func (g *Game) InviteURL() string {
	return fmt.Sprintf("https://t.me/%s?start=%s", g.botName, g.ID())
}

// Join seats a player in a waiting game.
func (g *Game) Join(ctx context.Context, p player.Player) error {
	g.mu.Lock()
	if g.phase != PhaseWaiting {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodeGameNotWaiting,
			fmt.Sprintf("cannot join game in phase %s", g.phase))
	}
	if len(g.players) >= MaxPlayers {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodeGameFull,
			fmt.Sprintf("game already has %d players", MaxPlayers))
	}
	for _, seated := range g.players {
		if seated.ID() == p.ID() {
			g.mu.Unlock()
			return apperrors.New(apperrors.CodePlayerSeated, "player already seated in this game")
		}
	}
	others := append([]player.Player(nil), g.players...)
	g.players = append(g.players, p)
	g.mu.Unlock()

	name, err := p.Name(ctx)
	if err != nil {
		name = p.ID()
	}
	g.notify(ctx, others, event.PlayerJoined{PlayerName: name}, true)
	g.notify(ctx, []player.Player{p}, event.JoinedGame{GameID: g.ID(), InviteURL: g.InviteURL()}, false)
	return nil
}

// Leave removes a player from a waiting game.
func (g *Game) Leave(ctx context.Context, playerID string) error {
	g.mu.Lock()
	if g.phase != PhaseWaiting {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodeGameNotWaiting,
			fmt.Sprintf("cannot leave game in phase %s", g.phase))
	}
	seat := -1
	for i, p := range g.players {
		if p.ID() == playerID {
			seat = i
			break
		}
	}
	if seat < 0 {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodePlayerNotSeated, "player is not seated in this game")
	}
	leaving := g.players[seat]
	g.players = append(g.players[:seat], g.players[seat+1:]...)
	remaining := append([]player.Player(nil), g.players...)
	g.mu.Unlock()

	name, err := leaving.Name(ctx)
	if err != nil {
		name = playerID
	}
	g.notify(ctx, remaining, event.PlayerLeft{PlayerName: name}, true)
	return nil
}

// SetMission selects the mission for the next round of a waiting game.
func (g *Game) SetMission(ctx context.Context, number int) error {
	mission, err := missions.ByNumber(number)
	if err != nil {
		return err
	}
	g.mu.Lock()
	if g.phase != PhaseWaiting {
		g.mu.Unlock()
		return apperrors.New(apperrors.CodeGameNotWaiting,
			fmt.Sprintf("cannot change mission in phase %s", g.phase))
	}
	g.mission = mission
	all := append([]player.Player(nil), g.players...)
	g.mu.Unlock()

	g.notify(ctx, all, event.MissionChanged{Mission: mission}, true)
	return nil
}

// Description summarizes the game and its players.
func (g *Game) Description(ctx context.Context) (string, error) {
	g.mu.Lock()
	all := append([]player.Player(nil), g.players...)
	g.mu.Unlock()

	names := make([]string, 0, len(all))
	for _, p := range all {
		name, err := p.Name(ctx)
		if err != nil {
			return "", fmt.Errorf("resolve player name: %w", err)
		}
		names = append(names, name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Game %s with ", g.ID())
	switch len(names) {
	case 0:
		b.WriteString("no players")
	case 1:
		b.WriteString(names[0])
	default:
		b.WriteString(strings.Join(names[:len(names)-1], ", "))
		b.WriteString(" and ")
		b.WriteString(names[len(names)-1])
	}
	return b.String(), nil
}

// notify fans an event out to the given players concurrently. When the
// event is public it is also forwarded to the observer.
//
// Delivery failures are logged and dropped: a blocked or broken
// transport must not unwind a game mutation that already happened.
func (g *Game) notify(ctx context.Context, targets []player.Player, evt event.Event, public bool) {
	if public && g.observer != nil {
		g.observer(g.ID(), evt)
	}
	if len(targets) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, p := range targets {
		wg.Add(1)
		go func(p player.Player) {
			defer wg.Done()
			if err := p.Notify(ctx, evt); err != nil {
				log.Printf("game %s: notify player %s of %s: %v", g.ID(), p.ID(), evt.Kind(), err)
			}
		}(p)
	}
	wg.Wait()
}

// seatOf returns the seat index for a player id. Callers hold g.mu.
func (g *Game) seatOf(playerID string) (int, error) {
	for i, p := range g.players {
		if p.ID() == playerID {
			return i, nil
		}
	}
	return 0, apperrors.New(apperrors.CodePlayerNotSeated, "player is not seated in this game")
}

// playerName resolves a display name, falling back to the player id.
func playerName(ctx context.Context, p player.Player) string {
	name, err := p.Name(ctx)
	if err != nil || name == "" {
		return p.ID()
	}
	return name
}
