// Package master keeps the registry of hosted games and their players.
//
// Every mutating operation writes the game snapshot through to the
// store, so a restarted process can revive games where they stood.
package master

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/sbliven/crew9bot/internal/crew/cards"
	"github.com/sbliven/crew9bot/internal/crew/game"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
	"github.com/sbliven/crew9bot/internal/player"
	"github.com/sbliven/crew9bot/internal/random"
	"github.com/sbliven/crew9bot/internal/storage"
)

// Resolver rebinds a persisted seat to a live player transport.
type Resolver func(game.SeatSnapshot) (player.Player, error)

// Master hosts concurrent games. All methods are safe for concurrent use.
type Master struct {
	store    storage.Store
	resolve  Resolver
	botName  string
	observer game.Observer

	mu       sync.Mutex
	games    map[string]*game.Game
	byPlayer map[string]string
}

// Option configures a master at construction.
type Option func(*Master)

// WithBotUsername sets the Telegram username used in invite deep links.
func WithBotUsername(name string) Option {
	return func(m *Master) { m.botName = name }
}

// WithObserver attaches a public-event observer to every hosted game.
func WithObserver(observer game.Observer) Option {
	return func(m *Master) { m.observer = observer }
}

// New creates a master backed by the given store. The resolver rebinds
// persisted seats when games are revived after a restart.
func New(store storage.Store, resolve Resolver, opts ...Option) *Master {
	m := &Master{
		store:    store,
		resolve:  resolve,
		botName:  "Crew9Bot",
		games:    make(map[string]*game.Game),
		byPlayer: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newRNG() (*rand.Rand, error) {
	seed, err := random.NewSeed()
	if err != nil {
		return nil, fmt.Errorf("new rng seed: %w", err)
	}
	return rand.New(rand.NewSource(seed)), nil
}

func (m *Master) gameOptions() []game.Option {
	opts := []game.Option{game.WithBotUsername(m.botName)}
	if m.observer != nil {
		opts = append(opts, game.WithObserver(m.observer))
	}
	return opts
}

// Revive loads all persisted games back into the registry. Games whose
// seats cannot be rebound are skipped and left in the store.
func (m *Master) Revive(ctx context.Context) error {
	snaps, err := m.store.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, snap := range snaps {
		rng, err := newRNG()
		if err != nil {
			return err
		}
		g, err := game.FromSnapshot(snap, rng, m.resolve, m.gameOptions()...)
		if err != nil {
			log.Printf("skip reviving game %s: %v", snap.GameID, err)
			continue
		}
		m.games[g.ID()] = g
		for _, p := range g.Players() {
			m.byPlayer[p.ID()] = g.ID()
		}
	}
	return nil
}

// NewGame creates a game and seats its first player.
func (m *Master) NewGame(ctx context.Context, p player.Player) (*game.Game, error) {
	m.mu.Lock()
	if gameID, ok := m.byPlayer[p.ID()]; ok {
		m.mu.Unlock()
		return nil, apperrors.WithMetadata(apperrors.CodePlayerSeated,
			"player is already in a game", map[string]string{"GameID": gameID})
	}
	rng, err := newRNG()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	g := game.New(rng, m.gameOptions()...)
	for m.games[g.ID()] != nil {
		g = game.New(rng, m.gameOptions()...)
	}
	m.games[g.ID()] = g
	m.byPlayer[p.ID()] = g.ID()
	m.mu.Unlock()

	if err := g.Join(ctx, p); err != nil {
		m.mu.Lock()
		delete(m.games, g.ID())
		delete(m.byPlayer, p.ID())
		m.mu.Unlock()
		return nil, err
	}
	return g, m.persist(ctx, g)
}

// JoinGame seats a player in an existing game by its encoded id,
// reviving the game from the store when it is not in memory.
func (m *Master) JoinGame(ctx context.Context, gameID string, p player.Player) (*game.Game, error) {
	id, err := game.DecodeID(gameID)
	if err != nil {
		return nil, err
	}
	gameID = game.EncodeID(id)

	// Check and reserve in one critical section so two concurrent joins
	// by the same player cannot both pass the seated check.
	m.mu.Lock()
	if current, ok := m.byPlayer[p.ID()]; ok {
		m.mu.Unlock()
		return nil, apperrors.WithMetadata(apperrors.CodePlayerSeated,
			"player is already in a game", map[string]string{"GameID": current})
	}
	m.byPlayer[p.ID()] = gameID
	g, ok := m.games[gameID]
	m.mu.Unlock()

	if !ok {
		if g, err = m.reviveOne(ctx, gameID); err != nil {
			m.releaseSeat(p.ID(), gameID)
			return nil, err
		}
	}

	if err := g.Join(ctx, p); err != nil {
		// A revived snapshot may already hold this player; keep the
		// index entry then, the seat is real.
		if !seatedIn(g, p.ID()) {
			m.releaseSeat(p.ID(), gameID)
		}
		return nil, err
	}
	return g, m.persist(ctx, g)
}

// releaseSeat drops a player's index entry if it still points at gameID.
func (m *Master) releaseSeat(playerID, gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byPlayer[playerID] == gameID {
		delete(m.byPlayer, playerID)
	}
}

func seatedIn(g *game.Game, playerID string) bool {
	for _, p := range g.Players() {
		if p.ID() == playerID {
			return true
		}
	}
	return false
}

// reviveOne loads a single game from the store into the registry.
func (m *Master) reviveOne(ctx context.Context, gameID string) (*game.Game, error) {
	snap, err := m.store.LoadSnapshot(ctx, gameID)
	if err != nil {
		return nil, err
	}
	rng, err := newRNG()
	if err != nil {
		return nil, err
	}
	g, err := game.FromSnapshot(snap, rng, m.resolve, m.gameOptions()...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.games[gameID]; ok {
		return existing, nil
	}
	m.games[gameID] = g
	for _, p := range g.Players() {
		m.byPlayer[p.ID()] = gameID
	}
	return g, nil
}

// Find returns the game a player is seated in.
func (m *Master) Find(playerID string) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameID, ok := m.byPlayer[playerID]
	if !ok {
		return nil, apperrors.New(apperrors.CodePlayerNotSeated, "player is not in a game")
	}
	return m.games[gameID], nil
}

// Lookup returns a hosted game by its encoded id.
func (m *Master) Lookup(gameID string) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound,
			"game not found", map[string]string{"GameID": gameID})
	}
	return g, nil
}

// Leave removes a player from their game. An emptied game is dropped
// from the registry and the store.
func (m *Master) Leave(ctx context.Context, playerID string) error {
	g, err := m.Find(playerID)
	if err != nil {
		return err
	}
	if err := g.Leave(ctx, playerID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.byPlayer, playerID)
	empty := g.Seats() == 0
	if empty {
		delete(m.games, g.ID())
	}
	m.mu.Unlock()

	if empty {
		return m.store.DeleteSnapshot(ctx, g.ID())
	}
	return m.persist(ctx, g)
}

// SetMission selects the mission for the player's game.
func (m *Master) SetMission(ctx context.Context, playerID string, number int) error {
	g, err := m.Find(playerID)
	if err != nil {
		return err
	}
	if err := g.SetMission(ctx, number); err != nil {
		return err
	}
	return m.persist(ctx, g)
}

// Begin starts the next round of the player's game.
func (m *Master) Begin(ctx context.Context, playerID string) error {
	g, err := m.Find(playerID)
	if err != nil {
		return err
	}
	if err := g.Begin(ctx); err != nil {
		return err
	}
	return m.persist(ctx, g)
}

// Play forwards a card play and journals the round when it ends.
func (m *Master) Play(ctx context.Context, playerID string, card cards.Card) (*game.RoundOutcome, error) {
	g, err := m.Find(playerID)
	if err != nil {
		return nil, err
	}
	outcome, err := g.Play(ctx, playerID, card)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		if err := m.store.AppendRound(ctx, storage.Round{
			GameID:     g.ID(),
			Mission:    outcome.Mission.Number,
			Won:        outcome.Won,
			FinishedAt: time.Now(),
		}); err != nil {
			return outcome, err
		}
	}
	return outcome, m.persist(ctx, g)
}

// Hint forwards a communication hint in the player's game.
func (m *Master) Hint(ctx context.Context, playerID string, card cards.Card) error {
	g, err := m.Find(playerID)
	if err != nil {
		return err
	}
	if err := g.Hint(ctx, playerID, card); err != nil {
		return err
	}
	return m.persist(ctx, g)
}

// Hand returns the player's remaining cards.
func (m *Master) Hand(playerID string) ([]cards.Card, error) {
	g, err := m.Find(playerID)
	if err != nil {
		return nil, err
	}
	return g.Hand(playerID)
}

// List describes every hosted game.
func (m *Master) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	games := make([]*game.Game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	m.mu.Unlock()

	descriptions := make([]string, 0, len(games))
	for _, g := range games {
		description, err := g.Description(ctx)
		if err != nil {
			return nil, err
		}
		descriptions = append(descriptions, description)
	}
	return descriptions, nil
}

// persist writes a game snapshot through to the store.
func (m *Master) persist(ctx context.Context, g *game.Game) error {
	players := g.Players()
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = playerName(ctx, p)
	}
	if err := m.store.SaveSnapshot(ctx, g.Snapshot(names)); err != nil {
		return fmt.Errorf("persist game %s: %w", g.ID(), err)
	}
	return nil
}

func playerName(ctx context.Context, p player.Player) string {
	name, err := p.Name(ctx)
	if err != nil || name == "" {
		return p.ID()
	}
	return name
}
