// Package player defines the seat-facing interface games notify through.
package player

import (
	"context"

	"github.com/sbliven/crew9bot/internal/crew/event"
)

// Player is one participant in a game.
//
// Implementations deliver notifications over their own transport; the
// game engine never talks to Telegram directly.
type Player interface {
	// ID uniquely identifies the player across games.
	ID() string
	// Name returns the display name used in notifications.
	Name(ctx context.Context) (string, error)
	// Notify delivers a game event that needs no response.
	Notify(ctx context.Context, evt event.Event) error
}
