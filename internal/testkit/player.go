// Package testkit provides shared fakes for exercising game flows in tests.
package testkit

import (
	"context"
	"sync"

	"github.com/sbliven/crew9bot/internal/crew/event"
)

// FakePlayer records every notification it receives. Setting NotifyErr
// simulates a broken transport, e.g. a chat that blocked the bot.
type FakePlayer struct {
	PlayerID    string
	DisplayName string
	NotifyErr   error

	mu     sync.Mutex
	events []event.Event
}

// NewFakePlayer creates a fake player with the given id and name.
func NewFakePlayer(id, name string) *FakePlayer {
	return &FakePlayer{PlayerID: id, DisplayName: name}
}

// ID implements player.Player.
func (p *FakePlayer) ID() string { return p.PlayerID }

// Name implements player.Player.
func (p *FakePlayer) Name(ctx context.Context) (string, error) {
	return p.DisplayName, nil
}

// Notify implements player.Player by recording the event.
func (p *FakePlayer) Notify(ctx context.Context, evt event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NotifyErr != nil {
		return p.NotifyErr
	}
	p.events = append(p.events, evt)
	return nil
}

// Events returns a copy of all recorded events.
func (p *FakePlayer) Events() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Event, len(p.events))
	copy(out, p.events)
	return out
}

// LastEvent returns the most recent event, or nil.
func (p *FakePlayer) LastEvent() event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

// EventsOf returns all recorded events of the given kind.
func (p *FakePlayer) EventsOf(kind event.Kind) []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.Event
	for _, evt := range p.events {
		if evt.Kind() == kind {
			out = append(out, evt)
		}
	}
	return out
}
