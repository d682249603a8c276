// Package bot hosts games of The Crew over the Telegram Bot API.
package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sbliven/crew9bot/internal/crew/cards"
	"github.com/sbliven/crew9bot/internal/crew/game"
	"github.com/sbliven/crew9bot/internal/invite"
	"github.com/sbliven/crew9bot/internal/master"
	"github.com/sbliven/crew9bot/internal/player"
	"github.com/sbliven/crew9bot/internal/storage"
)

const welcomeText = `Welcome to Crew9Bot! 🚀

I host games of *The Crew: The Quest for Planet Nine* for 3-5 players.

/new - start a new game
/join <id> - join a friend's game
/mission <n> - choose the mission
/begin - deal the next round
/play <card> - play a card, e.g. /play 9b
/comm <card> - communicate a card
/hand - show your cards
/status - show the game status
/invite - get the invite link
/list - list running games
/leave - leave your game`

// Config defines the inputs for the bot transport boundary.
type Config struct {
	// Sender posts messages to Telegram; required.
	Sender Sender
	// Store persists games; required.
	Store storage.Store
	// BotName is the bot's Telegram username, used in deep links.
	BotName string
	// Signer issues spectate grants; optional.
	Signer *invite.Signer
	// FeedURL is the public websocket feed address; optional.
	FeedURL string
	// Observer receives public game events; optional.
	Observer game.Observer
}

// App handles Telegram updates and drives the game master.
type App struct {
	sender  Sender
	master  *master.Master
	signer  *invite.Signer
	feedURL string
	tracer  trace.Tracer

	mu      sync.Mutex
	players map[int64]*telegramPlayer
}

// New wires the bot around its master and store.
func New(cfg Config) *App {
	a := &App{
		sender:  cfg.Sender,
		signer:  cfg.Signer,
		feedURL: strings.TrimRight(cfg.FeedURL, "/"),
		tracer:  otel.Tracer("crew9bot/bot"),
		players: make(map[int64]*telegramPlayer),
	}
	opts := []master.Option{master.WithBotUsername(cfg.BotName)}
	if cfg.Observer != nil {
		opts = append(opts, master.WithObserver(cfg.Observer))
	}
	a.master = master.New(cfg.Store, a.resolveSeat, opts...)
	return a
}

// Master exposes the game registry, e.g. for the feed's existence check.
func (a *App) Master() *master.Master {
	return a.master
}

// Revive reloads persisted games on startup.
func (a *App) Revive(ctx context.Context) error {
	return a.master.Revive(ctx)
}

// player returns the transport for a chat, creating it on first use.
// A non-empty name refreshes the stored display name.
func (a *App) player(chatID int64, name string) *telegramPlayer {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.players[chatID]
	if !ok {
		p = &telegramPlayer{chatID: chatID, send: a.sender}
		a.players[chatID] = p
	}
	if name != "" {
		p.name = name
	}
	if p.name == "" {
		p.name = p.ID()
	}
	return p
}

// resolveSeat rebinds a persisted seat to its Telegram chat.
func (a *App) resolveSeat(seat game.SeatSnapshot) (player.Player, error) {
	chatID, err := strconv.ParseInt(seat.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("seat id %q is not a chat id: %w", seat.ID, err)
	}
	return a.player(chatID, seat.Name), nil
}

// HandleUpdate processes one Telegram update.
func (a *App) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	ctx, span := a.tracer.Start(ctx, "bot.update",
		trace.WithAttributes(attribute.Int64("telegram.chat_id", msg.Chat.ID)))
	defer span.End()

	p := a.player(msg.Chat.ID, displayName(msg.From))

	var reply string
	switch {
	case msg.IsCommand():
		span.SetAttributes(attribute.String("telegram.command", msg.Command()))
		reply = a.handleCommand(ctx, p, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
	case strings.TrimSpace(msg.Text) == "!ping":
		reply = "pong 🛸"
	default:
		return
	}
	if reply == "" {
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.ParseMode = tgbotapi.ModeMarkdown
	if _, err := a.sender.Send(out); err != nil {
		log.Printf("bot: send reply to chat %d: %v", msg.Chat.ID, err)
	}
}

func (a *App) handleCommand(ctx context.Context, p *telegramPlayer, command, args string) string {
	switch command {
	case "start":
		if args == "" {
			return welcomeText
		}
		return a.join(ctx, p, args)
	case "help":
		return welcomeText
	case "new":
		g, err := a.master.NewGame(ctx, p)
		if err != nil {
			return userMessage(err)
		}
		return fmt.Sprintf("Created game *%s*. Waiting for 3-5 players.", g.ID())
	case "join":
		if args == "" {
			return "Which game? Use /join <id>."
		}
		return a.join(ctx, p, args)
	case "mission":
		number, err := strconv.Atoi(args)
		if err != nil {
			return "Which mission? Use /mission <number>."
		}
		if err := a.master.SetMission(ctx, p.ID(), number); err != nil {
			return userMessage(err)
		}
		return ""
	case "begin":
		if err := a.master.Begin(ctx, p.ID()); err != nil {
			return userMessage(err)
		}
		return ""
	case "play":
		card, err := cards.Parse(args)
		if err != nil {
			return userMessage(err)
		}
		if _, err := a.master.Play(ctx, p.ID(), card); err != nil {
			return userMessage(err)
		}
		return ""
	case "comm":
		card, err := cards.Parse(args)
		if err != nil {
			return userMessage(err)
		}
		if err := a.master.Hint(ctx, p.ID(), card); err != nil {
			return userMessage(err)
		}
		return ""
	case "hand":
		hand, err := a.master.Hand(p.ID())
		if err != nil {
			return userMessage(err)
		}
		return fmt.Sprintf("Your hand:\n%s", cards.FormatHand(hand))
	case "status":
		return a.status(ctx, p)
	case "list":
		games, err := a.master.List(ctx)
		if err != nil {
			return userMessage(err)
		}
		if len(games) == 0 {
			return "No games are running. Start one with /new."
		}
		return strings.Join(games, "\n")
	case "invite":
		return a.invite(p)
	case "leave":
		if err := a.master.Leave(ctx, p.ID()); err != nil {
			return userMessage(err)
		}
		return "You left the game."
	default:
		return "Unknown command. Try /help."
	}
}

func (a *App) join(ctx context.Context, p *telegramPlayer, gameID string) string {
	if _, err := a.master.JoinGame(ctx, gameID, p); err != nil {
		return userMessage(err)
	}
	// The JoinedGame notification carries the details.
	return ""
}

func (a *App) status(ctx context.Context, p *telegramPlayer) string {
	g, err := a.master.Find(p.ID())
	if err != nil {
		return userMessage(err)
	}
	description, err := g.Description(ctx)
	if err != nil {
		return userMessage(err)
	}

	var b strings.Builder
	b.WriteString(description)
	fmt.Fprintf(&b, "\nPhase: %s", g.Phase())
	fmt.Fprintf(&b, "\nCurrent mission: %s", g.Mission().Description())
	if history := g.History(); len(history) > 0 {
		b.WriteString("\nRounds so far:")
		for _, round := range history {
			result := "lost"
			if round.Won {
				result = "won"
			}
			fmt.Fprintf(&b, "\n  mission %d: %s", round.Mission.Number, result)
		}
	}
	return b.String()
}

func (a *App) invite(p *telegramPlayer) string {
	g, err := a.master.Find(p.ID())
	if err != nil {
		return userMessage(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Invite players with %s", g.InviteURL())
	if a.signer != nil && a.feedURL != "" {
		grant, err := a.signer.Sign(g.ID())
		if err != nil {
			log.Printf("bot: sign spectate grant for game %s: %v", g.ID(), err)
		} else {
			fmt.Fprintf(&b, "\nSpectate at %s/ws?game=%s&grant=%s", a.feedURL, g.ID(), grant)
		}
	}
	return b.String()
}

// displayName picks the best human-readable name from a Telegram user.
func displayName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	if name := strings.TrimSpace(user.FirstName); name != "" {
		return name
	}
	return strings.TrimSpace(user.UserName)
}
