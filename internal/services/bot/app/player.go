package bot

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sbliven/crew9bot/internal/crew/event"
)

// Sender is the narrow Telegram client surface the bot needs. It is
// satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// telegramPlayer binds a seat to a Telegram chat.
type telegramPlayer struct {
	chatID int64
	name   string
	send   Sender
}

func (p *telegramPlayer) ID() string {
	return strconv.FormatInt(p.chatID, 10)
}

func (p *telegramPlayer) Name(ctx context.Context) (string, error) {
	return p.name, nil
}

// Notify renders the event and sends it to the player's chat.
func (p *telegramPlayer) Notify(ctx context.Context, evt event.Event) error {
	msg := tgbotapi.NewMessage(p.chatID, renderEvent(evt))
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := p.send.Send(msg)
	return err
}
