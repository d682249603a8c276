package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Run revives persisted games and processes updates until ctx is done.
func (a *App) Run(ctx context.Context, api *tgbotapi.BotAPI) error {
	if err := a.Revive(ctx); err != nil {
		return fmt.Errorf("revive games: %w", err)
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			a.HandleUpdate(ctx, update)
		}
	}
}
