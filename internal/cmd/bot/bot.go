// Package bot parses crew9bot command flags and composes the service.
package bot

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sbliven/crew9bot/internal/invite"
	entrypoint "github.com/sbliven/crew9bot/internal/platform/cmd"
	botapp "github.com/sbliven/crew9bot/internal/services/bot/app"
	feedapp "github.com/sbliven/crew9bot/internal/services/feed/app"
	"github.com/sbliven/crew9bot/internal/storage/sqlite"
)

// Config holds crew9bot command configuration.
type Config struct {
	Token    string `env:"CREW9BOT_TOKEN"`
	DBPath   string `env:"CREW9BOT_DB_PATH"   envDefault:"crew9bot.db"`
	FeedAddr string `env:"CREW9BOT_FEED_ADDR"`
	FeedURL  string `env:"CREW9BOT_FEED_URL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Token, "token", cfg.Token, "telegram bot token")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.FeedAddr, "feed-addr", cfg.FeedAddr, "spectator feed listen address (empty disables the feed)")
	fs.StringVar(&cfg.FeedURL, "feed-url", cfg.FeedURL, "public spectator feed base URL used in /invite replies")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the bot app and serves Telegram updates until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBot, func(ctx context.Context) error {
		if cfg.Token == "" {
			return errors.New("CREW9BOT_TOKEN is required")
		}

		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		signer, err := invite.LoadSignerFromEnv(nil)
		if err != nil {
			return fmt.Errorf("load spectate signer: %w", err)
		}
		verifier, err := invite.LoadVerifierFromEnv(nil)
		if err != nil {
			return fmt.Errorf("load spectate verifier: %w", err)
		}

		api, err := tgbotapi.NewBotAPI(cfg.Token)
		if err != nil {
			return fmt.Errorf("connect to telegram: %w", err)
		}
		log.Printf("authorized as @%s", api.Self.UserName)

		appCfg := botapp.Config{
			Sender:  api,
			Store:   store,
			BotName: api.Self.UserName,
			Signer:  signer,
			FeedURL: cfg.FeedURL,
		}

		var hub *feedapp.Hub
		if cfg.FeedAddr != "" {
			hub = feedapp.NewHub()
			appCfg.Observer = hub.Publish
		}
		app := botapp.New(appCfg)

		if cfg.FeedAddr != "" {
			feedCfg := feedapp.Config{
				Hub:      hub,
				Verifier: verifier,
				GameExists: func(gameID string) bool {
					_, err := app.Master().Lookup(gameID)
					return err == nil
				},
			}
			srv := &http.Server{Addr: cfg.FeedAddr, Handler: feedapp.NewHandler(feedCfg)}
			go func() {
				log.Printf("spectator feed listening on %s", cfg.FeedAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("serve feed: %v", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Printf("shutdown feed: %v", err)
				}
			}()
		}

		if err := app.Run(ctx, api); err != nil {
			return fmt.Errorf("serve bot: %w", err)
		}
		return nil
	})
}
