package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/skillmatch/internal/bot"
	"github.com/spigell/skillmatch/internal/dispatch"
	applog "github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/secrets"
	"github.com/spigell/skillmatch/internal/telegram"
)

const (
	modePolling = "polling"
	modeWebhook = "webhook"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve the bot over the Telegram Bot API",
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("mode", "m", "", "update delivery: polling or webhook (default from telegram.mode)")
	runCmd.Flags().StringP("db", "", "", "path to the sqlite database (default from storage.path)")

	viper.BindPFlag("telegram.mode", runCmd.Flags().Lookup("mode"))
	viper.BindPFlag("storage.path", runCmd.Flags().Lookup("db"))
}

// run serves the bot until SIGINT or SIGTERM.
func run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := applog.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the skillmatch bot", zap.String("version", version))

	// Secrets are never part of the dump.
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	token, err := resolveToken(config.Telegram)
	if err != nil {
		logger.Fatal(
			"loading telegram token",
			zap.Error(err),
			zap.String("hint", "set BOT_TOKEN, BOT_TOKEN_FILE or the 'telegram.token-file' key in the configuration file"),
		)
	}

	client := telegram.New(applog.ForComponent(logger, "telegram"), token)
	if config.Telegram.APIURL != "" {
		client.APIURL = strings.TrimRight(config.Telegram.APIURL, "/")
	}
	if config.Telegram.UserAgent != "" {
		client.UserAgent = config.Telegram.UserAgent
	}

	b, closeStore, err := newBot(ctx, config, bot.NewTelegramTransport(client), logger)
	if err != nil {
		logger.Fatal("building the bot", zap.Error(err))
	}
	defer closeStore()

	if err := registerCommands(ctx, client); err != nil {
		// The bot works without the command menu.
		logger.Warn("registering bot commands", zap.Error(err))
	}

	if err := serve(ctx, config, client, b, logger); err != nil {
		logger.Error("serving updates", zap.Error(err))
		return
	}

	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}

// serve runs the dispatch pool together with the configured update source.
func serve(ctx context.Context, config *Config, client *telegram.Client, b *bot.Bot, logger *zap.Logger) error {
	pool := dispatch.New(&dispatch.Config{Workers: config.Workers}, b.Handle, applog.ForComponent(logger, "dispatch"))

	handler := func(ctx context.Context, upd telegram.Update) {
		u, ok := bot.UpdateFromTelegram(upd)
		if !ok {
			logger.Debug("skipping update", zap.Int64("update_id", upd.UpdateID))
			return
		}
		if err := pool.Submit(ctx, u); err != nil {
			logger.Warn("dropping update", zap.Int64("update_id", upd.UpdateID), zap.Error(err))
		}
	}

	var source func(ctx context.Context) error

	switch mode := strings.ToLower(strings.TrimSpace(config.Telegram.Mode)); mode {
	case modePolling, "":
		// getUpdates is refused while a webhook is set.
		if err := client.DeleteWebhook(ctx); err != nil {
			return fmt.Errorf("removing webhook: %w", err)
		}

		poller := telegram.NewPoller(client, handler, applog.ForComponent(logger, "poller"), config.Telegram.PollTimeout)
		source = poller.Run
	case modeWebhook:
		hook := config.Telegram.Webhook
		if hook.URL == "" {
			return errors.New("telegram.webhook.url is required in webhook mode")
		}

		if err := client.SetWebhook(ctx, strings.TrimRight(hook.URL, "/")+hook.Path, hook.SecretToken); err != nil {
			return fmt.Errorf("registering webhook: %w", err)
		}

		if !viper.GetBool("debug") {
			gin.SetMode(gin.ReleaseMode)
		}

		webhookCfg := &telegram.WebhookConfig{
			Listen:      hook.Listen,
			Path:        hook.Path,
			SecretToken: hook.SecretToken,
		}
		webhookLogger := applog.ForComponent(logger, "webhook")
		router := telegram.NewWebhookRouter(webhookCfg, handler, webhookLogger)

		source = func(ctx context.Context) error {
			return telegram.ServeWebhook(ctx, webhookCfg, router, webhookLogger)
		}
	default:
		return fmt.Errorf("unsupported telegram mode: %s", mode)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		return source(gctx)
	})

	return g.Wait()
}

func registerCommands(ctx context.Context, client *telegram.Client) error {
	menu := bot.Menu()
	commands := make([]telegram.BotCommand, 0, len(menu))
	for _, c := range menu {
		commands = append(commands, telegram.BotCommand{Command: c.Command, Description: c.Description})
	}

	return client.SetMyCommands(ctx, commands)
}

func resolveToken(config *TelegramConfig) (string, error) {
	if config == nil {
		return "", errors.New("telegram config is required")
	}

	return secrets.Load(secrets.Source{
		Name:  "telegram bot token",
		Value: config.Token,
		Env:   "BOT_TOKEN",
		File:  config.TokenFile,
	})
}

// redacted returns a copy of config safe to log.
func redacted(config *Config) Config {
	out := *config

	tg := *config.Telegram
	if tg.Token != "" {
		tg.Token = "***"
	}
	if tg.Webhook != nil && tg.Webhook.SecretToken != "" {
		hook := *tg.Webhook
		hook.SecretToken = "***"
		tg.Webhook = &hook
	}
	out.Telegram = &tg

	if config.AI.Gemini != nil && config.AI.Gemini.APIKey != "" {
		ai := *config.AI
		gem := *config.AI.Gemini
		gem.APIKey = "***"
		ai.Gemini = &gem
		out.AI = &ai
	}

	return out
}
