package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/ai"
	"github.com/spigell/skillmatch/internal/ai/gemini"
	"github.com/spigell/skillmatch/internal/bot"
	"github.com/spigell/skillmatch/internal/catalog"
	applog "github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/secrets"
	"github.com/spigell/skillmatch/internal/session"
	"github.com/spigell/skillmatch/internal/storage"
)

// newBot opens the profile store and builds a bot talking over transport.
// The returned close function releases the store.
func newBot(ctx context.Context, config *Config, transport bot.Transport, logger *zap.Logger) (*bot.Bot, func() error, error) {
	cat, err := newCatalog(config.Catalog)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("tag catalog loaded", zap.Int("tags", cat.Len()))

	store, err := storage.Open(ctx, config.Storage.Path, applog.ForComponent(logger, "storage"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening profile storage: %w", err)
	}

	var suggester ai.TagSuggester
	if config.AI.Enabled {
		suggester, err = newAISuggester(ctx, config.AI, logger)
		if err != nil {
			logger.Warn("skipping tag suggestions", zap.Error(err))
			suggester = nil
		}
	}

	b, err := bot.New(&bot.Config{SuggestTimeout: config.AI.Timeout}, &bot.Deps{
		Logger:     applog.ForComponent(logger, "bot"),
		Catalog:    cat,
		Repository: store,
		Sessions:   session.NewStore(config.Session.IdleTTL),
		Transport:  transport,
		Suggester:  suggester,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return b, store.Close, nil
}

func newCatalog(cfg *CatalogConfig) (*catalog.Catalog, error) {
	if cfg == nil || len(cfg.Tags) == 0 {
		return catalog.MustDefault(), nil
	}

	cat, err := catalog.New(cfg.Tags)
	if err != nil {
		return nil, fmt.Errorf("building tag catalog: %w", err)
	}
	return cat, nil
}

func newAISuggester(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.TagSuggester, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewSuggester(generator, genLogger, cfg.Gemini.MaxLogLength), nil
}
