package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	mindchat "github.com/set-night/mindchat"
	"github.com/set-night/mindchat/internal/config"
	"github.com/set-night/mindchat/internal/handler"
	"github.com/set-night/mindchat/internal/middleware"
	"github.com/set-night/mindchat/internal/provider"
	"github.com/set-night/mindchat/internal/repository"
	"github.com/set-night/mindchat/internal/service"
	"github.com/set-night/mindchat/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := config.LoadCatalog(cfg.ModelsFile)
	if err != nil {
		slog.Error("failed to load model catalog", "error", err)
		os.Exit(1)
	}

	gateway, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer closeStorage()

	// Providers
	creds := provider.StaticCredentials(cfg.APIKeys())
	openRouter := provider.NewOpenRouter(creds)
	registry := provider.NewRegistry()
	registry.Register(config.ProviderOpenAI, provider.NewOpenAI(creds))
	registry.Register(config.ProviderAnthropic, provider.NewAnthropic(creds))
	registry.Register(config.ProviderGoogle, provider.NewGoogle(creds))
	registry.Register(config.ProviderOpenRouter, openRouter)

	if creds.Has(config.ProviderOpenRouter) {
		fillCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		listed, err := openRouter.ListModels(fillCtx)
		cancel()
		if err != nil {
			slog.Warn("failed to fetch openrouter prices", "error", err)
		} else {
			n := catalog.FillPrices(config.ProviderOpenRouter, listed)
			slog.Info("openrouter prices loaded", "models", n)
		}
	}

	defaults := service.Settings{Search: true}
	if available := catalog.Available(creds.Has); len(available) > 0 {
		defaults.Model = available[0].ID
	} else {
		slog.Warn("no provider api key configured, requests will fail until one is set")
	}
	slog.Info("providers ready", "providers", registry.Providers(), "default_model", defaults.Model)

	// Handler pointer for use in default handler closure
	var h *handler.Handler
	var tgLogger *telegram.TelegramLogger

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(logger, errorReporter{&tgLogger}),
			middleware.Logging(logger),
			middleware.Access(cfg.IsAllowed, logger),
			middleware.RateLimit(middleware.NewLimiter(config.RateLimitPerMinute, time.Minute), logger),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h != nil {
				h.HandleDefault(ctx, b, update)
			}
		}),
	}
	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	tgLogger = telegram.NewTelegramLogger(b, cfg)

	h = handler.New(handler.Deps{
		Bot:      b,
		Cfg:      cfg,
		Catalog:  catalog,
		Gateway:  gateway,
		Adapters: registry,
		HasKey:   creds.Has,
		Defaults: defaults,
		TgLogger: tgLogger,
		Logger:   logger,
	})
	h.Register()

	slog.Info("starting bot", "username", me.Username, "id", me.ID, "allowed_chats", cfg.AllowedChatIDsString())
	b.Start(ctx)

	// Running requests end as interrupted and are stored before exit.
	h.Close()
	slog.Info("bot stopped gracefully")
}

// openStorage returns the gateway for the configured driver and a func
// releasing it.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Gateway, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		gw, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return gw, func() { gw.Close() }, nil
	default:
		migrationsFS, err := fs.Sub(mindchat.MigrationsFS, "migrations")
		if err != nil {
			return nil, nil, err
		}
		gw, closePool, err := repository.OpenPostgres(ctx, cfg.DatabaseURL, migrationsFS, logger)
		if err != nil {
			return nil, nil, err
		}
		return gw, closePool, nil
	}
}

// errorReporter forwards to the Telegram logger once the bot exists.
type errorReporter struct {
	l **telegram.TelegramLogger
}

func (r errorReporter) LogError(err error, where string) {
	if *r.l != nil {
		(*r.l).LogError(err, where)
	}
}
