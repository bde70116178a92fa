package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/set-night/mindchat/internal/config"
	"github.com/set-night/mindchat/internal/repository"
	"github.com/set-night/mindchat/internal/service"
	"github.com/set-night/mindchat/internal/telegram"
)

// Handler holds all dependencies needed by command and callback handlers.
// Each Telegram chat owns one coordinator, created on first use.
type Handler struct {
	bot      *bot.Bot
	client   telegram.Client
	cfg      *config.Config
	catalog  *config.Catalog
	gateway  repository.Gateway
	adapters service.AdapterSource
	hasKey   func(provider string) bool
	defaults service.Settings
	tgLogger *telegram.TelegramLogger
	log      *slog.Logger

	mu    sync.Mutex
	chats map[int64]*chatEntry
}

// chatEntry is a chat's coordinator. ready is closed once Init has finished;
// c and err are set before that.
type chatEntry struct {
	ready chan struct{}
	c     *service.Coordinator
	err   error
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot      *bot.Bot
	Client   telegram.Client // defaults to Bot
	Cfg      *config.Config
	Catalog  *config.Catalog
	Gateway  repository.Gateway
	Adapters service.AdapterSource
	HasKey   func(provider string) bool
	Defaults service.Settings
	TgLogger *telegram.TelegramLogger
	Logger   *slog.Logger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	h := &Handler{
		bot:      deps.Bot,
		client:   deps.Client,
		cfg:      deps.Cfg,
		catalog:  deps.Catalog,
		gateway:  deps.Gateway,
		adapters: deps.Adapters,
		hasKey:   deps.HasKey,
		defaults: deps.Defaults,
		tgLogger: deps.TgLogger,
		log:      deps.Logger,
		chats:    make(map[int64]*chatEntry),
	}
	if h.client == nil && deps.Bot != nil {
		h.client = deps.Bot
	}
	if h.hasKey == nil {
		h.hasKey = func(string) bool { return true }
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	return h
}

// coordinator returns the chat's coordinator, loading its sessions on first
// use. Loading happens outside h.mu; concurrent callers for the same chat
// wait for the first one.
func (h *Handler) coordinator(ctx context.Context, chatID int64) (*service.Coordinator, error) {
	h.mu.Lock()
	if e, ok := h.chats[chatID]; ok {
		h.mu.Unlock()
		select {
		case <-e.ready:
			return e.c, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &chatEntry{ready: make(chan struct{})}
	h.chats[chatID] = e
	h.mu.Unlock()

	e.c, e.err = h.newCoordinator(ctx, chatID)
	if e.err != nil {
		// Drop the entry so the next update retries.
		h.mu.Lock()
		delete(h.chats, chatID)
		h.mu.Unlock()
	}
	close(e.ready)
	return e.c, e.err
}

func (h *Handler) newCoordinator(ctx context.Context, chatID int64) (*service.Coordinator, error) {
	obs := &replyObserver{h: h, chatID: chatID}
	c := service.NewCoordinator(service.CoordinatorDeps{
		Gateway:  h.gateway,
		Adapters: h.adapters,
		Catalog:  h.catalog,
		Wake:     telegram.NewTyping(h.client, chatID),
		Observer: service.NewMultiObserver(
			service.NewSlogObserver(h.log),
			obs,
		),
		Logger:   h.log,
		Defaults: h.defaults,
	}, chatID, service.WithRequestTimeout(h.cfg.RequestTimeout))
	obs.coord = c

	if err := c.Init(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("init chat %d: %w", chatID, err)
	}
	return c, nil
}

// Close interrupts running requests of every chat and waits for their
// outcomes to be stored.
func (h *Handler) Close() {
	h.mu.Lock()
	entries := make([]*chatEntry, 0, len(h.chats))
	for _, e := range h.chats {
		entries = append(entries, e)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-e.ready
			if e.c != nil {
				e.c.Close()
			}
		}()
	}
	wg.Wait()
}

func (h *Handler) reportError(ctx context.Context, chatID int64, err error, where string) {
	h.log.Error(where, "chat_id", chatID, "error", err)
	h.tgLogger.LogError(err, fmt.Sprintf("%s (chat %d)", where, chatID))
	h.reply(ctx, chatID, "❌ Что-то пошло не так. Попробуйте ещё раз.")
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := telegram.SendLongMessage(ctx, h.client, chatID, text, nil); err != nil {
		h.log.Error("send reply", "chat_id", chatID, "error", err)
	}
}
