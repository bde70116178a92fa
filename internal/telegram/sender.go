package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindchat/internal/config"
)

// Client is the part of *bot.Bot the sender uses.
type Client interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// SendLongMessage sends text split into Telegram-sized parts. A part that
// fails to parse as Markdown is resent as plain text. Only the last part
// carries the keyboard.
func SendLongMessage(ctx context.Context, c Client, chatID int64, text string, markup models.ReplyMarkup) error {
	parts := SplitMessage(FixMarkdown(text), config.MaxTelegramMessageLen)

	for i, part := range parts {
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      part,
			ParseMode: models.ParseModeMarkdownV1,
		}
		if i == len(parts)-1 && markup != nil {
			params.ReplyMarkup = markup
		}

		if _, err := c.SendMessage(ctx, params); err != nil {
			slog.Warn("markdown send failed, falling back to plain text", "chat_id", chatID, "error", err)
			params.ParseMode = ""
			if _, err := c.SendMessage(ctx, params); err != nil {
				return fmt.Errorf("send message part %d/%d: %w", i+1, len(parts), err)
			}
		}
	}
	return nil
}

// EditLongMessage replaces the text of an existing message, truncating it to one part.
func EditLongMessage(ctx context.Context, c Client, chatID int64, messageID int, text string, markup models.ReplyMarkup) error {
	text = truncateRunes(FixMarkdown(text), config.MaxTelegramMessageLen)

	params := &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: markup,
	}
	if _, err := c.EditMessageText(ctx, params); err != nil {
		params.ParseMode = ""
		_, err = c.EditMessageText(ctx, params)
		return err
	}
	return nil
}

// Typing shows the "typing..." chat action while any dispatch of the chat
// is running. It is the wake lock of a chat's coordinator.
type Typing struct {
	client   Client
	chatID   int64
	interval time.Duration

	mu     sync.Mutex
	active int
	stop   context.CancelFunc
}

func NewTyping(c Client, chatID int64) *Typing {
	return &Typing{client: c, chatID: chatID, interval: 4 * time.Second}
}

// Acquire starts the indicator unless another dispatch of the chat already
// holds it. The returned release is safe to call more than once.
func (t *Typing) Acquire(ctx context.Context, sessionID int64) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == 0 {
		if err := t.send(ctx); err != nil {
			return nil, fmt.Errorf("send typing action: %w", err)
		}
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		t.stop = cancel
		go t.loop(loopCtx)
	}
	t.active++

	var once sync.Once
	return func() { once.Do(t.release) }, nil
}

func (t *Typing) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active--
	if t.active == 0 && t.stop != nil {
		t.stop()
		t.stop = nil
	}
}

func (t *Typing) loop(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.send(ctx)
		}
	}
}

func (t *Typing) send(ctx context.Context) error {
	_, err := t.client.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: t.chatID,
		Action: models.ChatActionTyping,
	})
	return err
}
