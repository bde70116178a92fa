package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindchat/internal/config"
)

// TelegramLogger forwards operational errors to a log chat topic. A zero
// chat id disables it.
type TelegramLogger struct {
	client  Client
	chatID  int64
	topicID int
	now     func() time.Time
}

func NewTelegramLogger(c Client, cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{
		client:  c,
		chatID:  cfg.LogTelegramChatID,
		topicID: cfg.LogTopicError,
		now:     time.Now,
	}
}

func (l *TelegramLogger) Enabled() bool {
	return l != nil && l.chatID != 0
}

// LogError reports err with a short description of where it happened.
func (l *TelegramLogger) LogError(err error, where string) {
	if !l.Enabled() || err == nil {
		return
	}

	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		where, err.Error(), l.now().Format("2006-01-02 15:04:05"))
	if len([]rune(msg)) > config.MaxTelegramMessageLen {
		msg = truncateRunes(msg, config.MaxTelegramMessageLen-20) + "\n\n(truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, sendErr := l.client.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.chatID,
		Text:            msg,
		ParseMode:       models.ParseModeMarkdownV1,
		MessageThreadID: l.topicID,
	})
	if sendErr != nil {
		slog.Error("failed to send telegram log", "error", sendErr)
	}
}
