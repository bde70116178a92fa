package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Logging returns middleware that logs update processing time.
func Logging(logger *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			start := time.Now()
			next(ctx, b, update)

			chatID, userID, updateType := describe(update)
			logger.Debug("update processed",
				"type", updateType,
				"chat_id", chatID,
				"user_id", userID,
				"duration", time.Since(start),
			)
		}
	}
}

// describe extracts the chat, sender and kind of an update.
func describe(update *models.Update) (chatID, userID int64, updateType string) {
	switch {
	case update.Message != nil:
		chatID = update.Message.Chat.ID
		if update.Message.From != nil {
			userID = update.Message.From.ID
		}
		return chatID, userID, "message"
	case update.CallbackQuery != nil:
		if msg := update.CallbackQuery.Message.Message; msg != nil {
			chatID = msg.Chat.ID
		}
		return chatID, update.CallbackQuery.From.ID, "callback_query"
	default:
		return 0, 0, "unknown"
	}
}
