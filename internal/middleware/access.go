package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Access returns middleware that drops updates from chats allowed reports false for.
func Access(allowed func(chatID int64) bool, logger *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			chatID, userID, updateType := describe(update)
			if chatID != 0 && !allowed(chatID) {
				logger.Warn("update from chat not allowed", "chat_id", chatID, "user_id", userID, "type", updateType)
				if update.Message != nil {
					b.SendMessage(ctx, &bot.SendMessageParams{
						ChatID: chatID,
						Text:   "🚫 Доступ закрыт.",
					})
				}
				return
			}
			next(ctx, b, update)
		}
	}
}
