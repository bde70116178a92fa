package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// ErrorReporter receives recovered panics, e.g. a Telegram log topic.
type ErrorReporter interface {
	LogError(err error, where string)
}

// Recover returns middleware that recovers from panics.
func Recover(logger *slog.Logger, reporter ErrorReporter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				if r := recover(); r != nil {
					chatID, _, updateType := describe(update)
					logger.Error("panic recovered in handler",
						"panic", r,
						"chat_id", chatID,
						"stack", string(debug.Stack()),
					)
					if reporter != nil {
						reporter.LogError(fmt.Errorf("panic: %v", r), "handler "+updateType)
					}
				}
			}()
			next(ctx, b, update)
		}
	}
}
