package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const helpText = "👋 *Привет!* Я отвечаю с помощью разных языковых моделей.\n\n" +
	"Просто напишите сообщение. Пока модель думает, можно открыть другой чат: ответ придёт сам.\n\n" +
	"/new — новый чат\n" +
	"/chats — список чатов\n" +
	"/history — сообщения текущего чата\n" +
	"/regen [N] — повторить запрос\n" +
	"/fork [N] — новый чат с истории до запроса\n" +
	"/stop — остановить ответ\n" +
	"/delete — удалить текущий чат\n" +
	"/model — модель и настройки\n" +
	"/search — веб-поиск вкл/выкл\n" +
	"/think — рассуждения вкл/выкл"

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}
	h.reply(ctx, chatID, helpText+"\n\n"+settingsText(c.Settings()))
}
