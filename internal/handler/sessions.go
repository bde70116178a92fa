package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindchat/internal/config"
	"github.com/set-night/mindchat/internal/domain"
	"github.com/set-night/mindchat/internal/service"
	tg "github.com/set-night/mindchat/internal/telegram"
)

func (h *Handler) handleChats(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendChatsPage(ctx, update.Message.Chat.ID, 0, 0)
}

// sendChatsPage posts the chat list, or edits messageID when it is set.
func (h *Handler) sendChatsPage(ctx context.Context, chatID int64, page, messageID int) {
	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}

	text, keyboard := chatsPage(c, page)
	if messageID != 0 {
		err = tg.EditLongMessage(ctx, h.client, chatID, messageID, text, keyboard)
	} else {
		err = tg.SendLongMessage(ctx, h.client, chatID, text, keyboard)
	}
	if err != nil {
		h.log.Error("send chats page", "chat_id", chatID, "error", err)
	}
}

// chatLister is the part of the coordinator the chat list reads.
type chatLister interface {
	Sessions() []*domain.Session
	Current() *domain.Session
	IsLoading(id int64) bool
}

var _ chatLister = (*service.Coordinator)(nil)

func chatsPage(c chatLister, page int) (string, *models.InlineKeyboardMarkup) {
	sessions := c.Sessions()
	var currentID int64
	if cur := c.Current(); cur != nil {
		currentID = cur.ID
	}

	totalPages := max(1, (len(sessions)+config.SessionsPerPage-1)/config.SessionsPerPage)
	page = min(max(page, 0), totalPages-1)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📂 *Чаты* (%d шт.)\n\n✅ текущий, ⏳ ждёт ответа, ⚠️ запрос не завершился", len(sessions))

	var rows [][]models.InlineKeyboardButton
	start := page * config.SessionsPerPage
	end := min(start+config.SessionsPerPage, len(sessions))
	for _, s := range sessions[start:end] {
		label := s.Title(config.SessionTitleLen)
		switch {
		case c.IsLoading(s.ID):
			label = "⏳ " + label
		case s.Blocked():
			label = "⚠️ " + label
		}
		if s.ID == currentID {
			label += " ✅"
		}
		rows = append(rows, tg.ButtonRow(
			tg.InlineButton(label, tg.CallbackData(cbChatSelect, s.ID, int64(page))),
			tg.InlineButton("🗑", tg.CallbackData(cbChatDelete, s.ID, int64(page))),
		))
	}

	rows = append(rows, tg.ButtonRow(tg.InlineButton("➕ Новый чат", cbChatNew)))
	if pager := tg.PaginationRow(page, totalPages, cbChatsPage); pager != nil {
		rows = append(rows, pager)
	}
	return sb.String(), tg.InlineKeyboard(rows...)
}

func (h *Handler) handleChatSelect(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, messageID, ok := callbackChat(ctx, b, update)
	if !ok {
		return
	}
	args, ok := tg.ParseCallback(update.CallbackQuery.Data, cbChatSelect)
	if !ok || len(args) != 2 {
		return
	}

	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}
	if err := c.Select(ctx, args[0]); err != nil {
		h.log.Warn("select chat", "chat_id", chatID, "session_id", args[0], "error", err)
	}
	h.sendChatsPage(ctx, chatID, int(args[1]), messageID)
}

func (h *Handler) handleChatDelete(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, messageID, ok := callbackChat(ctx, b, update)
	if !ok {
		return
	}
	args, ok := tg.ParseCallback(update.CallbackQuery.Data, cbChatDelete)
	if !ok || len(args) != 2 {
		return
	}

	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}
	if err := c.DeleteSession(ctx, args[0]); err != nil {
		h.log.Warn("delete chat", "chat_id", chatID, "session_id", args[0], "error", err)
	}
	h.sendChatsPage(ctx, chatID, int(args[1]), messageID)
}

func (h *Handler) handleChatNew(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, messageID, ok := callbackChat(ctx, b, update)
	if !ok {
		return
	}

	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}
	if _, err := c.NewChat(ctx); err != nil {
		h.reportError(ctx, chatID, err, "create chat")
		return
	}
	h.sendChatsPage(ctx, chatID, 0, messageID)
}

func (h *Handler) handleChatsPage(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, messageID, ok := callbackChat(ctx, b, update)
	if !ok {
		return
	}
	args, ok := tg.ParseCallback(update.CallbackQuery.Data, cbChatsPage)
	if !ok || len(args) != 1 {
		return
	}
	h.sendChatsPage(ctx, chatID, int(args[0]), messageID)
}
