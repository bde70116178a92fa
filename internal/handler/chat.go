package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindchat/internal/domain"
	tg "github.com/set-night/mindchat/internal/telegram"
)

const historyPreviewLen = 80

var errNoUserMessage = errors.New("no user message")

func (h *Handler) sendText(ctx context.Context, chatID int64, text string) {
	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}

	cur := c.Current()
	if cur == nil {
		return
	}
	if cur.Blocked() {
		h.reply(ctx, chatID, "⚠️ Последний запрос не завершился. Повторите его: /regen, или начните новый чат: /new")
		return
	}
	if c.IsLoading(cur.ID) {
		h.reply(ctx, chatID, "⏳ Дождитесь ответа или остановите запрос: /stop")
		return
	}

	if err := c.Send(ctx, cur.ID, text); err != nil {
		// The request is dispatched even when storing the message failed.
		h.log.Error("send message", "chat_id", chatID, "session_id", cur.ID, "error", err)
		h.tgLogger.LogError(err, fmt.Sprintf("store user message (chat %d)", chatID))
	}
}

func (h *Handler) handleNew(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.newChat(ctx, update.Message.Chat.ID)
}

func (h *Handler) newChat(ctx context.Context, chatID int64) {
	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}
	if _, err := c.NewChat(ctx); err != nil {
		h.reportError(ctx, chatID, err, "create chat")
		return
	}
	h.reply(ctx, chatID, "🆕 Новый чат. Напишите сообщение.")
}

func (h *Handler) handleStop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.stop(ctx, update.Message.Chat.ID)
}

func (h *Handler) stop(ctx context.Context, chatID int64) {
	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}
	cur := c.Current()
	if cur == nil || !c.IsLoading(cur.ID) {
		h.reply(ctx, chatID, "Нет активного запроса.")
		return
	}
	c.Stop(cur.ID)
}

func (h *Handler) handleRegen(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.regenerate(ctx, update.Message.Chat.ID, 0, commandArgs(update.Message.Text))
}

func (h *Handler) handleRegenCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, _, ok := callbackChat(ctx, b, update)
	if !ok {
		return
	}
	args, ok := tg.ParseCallback(update.CallbackQuery.Data, cbRegen)
	if !ok || len(args) != 1 {
		return
	}
	h.regenerate(ctx, chatID, args[0], nil)
}

// regenerate re-dispatches a user message of session id, the focused
// session when id is zero. args may hold the one-based message number.
func (h *Handler) regenerate(ctx context.Context, chatID, id int64, args []string) {
	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}

	var s *domain.Session
	if id == 0 {
		s = c.Current()
	} else {
		s, _ = c.Session(id)
	}
	if s == nil {
		h.reply(ctx, chatID, "Чат не найден.")
		return
	}

	index, err := userMessageIndex(s, args)
	if err != nil {
		h.reply(ctx, chatID, indexErrorText(err))
		return
	}
	if err := c.Regenerate(ctx, s.ID, index); err != nil {
		if errors.Is(err, domain.ErrInvalidIndex) || errors.Is(err, domain.ErrSessionNotFound) {
			h.reply(ctx, chatID, indexErrorText(err))
			return
		}
		h.log.Error("regenerate", "chat_id", chatID, "session_id", s.ID, "error", err)
	}
}

func (h *Handler) handleFork(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.fork(ctx, update.Message.Chat.ID, commandArgs(update.Message.Text))
}

func (h *Handler) fork(ctx context.Context, chatID int64, args []string) {
	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}
	cur := c.Current()
	if cur == nil {
		return
	}

	index, err := userMessageIndex(cur, args)
	if err != nil {
		h.reply(ctx, chatID, indexErrorText(err))
		return
	}
	text, ok, err := c.Fork(ctx, cur.ID, index)
	switch {
	case errors.Is(err, domain.ErrInvalidIndex), errors.Is(err, domain.ErrSessionNotFound):
		h.reply(ctx, chatID, indexErrorText(err))
	case err != nil:
		h.reportError(ctx, chatID, err, "fork chat")
	case !ok:
		h.reply(ctx, chatID, indexErrorText(errNoUserMessage))
	default:
		h.reply(ctx, chatID, "🍴 Создан новый чат с историей до этого запроса. Отправьте его снова или измените:\n\n"+text)
	}
}

func (h *Handler) handleHistory(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}
	if cur := c.Current(); cur != nil {
		h.reply(ctx, chatID, renderHistory(cur, historyPreviewLen))
	}
}

func (h *Handler) handleDelete(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}
	cur := c.Current()
	if cur == nil {
		return
	}
	if err := c.DeleteSession(ctx, cur.ID); err != nil {
		h.reportError(ctx, chatID, err, "delete chat")
		return
	}
	h.reply(ctx, chatID, "🗑 Чат удалён.")
}

// userMessageIndex resolves the optional one-based message number in args
// to a zero-based index. Without args it picks the last user message.
func userMessageIndex(s *domain.Session, args []string) (int, error) {
	if len(args) == 0 {
		for i := len(s.Messages) - 1; i >= 0; i-- {
			if s.Messages[i].Role == domain.RoleUser {
				return i, nil
			}
		}
		return 0, errNoUserMessage
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(s.Messages) {
		return 0, domain.ErrInvalidIndex
	}
	if s.Messages[n-1].Role != domain.RoleUser {
		return 0, errNoUserMessage
	}
	return n - 1, nil
}

func indexErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidIndex):
		return "Нет сообщения с таким номером. Номера: /history"
	case errors.Is(err, errNoUserMessage):
		return "Это не ваш запрос. Номера запросов: /history"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "Чат не найден."
	default:
		return "❌ " + err.Error()
	}
}
