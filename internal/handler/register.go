package handler

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	tg "github.com/set-night/mindchat/internal/telegram"
)

// Callback data prefixes.
const (
	cbRegen        = "regen"
	cbChatSelect   = "chat_sel"
	cbChatDelete   = "chat_del"
	cbChatNew      = "chat_new"
	cbChatsPage    = "chats_page"
	cbModel        = "model"
	cbToggleSearch = "tgl_search"
	cbToggleThink  = "tgl_think"
)

// Register registers all command and callback handlers on the bot instance.
// Plain text goes through HandleDefault, set as the bot's default handler.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/new", bot.MatchTypePrefix, h.handleNew)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/chats", bot.MatchTypePrefix, h.handleChats)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stop", bot.MatchTypePrefix, h.handleStop)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/regen", bot.MatchTypePrefix, h.handleRegen)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/fork", bot.MatchTypePrefix, h.handleFork)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypePrefix, h.handleHistory)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/delete", bot.MatchTypePrefix, h.handleDelete)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/model", bot.MatchTypePrefix, h.handleModels)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/search", bot.MatchTypePrefix, h.handleSearch)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/think", bot.MatchTypePrefix, h.handleThink)

	// Reply callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbRegen, bot.MatchTypePrefix, h.handleRegenCallback)

	// Chats callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbChatSelect, bot.MatchTypePrefix, h.handleChatSelect)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbChatDelete, bot.MatchTypePrefix, h.handleChatDelete)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbChatNew, bot.MatchTypePrefix, h.handleChatNew)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbChatsPage, bot.MatchTypePrefix, h.handleChatsPage)

	// Settings callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbModel, bot.MatchTypePrefix, h.handleModelSelect)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbToggleSearch, bot.MatchTypeExact, h.handleSearchToggle)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbToggleThink, bot.MatchTypeExact, h.handleThinkToggle)

	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, tg.NoopData, bot.MatchTypeExact, h.handleNoop)
}

// HandleDefault sends plain text messages to the focused session.
func (h *Handler) HandleDefault(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	if strings.HasPrefix(update.Message.Text, "/") {
		h.reply(ctx, update.Message.Chat.ID, "🤷 Неизвестная команда. Список команд: /help")
		return
	}
	h.sendText(ctx, update.Message.Chat.ID, update.Message.Text)
}

// handleNoop acknowledges buttons that only display state.
func (h *Handler) handleNoop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		})
	}
}

// commandArgs returns the words after the command.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// callbackChat returns the chat and message the pressed button belongs to,
// answering the callback query on the way.
func callbackChat(ctx context.Context, b *bot.Bot, update *models.Update) (chatID int64, messageID int, ok bool) {
	if update.CallbackQuery == nil {
		return 0, 0, false
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	msg := update.CallbackQuery.Message.Message
	if msg == nil {
		return 0, 0, false
	}
	return msg.Chat.ID, msg.ID, true
}
