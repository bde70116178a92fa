package handler

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindchat/internal/domain"
	"github.com/set-night/mindchat/internal/service"
	tg "github.com/set-night/mindchat/internal/telegram"
)

func onOff(on bool) string {
	if on {
		return "✅ Вкл"
	}
	return "❌ Выкл"
}

func settingsText(s service.Settings) string {
	model := s.Model
	if model == "" {
		model = "не выбрана"
	}
	return fmt.Sprintf(
		"⚙️ *Настройки*\n\n"+
			"🤖 Модель: `%s`\n"+
			"🔍 Поиск: %s\n"+
			"💭 Рассуждения: %s",
		model, onOff(s.Search), onOff(s.Reasoning),
	)
}

// modelsKeyboard lists the models with a credential, keyed by their
// position in the catalog, followed by the toggles.
func modelsKeyboard(all []domain.Model, hasKey func(string) bool, s service.Settings) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	for i, m := range all {
		if !hasKey(m.Provider) {
			continue
		}
		label := m.ID
		if m.ID == s.Model {
			label = "✅ " + label
		}
		rows = append(rows, tg.ButtonRow(tg.InlineButton(label, tg.CallbackData(cbModel, int64(i)))))
	}
	rows = append(rows, tg.ButtonRow(
		tg.InlineButton("🔍 Поиск: "+onOff(s.Search), cbToggleSearch),
		tg.InlineButton("💭 Рассуждения: "+onOff(s.Reasoning), cbToggleThink),
	))
	return tg.InlineKeyboard(rows...)
}

func (h *Handler) handleModels(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendSettings(ctx, update.Message.Chat.ID, 0)
}

// sendSettings posts the settings menu, or edits messageID when it is set.
func (h *Handler) sendSettings(ctx context.Context, chatID int64, messageID int) {
	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}

	s := c.Settings()
	text := settingsText(s)
	keyboard := modelsKeyboard(h.catalog.Models(), h.hasKey, s)
	if messageID != 0 {
		err = tg.EditLongMessage(ctx, h.client, chatID, messageID, text, keyboard)
	} else {
		err = tg.SendLongMessage(ctx, h.client, chatID, text, keyboard)
	}
	if err != nil {
		h.log.Error("send settings", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) handleModelSelect(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, messageID, ok := callbackChat(ctx, b, update)
	if !ok {
		return
	}
	args, ok := tg.ParseCallback(update.CallbackQuery.Data, cbModel)
	if !ok || len(args) != 1 {
		return
	}

	all := h.catalog.Models()
	i := int(args[0])
	if i < 0 || i >= len(all) {
		return
	}

	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}
	if err := c.SetModel(all[i].ID); err != nil {
		h.log.Warn("select model", "chat_id", chatID, "model", all[i].ID, "error", err)
	}
	h.sendSettings(ctx, chatID, messageID)
}

func (h *Handler) handleSearch(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.toggle(ctx, update.Message.Chat.ID, 0, toggleSearch)
}

func (h *Handler) handleThink(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.toggle(ctx, update.Message.Chat.ID, 0, toggleReasoning)
}

func (h *Handler) handleSearchToggle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if chatID, messageID, ok := callbackChat(ctx, b, update); ok {
		h.toggle(ctx, chatID, messageID, toggleSearch)
	}
}

func (h *Handler) handleThinkToggle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if chatID, messageID, ok := callbackChat(ctx, b, update); ok {
		h.toggle(ctx, chatID, messageID, toggleReasoning)
	}
}

type toggleKind int

const (
	toggleSearch toggleKind = iota
	toggleReasoning
)

func (h *Handler) toggle(ctx context.Context, chatID int64, messageID int, kind toggleKind) {
	c, err := h.coordinator(ctx, chatID)
	if err != nil {
		h.reportError(ctx, chatID, err, "load chat")
		return
	}

	s := c.Settings()
	switch kind {
	case toggleSearch:
		c.SetSearch(!s.Search)
	case toggleReasoning:
		c.SetReasoning(!s.Reasoning)
	}
	h.sendSettings(ctx, chatID, messageID)
}
