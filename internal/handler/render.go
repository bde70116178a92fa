package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindchat/internal/config"
	"github.com/set-night/mindchat/internal/domain"
	"github.com/set-night/mindchat/internal/service"
	tg "github.com/set-night/mindchat/internal/telegram"
)

const renderTimeout = 30 * time.Second

// replyObserver posts assistant messages to the chat as they are appended.
type replyObserver struct {
	h      *Handler
	chatID int64
	coord  *service.Coordinator
}

func (o *replyObserver) OnEvent(ctx context.Context, e service.Event) {
	if e.Type != service.EventMessageAppended || e.Message == nil || e.Message.Role != domain.RoleAssistant {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
	defer cancel()

	text := tg.FormatReply(*e.Message, tg.ReplyOptions{
		ShowCost:      o.h.cfg.ShowCost,
		ShowReasoning: o.h.cfg.ShowReasoning,
	})
	if cur := o.coord.Current(); cur != nil && cur.ID != e.SessionID {
		if s, ok := o.coord.Session(e.SessionID); ok {
			text = fmt.Sprintf("💬 _%s_\n\n%s", s.Title(config.SessionTitleLen), text)
		}
	}

	if err := tg.SendLongMessage(ctx, o.h.client, o.chatID, text, replyKeyboard(e.SessionID)); err != nil {
		o.h.log.Error("send assistant reply", "chat_id", o.chatID, "session_id", e.SessionID, "error", err)
	}
}

func replyKeyboard(sessionID int64) *models.InlineKeyboardMarkup {
	return tg.InlineKeyboard(tg.ButtonRow(
		tg.InlineButton("🔄 Повторить", tg.CallbackData(cbRegen, sessionID)),
	))
}

// renderHistory lists the session's messages with their one-based numbers,
// as used by /regen and /fork.
func renderHistory(s *domain.Session, maxLen int) string {
	if len(s.Messages) == 0 {
		return "📭 В этом чате пока нет сообщений."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 *%s*\n\n", s.Title(config.SessionTitleLen))
	for i, m := range s.Messages {
		icon := "👤"
		if m.Role == domain.RoleAssistant {
			icon = "🤖"
		}
		content := strings.Join(strings.Fields(m.Content), " ")
		if r := []rune(content); len(r) > maxLen {
			content = string(r[:maxLen]) + "..."
		}
		fmt.Fprintf(&sb, "%d. %s %s\n", i+1, icon, content)
	}
	sb.WriteString("\nПовторить запрос N: /regen N\nНовый чат с запроса N: /fork N")
	return sb.String()
}
