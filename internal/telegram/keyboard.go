package telegram

import (
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
)

// NoopData is the callback data of buttons that only display state.
const NoopData = "noop"

func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// CallbackData joins a prefix and integer arguments as "prefix:a:b".
func CallbackData(prefix string, args ...int64) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, a := range args {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatInt(a, 10))
	}
	return sb.String()
}

// ParseCallback reverses CallbackData. ok is false when data has another
// prefix or an argument is not an integer.
func ParseCallback(data, prefix string) (args []int64, ok bool) {
	rest, found := strings.CutPrefix(data, prefix)
	if !found {
		return nil, false
	}
	if rest == "" {
		return nil, true
	}
	if rest[0] != ':' {
		return nil, false
	}
	for _, field := range strings.Split(rest[1:], ":") {
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, false
		}
		args = append(args, n)
	}
	return args, true
}

// PaginationRow returns prev/current/next buttons for zero-based page. It
// returns nil when there is a single page.
func PaginationRow(page, totalPages int, prefix string) []models.InlineKeyboardButton {
	if totalPages <= 1 {
		return nil
	}

	var row []models.InlineKeyboardButton
	if page > 0 {
		row = append(row, InlineButton("⬅️", CallbackData(prefix, int64(page-1))))
	}
	row = append(row, InlineButton(strconv.Itoa(page+1)+"/"+strconv.Itoa(totalPages), NoopData))
	if page < totalPages-1 {
		row = append(row, InlineButton("➡️", CallbackData(prefix, int64(page+1))))
	}
	return row
}
