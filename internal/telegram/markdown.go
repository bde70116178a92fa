package telegram

import (
	"strings"
)

// SplitMessage cuts text into parts of at most maxLen runes, preferring a
// newline in the second half of each part as the cut point.
func SplitMessage(text string, maxLen int) []string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(runes) > maxLen {
		cut := maxLen
		if nl := lastNewline(runes[:maxLen]); nl > maxLen/2 {
			cut = nl + 1
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}

// FixMarkdown closes an unterminated code block and unterminated inline code
// spans so that Telegram's legacy Markdown parser accepts the text.
func FixMarkdown(text string) string {
	if strings.Count(text, "```")%2 != 0 {
		text += "\n```"
	}

	var sb strings.Builder
	sb.Grow(len(text) + 1)
	inBlock, inInline := false, false
	for i := 0; i < len(text); i++ {
		if strings.HasPrefix(text[i:], "```") {
			if inInline {
				sb.WriteByte('`')
				inInline = false
			}
			inBlock = !inBlock
			sb.WriteString("```")
			i += 2
			continue
		}
		if !inBlock && text[i] == '`' {
			inInline = !inInline
		}
		sb.WriteByte(text[i])
	}
	if inInline {
		sb.WriteByte('`')
	}
	return sb.String()
}

func truncateRunes(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
