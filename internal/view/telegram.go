package view

import (
	"fmt"
	"strings"

	"github.com/amirbrooks/tasklist/internal/tasklist"
)

const telegramMaxChars = 3800

func formatTelegram(lines []tasklist.Line) string {
	var b strings.Builder
	done := 0
	for _, l := range lines {
		if l.Completed {
			done++
		}
	}
	fmt.Fprintf(&b, "📝 To-Do (%d/%d done)\n", done, len(lines))
	if len(lines) == 0 {
		b.WriteString("Nothing here yet.\n")
		return b.String()
	}
	for _, l := range lines {
		b.WriteString(telegramLine(l))
	}
	return trimTelegramOutput(b.String()) + "\n"
}

func telegramLine(l tasklist.Line) string {
	marker := "⬜"
	if l.Completed {
		marker = "✅"
	}
	return fmt.Sprintf("%d. %s %s\n", l.Position, marker, cleanText(l.Text))
}

func trimTelegramOutput(s string) string {
	s = strings.TrimRight(s, "\n")
	runes := []rune(s)
	if len(runes) <= telegramMaxChars {
		return s
	}
	suffix := "\n… (truncated)"
	limit := telegramMaxChars - len([]rune(suffix))
	return string(runes[:limit]) + suffix
}
