// Package view renders task lines for terminals and chat surfaces.
package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/amirbrooks/tasklist/internal/tasklist"
)

const (
	FormatPlain    = "plain"
	FormatTSV      = "tsv"
	FormatTelegram = "telegram"

	// Header precedes plain output.
	Header = "To-Do List:"
)

var Formats = []string{FormatPlain, FormatTSV, FormatTelegram}

// ParseFormat normalizes name, defaulting to plain.
func ParseFormat(name string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(name)); f {
	case "", FormatPlain:
		return FormatPlain, nil
	case FormatTSV, FormatTelegram:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want %s)", name, strings.Join(Formats, "|"))
	}
}

// Text writes every render to W in Format.
type Text struct {
	W      io.Writer
	Format string
}

func NewText(w io.Writer, format string) *Text {
	return &Text{W: w, Format: format}
}

func (v *Text) Render(lines []tasklist.Line) {
	fmt.Fprint(v.W, Format(lines, v.Format))
}

// Format renders lines as a string terminated by a newline.
func Format(lines []tasklist.Line, format string) string {
	switch format {
	case FormatTSV:
		return formatTSV(lines)
	case FormatTelegram:
		return formatTelegram(lines)
	default:
		return formatPlain(lines)
	}
}

func formatPlain(lines []tasklist.Line) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n")
	if len(lines) == 0 {
		b.WriteString("(no tasks)\n")
		return b.String()
	}
	for _, l := range lines {
		l.Text = cleanText(l.Text)
		b.WriteString(l.String())
		b.WriteString("\n")
	}
	return b.String()
}

func formatTSV(lines []tasklist.Line) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "%d\t%t\t%s\n", l.Position, l.Completed, strings.ReplaceAll(cleanText(l.Text), "\t", " "))
	}
	return b.String()
}

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return "(untitled)"
	}
	return text
}
