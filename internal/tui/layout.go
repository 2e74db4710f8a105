package tui

import (
	"fmt"
	"strings"
)

const (
	minContentWidth          = 40
	contentHorizontalPadding = 4
)

type pageLayout struct {
	windowWidth  int
	windowHeight int
	contentWidth int
	logHeight    int
	papersHeight int
}

func newPageLayout() pageLayout {
	return pageLayout{
		contentWidth: 80,
		logHeight:    8,
		papersHeight: 8,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - contentHorizontalPadding
	if innerWidth < minContentWidth {
		innerWidth = minContentWidth
	}
	l.contentWidth = innerWidth
	// header, query panel, action row, banner and footer
	const chrome = 14
	usable := height - chrome
	if usable < 8 {
		usable = 8
	}
	l.logHeight = usable / 2
	if l.logHeight < 4 {
		l.logHeight = 4
	}
	l.papersHeight = usable - l.logHeight
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func shortenList(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s…", strings.Join(items[:limit], ", "))
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func previewText(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func (l pageLayout) wrapWidth(padding int) int {
	width := l.contentWidth
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}
