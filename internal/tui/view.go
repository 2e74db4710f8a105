package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/paperproducer/internal/jobs"
	"github.com/csheth/paperproducer/internal/logsink"
	"github.com/csheth/paperproducer/internal/report"
	"github.com/csheth/paperproducer/internal/workflow"
)

const heroTagline = "Turn a research question into a literature report."

const previewLineLimit = 12

func (m *model) View() string {
	parts := []string{m.heroView(), m.queryPanel()}
	if banner := m.noticeView(); banner != "" {
		parts = append(parts, banner)
	}
	if m.panel == panelSettings {
		parts = append(parts, m.settingsView())
	} else {
		parts = append(parts, m.specView(), m.papersView(), m.reportView())
		if m.previewVisible {
			parts = append(parts, m.previewView())
		}
	}
	parts = append(parts, m.logPanel(), m.footerView())
	return joinNonEmpty(parts)
}

func (m *model) heroView() string {
	meta := []string{}
	if m.config.ServerURL != "" {
		meta = append(meta, "Server "+m.config.ServerURL)
	}
	meta = append(meta, "Flow "+string(m.flow.Flow()))
	return lipgloss.JoinVertical(
		lipgloss.Left,
		heroTitleStyle.Render("PaperProducer"),
		taglineStyle.Render(heroTagline),
		helperStyle.Render(strings.Join(meta, "  •  ")),
	)
}

func (m *model) queryPanel() string {
	return joinNonEmpty([]string{
		sectionHeaderStyle.Render("Research Query"),
		m.input.View(),
		lipgloss.JoinHorizontal(lipgloss.Center, m.actionButton(), "  ", helperStyle.Render(m.queryHelpText())),
	})
}

func (m *model) actionButton() string {
	action := m.flow.Action()
	label := action.Label
	if m.flow.State().Busy() {
		label = fmt.Sprintf("%s %s", m.spinner.View(), label)
	}
	if !action.Enabled {
		return disabledButtonStyle.Render(label)
	}
	return buttonStyle.Render(label)
}

func (m *model) queryHelpText() string {
	hints := []string{"Enter: " + m.flow.Action().Label}
	if _, ok := m.flow.Spec(); ok || (m.flow.Flow() == workflow.FlowTopic && m.flow.Query() != "") {
		hints = append(hints, "Ctrl+R: regenerate")
	}
	if _, ok := m.flow.Download(); ok {
		hints = append(hints, "Ctrl+D: download", "Ctrl+P: preview")
	}
	hints = append(hints, "Ctrl+S: settings", "Esc: quit")
	return strings.Join(hints, " • ")
}

func (m *model) noticeView() string {
	if m.notice.text == "" {
		return ""
	}
	return levelStyle(m.notice.level).Render(wordwrap.String(m.notice.text, m.layout.wrapWidth(0)))
}

func (m *model) specView() string {
	spec, ok := m.flow.Spec()
	if !ok {
		return ""
	}
	wrap := m.layout.wrapWidth(4)
	cb := &contentBuilder{}
	cb.WriteString(sectionHeaderStyle.Render("Analyzed Query"))
	cb.WriteRune('\n')
	writeField := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		cb.WriteString(helperStyle.Render(label))
		cb.WriteRune('\n')
		cb.WriteString(indentMultiline(wordwrap.String(value, wrap), "  "))
		cb.WriteRune('\n')
	}
	writeField("Search query", spec.SearchQuery)
	writeField("Themes", strings.Join(spec.Themes, ", "))
	writeField("Structure", strings.Join(spec.Structure, " → "))
	writeField("Special requirements", spec.Requirements())
	return strings.TrimRight(cb.String(), "\n")
}

func (m *model) papersView() string {
	revealed := m.flow.Revealed()
	result, hasResult := m.flow.Result()
	if !hasResult {
		return ""
	}
	lines := []string{sectionHeaderStyle.Render(fmt.Sprintf("Papers (%d/%d)", len(revealed), len(result.Papers)))}
	if len(revealed) == 0 {
		lines = append(lines, helperStyle.Render("No papers yet."))
		return strings.Join(lines, "\n")
	}
	start := 0
	if limit := m.layout.papersHeight; limit > 0 && len(revealed) > limit {
		start = len(revealed) - limit
		lines = append(lines, helperStyle.Render(fmt.Sprintf("… %d earlier papers in the log", start)))
	}
	wrap := m.layout.wrapWidth(8)
	for idx := start; idx < len(revealed); idx++ {
		lines = append(lines, renderPaperLine(idx, revealed[idx], result, wrap))
	}
	return strings.Join(lines, "\n")
}

func renderPaperLine(idx int, paper report.Paper, result report.Result, wrap int) string {
	marker := "•"
	style := lipgloss.NewStyle()
	if status, ok := result.StatusFor(idx); ok {
		if status.Failed() {
			marker = "✗"
			style = errorStyle
		} else {
			marker = "✓"
			style = successStyle
		}
	}
	title := wordwrap.String(paper.Title, wrap)
	line := fmt.Sprintf("%2d. %s %s", idx+1, style.Render(marker), indentContinuation(title, "       "))
	if paper.ArxivID != "" {
		line += " " + helperStyle.Render("arXiv:"+paper.ArxivID)
	}
	return line
}

func indentContinuation(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

func (m *model) reportView() string {
	filename, ok := m.flow.Download()
	if !ok {
		return ""
	}
	lines := []string{sectionHeaderStyle.Render("Report"), successStyle.Render(filename)}
	if result, ok := m.flow.Result(); ok && len(result.Warnings) > 0 {
		lines = append(lines, warningStyle.Render(fmt.Sprintf("%d warnings (see log)", len(result.Warnings))))
	}
	switch {
	case m.downloading:
		lines = append(lines, helperStyle.Render(m.spinner.View()+" Downloading…"))
	case m.saved != nil:
		saved := fmt.Sprintf("Saved to %s (%s)", m.saved.Path, formatSize(m.saved.Size))
		if m.inspection != nil {
			saved = fmt.Sprintf("Saved to %s (%d pages, %s)", m.saved.Path, m.inspection.Pages, formatSize(m.saved.Size))
		}
		lines = append(lines, helperStyle.Render(saved))
		if m.inspection != nil && m.inspection.Excerpt != "" {
			lines = append(lines, indentMultiline(wordwrap.String(m.inspection.Excerpt, m.layout.wrapWidth(4)), "  "))
		}
	default:
		lines = append(lines, helperStyle.Render("Press Ctrl+D to save the PDF locally."))
	}
	return strings.Join(lines, "\n")
}

func (m *model) previewView() string {
	result, ok := m.flow.Result()
	if !ok {
		return ""
	}
	header := sectionHeaderStyle.Render("Report Preview")
	if strings.TrimSpace(result.ReportPreview) == "" {
		return joinLines(header, helperStyle.Render("The service did not send a preview."))
	}
	body := wordwrap.String(strings.TrimSpace(result.ReportPreview), m.layout.wrapWidth(4))
	lines := strings.Split(body, "\n")
	if len(lines) > previewLineLimit {
		lines = append(lines[:previewLineLimit], "…")
	}
	return joinLines(header, indentMultiline(strings.Join(lines, "\n"), "  "))
}

func (m *model) settingsView() string {
	lines := []string{sectionHeaderStyle.Render("Generation Settings")}
	for field := settingsField(0); field < fieldCount; field++ {
		label := fmt.Sprintf("%-16s %s", field.label(), m.settings.value(field))
		if field == m.settings.cursor {
			lines = append(lines, currentLineStyle.Render("▸ "+label))
			continue
		}
		lines = append(lines, "  "+label)
	}
	if !m.catalogLoaded {
		lines = append(lines, helperStyle.Render("Model catalog not loaded; values cannot be cycled."))
	}
	help := "↑/↓: field • ←/→: change • Enter: save • Esc: close"
	if m.settings.saving {
		help = m.spinner.View() + " Saving…"
	}
	lines = append(lines, "", helperStyle.Render(help))
	return legendBoxStyle.Render(strings.Join(lines, "\n"))
}

func (m *model) logPanel() string {
	body := strings.TrimSpace(m.logView.View())
	if len(m.flow.Log()) == 0 {
		body = helperStyle.Render("Progress will appear here once you submit a query.")
	}
	return joinLines(sectionHeaderStyle.Render("Progress Log"), body)
}

func (m *model) renderLogEntries(entries []logsink.Entry) string {
	wrap := m.layout.wrapWidth(11)
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		stamp := helperStyle.Render(entry.Time.Format("15:04:05"))
		message := indentContinuation(wordwrap.String(entry.Message, wrap), "          ")
		lines = append(lines, fmt.Sprintf("%s  %s", stamp, levelStyle(entry.Level).Render(message)))
	}
	return strings.Join(lines, "\n")
}

func (m *model) footerView() string {
	stats := []string{
		fmt.Sprintf("State %s", m.flow.State()),
		fmt.Sprintf("Model %s", m.options.LLMModel),
		fmt.Sprintf("Indexer %s", m.options.IndexerType),
		fmt.Sprintf("Top %d", m.options.TopPapers),
	}
	if running := m.tracker.Running(); len(running) > 0 {
		stats = append(stats, fmt.Sprintf("%s %s", m.spinner.View(), runningSummary(running)))
	} else if last, ok := m.tracker.Last(); ok && last.Status == jobs.StatusFailed {
		stats = append(stats, fmt.Sprintf("Last %s failed", last.Kind))
	}
	if m.lastRun != nil {
		stats = append(stats, fmt.Sprintf("History #%d", m.lastRun.ID))
	}
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

func runningSummary(running []jobs.Snapshot) string {
	kinds := make([]string, 0, len(running))
	for _, snap := range running {
		kinds = append(kinds, string(snap.Kind))
	}
	return shortenList(kinds, 3)
}

func joinLines(parts ...string) string {
	return strings.Join(parts, "\n")
}

func levelStyle(level logsink.Level) lipgloss.Style {
	switch level {
	case logsink.LevelSuccess:
		return successStyle
	case logsink.LevelWarning:
		return warningStyle
	case logsink.LevelError:
		return errorStyle
	default:
		return infoStyle
	}
}

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	successStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	infoStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	heroAccentColor        = lipgloss.Color("#ff8c00")
	heroSecondaryTextColor = lipgloss.Color("#ffb347")

	heroTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	taglineStyle        = lipgloss.NewStyle().Foreground(heroSecondaryTextColor).Italic(true)
	statusBarStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	buttonStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	disabledButtonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e6a86")).Background(lipgloss.Color("#26233a")).Padding(0, 1)
	legendBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
	currentLineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
)
