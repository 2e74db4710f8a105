package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/paperproducer/internal/api"
	"github.com/csheth/paperproducer/internal/artifact"
	"github.com/csheth/paperproducer/internal/history"
	"github.com/csheth/paperproducer/internal/jobs"
	"github.com/csheth/paperproducer/internal/logsink"
	"github.com/csheth/paperproducer/internal/report"
	"github.com/csheth/paperproducer/internal/reveal"
	"github.com/csheth/paperproducer/internal/workflow"
)

const defaultNoticeTTL = 5 * time.Second

// Service is the remote report service as seen by the TUI.
type Service interface {
	workflow.Analyzer
	workflow.Generator
	LoadConfig(ctx context.Context) (api.RemoteConfig, error)
	SaveConfig(ctx context.Context, update api.ConfigUpdate) error
	Models(ctx context.Context) (api.Catalog, error)
	Download(ctx context.Context, filename string, w io.Writer) (int64, error)
}

// Recorder keeps completed runs.
type Recorder interface {
	Record(ctx context.Context, run history.Run) (history.Run, error)
}

// Config wires runtime options into the TUI program.
type Config struct {
	Service        Service
	ServerURL      string
	Flow           workflow.Flow
	Generation     report.Options
	RevealInterval time.Duration
	RevealEpilogue time.Duration
	DownloadDir    string
	History        Recorder
	Inspector      *artifact.Inspector
	Logbook        io.Writer
	NoticeTTL      time.Duration
}

type panel int

const (
	panelMain panel = iota
	panelSettings
)

// notice is the banner under the query. Success notices hide themselves after the TTL.
type notice struct {
	level logsink.Level
	text  string
	id    uint64
}

type model struct {
	config  Config
	flow    *workflow.Controller
	bus     *jobs.Bus
	tracker *jobs.Tracker
	store   *artifact.Store
	layout  pageLayout

	input   textinput.Model
	spinner spinner.Model
	logView viewport.Model

	options       report.Options
	catalog       api.Catalog
	remoteLoaded  bool
	catalogLoaded bool

	panel    panel
	settings settingsForm

	notice    notice
	noticeSeq uint64
	statusSeq uint64
	logLen    int
	logTail   logsink.Entry

	logbookFailed bool

	downloading    bool
	saved          *artifact.Saved
	inspection     *artifact.Inspection
	savedFor       string
	previewVisible bool
	lastRun        *history.Run
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	return newModel(config)
}

func newModel(config Config) *model {
	if config.NoticeTTL <= 0 {
		config.NoticeTTL = defaultNoticeTTL
	}

	queryInput := textinput.New()
	queryInput.Placeholder = "e.g. recent advances in quantum error correction"
	queryInput.Focus()
	queryInput.CharLimit = 500
	queryInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	logView := viewport.New(80, 8)
	logView.MouseWheelEnabled = true

	m := &model{
		config:  config,
		bus:     jobs.NewBus(),
		tracker: jobs.NewTracker(),
		layout:  newPageLayout(),
		input:   queryInput,
		spinner: spin,
		logView: logView,
		options: config.Generation,
	}
	sink := logsink.New()
	if config.Logbook != nil {
		sink.Mirror(config.Logbook)
	}
	m.flow = workflow.New(workflow.Config{
		Analyzer:  config.Service,
		Generator: config.Service,
		Options:   func() report.Options { return m.options },
		Scheduler: reveal.NewScheduler(config.RevealInterval, config.RevealEpilogue),
		Sink:      sink,
		Flow:      config.Flow,
		Jobs:      m.bus,
	})
	if config.DownloadDir != "" {
		m.store = artifact.NewStore(config.DownloadDir, config.Service)
	}
	return m
}

func (m *model) Init() tea.Cmd {
	_, loadConfig := m.bus.Start(jobs.KindConfig, loadConfigJob(m.config.Service))
	_, loadCatalog := m.bus.Start(jobs.KindModels, loadCatalogJob(m.config.Service))
	return tea.Batch(textinput.Blink, m.spinner.Tick, loadConfig, loadCatalog)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.tracker.Observe(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.input.Width = m.layout.contentWidth - 4
		m.logView.Width = m.layout.contentWidth
		m.logView.Height = m.layout.logHeight
		m.refreshLog(true)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd
	case noticeExpiredMsg:
		if msg.id == m.notice.id {
			m.notice = notice{}
		}
		return m, nil
	case jobs.SignalMsg:
		return m, nil
	case jobs.ResultMsg:
		return m, m.handleJobResult(msg)
	case reveal.Msg, reveal.EpilogueMsg:
		return m, m.afterFlow(m.flow.Update(msg))
	case workflow.CompletedMsg:
		return m, m.recordRun(msg)
	}
	return m, nil
}

func (m *model) handleJobResult(msg jobs.ResultMsg) tea.Cmd {
	switch payload := msg.Payload.(type) {
	case remoteConfigMsg:
		return m.applyRemoteConfig(payload)
	case catalogMsg:
		return m.applyCatalog(payload)
	case configSavedMsg:
		return m.applySavedConfig(payload)
	case downloadResultMsg:
		return m.applyDownload(payload)
	case historyResultMsg:
		return m.applyHistory(payload)
	}
	return m.afterFlow(m.flow.Update(msg))
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.panel == panelSettings {
		return m, m.handleSettingsKey(key)
	}
	switch key.String() {
	case "esc":
		return m, tea.Quit
	case "enter":
		return m, m.primaryCmd()
	case "ctrl+r":
		return m, m.regenerateCmd()
	case "ctrl+d":
		return m, m.downloadCmd()
	case "ctrl+s":
		m.openSettings()
		return m, nil
	case "ctrl+p":
		m.previewVisible = !m.previewVisible
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(key)
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	if value := m.input.Value(); value != before {
		m.flow.InputChanged(value)
		return m, tea.Batch(cmd, m.afterFlow(nil))
	}
	return m, cmd
}

func (m *model) handleSettingsKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc", "ctrl+s":
		m.panel = panelMain
		m.input.Focus()
		return nil
	case "up", "k", "shift+tab":
		m.settings.move(-1)
	case "down", "j", "tab":
		m.settings.move(1)
	case "left", "h", "-":
		m.settings.cycle(m.catalog, -1)
	case "right", "l", "+", " ":
		m.settings.cycle(m.catalog, 1)
	case "enter":
		return m.saveSettingsCmd()
	}
	return nil
}

// primaryCmd runs the primary action. Leaving a finished run also clears the query input.
func (m *model) primaryCmd() tea.Cmd {
	before := m.flow.State()
	cmd := m.flow.Primary()
	if before.Phase == workflow.Generated && m.flow.State().Phase == workflow.Idle {
		m.input.Reset()
	}
	return m.afterFlow(cmd)
}

func (m *model) regenerateCmd() tea.Cmd {
	return m.afterFlow(m.flow.Regenerate())
}

func (m *model) downloadCmd() tea.Cmd {
	filename, ok := m.flow.Download()
	if !ok || filename == "" {
		return m.setNotice(logsink.LevelWarning, "No report to download yet.")
	}
	if m.store == nil {
		return m.setNotice(logsink.LevelWarning, "Set download_dir to save reports locally.")
	}
	if m.downloading {
		return nil
	}
	m.downloading = true
	m.flow.Narrate(logsink.LevelInfo, fmt.Sprintf("Downloading %s to %s", filename, m.store.Dir()))
	m.refreshLog(false)
	_, cmd := m.bus.Start(jobs.KindDownload, downloadJob(m.store, m.config.Inspector, filename))
	return tea.Batch(cmd, m.setNotice(logsink.LevelInfo, "Downloading report…"))
}

func (m *model) openSettings() {
	m.settings = newSettingsForm(m.options)
	m.panel = panelSettings
	m.input.Blur()
}

func (m *model) saveSettingsCmd() tea.Cmd {
	if m.settings.saving {
		return nil
	}
	m.settings.saving = true
	_, cmd := m.bus.Start(jobs.KindSave, saveConfigJob(m.config.Service, m.settings.draft))
	return tea.Batch(cmd, m.setNotice(logsink.LevelInfo, "Saving settings…"))
}

func (m *model) applyRemoteConfig(msg remoteConfigMsg) tea.Cmd {
	if msg.err != nil {
		return m.setNotice(logsink.LevelWarning, "Using local generation defaults: "+msg.err.Error())
	}
	m.remoteLoaded = true
	m.options = mergeOptions(m.options, msg.config.Options())
	if m.panel == panelSettings && !m.settings.saving {
		m.settings.draft = m.options
	}
	return nil
}

func (m *model) applyCatalog(msg catalogMsg) tea.Cmd {
	if msg.err != nil {
		return m.setNotice(logsink.LevelWarning, "Model catalog unavailable: "+msg.err.Error())
	}
	m.catalog = msg.catalog
	m.catalogLoaded = true
	return nil
}

func (m *model) applySavedConfig(msg configSavedMsg) tea.Cmd {
	m.settings.saving = false
	if msg.err != nil {
		return m.setNotice(logsink.LevelError, "Saving settings failed: "+msg.err.Error())
	}
	m.options = msg.options
	m.panel = panelMain
	m.input.Focus()
	return m.setNotice(logsink.LevelSuccess, "Settings saved.")
}

func (m *model) applyDownload(msg downloadResultMsg) tea.Cmd {
	m.downloading = false
	if msg.err != nil {
		m.flow.Narrate(logsink.LevelError, fmt.Sprintf("Download of %s failed: %v", msg.filename, msg.err))
		m.refreshLog(false)
		return m.setNotice(logsink.LevelError, "Download failed: "+msg.err.Error())
	}
	saved := msg.saved
	m.saved = &saved
	m.savedFor = msg.filename
	m.inspection = msg.inspection
	text := fmt.Sprintf("Saved %s (%s)", saved.Path, formatSize(saved.Size))
	if msg.inspection != nil {
		text = fmt.Sprintf("Saved %s (%d pages, %s)", saved.Path, msg.inspection.Pages, formatSize(saved.Size))
	}
	m.flow.Narrate(logsink.LevelSuccess, text)
	if msg.inspectErr != nil {
		m.flow.Narrate(logsink.LevelWarning, fmt.Sprintf("Could not read %s as a PDF: %v", saved.Path, msg.inspectErr))
	}
	m.refreshLog(false)
	return m.setNotice(logsink.LevelSuccess, "Report saved to "+saved.Path)
}

func (m *model) applyHistory(msg historyResultMsg) tea.Cmd {
	if msg.err != nil {
		m.flow.Narrate(logsink.LevelWarning, "Could not record run in history: "+msg.err.Error())
		m.refreshLog(false)
		return nil
	}
	run := msg.run
	m.lastRun = &run
	return nil
}

func (m *model) recordRun(msg workflow.CompletedMsg) tea.Cmd {
	if m.config.History == nil {
		return nil
	}
	_, cmd := m.bus.Start(jobs.KindHistory, recordHistoryJob(m.config.History, msg))
	return cmd
}

// afterFlow mirrors controller changes into the view: new log entries, a new status banner and a
// cleared download once the report it belonged to is gone.
func (m *model) afterFlow(cmd tea.Cmd) tea.Cmd {
	m.refreshLog(false)
	if filename, ok := m.flow.Download(); !ok || filename != m.savedFor {
		m.saved = nil
		m.inspection = nil
		m.savedFor = ""
	}
	status := m.flow.Status()
	if status.Seq != m.statusSeq {
		m.statusSeq = status.Seq
		cmd = tea.Batch(cmd, m.setNotice(status.Level, status.Text))
	}
	return tea.Batch(cmd, m.checkLogbook())
}

// checkLogbook reports once that the logbook mirror stopped after a failed write.
func (m *model) checkLogbook() tea.Cmd {
	err := m.flow.Sink().MirrorErr()
	if err == nil || m.logbookFailed {
		return nil
	}
	m.logbookFailed = true
	m.flow.Narrate(logsink.LevelWarning, fmt.Sprintf("Logbook disabled after a failed write: %v", err))
	m.refreshLog(false)
	return m.setNotice(logsink.LevelWarning, "Logbook disabled: "+err.Error())
}

func (m *model) setNotice(level logsink.Level, text string) tea.Cmd {
	m.noticeSeq++
	m.notice = notice{level: level, text: text, id: m.noticeSeq}
	if level != logsink.LevelSuccess {
		return nil
	}
	return expireNoticeCmd(m.notice.id, m.config.NoticeTTL)
}

func (m *model) refreshLog(force bool) {
	entries := m.flow.Log()
	var tail logsink.Entry
	if len(entries) > 0 {
		tail = entries[len(entries)-1]
	}
	if !force && len(entries) == m.logLen && tail == m.logTail {
		return
	}
	m.logLen = len(entries)
	m.logTail = tail
	m.logView.SetContent(m.renderLogEntries(entries))
	m.logView.GotoBottom()
}

// mergeOptions overlays the non-empty fields of remote onto local.
func mergeOptions(local, remote report.Options) report.Options {
	if remote.LLMModel != "" {
		local.LLMModel = remote.LLMModel
	}
	if remote.EmbeddingModel != "" {
		local.EmbeddingModel = remote.EmbeddingModel
	}
	if remote.IndexerType != "" {
		local.IndexerType = remote.IndexerType
	}
	if remote.TopPapers > 0 {
		local.TopPapers = remote.TopPapers
	}
	return local
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
