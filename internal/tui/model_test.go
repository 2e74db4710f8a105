package tui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/paperproducer/internal/api"
	"github.com/csheth/paperproducer/internal/history"
	"github.com/csheth/paperproducer/internal/jobs"
	"github.com/csheth/paperproducer/internal/logsink"
	"github.com/csheth/paperproducer/internal/report"
	"github.com/csheth/paperproducer/internal/workflow"
)

type fakeService struct {
	spec        report.QuerySpec
	analyzeErr  error
	result      report.Result
	generateErr error
	remote      api.RemoteConfig
	remoteErr   error
	catalog     api.Catalog
	saveErr     error
	pdf         []byte
	downloadErr error

	analyzeCalls int
	lastRequest  api.GenerateRequest
	saved        []api.ConfigUpdate
	downloaded   []string
}

func (f *fakeService) Analyze(_ context.Context, rawQuery string) (report.QuerySpec, error) {
	f.analyzeCalls++
	return f.spec, f.analyzeErr
}

func (f *fakeService) Generate(_ context.Context, req api.GenerateRequest) (report.Result, error) {
	f.lastRequest = req
	return f.result, f.generateErr
}

func (f *fakeService) GenerateTopic(_ context.Context, topic string, opts report.Options) (report.Result, error) {
	f.lastRequest = api.GenerateRequest{UserQuery: topic, Options: opts}
	return f.result, f.generateErr
}

func (f *fakeService) LoadConfig(context.Context) (api.RemoteConfig, error) {
	return f.remote, f.remoteErr
}

func (f *fakeService) SaveConfig(_ context.Context, update api.ConfigUpdate) error {
	f.saved = append(f.saved, update)
	return f.saveErr
}

func (f *fakeService) Models(context.Context) (api.Catalog, error) {
	return f.catalog, nil
}

func (f *fakeService) Download(_ context.Context, filename string, w io.Writer) (int64, error) {
	f.downloaded = append(f.downloaded, filename)
	if f.downloadErr != nil {
		return 0, f.downloadErr
	}
	n, err := w.Write(f.pdf)
	return int64(n), err
}

type fakeRecorder struct {
	runs []history.Run
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, run history.Run) (history.Run, error) {
	if f.err != nil {
		return history.Run{}, f.err
	}
	run.ID = int64(len(f.runs) + 1)
	f.runs = append(f.runs, run)
	return run, nil
}

func newFakeService() *fakeService {
	requirements := "focus on hardware"
	return &fakeService{
		spec: report.QuerySpec{
			SearchQuery:         "quantum error correction",
			Themes:              []string{"surface codes", "decoders"},
			Structure:           []string{"Introduction", "Methods"},
			SpecialRequirements: &requirements,
		},
		result: report.Result{
			Filename: "report_123.pdf",
			Papers: []report.Paper{
				{Title: "Surface codes at scale", ArxivID: "2401.00001"},
				{Title: "Neural decoders", ArxivID: "2401.00002"},
			},
			ReportPreview: "This report surveys recent progress in quantum error correction.",
			Warnings:      []string{},
		},
		catalog: api.Catalog{
			LLMModels:       []string{"gpt-4o-mini", "gpt-4o", "llama3"},
			IndexerTypes:    []string{"vector", "bm25"},
			EmbeddingModels: []string{"text-embedding-3-small"},
		},
		pdf: []byte("%PDF-1.4 fake"),
	}
}

func testConfig(svc *fakeService) Config {
	return Config{
		Service:    svc,
		ServerURL:  "http://localhost:8000",
		Flow:       workflow.FlowTwoStage,
		Generation: report.Options{LLMModel: "gpt-4o-mini", IndexerType: "vector", TopPapers: 5},
		NoticeTTL:  time.Millisecond,
	}
}

func newTestModel(t *testing.T, svc *fakeService) *model {
	t.Helper()
	return newModel(testConfig(svc))
}

// expand runs cmd and returns the messages it produces, unpacking batches and sequences.
func expand(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if msg == nil {
		return nil
	}
	cmdType := reflect.TypeOf((*tea.Cmd)(nil)).Elem()
	if v := reflect.ValueOf(msg); v.Kind() == reflect.Slice && v.Type().Elem() == cmdType {
		var out []tea.Msg
		for i := 0; i < v.Len(); i++ {
			out = append(out, expand(t, v.Index(i).Interface().(tea.Cmd))...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// drive delivers everything cmd produces to m and follows the commands Update returns.
func drive(t *testing.T, m *model, cmd tea.Cmd) {
	t.Helper()
	for _, msg := range expand(t, cmd) {
		_, next := m.Update(msg)
		drive(t, m, next)
	}
}

func typeQuery(m *model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func logMessages(m *model) []string {
	entries := m.flow.Log()
	out := make([]string, len(entries))
	for i, entry := range entries {
		out[i] = entry.Message
	}
	return out
}

func containsMessage(m *model, fragment string) bool {
	for _, msg := range logMessages(m) {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func TestEnterRunsTwoStageFlow(t *testing.T) {
	svc := newFakeService()
	recorder := &fakeRecorder{}
	m := newTestModel(t, svc)
	m.config.History = recorder

	typeQuery(m, "recent advances in quantum error correction")
	if got := m.input.Value(); got != "recent advances in quantum error correction" {
		t.Fatalf("input not updated, got %q", got)
	}

	drive(t, m, m.primaryCmd())
	if state := m.flow.State(); state.Phase != workflow.Analyzed {
		t.Fatalf("expected analyzed state, got %s", state)
	}
	if view := m.View(); !strings.Contains(view, "Analyzed Query") || !strings.Contains(view, "surface codes, decoders") {
		t.Fatalf("spec not rendered:\n%s", view)
	}
	if label := m.flow.Action().Label; label != workflow.LabelGenerate {
		t.Fatalf("expected Generate action, got %q", label)
	}

	drive(t, m, m.primaryCmd())
	if state := m.flow.State(); state.Phase != workflow.Generated {
		t.Fatalf("expected generated state, got %s", state)
	}
	if got := len(m.flow.Revealed()); got != 2 {
		t.Fatalf("expected both papers revealed, got %d", got)
	}
	if filename, ok := m.flow.Download(); !ok || filename != "report_123.pdf" {
		t.Fatalf("download not offered: %q %v", filename, ok)
	}
	if svc.lastRequest.Options.TopPapers != 5 || svc.lastRequest.Spec == nil {
		t.Fatalf("generate request missing spec or options: %+v", svc.lastRequest)
	}
	view := m.View()
	for _, want := range []string{"Papers (2/2)", "Surface codes at scale", "report_123.pdf"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	if len(recorder.runs) != 1 {
		t.Fatalf("expected run recorded once, got %d", len(recorder.runs))
	}
	if run := recorder.runs[0]; run.Query != "recent advances in quantum error correction" || run.Filename != "report_123.pdf" || len(run.Papers) != 2 {
		t.Fatalf("unexpected recorded run: %+v", run)
	}
	if m.lastRun == nil || m.lastRun.ID != 1 {
		t.Fatalf("last run not tracked: %+v", m.lastRun)
	}
	if m.notice.text != "" {
		t.Fatalf("success banner should hide itself, still showing %q", m.notice.text)
	}
}

func TestNewQueryClearsInputAndKeepsLog(t *testing.T) {
	svc := newFakeService()
	m := newTestModel(t, svc)
	typeQuery(m, "graph neural networks")
	drive(t, m, m.primaryCmd())
	drive(t, m, m.primaryCmd())
	entries := len(m.flow.Log())

	drive(t, m, m.primaryCmd())
	if state := m.flow.State(); state.Phase != workflow.Idle {
		t.Fatalf("expected idle after new query, got %s", state)
	}
	if got := m.input.Value(); got != "" {
		t.Fatalf("input should be cleared, got %q", got)
	}
	if got := len(m.flow.Log()); got != entries {
		t.Fatalf("log should be kept until the next submit, had %d now %d", entries, got)
	}
	if strings.Contains(m.View(), "Papers (") {
		t.Fatal("papers should be gone after starting a new query")
	}
}

func TestEditingQueryAfterAnalysisResets(t *testing.T) {
	svc := newFakeService()
	m := newTestModel(t, svc)
	typeQuery(m, "quantum")
	drive(t, m, m.primaryCmd())
	if _, ok := m.flow.Spec(); !ok {
		t.Fatal("expected spec after analysis")
	}

	typeQuery(m, "!")
	if state := m.flow.State(); state.Phase != workflow.Idle {
		t.Fatalf("edit should return to idle, got %s", state)
	}
	if _, ok := m.flow.Spec(); ok {
		t.Fatal("edit should discard the spec")
	}
	if strings.Contains(m.View(), "Analyzed Query") {
		t.Fatal("spec panel should disappear after edit")
	}
}

func TestServiceErrorBannerPersists(t *testing.T) {
	svc := newFakeService()
	svc.analyzeErr = &api.ServiceError{Stage: "analyze", Status: http.StatusTooManyRequests, Detail: "rate limited"}
	m := newTestModel(t, svc)
	typeQuery(m, "quantum")

	drive(t, m, m.primaryCmd())
	if m.notice.level != logsink.LevelError || m.notice.text != "Error: rate limited" {
		t.Fatalf("unexpected banner: %+v", m.notice)
	}
	if label := m.flow.Action().Label; label != workflow.LabelRetryAnalysis {
		t.Fatalf("expected retry action, got %q", label)
	}
	if !strings.Contains(m.View(), "Error: rate limited") {
		t.Fatal("error banner not rendered")
	}

	svc.analyzeErr = nil
	drive(t, m, m.primaryCmd())
	if state := m.flow.State(); state.Phase != workflow.Analyzed {
		t.Fatalf("retry should analyze again, got %s", state)
	}
	if svc.analyzeCalls != 2 {
		t.Fatalf("expected two analyze calls, got %d", svc.analyzeCalls)
	}
}

type brokenLogbook struct{}

func (brokenLogbook) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestLogbookFailureIsReportedOnce(t *testing.T) {
	svc := newFakeService()
	cfg := testConfig(svc)
	cfg.Logbook = brokenLogbook{}
	m := newModel(cfg)
	typeQuery(m, "quantum")

	cmd := m.primaryCmd()
	if m.notice.level != logsink.LevelWarning || !strings.Contains(m.notice.text, "disk full") {
		t.Fatalf("expected logbook warning banner, got %+v", m.notice)
	}
	drive(t, m, cmd)
	drive(t, m, m.primaryCmd())
	if state := m.flow.State(); state.Phase != workflow.Generated {
		t.Fatalf("logbook failure must not affect the run, got %s", state)
	}
	count := 0
	for _, msg := range logMessages(m) {
		if strings.Contains(msg, "Logbook disabled") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("logbook failure should be narrated once, got %d", count)
	}
}

func TestEmptyQueryShowsValidationBanner(t *testing.T) {
	svc := newFakeService()
	m := newTestModel(t, svc)
	drive(t, m, m.primaryCmd())
	if svc.analyzeCalls != 0 {
		t.Fatalf("empty query must not reach the service")
	}
	if m.notice.text != "Please enter a research query" {
		t.Fatalf("unexpected banner %q", m.notice.text)
	}
}

func TestRegenerateWithoutSpecIsRejected(t *testing.T) {
	svc := newFakeService()
	m := newTestModel(t, svc)
	drive(t, m, m.regenerateCmd())
	if m.notice.level != logsink.LevelError || !strings.Contains(m.notice.text, "Analyze a query") {
		t.Fatalf("unexpected banner: %+v", m.notice)
	}
}

func TestDownloadSavesReport(t *testing.T) {
	svc := newFakeService()
	dir := filepath.Join(t.TempDir(), "reports")
	cfg := testConfig(svc)
	cfg.DownloadDir = dir
	m := newModel(cfg)
	typeQuery(m, "quantum")
	drive(t, m, m.primaryCmd())
	drive(t, m, m.primaryCmd())

	drive(t, m, m.downloadCmd())
	if len(svc.downloaded) != 1 || svc.downloaded[0] != "report_123.pdf" {
		t.Fatalf("unexpected downloads: %v", svc.downloaded)
	}
	want := filepath.Join(dir, "report_123.pdf")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if string(data) != "%PDF-1.4 fake" {
		t.Fatalf("unexpected report contents %q", data)
	}
	if m.saved == nil || m.saved.Path != want {
		t.Fatalf("saved report not tracked: %+v", m.saved)
	}
	if m.downloading {
		t.Fatal("download flag should reset")
	}
	if !containsMessage(m, "Saved "+want) {
		t.Fatalf("save not narrated: %v", logMessages(m))
	}
	if !strings.Contains(m.View(), "Saved to "+want) {
		t.Fatal("saved path not rendered")
	}
}

func TestDownloadFailureIsLogged(t *testing.T) {
	svc := newFakeService()
	svc.downloadErr = errors.New("connection reset")
	cfg := testConfig(svc)
	cfg.DownloadDir = t.TempDir()
	m := newModel(cfg)
	typeQuery(m, "quantum")
	drive(t, m, m.primaryCmd())
	drive(t, m, m.primaryCmd())

	drive(t, m, m.downloadCmd())
	if m.saved != nil {
		t.Fatal("failed download should not be tracked as saved")
	}
	if m.notice.level != logsink.LevelError {
		t.Fatalf("expected error banner, got %+v", m.notice)
	}
	if !containsMessage(m, "Download of report_123.pdf failed") {
		t.Fatalf("failure not logged: %v", logMessages(m))
	}
}

func TestDownloadWithoutReport(t *testing.T) {
	svc := newFakeService()
	m := newTestModel(t, svc)
	if cmd := m.downloadCmd(); cmd != nil {
		t.Fatalf("download without a report should not start a job")
	}
	if m.notice.level != logsink.LevelWarning {
		t.Fatalf("expected warning banner, got %+v", m.notice)
	}
	if len(svc.downloaded) != 0 {
		t.Fatal("service should not be called")
	}
}

func TestSettingsPanelSavesOptions(t *testing.T) {
	svc := newFakeService()
	svc.remote = api.RemoteConfig{LLM: api.LLMSettings{Model: "gpt-4o-mini"}, Indexer: api.IndexerSettings{Type: "vector"}, Search: api.SearchSettings{TopPapers: 8}}
	m := newTestModel(t, svc)

	_, loadConfig := m.bus.Start(jobs.KindConfig, loadConfigJob(svc))
	drive(t, m, loadConfig)
	_, loadCatalog := m.bus.Start(jobs.KindModels, loadCatalogJob(svc))
	drive(t, m, loadCatalog)
	if m.options.TopPapers != 8 || !m.remoteLoaded || !m.catalogLoaded {
		t.Fatalf("remote config not applied: %+v", m.options)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.panel != panelSettings {
		t.Fatal("ctrl+s should open settings")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.settings.draft.LLMModel != "gpt-4o" {
		t.Fatalf("expected next model, got %q", m.settings.draft.LLMModel)
	}
	if m.options.LLMModel != "gpt-4o-mini" {
		t.Fatal("options must not change before saving")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if m.settings.draft.TopPapers != 7 {
		t.Fatalf("expected top papers decremented, got %d", m.settings.draft.TopPapers)
	}
	if !strings.Contains(m.View(), "Generation Settings") {
		t.Fatal("settings panel not rendered")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drive(t, m, cmd)
	if len(svc.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(svc.saved))
	}
	if got := svc.saved[0]; got.LLMModel != "gpt-4o" || got.TopPapers != 7 || got.IndexerType != "vector" {
		t.Fatalf("unexpected config update: %+v", got)
	}
	if m.options.LLMModel != "gpt-4o" || m.panel != panelMain {
		t.Fatalf("saved options not applied: %+v panel=%v", m.options, m.panel)
	}

	typeQuery(m, "quantum")
	drive(t, m, m.primaryCmd())
	drive(t, m, m.primaryCmd())
	if svc.lastRequest.Options.LLMModel != "gpt-4o" || svc.lastRequest.Options.TopPapers != 7 {
		t.Fatalf("generation should use saved options, got %+v", svc.lastRequest.Options)
	}
}

func TestSettingsSaveFailureKeepsPanelOpen(t *testing.T) {
	svc := newFakeService()
	svc.saveErr = errors.New("bad model")
	m := newTestModel(t, svc)
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drive(t, m, cmd)
	if m.panel != panelSettings {
		t.Fatal("panel should stay open after a failed save")
	}
	if m.settings.saving {
		t.Fatal("saving flag should reset")
	}
	if m.notice.level != logsink.LevelError || !strings.Contains(m.notice.text, "bad model") {
		t.Fatalf("unexpected banner: %+v", m.notice)
	}
}

func TestRemoteConfigFailureKeepsLocalOptions(t *testing.T) {
	svc := newFakeService()
	svc.remoteErr = errors.New("connection refused")
	m := newTestModel(t, svc)
	_, cmd := m.bus.Start(jobs.KindConfig, loadConfigJob(svc))
	drive(t, m, cmd)
	if m.remoteLoaded {
		t.Fatal("remote config should not be marked loaded")
	}
	if m.options.TopPapers != 5 || m.options.LLMModel != "gpt-4o-mini" {
		t.Fatalf("local options should survive: %+v", m.options)
	}
	if m.notice.level != logsink.LevelWarning {
		t.Fatalf("expected warning banner, got %+v", m.notice)
	}
}

func TestHistoryFailureIsNarrated(t *testing.T) {
	svc := newFakeService()
	m := newTestModel(t, svc)
	m.config.History = &fakeRecorder{err: errors.New("disk full")}
	typeQuery(m, "quantum")
	drive(t, m, m.primaryCmd())
	drive(t, m, m.primaryCmd())
	if !containsMessage(m, "Could not record run in history: disk full") {
		t.Fatalf("history failure not logged: %v", logMessages(m))
	}
}

func TestTopicFlowRegenerate(t *testing.T) {
	svc := newFakeService()
	cfg := testConfig(svc)
	cfg.Flow = workflow.FlowTopic
	m := newModel(cfg)
	typeQuery(m, "graph neural networks")
	drive(t, m, m.primaryCmd())
	if state := m.flow.State(); state.Phase != workflow.Generated {
		t.Fatalf("topic flow should generate directly, got %s", state)
	}
	if svc.analyzeCalls != 0 {
		t.Fatal("topic flow must not analyze")
	}

	svc.lastRequest = api.GenerateRequest{}
	drive(t, m, m.regenerateCmd())
	if svc.lastRequest.UserQuery != "graph neural networks" {
		t.Fatalf("regenerate should resubmit the topic, got %+v", svc.lastRequest)
	}

	m.input.SetValue("")
	typeQuery(m, "protein folding")
	if state := m.flow.State(); state.Phase != workflow.Idle {
		t.Fatalf("editing the topic should return to idle, got %s", state)
	}
	svc.lastRequest = api.GenerateRequest{}
	drive(t, m, m.regenerateCmd())
	if svc.lastRequest.UserQuery != "" {
		t.Fatalf("regenerate after an edit must not resend the old topic, sent %q", svc.lastRequest.UserQuery)
	}
	if !errors.Is(m.flow.LastError(), workflow.ErrNoReport) {
		t.Fatalf("expected a local rejection, got %v", m.flow.LastError())
	}
	if got := m.input.Value(); got != "protein folding" {
		t.Fatalf("input should keep the edited topic, got %q", got)
	}

	drive(t, m, m.primaryCmd())
	if svc.lastRequest.UserQuery != "protein folding" {
		t.Fatalf("primary action should generate the edited topic, got %q", svc.lastRequest.UserQuery)
	}
}

func TestFooterShowsRunningJobs(t *testing.T) {
	svc := newFakeService()
	m := newTestModel(t, svc)
	m.Update(jobs.SignalMsg{Snapshot: jobs.Snapshot{ID: "download-1", Kind: jobs.KindDownload, Status: jobs.StatusRunning}})
	if footer := m.footerView(); !strings.Contains(footer, "download") {
		t.Fatalf("footer missing running job: %q", footer)
	}
	m.Update(jobs.ResultMsg{Snapshot: jobs.Snapshot{ID: "download-1", Kind: jobs.KindDownload, Status: jobs.StatusFailed}})
	if footer := m.footerView(); !strings.Contains(footer, "Last download failed") {
		t.Fatalf("footer missing failed job: %q", footer)
	}
}

func TestCycleChoice(t *testing.T) {
	choices := []string{"a", "b", "c"}
	cases := []struct {
		current string
		delta   int
		want    string
	}{
		{current: "a", delta: 1, want: "b"},
		{current: "c", delta: 1, want: "a"},
		{current: "a", delta: -1, want: "c"},
		{current: "B", delta: 1, want: "c"},
		{current: "missing", delta: 1, want: "a"},
	}
	for _, tc := range cases {
		if got := cycleChoice(choices, tc.current, tc.delta); got != tc.want {
			t.Fatalf("cycleChoice(%q, %d) = %q want %q", tc.current, tc.delta, got, tc.want)
		}
	}
	if got := cycleChoice(nil, "keep", 1); got != "keep" {
		t.Fatalf("empty catalog should keep current, got %q", got)
	}
}

func TestMergeOptions(t *testing.T) {
	local := report.Options{LLMModel: "gpt-4o-mini", EmbeddingModel: "small", IndexerType: "vector", TopPapers: 5}
	got := mergeOptions(local, report.Options{LLMModel: "llama3"})
	want := report.Options{LLMModel: "llama3", EmbeddingModel: "small", IndexerType: "vector", TopPapers: 5}
	if got != want {
		t.Fatalf("mergeOptions = %+v want %+v", got, want)
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{512: "512 B", 2048: "2.0 KiB", 5 * 1024 * 1024: "5.0 MiB"}
	for size, want := range cases {
		if got := formatSize(size); got != want {
			t.Fatalf("formatSize(%d) = %q want %q", size, got, want)
		}
	}
}
