// Package workflow coordinates the analyze and generate calls of a report run. The Controller is a
// state machine driven from a bubbletea event loop: every method must be called from Update, and
// remote calls and reveal timers come back as messages passed to Controller.Update.
package workflow

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/paperproducer/internal/api"
	"github.com/csheth/paperproducer/internal/jobs"
	"github.com/csheth/paperproducer/internal/logsink"
	"github.com/csheth/paperproducer/internal/report"
	"github.com/csheth/paperproducer/internal/reveal"
)

const (
	defaultRevealInterval = 400 * time.Millisecond
	defaultRevealEpilogue = 600 * time.Millisecond
)

var epilogueNarrative = []string{
	"Extracting text from PDFs",
	"Building document index",
	"Composing report",
}

// Config wires the controller's collaborators. Analyzer and Generator are required; everything else
// has a default. Options is read at the moment a generation starts.
type Config struct {
	Analyzer  Analyzer
	Generator Generator
	Options   func() report.Options
	Scheduler *reveal.Scheduler
	Sink      *logsink.Sink
	Flow      Flow
	Jobs      *jobs.Bus
}

// Status is the transient banner describing the latest outcome. Seq grows with every change.
type Status struct {
	Level logsink.Level
	Text  string
	Seq   uint64
}

type Controller struct {
	cfg       Config
	sink      *logsink.Sink
	scheduler *reveal.Scheduler
	jobs      *jobs.Bus

	state State
	draft string
	query string

	spec     *report.QuerySpec
	result   *report.Result
	options  report.Options
	revealed []report.Paper
	download string

	renderGen uint64
	revealing bool

	analyzeTicket  string
	generateTicket string

	status  Status
	lastErr error
}

// New builds a controller in the Idle state.
func New(cfg Config) *Controller {
	if cfg.Sink == nil {
		cfg.Sink = logsink.New()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = reveal.NewScheduler(defaultRevealInterval, defaultRevealEpilogue)
	}
	if cfg.Jobs == nil {
		cfg.Jobs = jobs.NewBus()
	}
	if cfg.Flow == "" {
		cfg.Flow = FlowTwoStage
	}
	return &Controller{
		cfg:       cfg,
		sink:      cfg.Sink,
		scheduler: cfg.Scheduler,
		jobs:      cfg.Jobs,
	}
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Flow() Flow {
	return c.cfg.Flow
}

// Action derives the primary affordance from the current state.
func (c *Controller) Action() Action {
	return actionFor(c.state, c.cfg.Flow, c.revealing)
}

// Spec returns the stored QuerySpec, if any.
func (c *Controller) Spec() (report.QuerySpec, bool) {
	if c.spec == nil {
		return report.QuerySpec{}, false
	}
	return *c.spec, true
}

// Result returns the stored report, present only in the Generated state.
func (c *Controller) Result() (report.Result, bool) {
	if c.result == nil {
		return report.Result{}, false
	}
	return *c.result, true
}

// Revealed lists the papers shown so far, in ranking order.
func (c *Controller) Revealed() []report.Paper {
	return append([]report.Paper(nil), c.revealed...)
}

// Revealing reports whether the current reveal schedule is still running.
func (c *Controller) Revealing() bool {
	return c.revealing
}

// Download returns the artifact filename once the download affordance is enabled.
func (c *Controller) Download() (string, bool) {
	return c.download, c.download != ""
}

func (c *Controller) Status() Status {
	return c.status
}

func (c *Controller) Log() []logsink.Entry {
	return c.sink.Entries()
}

func (c *Controller) Sink() *logsink.Sink {
	return c.sink
}

func (c *Controller) RenderGeneration() uint64 {
	return c.renderGen
}

// Query is the raw text of the current run, or "" once the run has been dropped.
func (c *Controller) Query() string {
	return c.query
}

// LastError is the most recent validation or service error.
func (c *Controller) LastError() error {
	return c.lastErr
}

// Narrate appends a line about work that happens outside the state machine, such as saving the
// report, without touching the state.
func (c *Controller) Narrate(level logsink.Level, text string) {
	c.sink.Append(level, text)
}

// InputChanged records an edit of the query input. Outside of an in-flight call, an edit discards the
// stored QuerySpec and report and returns the controller to Idle.
func (c *Controller) InputChanged(value string) {
	c.draft = value
	switch c.state.Phase {
	case Analyzed, Generated, Failed:
		c.reset()
		c.state = State{Phase: Idle}
	}
}

// Submit starts a run for raw. Empty input is rejected locally; calls made while a request is in
// flight are dropped.
func (c *Controller) Submit(raw string) tea.Cmd {
	if c.state.Busy() {
		return nil
	}
	c.draft = raw
	query := strings.TrimSpace(raw)
	if query == "" {
		return c.reject(&ValidationError{Reason: "Please enter a research query", Err: ErrEmptyQuery})
	}

	c.reset()
	c.sink.Clear()
	c.query = query
	c.lastErr = nil
	if c.cfg.Flow == FlowTopic {
		return c.startTopic()
	}

	c.state = State{Phase: Analyzing}
	c.sink.Info("Analyzing query: %s", query)
	c.setStatus(logsink.LevelInfo, "Analyzing query…")
	id, cmd := c.jobs.Start(jobs.KindAnalyze, analyzeJob(c.cfg.Analyzer, query))
	c.analyzeTicket = id
	return cmd
}

// Primary performs whatever the primary affordance currently offers. A disabled action is a no-op.
func (c *Controller) Primary() tea.Cmd {
	if !c.Action().Enabled {
		return nil
	}
	switch c.state.Phase {
	case Idle:
		return c.Submit(c.draft)
	case Analyzed:
		return c.Generate()
	case Generated:
		c.reset()
		c.draft = ""
		c.state = State{Phase: Idle}
		c.setStatus(logsink.LevelInfo, "Enter a new research query.")
		return nil
	case Failed:
		if c.state.FailedStage == Analyzing {
			return c.Submit(c.draft)
		}
		if c.cfg.Flow == FlowTopic {
			return c.startTopic()
		}
		return c.Generate()
	}
	return nil
}

// Generate compiles a report from the stored QuerySpec.
func (c *Controller) Generate() tea.Cmd {
	if c.spec == nil {
		return c.reject(&ValidationError{Reason: "Analyze a query before generating a report", Err: ErrNoQuerySpec})
	}
	if c.state.Busy() {
		return nil
	}
	opts := c.beginGeneration()
	req := api.GenerateRequest{UserQuery: c.query, Spec: c.spec, Options: opts}
	id, cmd := c.jobs.Start(jobs.KindGenerate, generateJob(c.cfg.Generator, req))
	c.generateTicket = id
	return cmd
}

// Regenerate repeats generation for the current run: from the stored QuerySpec in the two-stage flow,
// or for the submitted topic in the topic flow. Without a run to repeat it is rejected locally.
func (c *Controller) Regenerate() tea.Cmd {
	if c.cfg.Flow != FlowTopic {
		return c.Generate()
	}
	if c.query == "" {
		return c.reject(&ValidationError{Reason: "Generate a report before regenerating it", Err: ErrNoReport})
	}
	if c.state.Busy() {
		return nil
	}
	return c.startTopic()
}

func (c *Controller) startTopic() tea.Cmd {
	opts := c.beginGeneration()
	id, cmd := c.jobs.Start(jobs.KindGenerate, topicJob(c.cfg.Generator, c.query, opts))
	c.generateTicket = id
	return cmd
}

func (c *Controller) beginGeneration() report.Options {
	opts := c.currentOptions()
	c.options = opts
	c.clearResult()
	c.state = State{Phase: Generating}
	c.sink.Info("Generating report with %s using the %s indexer (top %d papers)", opts.LLMModel, opts.IndexerType, opts.TopPapers)
	if opts.EmbeddingModel != "" {
		c.sink.Info("Embedding model: %s", opts.EmbeddingModel)
	}
	c.setStatus(logsink.LevelInfo, "Searching and processing papers…")
	return opts
}

func (c *Controller) currentOptions() report.Options {
	if c.cfg.Options == nil {
		return report.Options{}
	}
	return c.cfg.Options()
}

// Update applies job results and reveal ticks. Messages from superseded jobs or reveal schedules are
// ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case jobs.ResultMsg:
		return c.handleJobResult(msg)
	case reveal.Msg:
		c.handleReveal(msg)
	case reveal.EpilogueMsg:
		return c.handleEpilogue(msg)
	}
	return nil
}

func (c *Controller) handleJobResult(msg jobs.ResultMsg) tea.Cmd {
	switch payload := msg.Payload.(type) {
	case analyzeResultMsg:
		if msg.Snapshot.ID != c.analyzeTicket || c.state.Phase != Analyzing {
			return nil
		}
		c.analyzeTicket = ""
		if payload.err != nil {
			c.fail(Analyzing, payload.err)
			return nil
		}
		c.acceptSpec(payload.spec)
	case generateResultMsg:
		if msg.Snapshot.ID != c.generateTicket || c.state.Phase != Generating {
			return nil
		}
		c.generateTicket = ""
		if payload.err != nil {
			c.fail(Generating, payload.err)
			return nil
		}
		return c.acceptResult(payload.result)
	}
	return nil
}

func (c *Controller) acceptSpec(spec report.QuerySpec) {
	c.spec = &spec
	c.state = State{Phase: Analyzed}
	c.sink.Success("Query analyzed")
	c.sink.Info("Search query: %s", spec.SearchQuery)
	if len(spec.Themes) > 0 {
		c.sink.Info("Themes: %s", strings.Join(spec.Themes, ", "))
	}
	if len(spec.Structure) > 0 {
		c.sink.Info("Structure: %s", strings.Join(spec.Structure, " → "))
	}
	if req := spec.Requirements(); req != "" {
		c.sink.Info("Special requirements: %s", req)
	}
	c.setStatus(logsink.LevelSuccess, "Query analyzed. Review the specification, then generate.")
}

func (c *Controller) acceptResult(result report.Result) tea.Cmd {
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	c.result = &result
	c.revealed = make([]report.Paper, 0, len(result.Papers))
	c.renderGen++
	c.revealing = true
	c.state = State{Phase: Generated}
	c.sink.Info("Found %d papers", len(result.Papers))
	c.setStatus(logsink.LevelInfo, "Processing papers…")
	return c.scheduler.Reveal(c.renderGen, len(result.Papers))
}

func (c *Controller) handleReveal(msg reveal.Msg) {
	if msg.Generation != c.renderGen || c.result == nil {
		return
	}
	papers := c.result.Papers
	idx := msg.Index - 1
	if idx < 0 || idx >= len(papers) || idx != len(c.revealed) {
		return
	}
	paper := papers[idx]
	c.revealed = append(c.revealed, paper)

	position := fmt.Sprintf("[%d/%d]", msg.Index, len(papers))
	status, ok := c.result.StatusFor(idx)
	switch {
	case ok && status.Failed():
		reason := status.Reason
		if reason == "" {
			reason = "unknown error"
		}
		c.sink.Error("%s Failed to process %s (arXiv:%s): %s", position, paper.Title, paper.ArxivID, reason)
	case ok:
		c.sink.Success("%s Processed %s (arXiv:%s)", position, paper.Title, paper.ArxivID)
	default:
		c.sink.Info("%s %s (arXiv:%s)", position, paper.Title, paper.ArxivID)
	}
}

func (c *Controller) handleEpilogue(msg reveal.EpilogueMsg) tea.Cmd {
	if msg.Generation != c.renderGen || c.result == nil || !c.revealing {
		return nil
	}
	c.revealing = false
	for _, line := range epilogueNarrative {
		c.sink.Info("%s", line)
	}
	for _, warning := range c.result.Warnings {
		c.sink.Warning("%s", warning)
	}
	c.download = c.result.Filename
	c.sink.Success("Report ready: %s", c.result.Filename)
	c.setStatus(logsink.LevelSuccess, "Report generated successfully!")

	completed := CompletedMsg{Query: c.query, Options: c.options, Result: *c.result}
	if c.spec != nil {
		spec := *c.spec
		completed.Spec = &spec
	}
	return func() tea.Msg { return completed }
}

// fail records a remote failure: one error entry, a banner, and the retry state for stage.
func (c *Controller) fail(stage Phase, err error) {
	c.lastErr = err
	c.state = State{Phase: Failed, FailedStage: stage}
	detail := failureDetail(err)
	if stage == Analyzing {
		c.spec = nil
		c.sink.Error("Analysis failed: %s", detail)
	} else {
		c.sink.Error("Generation failed: %s", detail)
	}
	c.setStatus(logsink.LevelError, "Error: "+detail)
}

func (c *Controller) reject(err *ValidationError) tea.Cmd {
	c.lastErr = err
	c.sink.Error("%s", err.Reason)
	c.setStatus(logsink.LevelError, err.Reason)
	return nil
}

// reset drops the run's query, QuerySpec and report and invalidates any reveal still in flight.
func (c *Controller) reset() {
	c.query = ""
	c.spec = nil
	c.clearResult()
}

func (c *Controller) clearResult() {
	c.result = nil
	c.revealed = nil
	c.download = ""
	c.revealing = false
	c.renderGen++
}

func (c *Controller) setStatus(level logsink.Level, text string) {
	c.status = Status{Level: level, Text: text, Seq: c.status.Seq + 1}
}
