package workflow

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/paperproducer/internal/api"
	"github.com/csheth/paperproducer/internal/jobs"
	"github.com/csheth/paperproducer/internal/report"
)

// Analyzer turns a free-text request into a QuerySpec.
type Analyzer interface {
	Analyze(ctx context.Context, rawQuery string) (report.QuerySpec, error)
}

// Generator compiles reports, either from an analyzed QuerySpec or straight from a topic.
type Generator interface {
	Generate(ctx context.Context, req api.GenerateRequest) (report.Result, error)
	GenerateTopic(ctx context.Context, topic string, opts report.Options) (report.Result, error)
}

type analyzeResultMsg struct {
	spec report.QuerySpec
	err  error
}

type generateResultMsg struct {
	result report.Result
	err    error
}

// CompletedMsg is emitted once a generation has been fully revealed.
type CompletedMsg struct {
	Query   string
	Spec    *report.QuerySpec
	Options report.Options
	Result  report.Result
}

func analyzeJob(analyzer Analyzer, query string) jobs.Runner {
	return func(ctx context.Context) (tea.Msg, error) {
		spec, err := analyzer.Analyze(ctx, query)
		return analyzeResultMsg{spec: spec, err: err}, err
	}
}

func generateJob(generator Generator, req api.GenerateRequest) jobs.Runner {
	return func(ctx context.Context) (tea.Msg, error) {
		result, err := generator.Generate(ctx, req)
		return generateResultMsg{result: result, err: err}, err
	}
}

func topicJob(generator Generator, topic string, opts report.Options) jobs.Runner {
	return func(ctx context.Context) (tea.Msg, error) {
		result, err := generator.GenerateTopic(ctx, topic, opts)
		return generateResultMsg{result: result, err: err}, err
	}
}
