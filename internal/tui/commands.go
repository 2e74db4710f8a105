package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/paperproducer/internal/api"
	"github.com/csheth/paperproducer/internal/artifact"
	"github.com/csheth/paperproducer/internal/history"
	"github.com/csheth/paperproducer/internal/jobs"
	"github.com/csheth/paperproducer/internal/report"
	"github.com/csheth/paperproducer/internal/workflow"
)

const (
	settingsTimeout = 15 * time.Second
	downloadTimeout = 2 * time.Minute
	historyTimeout  = 5 * time.Second
)

type remoteConfigMsg struct {
	config api.RemoteConfig
	err    error
}

type catalogMsg struct {
	catalog api.Catalog
	err     error
}

type configSavedMsg struct {
	options report.Options
	err     error
}

type downloadResultMsg struct {
	filename   string
	saved      artifact.Saved
	inspection *artifact.Inspection
	inspectErr error
	err        error
}

type historyResultMsg struct {
	run history.Run
	err error
}

type noticeExpiredMsg struct {
	id uint64
}

func loadConfigJob(service Service) jobs.Runner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, settingsTimeout)
		defer cancel()
		cfg, err := service.LoadConfig(ctx)
		return remoteConfigMsg{config: cfg, err: err}, err
	}
}

func loadCatalogJob(service Service) jobs.Runner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, settingsTimeout)
		defer cancel()
		catalog, err := service.Models(ctx)
		return catalogMsg{catalog: catalog, err: err}, err
	}
}

func saveConfigJob(service Service, opts report.Options) jobs.Runner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, settingsTimeout)
		defer cancel()
		err := service.SaveConfig(ctx, api.UpdateFromOptions(opts))
		return configSavedMsg{options: opts, err: err}, err
	}
}

func downloadJob(store *artifact.Store, inspector *artifact.Inspector, filename string) jobs.Runner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, downloadTimeout)
		defer cancel()
		saved, err := store.Save(ctx, filename)
		if err != nil {
			return downloadResultMsg{filename: filename, err: err}, err
		}
		msg := downloadResultMsg{filename: filename, saved: saved}
		if inspector != nil {
			inspection, inspectErr := inspector.Inspect(saved.Path)
			if inspectErr != nil {
				msg.inspectErr = inspectErr
			} else {
				msg.inspection = &inspection
			}
		}
		return msg, nil
	}
}

func recordHistoryJob(recorder Recorder, completed workflow.CompletedMsg) jobs.Runner {
	run := history.Run{
		Query:    completed.Query,
		Spec:     completed.Spec,
		Options:  completed.Options,
		Filename: completed.Result.Filename,
		Papers:   append([]report.Paper(nil), completed.Result.Papers...),
		Warnings: append([]string(nil), completed.Result.Warnings...),
	}
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, historyTimeout)
		defer cancel()
		recorded, err := recorder.Record(ctx, run)
		return historyResultMsg{run: recorded, err: err}, err
	}
}

func expireNoticeCmd(id uint64, ttl time.Duration) tea.Cmd {
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}
