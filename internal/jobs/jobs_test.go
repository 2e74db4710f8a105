package jobs

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type donePayload struct{ value string }

// sequenceCmds unpacks the commands behind a tea.Sequence.
func sequenceCmds(t *testing.T, msg tea.Msg) []tea.Cmd {
	t.Helper()
	v := reflect.ValueOf(msg)
	cmdType := reflect.TypeOf((*tea.Cmd)(nil)).Elem()
	if v.Kind() != reflect.Slice || v.Type().Elem() != cmdType {
		t.Fatalf("expected a command sequence, got %T", msg)
	}
	cmds := make([]tea.Cmd, v.Len())
	for i := range cmds {
		cmds[i] = v.Index(i).Interface().(tea.Cmd)
	}
	return cmds
}

func TestStartEmitsSignalThenResult(t *testing.T) {
	bus := NewBus()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bus.now = func() time.Time { return fixed }

	id, cmd := bus.Start(KindAnalyze, func(context.Context) (tea.Msg, error) {
		return donePayload{value: "ok"}, nil
	})
	if id != "analyze-1" {
		t.Fatalf("unexpected id %q", id)
	}
	cmds := sequenceCmds(t, cmd())
	if len(cmds) != 2 {
		t.Fatalf("expected start and run commands, got %d", len(cmds))
	}

	signal, ok := cmds[0]().(SignalMsg)
	if !ok {
		t.Fatalf("first message should be a signal")
	}
	if signal.Snapshot.ID != id || signal.Snapshot.Status != StatusRunning {
		t.Fatalf("unexpected start snapshot %+v", signal.Snapshot)
	}

	result, ok := cmds[1]().(ResultMsg)
	if !ok {
		t.Fatalf("second message should be a result")
	}
	if result.Snapshot.Status != StatusSucceeded || result.Snapshot.Err != "" {
		t.Fatalf("unexpected result snapshot %+v", result.Snapshot)
	}
	if payload, ok := result.Payload.(donePayload); !ok || payload.value != "ok" {
		t.Fatalf("payload not forwarded: %#v", result.Payload)
	}
}

func TestStartRecordsFailure(t *testing.T) {
	bus := NewBus()
	_, cmd := bus.Start(KindGenerate, func(context.Context) (tea.Msg, error) {
		return donePayload{}, errors.New("boom")
	})
	cmds := sequenceCmds(t, cmd())
	result := cmds[1]().(ResultMsg)
	if result.Snapshot.Status != StatusFailed || result.Snapshot.Err != "boom" {
		t.Fatalf("failure not recorded: %+v", result.Snapshot)
	}
	if _, ok := result.Payload.(donePayload); !ok {
		t.Fatalf("payload should still be delivered on failure")
	}
}

func TestIDsAreUniquePerBus(t *testing.T) {
	bus := NewBus()
	runner := func(context.Context) (tea.Msg, error) { return nil, nil }
	first, _ := bus.Start(KindSave, runner)
	second, _ := bus.Start(KindSave, runner)
	third, _ := bus.Start(KindDownload, runner)
	if first == second || second == third {
		t.Fatalf("ids should be unique: %s %s %s", first, second, third)
	}
	if third != "download-3" {
		t.Fatalf("counter should be shared across kinds, got %s", third)
	}
}

func TestTrackerFollowsLifecycle(t *testing.T) {
	tracker := NewTracker()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	older := Snapshot{ID: "config-1", Kind: KindConfig, Status: StatusRunning, StartedAt: base}
	newer := Snapshot{ID: "analyze-2", Kind: KindAnalyze, Status: StatusRunning, StartedAt: base.Add(time.Second)}

	if tracker.Observe(donePayload{}) {
		t.Fatal("non-job messages should be ignored")
	}
	tracker.Observe(SignalMsg{Snapshot: newer})
	tracker.Observe(SignalMsg{Snapshot: older})

	running := tracker.Running()
	if len(running) != 2 || running[0].ID != "config-1" || running[1].ID != "analyze-2" {
		t.Fatalf("running jobs not ordered by start: %+v", running)
	}
	if _, ok := tracker.Last(); ok {
		t.Fatal("no job has finished yet")
	}

	done := older
	done.Status = StatusSucceeded
	tracker.Observe(ResultMsg{Snapshot: done})
	running = tracker.Running()
	if len(running) != 1 || running[0].ID != "analyze-2" {
		t.Fatalf("finished job still tracked: %+v", running)
	}
	last, ok := tracker.Last()
	if !ok || last.ID != "config-1" || last.Status != StatusSucceeded {
		t.Fatalf("unexpected last job %+v", last)
	}
}
