// Package jobs runs blocking work as bubbletea commands and reports each job's lifecycle as messages.
package jobs

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type Kind string

type Status string

const (
	KindAnalyze  Kind = "analyze"
	KindGenerate Kind = "generate"
	KindConfig   Kind = "config"
	KindModels   Kind = "models"
	KindSave     Kind = "save"
	KindDownload Kind = "download"
	KindHistory  Kind = "history"
)

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Snapshot struct {
	ID          string
	Kind        Kind
	Status      Status
	StartedAt   time.Time
	CompletedAt time.Time
	Err         string
	Duration    time.Duration
}

// SignalMsg is delivered when a job starts.
type SignalMsg struct {
	Snapshot Snapshot
}

// ResultMsg carries a finished job's snapshot and the payload its runner produced.
type ResultMsg struct {
	Snapshot Snapshot
	Payload  tea.Msg
}

type Runner func(context.Context) (tea.Msg, error)

type Bus struct {
	counter int64
	now     func() time.Time
}

func NewBus() *Bus {
	return &Bus{now: time.Now}
}

func (b *Bus) nextID(kind Kind) string {
	idx := atomic.AddInt64(&b.counter, 1)
	return fmt.Sprintf("%s-%d", kind, idx)
}

func (b *Bus) clock() time.Time {
	if b.now == nil {
		return time.Now()
	}
	return b.now()
}

// Start returns the job's ID and a command that emits a SignalMsg, runs the job, then emits its
// ResultMsg. Callers keep the ID to recognise their own result.
func (b *Bus) Start(kind Kind, runner Runner) (string, tea.Cmd) {
	id := b.nextID(kind)
	started := b.clock()
	startSnapshot := Snapshot{ID: id, Kind: kind, Status: StatusRunning, StartedAt: started}
	startCmd := func() tea.Msg {
		return SignalMsg{Snapshot: startSnapshot}
	}

	runCmd := func() tea.Msg {
		ctx := context.Background()
		payload, err := runner(ctx)
		snapshot := Snapshot{
			ID:          id,
			Kind:        kind,
			StartedAt:   started,
			CompletedAt: b.clock(),
		}
		if err != nil {
			snapshot.Status = StatusFailed
			snapshot.Err = err.Error()
		} else {
			snapshot.Status = StatusSucceeded
		}
		snapshot.Duration = snapshot.CompletedAt.Sub(started)
		log.Printf("[jobs] %s %s (duration=%s, err=%v)", kind, snapshot.Status, snapshot.Duration, err)
		return ResultMsg{Snapshot: snapshot, Payload: payload}
	}

	return id, tea.Sequence(startCmd, runCmd)
}

// Tracker follows job messages and remembers which jobs are still running.
type Tracker struct {
	running map[string]Snapshot
	last    Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{running: map[string]Snapshot{}}
}

// Observe records msg if it is a job message and reports whether it was one.
func (t *Tracker) Observe(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case SignalMsg:
		t.running[msg.Snapshot.ID] = msg.Snapshot
		return true
	case ResultMsg:
		delete(t.running, msg.Snapshot.ID)
		t.last = msg.Snapshot
		return true
	}
	return false
}

// Running lists in-flight jobs, oldest first.
func (t *Tracker) Running() []Snapshot {
	out := make([]Snapshot, 0, len(t.running))
	for _, snap := range t.running {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Last returns the most recently finished job.
func (t *Tracker) Last() (Snapshot, bool) {
	return t.last, t.last.ID != ""
}
