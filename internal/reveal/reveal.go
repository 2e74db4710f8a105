// Package reveal paces the presentation of an already-complete list of items so they appear one at
// a time. It only schedules messages; callers decide what a reveal means and must drop messages whose
// Generation no longer matches their own.
package reveal

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Step is one entry of a reveal schedule: item Index (1-based) fires Delay after the schedule starts.
type Step struct {
	Index int
	Delay time.Duration
}

// Msg announces that the item at Index (1-based) is due.
type Msg struct {
	Generation uint64
	Index      int
}

// EpilogueMsg fires once after every item of the generation has been announced.
type EpilogueMsg struct {
	Generation uint64
}

// Plan returns the schedule for count items spaced interval apart, starting immediately.
func Plan(count int, interval time.Duration) []Step {
	if count <= 0 {
		return nil
	}
	if interval < 0 {
		interval = 0
	}
	steps := make([]Step, count)
	for i := range steps {
		steps[i] = Step{Index: i + 1, Delay: time.Duration(i) * interval}
	}
	return steps
}

// Scheduler turns a Plan into tea commands.
type Scheduler struct {
	Interval time.Duration
	Epilogue time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// NewScheduler returns a scheduler driven by the wall clock.
func NewScheduler(interval, epilogue time.Duration) *Scheduler {
	return &Scheduler{Interval: interval, Epilogue: epilogue}
}

// EpilogueDelay is when the epilogue fires relative to the start of a schedule for count items.
func (s *Scheduler) EpilogueDelay(count int) time.Duration {
	if count < 0 {
		count = 0
	}
	return time.Duration(count)*s.Interval + s.Epilogue
}

// Reveal schedules count reveal messages followed by the epilogue, all tagged with generation.
// Delays are measured from this call, and messages are delivered strictly in index order.
func (s *Scheduler) Reveal(generation uint64, count int) tea.Cmd {
	return tea.Sequence(s.Steps(generation, count)...)
}

// Steps returns the individual commands behind Reveal. Each command blocks until its deadline.
func (s *Scheduler) Steps(generation uint64, count int) []tea.Cmd {
	start := s.clock()
	plan := Plan(count, s.Interval)
	cmds := make([]tea.Cmd, 0, len(plan)+1)
	for _, step := range plan {
		cmds = append(cmds, func() tea.Msg {
			s.waitUntil(start.Add(step.Delay))
			return Msg{Generation: generation, Index: step.Index}
		})
	}
	epilogueAt := start.Add(s.EpilogueDelay(count))
	cmds = append(cmds, func() tea.Msg {
		s.waitUntil(epilogueAt)
		return EpilogueMsg{Generation: generation}
	})
	return cmds
}

func (s *Scheduler) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Scheduler) waitUntil(deadline time.Time) {
	remaining := deadline.Sub(s.clock())
	if remaining <= 0 {
		return
	}
	if s.sleep != nil {
		s.sleep(remaining)
		return
	}
	time.Sleep(remaining)
}
