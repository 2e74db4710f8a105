// Package logsink holds the append-only progress log narrated to the user during a workflow run.
package logsink

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Entry is a single timestamped line of the progress log.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
}

// Sink is an append-only sequence of entries. Entries are never reordered or removed; the only
// destructive operation is Clear, which drops everything at once.
type Sink struct {
	entries   []Entry
	mirror    io.Writer
	mirrorErr error
	now       func() time.Time
}

// New returns an empty sink.
func New() *Sink {
	return &Sink{now: time.Now}
}

// Mirror copies every appended entry to w as a plain text line. Passing nil disables mirroring.
// The first failed write disables the mirror and is kept for MirrorErr.
func (s *Sink) Mirror(w io.Writer) {
	s.mirror = w
	s.mirrorErr = nil
}

// MirrorErr returns the write error that disabled the mirror, if any.
func (s *Sink) MirrorErr() error {
	return s.mirrorErr
}

// Append records message at the given level and returns the stored entry.
func (s *Sink) Append(level Level, message string) Entry {
	entry := Entry{
		Time:    s.now(),
		Level:   level,
		Message: strings.TrimSpace(message),
	}
	s.entries = append(s.entries, entry)
	if s.mirror != nil {
		if _, err := fmt.Fprintf(s.mirror, "%s %-7s %s\n", entry.Time.UTC().Format(time.RFC3339), strings.ToUpper(string(level)), entry.Message); err != nil {
			s.mirrorErr = err
			s.mirror = nil
		}
	}
	return entry
}

func (s *Sink) Info(format string, args ...any) Entry {
	return s.Append(LevelInfo, fmt.Sprintf(format, args...))
}

func (s *Sink) Success(format string, args ...any) Entry {
	return s.Append(LevelSuccess, fmt.Sprintf(format, args...))
}

func (s *Sink) Warning(format string, args ...any) Entry {
	return s.Append(LevelWarning, fmt.Sprintf(format, args...))
}

func (s *Sink) Error(format string, args ...any) Entry {
	return s.Append(LevelError, fmt.Sprintf(format, args...))
}

// Clear drops all entries.
func (s *Sink) Clear() {
	s.entries = nil
}

// Entries returns a copy of the log in append order.
func (s *Sink) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Len reports how many entries are stored.
func (s *Sink) Len() int {
	return len(s.entries)
}

// Tail returns up to n of the most recent entries.
func (s *Sink) Tail(n int) []Entry {
	if n <= 0 {
		return nil
	}
	if n >= len(s.entries) {
		return s.Entries()
	}
	return append([]Entry(nil), s.entries[len(s.entries)-n:]...)
}
