package logsink

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAppendKeepsOrderAndLevels(t *testing.T) {
	t.Parallel()

	s := New()
	s.Info("starting %d", 1)
	s.Success("done")
	s.Warning("careful")
	s.Error("boom")

	entries := s.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	wantLevels := []Level{LevelInfo, LevelSuccess, LevelWarning, LevelError}
	for i, level := range wantLevels {
		if entries[i].Level != level {
			t.Fatalf("entry %d level = %s, want %s", i, entries[i].Level, level)
		}
	}
	if entries[0].Message != "starting 1" {
		t.Fatalf("message not formatted: %q", entries[0].Message)
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	s.Info("one")
	entries := s.Entries()
	entries[0].Message = "mutated"
	if got := s.Entries()[0].Message; got != "one" {
		t.Fatalf("sink mutated through copy: %q", got)
	}
}

func TestClearDropsEverything(t *testing.T) {
	t.Parallel()

	s := New()
	s.Info("one")
	s.Info("two")
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty sink after clear, got %d", s.Len())
	}
	s.Info("three")
	if got := s.Entries()[0].Message; got != "three" {
		t.Fatalf("unexpected entry after clear: %q", got)
	}
}

func TestTail(t *testing.T) {
	t.Parallel()

	s := New()
	for _, msg := range []string{"a", "b", "c"} {
		s.Info("%s", msg)
	}
	tail := s.Tail(2)
	if len(tail) != 2 || tail[0].Message != "b" || tail[1].Message != "c" {
		t.Fatalf("unexpected tail: %#v", tail)
	}
	if got := s.Tail(10); len(got) != 3 {
		t.Fatalf("oversized tail should return all entries, got %d", len(got))
	}
	if got := s.Tail(0); got != nil {
		t.Fatalf("zero tail should be nil, got %#v", got)
	}
}

func TestMirrorWritesPlainLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := New()
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	s.Mirror(&buf)
	s.Warning("rate limited")

	line := buf.String()
	if !strings.HasPrefix(line, "2026-01-02T03:04:05Z WARNING") {
		t.Fatalf("unexpected mirror line: %q", line)
	}
	if !strings.HasSuffix(line, "rate limited\n") {
		t.Fatalf("mirror line missing message: %q", line)
	}
}

type failingWriter struct {
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("no space left on device")
}

func TestMirrorStopsAfterFailedWrite(t *testing.T) {
	t.Parallel()

	w := &failingWriter{}
	s := New()
	s.Mirror(w)
	s.Info("first")
	s.Info("second")

	if w.writes != 1 {
		t.Fatalf("mirror should stop after the first failure, got %d writes", w.writes)
	}
	if err := s.MirrorErr(); err == nil || !strings.Contains(err.Error(), "no space left") {
		t.Fatalf("unexpected mirror error: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("in-memory log must keep every entry, got %d", s.Len())
	}

	var buf bytes.Buffer
	s.Mirror(&buf)
	if s.MirrorErr() != nil {
		t.Fatal("a new mirror should clear the previous error")
	}
	s.Info("third")
	if !strings.Contains(buf.String(), "third") {
		t.Fatalf("replacement mirror not written: %q", buf.String())
	}
}
