// Package artifact saves generated reports to disk and inspects the saved PDFs.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const partialSuffix = ".part"

// Source streams a named report artifact.
type Source interface {
	Download(ctx context.Context, filename string, w io.Writer) (int64, error)
}

// Saved describes a report written to disk.
type Saved struct {
	Path string
	Size int64
}

// Store writes downloaded reports into a directory.
type Store struct {
	dir    string
	source Source
}

func NewStore(dir string, source Source) *Store {
	return &Store{dir: dir, source: source}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save downloads filename into the store directory. Data lands in a .part file that is renamed into
// place only once the download completes, so a failed download never leaves a truncated report.
func (s *Store) Save(ctx context.Context, filename string) (Saved, error) {
	name, err := sanitizeName(filename)
	if err != nil {
		return Saved{}, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Saved{}, fmt.Errorf("creating download directory: %w", err)
	}
	finalPath := filepath.Join(s.dir, name)
	partialPath := finalPath + partialSuffix

	file, err := os.OpenFile(partialPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Saved{}, err
	}
	size, err := s.source.Download(ctx, name, file)
	if err != nil {
		file.Close()
		os.Remove(partialPath)
		return Saved{}, err
	}
	if err := file.Close(); err != nil {
		os.Remove(partialPath)
		return Saved{}, err
	}
	if err := os.Rename(partialPath, finalPath); err != nil {
		os.Remove(partialPath)
		return Saved{}, err
	}
	return Saved{Path: finalPath, Size: size}, nil
}

func sanitizeName(filename string) (string, error) {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	switch name {
	case "", ".", "..", "/":
		return "", errors.New("artifact filename is empty")
	}
	return name, nil
}
