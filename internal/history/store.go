// Package history keeps a local record of generated reports in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/csheth/paperproducer/internal/report"
)

const defaultListLimit = 20

// Run is one completed report generation.
type Run struct {
	ID        int64             `json:"id" yaml:"id"`
	Query     string            `json:"query" yaml:"query"`
	Spec      *report.QuerySpec `json:"query_spec,omitempty" yaml:"query_spec,omitempty"`
	Options   report.Options    `json:"options" yaml:"options"`
	Filename  string            `json:"filename" yaml:"filename"`
	Papers    []report.Paper    `json:"papers" yaml:"papers"`
	Warnings  []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
}

// Store persists runs in a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			query_spec TEXT,
			options TEXT NOT NULL,
			filename TEXT NOT NULL,
			papers TEXT NOT NULL,
			warnings TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores a completed run and returns it with its ID and timestamp filled in.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}
	var specJSON sql.NullString
	if run.Spec != nil {
		data, err := json.Marshal(run.Spec)
		if err != nil {
			return Run{}, fmt.Errorf("encoding query spec: %w", err)
		}
		specJSON = sql.NullString{String: string(data), Valid: true}
	}
	optionsJSON, err := json.Marshal(run.Options)
	if err != nil {
		return Run{}, fmt.Errorf("encoding options: %w", err)
	}
	papers := run.Papers
	if papers == nil {
		papers = []report.Paper{}
	}
	papersJSON, err := json.Marshal(papers)
	if err != nil {
		return Run{}, fmt.Errorf("encoding papers: %w", err)
	}
	warningsJSON, err := json.Marshal(run.Warnings)
	if err != nil {
		return Run{}, fmt.Errorf("encoding warnings: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (query, query_spec, options, filename, papers, warnings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Query, specJSON, string(optionsJSON), run.Filename, string(papersJSON), string(warningsJSON),
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Run{}, fmt.Errorf("reading run id: %w", err)
	}
	run.ID = id
	return run, nil
}

// List returns up to limit runs, newest first. A non-positive limit uses the default.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, query_spec, options, filename, papers, warnings, created_at
		 FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var specJSON, warningsJSON sql.NullString
	var optionsJSON, papersJSON, stamp string
	if err := rows.Scan(&run.ID, &run.Query, &specJSON, &optionsJSON, &run.Filename, &papersJSON, &warningsJSON, &stamp); err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	if specJSON.Valid && specJSON.String != "" {
		var spec report.QuerySpec
		if err := json.Unmarshal([]byte(specJSON.String), &spec); err != nil {
			return Run{}, fmt.Errorf("decoding query spec of run %d: %w", run.ID, err)
		}
		run.Spec = &spec
	}
	if err := json.Unmarshal([]byte(optionsJSON), &run.Options); err != nil {
		return Run{}, fmt.Errorf("decoding options of run %d: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(papersJSON), &run.Papers); err != nil {
		return Run{}, fmt.Errorf("decoding papers of run %d: %w", run.ID, err)
	}
	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &run.Warnings); err != nil {
			return Run{}, fmt.Errorf("decoding warnings of run %d: %w", run.ID, err)
		}
	}
	created, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return Run{}, fmt.Errorf("parsing timestamp of run %d: %w", run.ID, err)
	}
	run.CreatedAt = created
	return run, nil
}

// ExportYAML writes runs to w as a YAML sequence.
func ExportYAML(w io.Writer, runs []Run) error {
	if runs == nil {
		runs = []Run{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}
