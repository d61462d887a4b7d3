// Package journal records push, pull, sync and import runs in a local SQLite
// database so that status can report what happened last.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mattsolo1/grove-backlog/pkg/sync"
)

// FileName is the database file inside the data directory.
const FileName = "journal.db"

// Run is one recorded command invocation.
type Run struct {
	ID         string
	Command    string
	Document   string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Failed     int
	Conflicts  int
}

// Entry is the outcome for one item within a run.
type Entry struct {
	RunID    string
	LocalID  string
	Action   string
	Success  bool
	RemoteID int
	Message  string
	Error    string
}

// EntriesFromSync converts orchestrator results.
func EntriesFromSync(results []sync.Result) []Entry {
	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		entries = append(entries, Entry{
			LocalID:  r.LocalID,
			Action:   string(r.Action),
			Success:  r.Success,
			RemoteID: r.RemoteID,
			Message:  r.Message,
			Error:    r.ErrorText(),
		})
	}
	return entries
}

// Journal is the run history store.
type Journal struct {
	db      *sql.DB
	dataDir string
}

// Open opens (creating if needed) the journal in dataDir.
func Open(dataDir string) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, FileName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	j := &Journal{db: db, dataDir: dataDir}
	if err := j.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal: %w", err)
	}
	return j, nil
}

func (j *Journal) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		document TEXT NOT NULL,
		dry_run BOOLEAN NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		conflicts INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS results (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		local_id TEXT NOT NULL,
		action TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		remote_id INTEGER,
		message TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document, started_at);
	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record stores run and its entries in one transaction. Totals are derived
// from entries, and an ID is assigned when run has none.
func (j *Journal) Record(run *Run, entries []Entry) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}
	run.Total, run.Failed, run.Conflicts = len(entries), 0, 0
	for _, e := range entries {
		switch {
		case e.Action == string(sync.ActionConflict):
			run.Conflicts++
		case !e.Success:
			run.Failed++
		}
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT INTO runs (id, command, document, dry_run, started_at, finished_at, total, failed, conflicts)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Command, run.Document, run.DryRun, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Total, run.Failed, run.Conflicts)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO results (run_id, local_id, action, success, remote_id, message, error)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(run.ID, e.LocalID, e.Action, e.Success, e.RemoteID, e.Message, e.Error); err != nil {
			return fmt.Errorf("insert result for %s: %w", e.LocalID, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, command, document, dry_run, started_at, finished_at, total, failed, conflicts`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	r := &Run{}
	err := s.Scan(&r.ID, &r.Command, &r.Document, &r.DryRun, &r.StartedAt, &r.FinishedAt, &r.Total, &r.Failed, &r.Conflicts)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Latest returns the most recent run for document, or nil when there is none.
func (j *Journal) Latest(document string) (*Run, error) {
	row := j.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE document = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, document)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// Runs returns up to limit runs, newest first. A limit of 0 returns all.
func (j *Journal) Runs(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := j.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Results returns the entries of a run in the order they were recorded.
func (j *Journal) Results(runID string) ([]Entry, error) {
	rows, err := j.db.Query(`
	SELECT run_id, local_id, action, success, remote_id, message, error
	FROM results WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var message, errText sql.NullString
		var remoteID sql.NullInt64
		if err := rows.Scan(&e.RunID, &e.LocalID, &e.Action, &e.Success, &remoteID, &message, &errText); err != nil {
			return nil, err
		}
		e.RemoteID = int(remoteID.Int64)
		e.Message = message.String
		e.Error = errText.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
