// Package runlog keeps a SQLite ledger of training runs: one row per run
// with its labels, hyperparameters, outcome and artifact paths.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS runs(
	id             TEXT PRIMARY KEY,
	label          TEXT NOT NULL,
	started_at     INTEGER NOT NULL,
	finished_at    INTEGER,
	status         TEXT NOT NULL,
	num_batches    INTEGER NOT NULL,
	steps          INTEGER NOT NULL DEFAULT 0,
	final_loss     REAL,
	plot_path      TEXT,
	history_path   TEXT,
	model_path     TEXT,
	config_yaml    TEXT,
	error          TEXT
)`

// Run statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// ErrNotFound is returned when a run id is not in the ledger.
var ErrNotFound = errors.New("run not found")

// Run is one ledger row.
type Run struct {
	ID          uuid.UUID
	Label       string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	Status      string
	NumBatches  int
	Steps       int
	FinalLoss   float64 // NaN when no validation was recorded
	PlotPath    string
	HistoryPath string
	ModelPath   string
	ConfigYAML  string
	Error       string
}

// Ledger is an open run ledger.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path. ":memory:" gives a private
// in-memory ledger.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Start records a new running run and returns its id.
func (l *Ledger) Start(ctx context.Context, label string, numBatches int, configYAML string, started time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs(id, label, started_at, status, num_batches, config_yaml) VALUES(?,?,?,?,?,?)`,
		id.String(), label, started.UnixNano(), StatusRunning, numBatches, configYAML)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// Outcome is the result of a run.
type Outcome struct {
	Steps       int
	FinalLoss   float64
	PlotPath    string
	HistoryPath string
	ModelPath   string
	Err         error
}

// Finish marks a run finished, or failed when out.Err is set.
func (l *Ledger) Finish(ctx context.Context, id uuid.UUID, out Outcome, finished time.Time) error {
	status, msg := StatusFinished, sql.NullString{}
	if out.Err != nil {
		status = StatusFailed
		msg = sql.NullString{String: out.Err.Error(), Valid: true}
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at=?, status=?, steps=?, final_loss=?, plot_path=?, history_path=?, model_path=?, error=? WHERE id=?`,
		finished.UnixNano(), status, out.Steps, nullFloat(out.FinalLoss),
		nullString(out.PlotPath), nullString(out.HistoryPath), nullString(out.ModelPath), msg, id.String())
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns one run.
func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	row := l.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id.String())
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Recent returns up to limit runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

const selectRuns = `SELECT id, label, started_at, finished_at, status, num_batches, steps,
	final_loss, plot_path, history_path, model_path, config_yaml, error FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                                 Run
		id                                string
		started                           int64
		finished                          sql.NullInt64
		loss                              sql.NullFloat64
		plot, history, model, cfg, errMsg sql.NullString
	)
	if err := s.Scan(&id, &r.Label, &started, &finished, &r.Status, &r.NumBatches, &r.Steps,
		&loss, &plot, &history, &model, &cfg, &errMsg); err != nil {
		return Run{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return Run{}, fmt.Errorf("corrupt run id %q: %w", id, err)
	}
	r.ID = parsed
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64)
	}
	r.FinalLoss = nanIfNull(loss)
	r.PlotPath = plot.String
	r.HistoryPath = history.String
	r.ModelPath = model.String
	r.ConfigYAML = cfg.String
	r.Error = errMsg.String
	return r, nil
}
