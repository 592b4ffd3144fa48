// Package audit persists a one-row summary per fill request to an embedded
// SQLite database. It is bookkeeping only; the fill pipeline never reads it.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cloneofkoha/form-filler/constants"
	"github.com/cloneofkoha/form-filler/internal/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS fill_jobs (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	format       TEXT NOT NULL,
	fields_total INTEGER NOT NULL,
	direct       INTEGER NOT NULL,
	synthesized  INTEGER NOT NULL,
	left_blank   INTEGER NOT NULL,
	elapsed_ms   INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS fill_jobs_created_at ON fill_jobs (created_at DESC);
`

// createdAtLayout is fixed width with padded nanoseconds and a forced UTC
// zone, so the lexicographic ordering used by Recent is chronological.
// time.RFC3339Nano drops trailing fractional zeros and would not be.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Job is one recorded fill request.
type Job struct {
	ID          string            `json:"id"`
	Filename    string            `json:"filename"`
	Format      constants.Format  `json:"format"`
	FieldsTotal int               `json:"fields_total"`
	Direct      int               `json:"direct"`
	Synthesized int               `json:"synthesized"`
	LeftBlank   int               `json:"left_blank"`
	ElapsedMS   int64             `json:"elapsed_ms"`
	CreatedAt   time.Time         `json:"created_at"`
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the audit database with the usual embedded-SQLite
// pragmas and ensures the schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.WrapError(err, "opening audit db")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, common.WrapError(err, pragma)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "applying audit schema")
	}
	logger.Info("audit.open.ok", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one job row.
func (s *Store) Record(ctx context.Context, job Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fill_jobs
		 (id, filename, format, fields_total, direct, synthesized, left_blank, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Filename, string(job.Format),
		job.FieldsTotal, job.Direct, job.Synthesized, job.LeftBlank,
		job.ElapsedMS, job.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return common.WrapError(err, "recording fill job")
	}
	return nil
}

// Recent returns the latest jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, format, fields_total, direct, synthesized, left_blank, elapsed_ms, created_at
		 FROM fill_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, common.WrapError(err, "listing fill jobs")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn("audit.rows_close_error", "error", cerr)
		}
	}()

	var jobs []Job
	for rows.Next() {
		var j Job
		var format, createdAt string
		if err := rows.Scan(&j.ID, &j.Filename, &format, &j.FieldsTotal, &j.Direct, &j.Synthesized, &j.LeftBlank, &j.ElapsedMS, &createdAt); err != nil {
			return nil, common.WrapError(err, "scanning fill job")
		}
		j.Format = constants.Format(format)
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, common.WrapError(err, fmt.Sprintf("bad created_at %q", createdAt))
		}
		j.CreatedAt = ts
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
