package report

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/captionlabs/caption-core/internal/config"
	"github.com/captionlabs/caption-core/internal/usage"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite-backed archive of per-session usage reports.
type Store struct {
	db    *sql.DB
	cfg   config.ReportsConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the report store according to config. Ephemeral mode
// returns a store that accepts writes and keeps nothing.
func Open(ctx context.Context, cfg config.ReportsConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("report store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    target_language TEXT,
    started_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP NOT NULL,
    segments INTEGER NOT NULL,
    transcripts INTEGER NOT NULL,
    translations INTEGER NOT NULL,
    passthroughs INTEGER NOT NULL,
    input_tokens INTEGER NOT NULL,
    output_tokens INTEGER NOT NULL,
    cost REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save upserts the report for a session. Saving the same session twice
// keeps the latest numbers.
func (s *Store) Save(ctx context.Context, r usage.Report) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, target_language, started_at, ended_at,
		     segments, transcripts, translations, passthroughs,
		     input_tokens, output_tokens, cost)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		     target_language=excluded.target_language,
		     ended_at=excluded.ended_at,
		     segments=excluded.segments,
		     transcripts=excluded.transcripts,
		     translations=excluded.translations,
		     passthroughs=excluded.passthroughs,
		     input_tokens=excluded.input_tokens,
		     output_tokens=excluded.output_tokens,
		     cost=excluded.cost`,
		r.SessionID, r.TargetLanguage,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.EndedAt.UTC().Format(time.RFC3339Nano),
		r.Segments, r.Transcripts, r.Translations, r.Passthroughs,
		r.InputTokens, r.OutputTokens, r.Cost)
	return err
}

// ListRecent retrieves up to limit reports ordered newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]usage.Report, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, target_language, started_at, ended_at,
		     segments, transcripts, translations, passthroughs,
		     input_tokens, output_tokens, cost
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []usage.Report
	for rows.Next() {
		var r usage.Report
		var started, ended string
		if err := rows.Scan(&r.SessionID, &r.TargetLanguage, &started, &ended,
			&r.Segments, &r.Transcripts, &r.Translations, &r.Passthroughs,
			&r.InputTokens, &r.OutputTokens, &r.Cost); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
			r.StartedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, ended); err == nil {
			r.EndedAt = ts
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Prune applies configured retention, called on startup.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE started_at < ?`,
			cutoff.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if s.cfg.MaxSessions > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id IN (
			SELECT session_id FROM sessions ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxSessions)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
