package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/naka-gawa/github-audience/internal/domain"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS audience_records (
		owner        TEXT NOT NULL,
		repo         TEXT NOT NULL,
		login        TEXT NOT NULL,
		display      TEXT NOT NULL,
		forked       INTEGER NOT NULL DEFAULT 0,
		starred      INTEGER NOT NULL DEFAULT 0,
		watching     INTEGER NOT NULL DEFAULT 0,
		email        TEXT NOT NULL DEFAULT '',
		twitter      TEXT NOT NULL DEFAULT '',
		last_run_id  TEXT NOT NULL,
		last_seen_at TEXT NOT NULL,
		PRIMARY KEY (owner, repo, login)
	)
`

const sqliteUpsert = `
	INSERT INTO audience_records (owner, repo, login, display, forked, starred, watching, email, twitter, last_run_id, last_seen_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (owner, repo, login) DO UPDATE SET
		display      = excluded.display,
		forked       = audience_records.forked OR excluded.forked,
		starred      = audience_records.starred OR excluded.starred,
		watching     = excluded.watching,
		email        = COALESCE(NULLIF(excluded.email, ''), audience_records.email),
		twitter      = COALESCE(NULLIF(excluded.twitter, ''), audience_records.twitter),
		last_run_id  = excluded.last_run_id,
		last_seen_at = excluded.last_seen_at
`

// SQLiteSink is the single-file counterpart of PostgresSink.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Publish(ctx context.Context, r *domain.Report) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return "", fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	seenAt := r.GeneratedAt.UTC().Format(time.RFC3339)
	for _, rec := range r.Records {
		_, err := stmt.ExecContext(ctx,
			r.Repo.Owner, r.Repo.Name, domain.LoginKey(rec.Login), rec.Login,
			rec.Forked, rec.Starred, rec.Watching, rec.Email, rec.Twitter,
			r.RunID, seenAt,
		)
		if err != nil {
			return "", fmt.Errorf("storing %s: %w", rec.Login, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing report: %w", err)
	}
	return fmt.Sprintf("sqlite:audience_records(%s)", r.Repo), nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
