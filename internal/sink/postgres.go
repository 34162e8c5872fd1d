package sink

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naka-gawa/github-audience/internal/domain"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS audience_records (
		owner        VARCHAR(100) NOT NULL,
		repo         VARCHAR(100) NOT NULL,
		login        VARCHAR(100) NOT NULL,
		display      VARCHAR(100) NOT NULL,
		forked       BOOLEAN NOT NULL DEFAULT FALSE,
		starred      BOOLEAN NOT NULL DEFAULT FALSE,
		watching     BOOLEAN NOT NULL DEFAULT FALSE,
		email        TEXT NOT NULL DEFAULT '',
		twitter      TEXT NOT NULL DEFAULT '',
		last_run_id  TEXT NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (owner, repo, login)
	)
`

const postgresUpsert = `
	INSERT INTO audience_records (owner, repo, login, display, forked, starred, watching, email, twitter, last_run_id, last_seen_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (owner, repo, login) DO UPDATE SET
		display      = EXCLUDED.display,
		forked       = audience_records.forked OR EXCLUDED.forked,
		starred      = audience_records.starred OR EXCLUDED.starred,
		watching     = EXCLUDED.watching,
		email        = COALESCE(NULLIF(EXCLUDED.email, ''), audience_records.email),
		twitter      = COALESCE(NULLIF(EXCLUDED.twitter, ''), audience_records.twitter),
		last_run_id  = EXCLUDED.last_run_id,
		last_seen_at = EXCLUDED.last_seen_at
`

// PostgresSink keeps one row per account and repository, the way a shared
// spreadsheet would. Rows are updated in place on later runs.
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgresSink connects, verifies the connection and creates the table.
func NewPostgresSink(ctx context.Context, databaseURL string, logger *log.Logger) (*PostgresSink, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.MaxConns = 4
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create audience_records table: %w", err)
	}
	logger.Printf("Report database ready (max conns %d)", config.MaxConns)
	return &PostgresSink{pool: pool, logger: logger}, nil
}

// Publish upserts every record of the report in one transaction.
func (s *PostgresSink) Publish(ctx context.Context, r *domain.Report) (string, error) {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range r.Records {
			batch.Queue(postgresUpsert,
				r.Repo.Owner, r.Repo.Name, domain.LoginKey(rec.Login), rec.Login,
				rec.Forked, rec.Starred, rec.Watching, rec.Email, rec.Twitter,
				r.RunID, r.GeneratedAt,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return "", fmt.Errorf("failed to store report: %w", err)
	}
	s.logger.Printf("Stored %d rows of %s", len(r.Records), r.Repo)
	return fmt.Sprintf("postgres:audience_records(%s)", r.Repo), nil
}

// Health checks the database connection.
func (s *PostgresSink) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.logger.Println("Closing report database pool")
	s.pool.Close()
	return nil
}
