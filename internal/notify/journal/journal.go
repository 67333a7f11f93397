// Package journal records alerts in PostgreSQL so they survive restarts and
// can be reviewed later.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/vigil/internal/monitor"
	"github.com/MrWong99/vigil/internal/notify"
)

// Schema is the SQL DDL for the alert journal. [Journal.Migrate] applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS vigil_alerts (
    id         BIGSERIAL PRIMARY KEY,
    category   TEXT NOT NULL,
    severity   TEXT NOT NULL,
    message    TEXT NOT NULL,
    hostname   TEXT NOT NULL DEFAULT '',
    fired_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vigil_alerts_fired_at ON vigil_alerts(fired_at DESC);
`

// DB is the database interface used by [Journal]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ notify.Sink = (*Journal)(nil)

// Journal is a [notify.Sink] that inserts every alert into vigil_alerts.
type Journal struct {
	db       DB
	hostname string
	close    func()
}

// Open connects to the database at dsn, applies [Schema] and returns a
// Journal owning the pool.
func Open(ctx context.Context, dsn, hostname string) (*Journal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	j := New(pool, hostname)
	j.close = pool.Close
	if err := j.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

// New creates a Journal over an existing connection or pool. The caller
// applies the schema with [Journal.Migrate].
func New(db DB, hostname string) *Journal {
	return &Journal{db: db, hostname: hostname}
}

// Migrate creates the journal table if it does not exist.
func (j *Journal) Migrate(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

func (j *Journal) Name() string { return "journal" }

// Send inserts a.
func (j *Journal) Send(ctx context.Context, a monitor.Alert) error {
	const query = `
		INSERT INTO vigil_alerts (category, severity, message, hostname, fired_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := j.db.Exec(ctx, query, string(a.Category), a.Severity.String(), a.Message, j.hostname, a.Time); err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit alerts fired at or after since, newest first.
func (j *Journal) Recent(ctx context.Context, since time.Time, limit int) ([]monitor.Alert, error) {
	const query = `
		SELECT category, severity, message, fired_at
		FROM vigil_alerts
		WHERE fired_at >= $1
		ORDER BY fired_at DESC
		LIMIT $2`
	rows, err := j.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []monitor.Alert
	for rows.Next() {
		var (
			a                  monitor.Alert
			category, severity string
		)
		if err := rows.Scan(&category, &severity, &a.Message, &a.Time); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		a.Category = monitor.Category(category)
		a.Severity = parseSeverity(severity)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows: %w", err)
	}
	return out, nil
}

// Close releases the pool opened by [Open]. It is a no-op for journals
// created with [New].
func (j *Journal) Close() {
	if j.close != nil {
		j.close()
	}
}

func parseSeverity(s string) monitor.Severity {
	if s == monitor.SeverityAlert.String() {
		return monitor.SeverityAlert
	}
	return monitor.SeveritySuggestion
}
