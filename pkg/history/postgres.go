package history

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS diagnostic_history (
	id           UUID PRIMARY KEY,
	api_key      TEXT        NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	kind         TEXT        NOT NULL,
	battery_type TEXT        NOT NULL DEFAULT '',
	result       JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS diagnostic_history_key_time
	ON diagnostic_history (api_key, created_at DESC);
`

var _ Store = &Postgres{}

// Postgres stores entries in the diagnostic_history table.
type Postgres struct {
	db        *sql.DB
	retention int
}

// NewPostgres opens dsn, pings it and makes sure the table exists.
func NewPostgres(ctx context.Context, dsn string, retention int) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open postgres")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	p, err := NewPostgresFromDB(ctx, db, retention)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresFromDB wraps an open database and migrates it.
func NewPostgresFromDB(ctx context.Context, db *sql.DB, retention int) (*Postgres, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to connect to postgres")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to create diagnostic_history table")
	}

	return &Postgres{db: db, retention: retention}, nil
}

func (p *Postgres) Append(ctx context.Context, e Entry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO diagnostic_history (id, api_key, created_at, kind, battery_type, result)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.APIKey, e.Timestamp, e.Type, e.Chemistry, []byte(e.Result))
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to insert history entry %s", e.ID)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM diagnostic_history
		WHERE api_key = $1 AND id NOT IN (
			SELECT id FROM diagnostic_history
			WHERE api_key = $1
			ORDER BY created_at DESC
			LIMIT $2
		)
	`, e.APIKey, p.retention)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to prune history")
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrapf(err, "failed to commit history entry %s", e.ID)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, apiKey string, limit int) ([]Entry, error) {
	limit = normalizeLimit(limit)

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, api_key, created_at, kind, battery_type, result
		FROM diagnostic_history
		WHERE api_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, apiKey, limit)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to query history")
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e      Entry
			result []byte
		)
		if err := rows.Scan(&e.ID, &e.APIKey, &e.Timestamp, &e.Type, &e.Chemistry, &result); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to scan history row")
		}
		e.Result = result
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to iterate history rows")
	}
	return out, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
