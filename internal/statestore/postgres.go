package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps published fields in a key/value table, one row
// per device field.
type PostgresStore struct {
	db *sql.DB
}

const ensureStateTable = `
CREATE TABLE IF NOT EXISTS ontime_state (
	device_id  TEXT        NOT NULL,
	field      TEXT        NOT NULL,
	value      TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (device_id, field)
)`

// NewPostgresStore opens the database and ensures the state table
// exists. The daemon owns its schema; there is no migration tooling on
// the appliances it runs on.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, ensureStateTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Load returns the stored fields for the device, or (nil, nil) when
// the device has no rows.
func (s *PostgresStore) Load(ctx context.Context, deviceID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT field, value
FROM ontime_state
WHERE device_id = $1`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// Publish upserts every field in one transaction so a concurrent
// reader never sees a half-written snapshot.
func (s *PostgresStore) Publish(ctx context.Context, deviceID string, fields map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO ontime_state (device_id, field, value, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (device_id, field)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for field, value := range fields {
		if _, err := stmt.ExecContext(ctx, deviceID, field, value, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
