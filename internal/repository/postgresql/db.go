package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// Drivers accepted by NewDB: "pgx" (jackc/pgx stdlib) or "postgres" (lib/pq).
const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

// NewDB opens and pings a PostgreSQL connection pool.
func NewDB(ctx context.Context, driver, databaseURL string) (*sql.DB, error) {
	if driver == "" {
		driver = DriverPgx
	}
	if driver != DriverPgx && driver != DriverPq {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id              BIGSERIAL PRIMARY KEY,
	filename        TEXT NOT NULL CHECK (filename <> ''),
	result          TEXT NOT NULL CHECK (result <> ''),
	model_used      TEXT NOT NULL CHECK (model_used <> ''),
	prediction_date TEXT NOT NULL,
	confidence      DOUBLE PRECISION,
	notes           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS predictions_result_idx ON predictions (result);
`

// Migrate creates the predictions table when it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
