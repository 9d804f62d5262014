// Package sqlite stores the vehicle catalog and the transfer ledger in SQLite
// through the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// SchemaVersion is stored in PRAGMA user_version.
const SchemaVersion = 1

var migrations = map[int]string{
	1: `
	CREATE TABLE IF NOT EXISTS vehicles (
		id           TEXT PRIMARY KEY,
		maker        TEXT NOT NULL,
		model        TEXT NOT NULL,
		year         INTEGER NOT NULL,
		fiscal_power REAL NOT NULL DEFAULT 0,
		fiscal_value REAL NOT NULL DEFAULT 0,
		fuel_type    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vehicles_maker_year ON vehicles(maker, year);

	CREATE TABLE IF NOT EXISTS transfers (
		id           TEXT PRIMARY KEY,
		vehicle_id   TEXT NOT NULL,
		region       TEXT NOT NULL,
		applied_rate TEXT NOT NULL,
		computed_tax TEXT NOT NULL,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transfers_vehicle ON transfers(vehicle_id);
	`,
}

// DB is an open catalog database.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and brings the schema up to date.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for version := current + 1; version <= SchemaVersion; version++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[version]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Version returns the schema version recorded in the database.
func (d *DB) Version(ctx context.Context) (int, error) {
	var v int
	err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// Catalog returns the vehicle catalog backed by this database.
func (d *DB) Catalog() *Catalog {
	return &Catalog{db: d.db}
}

// Ledger returns the transfer ledger backed by this database.
func (d *DB) Ledger() *Ledger {
	return &Ledger{db: d.db}
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
