package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/aula/pkg/tokenstore/migrations"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

// SQLiteBackend keeps the session in a single-table SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn and applies pending migrations.
func OpenSQLite(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One writer at a time keeps ":memory:" databases shared and sidesteps
	// SQLITE_BUSY for a store this small.
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return b, nil
}

// ApplyMigrations applies the embedded schema migrations.
func (b *SQLiteBackend) ApplyMigrations() error {
	driver, err := migratesqlite.WithInstance(b.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return err
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := b.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (b *SQLiteBackend) Put(ctx context.Context, entries map[string][]byte) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		for k, v := range entries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, v,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *SQLiteBackend) Delete(ctx context.Context, keys ...string) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *SQLiteBackend) Close() error { return b.db.Close() }

// withTx runs fn in a transaction, committing only when fn returns nil.
func (b *SQLiteBackend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Safe to call after commit.
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
