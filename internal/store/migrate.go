package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/simonvc/rentledger/internal/ledger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrate applies all up migrations to the writer connection and seeds the
// predefined chart of accounts.
func (s *Store) migrate(ctx context.Context) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	// The database driver's Close would close the shared writer pool, so
	// only the source is closed here.
	defer src.Close()

	driver, err := sqlite.WithInstance(s.writer, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	return seedAccounts(ctx, s.writer)
}

func seedAccounts(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range ledger.PredefinedAccounts {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO accounts (code, name, type, is_active, is_system) VALUES (?, ?, ?, 1, 1)`,
			a.Code, a.Name, string(a.Type),
		)
		if err != nil {
			return fmt.Errorf("seed account %s: %w", a.Code, err)
		}
	}
	return tx.Commit()
}
