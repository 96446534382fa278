// Package migrations applies the durable-store schema at process start,
// once, via embedded SQL files.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// Apply runs every pending migration against dsn. Safe to call on every
// process start; a schema already at the latest version is a no-op.
func Apply(dsn string) error {
	source, err := iofs.New(schemaFS, "sql")
	if err != nil {
		return fmt.Errorf("migrations: loading embedded schema: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("migrations: building migrator: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: applying: %w", err)
	}
	return nil
}
