package submissionlog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"contact-intake/pkg/utils"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

const migrationsTable = "schema_migrations"

// Migrate applies the embedded schema for driverName (utils.DriverPgx or
// utils.DriverSQLite). Already-current databases are not an error.
func Migrate(db *sql.DB, driverName string) error {
	if db == nil {
		return errors.New("submissionlog: migrate: nil db")
	}

	var (
		fsPath   string
		dbName   string
		dbDriver migratedb.Driver
		err      error
	)
	switch driverName {
	case utils.DriverPgx:
		fsPath, dbName = "migrations/postgres", "pgx5"
		dbDriver, err = migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: migrationsTable})
	case utils.DriverSQLite:
		fsPath, dbName = "migrations/sqlite", "sqlite"
		dbDriver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: migrationsTable})
	default:
		return fmt.Errorf("submissionlog: migrate: unsupported driver %q", driverName)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: init db driver: %w", fsPath, err)
	}

	sourceDriver, err := iofs.New(migrationsFS, fsPath)
	if err != nil {
		return fmt.Errorf("migrate %s: init source: %w", fsPath, err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbName, dbDriver)
	if err != nil {
		return fmt.Errorf("migrate %s: init migrator: %w", fsPath, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: up: %w", fsPath, err)
	}
	return nil
}
