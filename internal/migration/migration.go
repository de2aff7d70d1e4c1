package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accesslogdomain "github.com/smallbiznis/billingportal/internal/accesslog/domain"
	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	profiledomain "github.com/smallbiznis/billingportal/internal/profile/domain"
	"gorm.io/gorm"
)

const (
	migrationsDir   = "migrations"
	migrationsTable = "portal_schema_migrations"
)

var ErrNoDatabase = errors.New("migration_database_required")

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres schema. A schema that is
// already current is not an error.
func RunMigrations(db *sql.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	// m.Close is skipped on purpose: it would close the pool gorm still uses.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}
	source, err := iofs.New(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrator: %w", err)
	}
	return m, nil
}

// Models are the tables the portal owns, parents first.
func Models() []any {
	return []any{
		&authdomain.User{},
		&authdomain.Session{},
		&profiledomain.Profile{},
		&accesslogdomain.DocumentAccessLog{},
	}
}

// AutoMigrate builds the schema from the gorm models. It serves sqlite and
// mysql, which have no SQL migrations.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
