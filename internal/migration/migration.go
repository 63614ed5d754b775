package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
	garagedomain "github.com/smallbiznis/garageflow/internal/garage/domain"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/garageflow/internal/invoice/domain"
	jobsheetdomain "github.com/smallbiznis/garageflow/internal/jobsheet/domain"
	vhcdomain "github.com/smallbiznis/garageflow/internal/vhc/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every persisted model, in dependency order.
func Models() []any {
	return []any{
		&garagedomain.Garage{},
		&bookingdomain.Booking{},
		&bookingdomain.BookingService{},
		&jobsheetdomain.JobSheet{},
		&jobsheetdomain.DiagnosedService{},
		&jobsheetdomain.TimeLog{},
		&jobsheetdomain.ChecklistItem{},
		&inventorydomain.Item{},
		&inventorydomain.Movement{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&vhcdomain.Response{},
		&auditdomain.AuditLog{},
	}
}

// Migrate brings the schema up to date. Postgres uses the versioned SQL
// migrations; the development dialects fall back to AutoMigrate.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
