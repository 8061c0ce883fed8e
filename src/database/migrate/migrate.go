package database_migrate

import (
	"database/sql"
	"fmt"

	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	_ "github.com/orbitdesk/orbitdesk-server/src/database/migrations"
	"github.com/pressly/goose/v3"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

const (
	gooseTable    = "goose_db_version"
	migrationsDir = "src/database/migrations"
)

// Run applies AutoMigrate for the billing tables and then the goose
// migrations that own the indexes AutoMigrate cannot express.
func Run(db *gorm.DB) error {
	if err := automaticMigrations(db); err != nil {
		return err
	}
	return gooseMigrations(db)
}

// Configures automatic migrations with ORM.
func automaticMigrations(db *gorm.DB) error {
	pterm.DefaultLogger.Info("Adding automatic migrations")
	err := db.AutoMigrate(
		&billing_entity.WebhookEvent{},
		&billing_entity.PaymentRequest{},
		&billing_entity.Subscription{},
		&billing_entity.BillingInfo{},
		&billing_entity.OrgMember{},
		&billing_entity.SubscriptionPlan{},
	)
	if err != nil {
		return fmt.Errorf("unable to add automatic migrations: %w", err)
	}
	pterm.DefaultLogger.Info("Automatic migrations done")
	return nil
}

// Executes goose migrations.
func gooseMigrations(db *gorm.DB) error {
	pterm.DefaultLogger.Info("Executing goose migrations...")
	sqlDB, err := setup(db)
	if err != nil {
		return err
	}

	if err := goose.Up(sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("unable to execute goose migrations: %w", err)
	}

	pterm.DefaultLogger.Info("Goose migrations executed")
	return nil
}

// Down rolls back the last goose migration.
func Down(db *gorm.DB) error {
	sqlDB, err := setup(db)
	if err != nil {
		return err
	}
	return goose.Down(sqlDB, migrationsDir)
}

// DownTo rolls back every goose migration newer than version.
func DownTo(db *gorm.DB, version int64) error {
	sqlDB, err := setup(db)
	if err != nil {
		return err
	}
	return goose.DownTo(sqlDB, migrationsDir, version)
}

func Status(db *gorm.DB) error {
	sqlDB, err := setup(db)
	if err != nil {
		return err
	}
	return goose.Status(sqlDB, migrationsDir)
}

func setup(db *gorm.DB) (*sql.DB, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, err
	}
	goose.SetTableName(gooseTable)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB, nil
}
