package database

import (
	"fmt"

	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/pterm/pterm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres. Driver errors are translated so a unique
// violation surfaces as gorm.ErrDuplicatedKey.
func Open(cfg env.DatabaseConfig) (*gorm.DB, error) {
	pterm.DefaultLogger.Info("Connecting to database...")

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	pterm.DefaultLogger.Info("Database connected")
	return db, nil
}
