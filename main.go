package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/orbitdesk/orbitdesk-server/src/database"
	database_migrate "github.com/orbitdesk/orbitdesk-server/src/database/migrate"
	"github.com/orbitdesk/orbitdesk-server/src/server"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// @title						OrbitDesk Billing API
// @version					0.1.0
// @description				Stripe webhook intake, payment checkout and subscription lifecycle for OrbitDesk.
// @contact.name				OrbitDesk Dev Team
// @license.name				MIT
// @license.url				https://opensource.org/licenses/MIT
// @BasePath					/
// @schemes					http https
// @securityDefinitions.apikey	ApiKeyAuth
// @in							header
// @name						Authorization
func main() {
	cfg, err := env.Load()
	if err != nil {
		pterm.DefaultLogger.Fatal(err.Error())
	}

	if len(os.Args) > 1 {
		command := os.Args[1]

		switch command {
		case "migrate:down":
			runMigrationDown(cfg)
			return
		case "migrate:status":
			runMigrationStatus(cfg)
			return
		case "migrate:down-to":
			if len(os.Args) < 3 {
				pterm.DefaultLogger.Error("Usage: ./orbitdesk-server migrate:down-to <version>")
				os.Exit(1)
			}
			runMigrationDownTo(cfg, os.Args[2])
			return
		default:
			pterm.DefaultLogger.Error(fmt.Sprintf("Unknown command: %s", command))
			pterm.DefaultLogger.Info("Available commands: migrate:down, migrate:status, migrate:down-to <version>")
			os.Exit(1)
		}
	}

	if err := server.Run(cfg); err != nil {
		pterm.DefaultLogger.Fatal(fmt.Sprintf("%v", err))
	}
}

func openDB(cfg env.Config) *gorm.DB {
	if cfg.Database.InMemory() {
		pterm.DefaultLogger.Error("DATABASE_URL is required for migration commands")
		os.Exit(1)
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		pterm.DefaultLogger.Error(fmt.Sprintf("Failed to connect to database: %s", err))
		os.Exit(1)
	}
	return db
}

func runMigrationDown(cfg env.Config) {
	pterm.DefaultLogger.Info("Rolling back last migration...")

	if err := database_migrate.Down(openDB(cfg)); err != nil {
		pterm.DefaultLogger.Error(fmt.Sprintf("Failed to roll back migration: %s", err))
		os.Exit(1)
	}

	pterm.DefaultLogger.Info("Migration rolled back successfully")
}

func runMigrationStatus(cfg env.Config) {
	pterm.DefaultLogger.Info("Checking migration status...")

	if err := database_migrate.Status(openDB(cfg)); err != nil {
		pterm.DefaultLogger.Error(fmt.Sprintf("Failed to check migration status: %s", err))
		os.Exit(1)
	}
}

func runMigrationDownTo(cfg env.Config, version string) {
	pterm.DefaultLogger.Info(fmt.Sprintf("Rolling back to migration version %s...", version))

	versionInt, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		pterm.DefaultLogger.Error(fmt.Sprintf("Invalid version format: %s", version))
		os.Exit(1)
	}

	if err := database_migrate.DownTo(openDB(cfg), versionInt); err != nil {
		pterm.DefaultLogger.Error(fmt.Sprintf("Failed to roll back to version %s: %s", version, err))
		os.Exit(1)
	}

	pterm.DefaultLogger.Info(fmt.Sprintf("Successfully rolled back to migration version %s", version))
}
