package env

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pterm/pterm"
)

// Config is built once at process start and passed to every constructor.
// Nothing in the server re-reads the environment after Load returns.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Billing   BillingConfig
	Sweep     SweepConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Email     EmailConfig
}

// Load reads the optional .env file, then the process environment.
func Load() (Config, error) {
	loadEnv()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Server.log()
	cfg.Database.log()
	cfg.Billing.log()
	cfg.Sweep.log()
	cfg.RateLimit.log()
	cfg.Auth.log()
	cfg.Email.log()

	return cfg, nil
}

func loadEnv() {
	pterm.DefaultLogger.Info(
		"Loading environment variables...",
	)

	err := godotenv.Load(".env")
	if err != nil {
		pterm.DefaultLogger.Warn(
			fmt.Sprintf("Some error occurred loading the environment file at root directory: %s", err),
		)
		pterm.DefaultLogger.Warn(
			"Using environment variables from the system",
		)
	}
}
