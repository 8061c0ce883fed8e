package env

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

type ServerConfig struct {
	Port         string   `envconfig:"SERVER_PORT" default:"8080"`
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
}

type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL"`
}

// InMemory reports whether the server should run without Postgres.
func (d DatabaseConfig) InMemory() bool {
	return d.URL == ""
}

func (s ServerConfig) log() {
	pterm.DefaultLogger.Info(fmt.Sprintf("Server port: %s", s.Port))
	pterm.DefaultLogger.Info("CORS allowed origins: " + strings.Join(s.AllowOrigins, ", "))
}

func (d DatabaseConfig) log() {
	if d.InMemory() {
		pterm.DefaultLogger.Warn("DATABASE_URL not set, billing state will be kept in memory only")
		return
	}
	pterm.DefaultLogger.Info("Database connection configured")
}
