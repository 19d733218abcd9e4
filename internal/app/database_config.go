package app

import (
	"strings"

	"github.com/charlesng35/ovpnhub/internal/database"
)

// DatabaseOpenConfig converts the database section into connection options.
func (c DatabaseConfig) DatabaseOpenConfig() database.Config {
	cfg := database.Config{
		Driver:       strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:         c.Path,
		DSN:          c.DSN,
		MaxOpenConns: c.MaxOpenConns,
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	}
	if host.Enabled || host.Host != "" {
		cfg.Host = host.Host
		cfg.Port = host.Port
		cfg.Name = host.Database
		cfg.User = host.Username
		cfg.Password = host.Password
	}
	return cfg
}
