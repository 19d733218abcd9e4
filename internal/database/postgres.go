package database

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const applicationName = "ovpnhub"

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.New(postgres.Config{DSN: dsn}), gormConfig())
}

// buildPostgresDSN renders a keyword/value connection string. Sessions are pinned
// to UTC because lease expiry and device connection times are compared across
// replicas. The result is checked with pgconn before it reaches the pool.
func buildPostgresDSN(cfg Config) (string, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		if cfg.User == "" || cfg.Name == "" {
			return "", errors.New("postgres configuration requires user and database name")
		}

		params := map[string]string{
			"host":             valueOr(cfg.Host, "localhost"),
			"port":             strconv.Itoa(portOr(cfg.Port, 5432)),
			"user":             cfg.User,
			"dbname":           cfg.Name,
			"sslmode":          "disable",
			"TimeZone":         "UTC",
			"application_name": applicationName,
		}
		if cfg.Password != "" {
			params["password"] = cfg.Password
		}
		for key, value := range cfg.Options {
			params[key] = value
		}

		keys := make([]string, 0, len(params))
		for key := range params {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, key+"="+quotePostgresValue(params[key]))
		}
		dsn = strings.Join(parts, " ")
	}

	if _, err := pgconn.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("postgres dsn: %w", err)
	}
	return dsn, nil
}

// quotePostgresValue quotes values containing spaces, quotes or backslashes.
func quotePostgresValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}

func valueOr(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

func portOr(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}
