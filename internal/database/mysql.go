package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), gormConfig())
}

// buildMySQLDSN assembles a go-sql-driver DSN. parseTime and a UTC location are
// enforced so lease expiry rows scan back as the instants that were written.
// Extra options pass through the driver's own parser.
func buildMySQLDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		parsed, err := mysqldriver.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("mysql dsn: %w", err)
		}
		if !parsed.ParseTime {
			return "", errors.New("mysql dsn must set parseTime=true")
		}
		return dsn, nil
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	base := mysqldriver.NewConfig()
	base.User = cfg.User
	base.Passwd = cfg.Password
	base.Net = "tcp"
	base.Addr = net.JoinHostPort(valueOr(cfg.Host, "127.0.0.1"), strconv.Itoa(portOr(cfg.Port, 3306)))
	base.DBName = cfg.Name
	base.Params = map[string]string{"charset": "utf8mb4"}

	dsn := base.FormatDSN()
	if len(cfg.Options) > 0 {
		extra := url.Values{}
		for key, value := range cfg.Options {
			extra.Set(key, value)
		}
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + extra.Encode()
	}

	parsed, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	parsed.ParseTime = true
	parsed.Loc = time.UTC
	return parsed.FormatDSN(), nil
}
