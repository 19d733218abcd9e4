package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/ovpnhub/internal/database"
	"github.com/charlesng35/ovpnhub/internal/models"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	autoMigrate  bool
	maxOpenConns int
}

// WithAutoMigrate enables automatic schema migration after opening the test database.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
	}
}

// WithMaxOpenConns caps the pool size; concurrency tests use it to keep SQLite's
// shared cache from reporting table locks.
func WithMaxOpenConns(n int) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.maxOpenConns = n
	}
}

// MustOpenTestDB opens an isolated in-memory SQLite database for tests, applying
// optional migrations. The connection is closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.Open(database.Config{
		Driver:       "sqlite",
		DSN:          dsn,
		MaxOpenConns: cfg.maxOpenConns,
	})
	require.NoError(t, err)

	if cfg.autoMigrate {
		require.NoError(t, database.AutoMigrate(db))
	}

	t.Cleanup(func() {
		_ = database.Close(db)
	})

	return db
}

// MustCreateUser inserts an active user with a derived email address.
func MustCreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:    username,
		Email:       username + "@example.com",
		DisplayName: username,
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
