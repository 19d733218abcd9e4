package database_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/ovpnhub/internal/database"
	"github.com/charlesng35/ovpnhub/internal/database/testutil"
	"github.com/charlesng35/ovpnhub/internal/models"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(database.Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestMigrateCreatesSchema(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	require.NoError(t, database.Migrate(db))

	for _, model := range []any{
		&models.User{},
		&models.Device{},
		&models.QoSPolicy{},
		&models.UserPolicyAssignment{},
		&models.DevicePolicyAssignment{},
		&models.LanNetwork{},
		&models.Lease{},
	} {
		require.True(t, db.Migrator().HasTable(model))
	}
	require.True(t, db.Migrator().HasIndex(&models.Device{}, "idx_devices_owner_identifier"))
	require.True(t, db.Migrator().HasIndex(&models.LanNetwork{}, "idx_lan_networks_owner_cidr"))
}

func TestMigrateRejectsNilHandle(t *testing.T) {
	require.Error(t, database.Migrate(nil))
}

func TestDeviceIdentifierUniquePerOwnerOnly(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	alice := testutil.MustCreateUser(t, db, "alice")
	bob := testutil.MustCreateUser(t, db, "bob")

	require.NoError(t, db.Create(&models.Device{UserID: alice.ID, Identifier: "10.8.0.5", Name: "10.8.0.5"}).Error)
	require.NoError(t, db.Create(&models.Device{UserID: bob.ID, Identifier: "10.8.0.5", Name: "10.8.0.5"}).Error)

	err := db.Create(&models.Device{UserID: alice.ID, Identifier: "10.8.0.5", Name: "dup"}).Error
	require.Error(t, err)
}
