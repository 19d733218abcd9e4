package models_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/ovpnhub/internal/database/testutil"
	"github.com/charlesng35/ovpnhub/internal/models"
	"github.com/charlesng35/ovpnhub/pkg/cidr"
)

func TestParsePriority(t *testing.T) {
	p, ok := models.ParsePriority(" HIGH ")
	require.True(t, ok)
	require.Equal(t, models.PriorityHigh, p)
	require.Greater(t, models.PriorityHigh.Rank(), models.PriorityMedium.Rank())
	require.Greater(t, models.PriorityMedium.Rank(), models.PriorityLow.Rank())

	_, ok = models.ParsePriority("urgent")
	require.False(t, ok)
}

func TestParseDeviceType(t *testing.T) {
	dt, ok := models.ParseDeviceType("")
	require.True(t, ok)
	require.Equal(t, models.DeviceTypeDesktop, dt)

	dt, ok = models.ParseDeviceType("Tablet")
	require.True(t, ok)
	require.Equal(t, models.DeviceTypeTablet, dt)

	_, ok = models.ParseDeviceType("router")
	require.False(t, ok)
}

func TestLanNetworkDerivesFieldsOnSave(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := testutil.MustCreateUser(t, db, "carol")

	network := models.LanNetwork{UserID: user.ID, CIDR: "192.168.1.7/24", NetworkAddress: "1.2.3.4", SubnetMask: "bogus", Enabled: true}
	require.NoError(t, db.Create(&network).Error)
	require.Equal(t, "192.168.1.0/24", network.CIDR)
	require.Equal(t, "192.168.1.0", network.NetworkAddress)
	require.Equal(t, "255.255.255.0", network.SubnetMask)

	network.CIDR = "10.20.0.0/16"
	require.NoError(t, db.Save(&network).Error)

	var stored models.LanNetwork
	require.NoError(t, db.First(&stored, network.ID).Error)
	require.Equal(t, "10.20.0.0", stored.NetworkAddress)
	require.Equal(t, "255.255.0.0", stored.SubnetMask)
}

func TestLanNetworkRejectsInvalidCIDR(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := testutil.MustCreateUser(t, db, "dave")

	err := db.Create(&models.LanNetwork{UserID: user.ID, CIDR: "300.1.1.0/24"}).Error
	require.ErrorIs(t, err, cidr.ErrInvalid)
}
