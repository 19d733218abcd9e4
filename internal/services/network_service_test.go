package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/ovpnhub/internal/database/testutil"
	"github.com/charlesng35/ovpnhub/pkg/cidr"
)

func TestNetworkService_RegisterDerivesAddressAndMask(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNetworkService(db)
	require.NoError(t, err)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "alice")
	network, err := svc.Register(ctx, RegisterNetworkInput{UserID: alice.ID, CIDR: " 192.168.1.0/24 ", Description: "Home"})
	require.NoError(t, err)
	require.Equal(t, "192.168.1.0/24", network.CIDR)
	require.Equal(t, "192.168.1.0", network.NetworkAddress)
	require.Equal(t, "255.255.255.0", network.SubnetMask)
	require.True(t, network.Enabled)

	_, err = svc.Register(ctx, RegisterNetworkInput{UserID: alice.ID, CIDR: "192.168.1.9/24"})
	require.ErrorIs(t, err, ErrNetworkExists)
}

func TestNetworkService_RegisterRejectsInvalidInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNetworkService(db)
	require.NoError(t, err)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "alice")

	_, err = svc.Register(ctx, RegisterNetworkInput{UserID: alice.ID, CIDR: "10.0.0.0/33"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "cidr", validationErr.Field)
	require.ErrorIs(t, err, cidr.ErrInvalid)

	_, err = svc.Register(ctx, RegisterNetworkInput{UserID: 999, CIDR: "10.0.0.0/8"})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestNetworkService_ListEnabledFollowsToggle(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNetworkService(db)
	require.NoError(t, err)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "alice")
	disabled := false
	home, err := svc.Register(ctx, RegisterNetworkInput{UserID: alice.ID, CIDR: "192.168.1.0/24"})
	require.NoError(t, err)
	lab, err := svc.Register(ctx, RegisterNetworkInput{UserID: alice.ID, CIDR: "10.10.0.0/16", Enabled: &disabled})
	require.NoError(t, err)
	require.False(t, lab.Enabled)

	enabled, err := svc.ListEnabled(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	require.Equal(t, home.ID, enabled[0].ID)

	_, err = svc.SetEnabled(ctx, lab.ID, true)
	require.NoError(t, err)
	_, err = svc.SetEnabled(ctx, home.ID, false)
	require.NoError(t, err)

	enabled, err = svc.ListEnabled(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	require.Equal(t, lab.ID, enabled[0].ID)

	all, err := svc.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, home.ID, all[0].ID)
}

func TestNetworkService_UpdateRecomputesDerivedFields(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNetworkService(db)
	require.NoError(t, err)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "alice")
	network, err := svc.Register(ctx, RegisterNetworkInput{UserID: alice.ID, CIDR: "192.168.1.0/24"})
	require.NoError(t, err)

	next := "172.16.5.0/20"
	description := "Office"
	updated, err := svc.Update(ctx, network.ID, UpdateNetworkInput{CIDR: &next, Description: &description})
	require.NoError(t, err)
	require.Equal(t, "172.16.0.0/20", updated.CIDR)
	require.Equal(t, "172.16.0.0", updated.NetworkAddress)
	require.Equal(t, "255.255.240.0", updated.SubnetMask)
	require.Equal(t, "Office", updated.Description)

	stored, err := svc.Get(ctx, network.ID)
	require.NoError(t, err)
	require.Equal(t, "255.255.240.0", stored.SubnetMask)

	require.NoError(t, svc.Delete(ctx, network.ID))
	require.ErrorIs(t, svc.Delete(ctx, network.ID), ErrNetworkNotFound)
	_, err = svc.Get(ctx, network.ID)
	require.ErrorIs(t, err, ErrNetworkNotFound)
}
