package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/ovpnhub/internal/database/testutil"
	"github.com/charlesng35/ovpnhub/internal/models"
)

func TestDeviceService_RecordSightingCreatesThenUpdates(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDeviceService(db)
	require.NoError(t, err)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "alice")
	seen := time.Date(2024, 3, 1, 9, 30, 15, 500, time.FixedZone("CET", 3600))

	device, outcome, err := svc.RecordSighting(ctx, alice.ID, "10.8.0.5", "10.8.0.5", seen)
	require.NoError(t, err)
	require.Equal(t, SightingCreated, outcome)
	require.True(t, device.Active)
	require.Equal(t, "10.8.0.5", *device.LastIP)
	require.Equal(t, models.DeviceTypeDesktop, device.DeviceType)

	_, outcome, err = svc.RecordSighting(ctx, alice.ID, "10.8.0.5", "10.8.0.5", seen)
	require.NoError(t, err)
	require.Equal(t, SightingUnchanged, outcome)

	later := seen.Add(time.Hour)
	device, outcome, err = svc.RecordSighting(ctx, alice.ID, "10.8.0.5", "10.8.0.5", later)
	require.NoError(t, err)
	require.Equal(t, SightingUpdated, outcome)
	require.True(t, device.LastConnectedAt.Equal(later.Truncate(time.Second)))

	var count int64
	require.NoError(t, db.Model(&models.Device{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestDeviceService_IdentifierIsScopedToOwner(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDeviceService(db)
	require.NoError(t, err)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "alice")
	bob := testutil.MustCreateUser(t, db, "bob")
	now := time.Now()

	first, _, err := svc.RecordSighting(ctx, alice.ID, "10.8.0.9", "10.8.0.9", now)
	require.NoError(t, err)
	second, outcome, err := svc.RecordSighting(ctx, bob.ID, "10.8.0.9", "10.8.0.9", now)
	require.NoError(t, err)
	require.Equal(t, SightingCreated, outcome)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, bob.ID, second.UserID)
}

func TestDeviceService_CreateOrAdoptConvertsConflictIntoUpdate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDeviceService(db)
	require.NoError(t, err)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "alice")
	winner := &models.Device{UserID: alice.ID, Identifier: "token-1", Name: "Winner", DeviceType: models.DeviceTypeMobile}
	require.NoError(t, db.Create(winner).Error)

	seen := time.Now().UTC().Truncate(time.Second)
	device, outcome, err := svc.createOrAdopt(ctx, alice.ID, "token-1", "10.8.0.7", seen)
	require.NoError(t, err)
	require.Equal(t, SightingUpdated, outcome)
	require.Equal(t, winner.ID, device.ID)

	stored, err := svc.Get(ctx, winner.ID)
	require.NoError(t, err)
	require.True(t, stored.Active)
	require.Equal(t, "10.8.0.7", *stored.LastIP)
	require.Equal(t, "Winner", stored.Name)
}

func TestDeviceService_ConcurrentSightingsYieldOneRow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate(), testutil.WithMaxOpenConns(1))
	svc, err := NewDeviceService(db)
	require.NoError(t, err)

	alice := testutil.MustCreateUser(t, db, "alice")
	seen := time.Now()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.RecordSighting(context.Background(), alice.ID, "10.8.0.5", "10.8.0.5", seen)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.Device{}).Where("user_id = ?", alice.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestDeviceService_MarkInactiveKeepsLastSeenFields(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDeviceService(db)
	require.NoError(t, err)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "alice")
	seen := time.Now()
	device, _, err := svc.RecordSighting(ctx, alice.ID, "10.8.0.5", "10.8.0.5", seen)
	require.NoError(t, err)

	stale := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, db.Model(&models.Device{}).Where("id = ?", device.ID).UpdateColumn("updated_at", stale).Error)

	changed, err := svc.MarkInactive(ctx, []uint{device.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, changed)

	changed, err = svc.MarkInactive(ctx, []uint{device.ID})
	require.NoError(t, err)
	require.Zero(t, changed)

	stored, err := svc.Get(ctx, device.ID)
	require.NoError(t, err)
	require.False(t, stored.Active)
	require.Equal(t, "10.8.0.5", *stored.LastIP)
	require.True(t, stored.LastConnectedAt.Equal(seen.UTC().Truncate(time.Second)))
	require.True(t, stored.UpdatedAt.After(stale.Add(time.Hour)), "updated_at must move on deactivation")

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestDeviceService_PrimaryDevicePrefersActiveThenRecent(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDeviceService(db)
	require.NoError(t, err)
	ctx := context.Background()

	bob := testutil.MustCreateUser(t, db, "bob")
	_, err = svc.PrimaryDevice(ctx, bob.ID)
	require.ErrorIs(t, err, ErrDeviceNotFound)

	base := time.Now().Add(-time.Hour)
	old, _, err := svc.RecordSighting(ctx, bob.ID, "laptop", "10.8.0.2", base)
	require.NoError(t, err)
	recent, _, err := svc.RecordSighting(ctx, bob.ID, "phone", "10.8.0.3", base.Add(30*time.Minute))
	require.NoError(t, err)

	primary, err := svc.PrimaryDevice(ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, recent.ID, primary.ID)

	_, err = svc.MarkInactive(ctx, []uint{recent.ID})
	require.NoError(t, err)
	primary, err = svc.PrimaryDevice(ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, old.ID, primary.ID)

	_, err = svc.MarkInactive(ctx, []uint{old.ID})
	require.NoError(t, err)
	primary, err = svc.PrimaryDevice(ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, recent.ID, primary.ID)

	devices, err := svc.ListByUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	require.Equal(t, recent.ID, devices[0].ID)
}

func TestDeviceService_UpdateAndDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDeviceService(db)
	require.NoError(t, err)
	policies, err := NewPolicyService(db)
	require.NoError(t, err)
	ctx := context.Background()

	bob := testutil.MustCreateUser(t, db, "bob")
	device, _, err := svc.RecordSighting(ctx, bob.ID, "10.8.0.4", "10.8.0.4", time.Now())
	require.NoError(t, err)

	name := "Work laptop"
	kind := "Laptop"
	updated, err := svc.Update(ctx, device.ID, UpdateDeviceInput{Name: &name, DeviceType: &kind})
	require.NoError(t, err)
	require.Equal(t, "Work laptop", updated.Name)
	require.Equal(t, models.DeviceTypeLaptop, updated.DeviceType)

	bad := "router"
	_, err = svc.Update(ctx, device.ID, UpdateDeviceInput{DeviceType: &bad})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	policy, err := policies.CreatePolicy(ctx, CreatePolicyInput{Name: "Standard", BandwidthLimit: 10})
	require.NoError(t, err)
	_, err = policies.AssignDevicePolicy(ctx, device.ID, policy.ID, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, device.ID))
	require.ErrorIs(t, svc.Delete(ctx, device.ID), ErrDeviceNotFound)

	var assignments int64
	require.NoError(t, db.Model(&models.DevicePolicyAssignment{}).Count(&assignments).Error)
	require.Zero(t, assignments)
}
