package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/ovpnhub/internal/cache"
	testutil "github.com/charlesng35/ovpnhub/internal/database/testutil"
	"github.com/charlesng35/ovpnhub/internal/models"
	"github.com/charlesng35/ovpnhub/internal/monitoring"
)

func TestCleanerRunOncePurgesExpiredLeases(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mod, err := monitoring.NewModule(monitoring.Options{DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(mod)

	locker, err := cache.NewDatabaseLocker(db)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Lease{
		Name:      "ovpnhub:stale",
		Token:     "token",
		Owner:     "stopped-replica:7",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}).Error)
	lease, ok, err := locker.Acquire(context.Background(), "reconciler:cycle", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	c := NewCleaner(locker, WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))))
	require.True(t, c.Enabled())
	require.NoError(t, c.RunOnce(context.Background()))

	var names []string
	require.NoError(t, db.Model(&models.Lease{}).Pluck("name", &names).Error)
	require.Equal(t, []string{lease.Key}, names)

	jobs := monitoring.Snapshot().Maintenance.Jobs
	require.Len(t, jobs, 1)
	require.Equal(t, JobLeaseCleanup, jobs[0].Job)
	require.Equal(t, "success", jobs[0].LastStatus)
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestCleanerRunOnceReportsFailures(t *testing.T) {
	c := NewCleaner(failingPurger{})

	err := c.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), JobLeaseCleanup)
	require.Contains(t, err.Error(), "database is locked")
}

func TestCleanerWithoutJobsIsIdle(t *testing.T) {
	c := NewCleaner(nil)

	require.False(t, c.Enabled())
	require.NoError(t, c.Start())
	require.NoError(t, c.RunOnce(context.Background()))
	<-c.Stop().Done()
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	c := NewCleaner(failingPurger{}, WithLeaseSchedule("not a schedule"))
	require.Error(t, c.Start())
}
