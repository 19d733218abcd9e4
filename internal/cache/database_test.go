package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/charlesng35/ovpnhub/internal/database/testutil"
	"github.com/charlesng35/ovpnhub/internal/models"
)

func TestDatabaseLocker_ExclusiveUntilReleased(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	locker, err := NewDatabaseLocker(db)
	require.NoError(t, err)
	ctx := context.Background()

	lease, ok, err := locker.Acquire(ctx, "reconciler:cycle", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ovpnhub:reconciler:cycle", lease.Key)

	_, ok, err = locker.Acquire(ctx, "reconciler::cycle", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, lease.Release(ctx))
	require.ErrorIs(t, lease.Release(ctx), ErrLeaseNotHeld)

	again, ok, err := locker.Acquire(ctx, "reconciler:cycle", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, lease.Token, again.Token)
}

func TestDatabaseLocker_TakesOverExpiredLease(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	locker, err := NewDatabaseLocker(db)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now().UTC()
	locker.now = func() time.Time { return now }

	stale, ok, err := locker.Acquire(ctx, "reconciler:cycle", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	locker.now = func() time.Time { return now.Add(2 * time.Second) }
	fresh, ok, err := locker.Acquire(ctx, "reconciler:cycle", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, stale.Release(ctx), ErrLeaseNotHeld)
	require.NoError(t, fresh.Release(ctx))
}

func TestDatabaseLocker_PurgeExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	locker, err := NewDatabaseLocker(db)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.Lease{Name: "ovpnhub:old", Token: "x", Owner: "gone:1", ExpiresAt: now.Add(-time.Minute)}).Error)
	require.NoError(t, db.Create(&models.Lease{Name: "ovpnhub:live", Token: "y", Owner: "peer:2", ExpiresAt: now.Add(time.Hour)}).Error)

	purged, err := locker.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	var remaining []models.Lease
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "ovpnhub:live", remaining[0].Name)
}

func TestDatabaseLocker_RecordsOwner(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	locker, err := NewDatabaseLocker(db, WithOwner("replica-a:42"))
	require.NoError(t, err)
	ctx := context.Background()

	holder, err := locker.Holder(ctx, "reconciler:cycle")
	require.NoError(t, err)
	require.Nil(t, holder)

	lease, ok, err := locker.Acquire(ctx, "reconciler:cycle", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "replica-a:42", lease.Owner)

	holder, err = locker.Holder(ctx, "reconciler:cycle")
	require.NoError(t, err)
	require.NotNil(t, holder)
	require.Equal(t, "replica-a:42", holder.Owner)
	require.Equal(t, lease.Token, holder.Token)
}

func TestLeaseQueriesQuoteColumnsForMySQL(t *testing.T) {
	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:1)/ovpnhub?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, Logger: gormlogger.Discard})
	require.NoError(t, err)

	stmt := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(leaseNamed("ovpnhub:reconciler:cycle")).
		Take(&models.Lease{}).Statement
	sql := stmt.SQL.String()
	require.Contains(t, sql, "WHERE `name` = ?")
	require.Contains(t, sql, "FOR UPDATE")
	require.NotEmpty(t, stmt.Vars)
	require.Equal(t, "ovpnhub:reconciler:cycle", stmt.Vars[0])
}

func TestNewRedisClientParsesAddresses(t *testing.T) {
	_, err := NewRedisClient(RedisConfig{})
	require.Error(t, err)

	client, err := NewRedisClient(RedisConfig{Address: "redis://:pw@localhost:6380/2"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.Equal(t, "localhost:6380", client.Options().Addr)
	require.Equal(t, 2, client.Options().DB)
	require.Equal(t, "pw", client.Options().Password)

	plain, err := NewRedisClient(RedisConfig{Address: "cache:6379", DB: 1, TLS: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = plain.Close() })
	require.Equal(t, "cache:6379", plain.Options().Addr)
	require.NotNil(t, plain.Options().TLSConfig)

	_, err = NewRedisLocker(nil)
	require.Error(t, err)
}
