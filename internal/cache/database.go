package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/ovpnhub/internal/models"
)

// DatabaseLocker implements Locker on the leases table. It is used when no Redis
// endpoint is configured or reachable; all replicas must share the database.
type DatabaseLocker struct {
	db    *gorm.DB
	owner string
	now   func() time.Time
}

// DatabaseLockerOption customises a DatabaseLocker.
type DatabaseLockerOption func(*DatabaseLocker)

// WithOwner overrides the holder name recorded on acquired rows.
func WithOwner(owner string) DatabaseLockerOption {
	return func(l *DatabaseLocker) {
		if owner = strings.TrimSpace(owner); owner != "" {
			l.owner = owner
		}
	}
}

// NewDatabaseLocker constructs a database-backed Locker.
func NewDatabaseLocker(db *gorm.DB, opts ...DatabaseLockerOption) (*DatabaseLocker, error) {
	if db == nil {
		return nil, errors.New("cache: db is required")
	}
	l := &DatabaseLocker{
		db:    db,
		owner: defaultOwner(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// leaseNamed matches one lease row. The column goes through clause.Eq so the
// dialect quotes it.
func leaseNamed(name string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "name"}, Value: name}
}

// Acquire takes the lease when it is free or its previous holder let it expire.
func (l *DatabaseLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	name := prefixed(key)
	now := l.now()
	row := models.Lease{
		Name:       name,
		Token:      uuid.NewString(),
		Owner:      l.owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	acquired := false

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Lease
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(leaseNamed(name)).Take(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case !current.Expired(now):
			return nil
		default:
			takeover := tx.Model(&models.Lease{}).
				Where(leaseNamed(name)).
				Where(clause.Eq{Column: clause.Column{Name: "token"}, Value: current.Token}).
				Updates(map[string]any{
					"token":       row.Token,
					"owner":       row.Owner,
					"acquired_at": row.AcquiredAt,
					"expires_at":  row.ExpiresAt,
				})
			if takeover.Error != nil {
				return takeover.Error
			}
			if takeover.RowsAffected == 0 {
				return nil
			}
		}
		acquired = true
		return nil
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: acquire %s: %w", name, err)
	}
	if !acquired {
		return nil, false, nil
	}

	return &Lease{
		Key:       name,
		Token:     row.Token,
		Owner:     row.Owner,
		ExpiresAt: row.ExpiresAt,
		release: func(ctx context.Context) error {
			return l.release(ctx, name, row.Token)
		},
	}, true, nil
}

func (l *DatabaseLocker) release(ctx context.Context, name, token string) error {
	result := l.db.WithContext(ctx).
		Where(leaseNamed(name)).
		Where(clause.Eq{Column: clause.Column{Name: "token"}, Value: token}).
		Delete(&models.Lease{})
	if result.Error != nil {
		return fmt.Errorf("cache: release %s: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLeaseNotHeld
	}
	return nil
}

// Holder returns the current unexpired holder of key, if any.
func (l *DatabaseLocker) Holder(ctx context.Context, key string) (*models.Lease, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var current models.Lease
	err := l.db.WithContext(ctx).Where(leaseNamed(prefixed(key))).Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if current.Expired(l.now()) {
		return nil, nil
	}
	return &current, nil
}

// PurgeExpired removes lease rows whose TTL has passed and returns how many were deleted.
func (l *DatabaseLocker) PurgeExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	result := l.db.WithContext(ctx).
		Where(clause.Lt{Column: clause.Column{Name: "expires_at"}, Value: l.now()}).
		Delete(&models.Lease{})
	return result.RowsAffected, result.Error
}

// isDuplicate reports a lost insert race on the lease row.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") || strings.Contains(lower, "duplicate")
}
