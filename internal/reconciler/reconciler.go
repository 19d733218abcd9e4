package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/ovpnhub/internal/models"
	"github.com/charlesng35/ovpnhub/internal/services"
	"github.com/charlesng35/ovpnhub/internal/sessions"
	"github.com/charlesng35/ovpnhub/pkg/logger"
)

// SourceUnavailableError wraps a failed session poll. The cycle that produced it
// performed no writes.
type SourceUnavailableError struct {
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("reconciler: session source unavailable: %v", e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// UserDirectory resolves session usernames to local accounts.
type UserDirectory interface {
	FindByUsernames(ctx context.Context, usernames []string) (map[string]models.User, error)
}

// DeviceStore is the subset of the device store the reconciler writes through.
type DeviceStore interface {
	RecordSighting(ctx context.Context, userID uint, identifier, lastIP string, connectedAt time.Time) (*models.Device, services.SightingOutcome, error)
	ListActive(ctx context.Context) ([]models.Device, error)
	MarkInactive(ctx context.Context, ids []uint) (int64, error)
}

// Observer receives the outcome of every cycle, e.g. to export metrics.
type Observer interface {
	ObserveCycle(result CycleResult, elapsed time.Duration, err error)
}

// CycleResult summarises one reconciliation pass.
type CycleResult struct {
	Seen        int `json:"seen"`
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Reconciler converges the device registry onto the session source's view.
type Reconciler struct {
	source   sessions.Source
	users    UserDirectory
	devices  DeviceStore
	observer Observer
	now      func() time.Time
	log      *zap.Logger
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithObserver registers a cycle observer.
func WithObserver(observer Observer) Option {
	return func(r *Reconciler) {
		r.observer = observer
	}
}

// WithLogger overrides the module logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// New constructs a Reconciler.
func New(source sessions.Source, users UserDirectory, devices DeviceStore, opts ...Option) (*Reconciler, error) {
	if source == nil {
		return nil, errors.New("reconciler: session source is required")
	}
	if users == nil || devices == nil {
		return nil, errors.New("reconciler: user and device stores are required")
	}

	r := &Reconciler{
		source:  source,
		users:   users,
		devices: devices,
		now:     time.Now,
		log:     logger.WithModule("reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type deviceKey struct {
	userID     uint
	identifier string
}

type sighting struct {
	key    deviceKey
	record sessions.Record
}

// RunCycle polls the source once and applies the result. A poll failure aborts the
// cycle before any write and returns *SourceUnavailableError. Individual write
// failures are collected and returned together after every row was attempted.
func (r *Reconciler) RunCycle(ctx context.Context) (result CycleResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := r.now()
	defer func() {
		if r.observer != nil {
			r.observer.ObserveCycle(result, r.now().Sub(started), err)
		}
	}()

	records, err := r.source.ActiveSessions(ctx)
	if err != nil {
		r.log.Warn("session poll failed; skipping cycle", zap.Error(err))
		return CycleResult{}, &SourceUnavailableError{Err: err}
	}
	result.Seen = len(records)

	sightings, skipped, err := r.resolve(ctx, records)
	if err != nil {
		return CycleResult{Seen: len(records)}, err
	}
	result.Skipped = skipped

	var errs error
	present := make(map[deviceKey]struct{}, len(sightings))
	for _, s := range sightings {
		present[s.key] = struct{}{}
		if ctx.Err() != nil {
			return result, multierr.Append(errs, ctx.Err())
		}

		_, outcome, writeErr := r.devices.RecordSighting(ctx, s.key.userID, s.key.identifier, s.record.Address, s.record.ConnectedSince)
		if writeErr != nil {
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("record %s/%s: %w", s.record.Username, s.key.identifier, writeErr))
			continue
		}
		switch outcome {
		case services.SightingCreated:
			result.Created++
		case services.SightingUpdated:
			result.Updated++
		}
	}

	if ctx.Err() != nil {
		return result, multierr.Append(errs, ctx.Err())
	}

	active, listErr := r.devices.ListActive(ctx)
	if listErr != nil {
		errs = multierr.Append(errs, fmt.Errorf("list active devices: %w", listErr))
		return result, errs
	}
	var absent []uint
	for _, device := range active {
		if _, ok := present[deviceKey{userID: device.UserID, identifier: device.Identifier}]; !ok {
			absent = append(absent, device.ID)
		}
	}
	if len(absent) > 0 {
		changed, markErr := r.devices.MarkInactive(ctx, absent)
		if markErr != nil {
			result.Failed += len(absent)
			errs = multierr.Append(errs, fmt.Errorf("mark inactive: %w", markErr))
		}
		result.Deactivated = int(changed)
	}

	fields := []zap.Field{
		zap.Int("seen", result.Seen),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("deactivated", result.Deactivated),
		zap.Int("skipped", result.Skipped),
	}
	if errs != nil {
		r.log.Warn("reconcile cycle completed with errors", append(fields, zap.Error(errs))...)
	} else {
		r.log.Debug("reconcile cycle completed", fields...)
	}
	return result, errs
}

// resolve maps sessions onto owners, dropping unknown or ambiguous usernames
// and collapsing duplicate identities to the most recent connection.
func (r *Reconciler) resolve(ctx context.Context, records []sessions.Record) ([]sighting, int, error) {
	usernames := make([]string, 0, len(records))
	for _, record := range records {
		usernames = append(usernames, record.Username)
	}
	users, err := r.users.FindByUsernames(ctx, usernames)
	if err != nil {
		return nil, 0, fmt.Errorf("reconciler: resolve usernames: %w", err)
	}

	skipped := 0
	latest := make(map[deviceKey]sessions.Record, len(records))
	for _, record := range records {
		user, ok := users[strings.TrimSpace(record.Username)]
		if !ok {
			skipped++
			r.log.Warn("session for unknown or ambiguous user ignored",
				zap.String("username", record.Username),
				zap.String("address", record.Address))
			continue
		}
		key := deviceKey{userID: user.ID, identifier: strings.TrimSpace(record.Identifier())}
		if previous, seen := latest[key]; seen && !record.ConnectedSince.After(previous.ConnectedSince) {
			continue
		}
		latest[key] = record
	}

	out := make([]sighting, 0, len(latest))
	for key, record := range latest {
		out = append(out, sighting{key: key, record: record})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.userID != out[j].key.userID {
			return out[i].key.userID < out[j].key.userID
		}
		return out[i].key.identifier < out[j].key.identifier
	})
	return out, skipped, nil
}
