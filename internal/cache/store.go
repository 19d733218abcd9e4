package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrLeaseNotHeld is returned when releasing a lease the caller no longer owns.
var ErrLeaseNotHeld = errors.New("cache: lease not held")

const keyPrefix = "ovpnhub:"

// Locker hands out short-lived exclusive leases shared between replicas.
type Locker interface {
	// Acquire tries to take the lease. ok is false when another owner holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (lease *Lease, ok bool, err error)
}

// Lease is a held lock. Release it when the guarded work completes; otherwise it
// expires after its TTL.
type Lease struct {
	Key       string
	Token     string
	Owner     string
	ExpiresAt time.Time

	release func(ctx context.Context) error
}

// Release gives the lease back early.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.release == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return l.release(ctx)
}

// defaultOwner names this process on lease rows as host:pid.
func defaultOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

func prefixed(key string) string {
	key = normalizeKey(strings.TrimSpace(key))
	if strings.HasPrefix(key, keyPrefix) {
		return key
	}
	return normalizeKey(keyPrefix + key)
}

// normalizeKey collapses repeated separators so "a::b" and "a:b" address the same lease.
func normalizeKey(key string) string {
	if key == "" {
		return key
	}
	var builder strings.Builder
	builder.Grow(len(key))
	prevColon := false
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if ch == ':' {
			if prevColon {
				continue
			}
			prevColon = true
		} else {
			prevColon = false
		}
		builder.WriteByte(ch)
	}
	return builder.String()
}
