package sessions

import (
	"context"
	"time"
)

// Record is one active VPN session as reported by the session source.
type Record struct {
	Username       string
	Address        string
	ClientToken    string
	ConnectedSince time.Time
}

// Identifier is the stable per-user device key: the client token when the source
// supplies one, otherwise the VPN-assigned address.
func (r Record) Identifier() string {
	if r.ClientToken != "" {
		return r.ClientToken
	}
	return r.Address
}

// Source reports the authoritative set of currently active sessions.
type Source interface {
	ActiveSessions(ctx context.Context) ([]Record, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Record, error)

// ActiveSessions implements Source.
func (f SourceFunc) ActiveSessions(ctx context.Context) ([]Record, error) {
	return f(ctx)
}
