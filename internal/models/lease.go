package models

import "time"

// Lease is a row of the database-backed lock table. Name holds the prefixed lock
// key; Token identifies one acquisition so only its holder can release it.
type Lease struct {
	Name       string    `gorm:"primaryKey;size:191" json:"name"`
	Token      string    `gorm:"size:36;not null" json:"-"`
	Owner      string    `gorm:"size:255" json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `gorm:"index" json:"expires_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName pins the lease table name.
func (Lease) TableName() string {
	return "leases"
}

// Expired reports whether the lease may be taken over at now.
func (l Lease) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
