package models

import "time"

// UserPolicyAssignment binds at most one policy to a user.
type UserPolicyAssignment struct {
	BaseModel

	UserID   uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	User     *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PolicyID uint       `gorm:"not null;index" json:"policy_id"`
	Policy   *QoSPolicy `gorm:"constraint:OnDelete:CASCADE" json:"policy,omitempty"`
}

// DevicePolicyAssignment binds at most one policy to a device and records who did it.
type DevicePolicyAssignment struct {
	BaseModel

	DeviceID   uint       `gorm:"not null;uniqueIndex" json:"device_id"`
	Device     *Device    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PolicyID   uint       `gorm:"not null;index" json:"policy_id"`
	Policy     *QoSPolicy `gorm:"constraint:OnDelete:CASCADE" json:"policy,omitempty"`
	AssignedBy string     `gorm:"type:varchar(128)" json:"assigned_by,omitempty"`
	Note       string     `gorm:"type:text" json:"note,omitempty"`
	AssignedAt time.Time  `json:"assigned_at"`
}
