package models

import (
	"strings"
	"time"
)

// DeviceType classifies an endpoint for display purposes.
type DeviceType string

const (
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeLaptop  DeviceType = "laptop"
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeTablet  DeviceType = "tablet"
)

// ParseDeviceType normalises a device type, reporting false for unknown values.
func ParseDeviceType(value string) (DeviceType, bool) {
	switch DeviceType(strings.ToLower(strings.TrimSpace(value))) {
	case "", DeviceTypeDesktop:
		return DeviceTypeDesktop, true
	case DeviceTypeLaptop:
		return DeviceTypeLaptop, true
	case DeviceTypeMobile:
		return DeviceTypeMobile, true
	case DeviceTypeTablet:
		return DeviceTypeTablet, true
	default:
		return "", false
	}
}

// Device is an endpoint observed connecting to the VPN. Identifiers are only unique
// per owner because VPN addresses are recycled across users.
type Device struct {
	BaseModel

	UserID     uint       `gorm:"not null;uniqueIndex:idx_devices_owner_identifier,priority:1" json:"user_id"`
	User       *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Identifier string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_devices_owner_identifier,priority:2" json:"identifier"`
	Name       string     `gorm:"type:varchar(120);not null" json:"name"`
	DeviceType DeviceType `gorm:"type:varchar(16);not null;default:desktop" json:"device_type"`

	LastConnectedAt *time.Time `json:"last_connected_at"`
	LastIP          *string    `gorm:"type:varchar(64)" json:"last_ip"`
	Active          bool       `gorm:"not null;default:false;index" json:"active"`
}
