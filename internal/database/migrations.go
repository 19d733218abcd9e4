package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/ovpnhub/internal/models"
)

// AutoMigrate creates or updates the database schema for all models. Order matters
// for foreign keys: owners before the rows that reference them.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.QoSPolicy{},
		&models.Device{},
		&models.UserPolicyAssignment{},
		&models.DevicePolicyAssignment{},
		&models.LanNetwork{},
		&models.Lease{},
	)
}
