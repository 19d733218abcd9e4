package models

// User is the subset of the account record the profile renderer and reconciler
// read. Registration and authentication live outside this service.
type User struct {
	BaseModel

	Username    string `gorm:"type:varchar(128);uniqueIndex;not null" json:"username"`
	Email       string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName string `gorm:"type:varchar(255)" json:"display_name"`
	IsActive    bool   `gorm:"not null" json:"is_active"`
}
