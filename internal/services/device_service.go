package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/ovpnhub/internal/models"
)

const maxDeviceName = 120

// SightingOutcome describes what RecordSighting did to the device row.
type SightingOutcome int

const (
	// SightingUnchanged means the row already reflected the sighting.
	SightingUnchanged SightingOutcome = iota
	// SightingCreated means a new device row was inserted.
	SightingCreated
	// SightingUpdated means an existing row was activated or its last-seen fields changed.
	SightingUpdated
)

// DeviceService owns device identity and presence state.
type DeviceService struct {
	db *gorm.DB
}

// NewDeviceService constructs a device store once a database handle is supplied.
func NewDeviceService(db *gorm.DB) (*DeviceService, error) {
	if db == nil {
		return nil, errors.New("device service: db is required")
	}
	return &DeviceService{db: db}, nil
}

// UpdateDeviceInput describes the admin-editable fields. A nil pointer indicates no change.
type UpdateDeviceInput struct {
	Name       *string
	DeviceType *string
}

// FindByOwnerAndIdentifier looks up a device by its composite identity.
func (s *DeviceService) FindByOwnerAndIdentifier(ctx context.Context, userID uint, identifier string) (*models.Device, error) {
	ctx = ensuredContext(ctx)

	var device models.Device
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND identifier = ?", userID, strings.TrimSpace(identifier)).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

// RecordSighting marks the device identified by (userID, identifier) active and
// overwrites its last-seen fields, creating the row on first sight. A concurrent
// insert of the same identity is adopted and updated instead of failing.
func (s *DeviceService) RecordSighting(ctx context.Context, userID uint, identifier, lastIP string, connectedAt time.Time) (*models.Device, SightingOutcome, error) {
	ctx = ensuredContext(ctx)

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, SightingUnchanged, invalidField("identifier", "is required", nil)
	}
	lastIP = strings.TrimSpace(lastIP)
	connectedAt = connectedAt.UTC().Truncate(time.Second)

	existing, err := s.FindByOwnerAndIdentifier(ctx, userID, identifier)
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return s.createOrAdopt(ctx, userID, identifier, lastIP, connectedAt)
	case err != nil:
		return nil, SightingUnchanged, fmt.Errorf("device service: load device: %w", err)
	}
	return s.applySighting(ctx, existing, lastIP, connectedAt)
}

func (s *DeviceService) createOrAdopt(ctx context.Context, userID uint, identifier, lastIP string, connectedAt time.Time) (*models.Device, SightingOutcome, error) {
	device := &models.Device{
		UserID:          userID,
		Identifier:      identifier,
		Name:            defaultDeviceName(identifier),
		DeviceType:      models.DeviceTypeDesktop,
		LastConnectedAt: &connectedAt,
		LastIP:          optionalString(lastIP),
		Active:          true,
	}
	err := s.db.WithContext(ctx).Create(device).Error
	if err == nil {
		return device, SightingCreated, nil
	}
	if !isUniqueConstraintError(err) {
		return nil, SightingUnchanged, fmt.Errorf("device service: create device: %w", err)
	}

	winner, findErr := s.FindByOwnerAndIdentifier(ctx, userID, identifier)
	if findErr != nil {
		return nil, SightingUnchanged, fmt.Errorf("device service: adopt concurrent insert: %w", findErr)
	}
	return s.applySighting(ctx, winner, lastIP, connectedAt)
}

func (s *DeviceService) applySighting(ctx context.Context, device *models.Device, lastIP string, connectedAt time.Time) (*models.Device, SightingOutcome, error) {
	if device.Active && sameTime(device.LastConnectedAt, connectedAt) && stringValue(device.LastIP) == lastIP {
		return device, SightingUnchanged, nil
	}

	updates := map[string]any{
		"active":            true,
		"last_connected_at": connectedAt,
		"last_ip":           optionalString(lastIP),
	}
	if err := s.db.WithContext(ctx).Model(device).Updates(updates).Error; err != nil {
		return nil, SightingUnchanged, fmt.Errorf("device service: update device %d: %w", device.ID, err)
	}
	device.Active = true
	device.LastConnectedAt = &connectedAt
	device.LastIP = optionalString(lastIP)
	return device, SightingUpdated, nil
}

// ListActive returns every device currently marked active.
func (s *DeviceService) ListActive(ctx context.Context) ([]models.Device, error) {
	ctx = ensuredContext(ctx)

	var devices []models.Device
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// MarkInactive flips the active flag off for the given devices and stamps
// updated_at, leaving last-seen fields untouched. It returns the number of rows
// that changed.
func (s *DeviceService) MarkInactive(ctx context.Context, ids []uint) (int64, error) {
	ctx = ensuredContext(ctx)
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id IN ? AND active = ?", ids, true).
		UpdateColumns(map[string]any{"active": false, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("device service: mark inactive: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Get loads a device by id.
func (s *DeviceService) Get(ctx context.Context, id uint) (*models.Device, error) {
	ctx = ensuredContext(ctx)

	var device models.Device
	if err := s.db.WithContext(ctx).First(&device, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

// ListByUser returns a user's devices, active ones first and most recent first.
func (s *DeviceService) ListByUser(ctx context.Context, userID uint) ([]models.Device, error) {
	ctx = ensuredContext(ctx)

	var devices []models.Device
	err := s.recencyOrder(s.db.WithContext(ctx).Where("user_id = ?", userID)).Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// PrimaryDevice picks the device whose policy describes the user: the most recently
// connected active device, otherwise the most recently connected device overall.
// ErrDeviceNotFound is returned when the user owns no devices.
func (s *DeviceService) PrimaryDevice(ctx context.Context, userID uint) (*models.Device, error) {
	ctx = ensuredContext(ctx)

	var device models.Device
	err := s.recencyOrder(s.db.WithContext(ctx).Where("user_id = ?", userID)).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

// Update renames a device or changes its type.
func (s *DeviceService) Update(ctx context.Context, id uint, input UpdateDeviceInput) (*models.Device, error) {
	ctx = ensuredContext(ctx)

	device, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, invalidField("name", "is required", nil)
		}
		if len(name) > maxDeviceName {
			return nil, invalidField("name", fmt.Sprintf("must be at most %d characters", maxDeviceName), nil)
		}
		updates["name"] = name
		device.Name = name
	}
	if input.DeviceType != nil {
		deviceType, ok := models.ParseDeviceType(*input.DeviceType)
		if !ok {
			return nil, invalidField("device_type", "must be one of desktop, laptop, mobile, tablet", nil)
		}
		updates["device_type"] = deviceType
		device.DeviceType = deviceType
	}
	if len(updates) == 0 {
		return device, nil
	}

	if err := s.db.WithContext(ctx).Model(device).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("device service: update device: %w", err)
	}
	return device, nil
}

// Delete removes a device and its policy assignment.
func (s *DeviceService) Delete(ctx context.Context, id uint) error {
	ctx = ensuredContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", id).Delete(&models.DevicePolicyAssignment{}).Error; err != nil {
			return fmt.Errorf("device service: delete device assignment: %w", err)
		}
		result := tx.Delete(&models.Device{}, id)
		if result.Error != nil {
			return fmt.Errorf("device service: delete device: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrDeviceNotFound
		}
		return nil
	})
}

func (s *DeviceService) recencyOrder(query *gorm.DB) *gorm.DB {
	return query.
		Order("active DESC").
		Order("CASE WHEN last_connected_at IS NULL THEN 1 ELSE 0 END").
		Order("last_connected_at DESC").
		Order("id DESC")
}

func defaultDeviceName(identifier string) string {
	name := "Device " + identifier
	if len(name) > maxDeviceName {
		name = name[:maxDeviceName]
	}
	return name
}

func sameTime(stored *time.Time, observed time.Time) bool {
	return stored != nil && stored.Equal(observed)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
