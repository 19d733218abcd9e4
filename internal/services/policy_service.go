package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/ovpnhub/internal/models"
)

const (
	// PolicySourceDevice marks a policy resolved from a device-level assignment.
	PolicySourceDevice = "device"
	// PolicySourceUser marks a policy inherited from the device owner's assignment.
	PolicySourceUser = "user"

	maxPolicyName = 120
)

// EffectivePolicy is the policy that applies to a device and where it came from.
type EffectivePolicy struct {
	Policy models.QoSPolicy `json:"policy"`
	Source string           `json:"source"`
}

// PolicyService manages QoS policies, their assignments and resolution.
type PolicyService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPolicyService constructs a policy store once a database handle is supplied.
func NewPolicyService(db *gorm.DB) (*PolicyService, error) {
	if db == nil {
		return nil, errors.New("policy service: db is required")
	}
	return &PolicyService{db: db, now: time.Now}, nil
}

// CreatePolicyInput captures the fields of a new policy.
type CreatePolicyInput struct {
	Name           string
	BandwidthLimit int
	Priority       string
	Description    string
}

// UpdatePolicyInput describes mutable policy fields. A nil pointer indicates no change.
type UpdatePolicyInput struct {
	Name           *string
	BandwidthLimit *int
	Priority       *string
	Description    *string
}

// CreatePolicy validates and stores a policy.
func (s *PolicyService) CreatePolicy(ctx context.Context, input CreatePolicyInput) (*models.QoSPolicy, error) {
	ctx = ensuredContext(ctx)

	name, err := normalisePolicyName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := validateBandwidth(input.BandwidthLimit); err != nil {
		return nil, err
	}
	priority := models.PriorityMedium
	if strings.TrimSpace(input.Priority) != "" {
		if priority, err = parsePriority(input.Priority); err != nil {
			return nil, err
		}
	}

	policy := &models.QoSPolicy{
		Name:           name,
		BandwidthLimit: input.BandwidthLimit,
		Priority:       priority,
		Description:    strings.TrimSpace(input.Description),
	}
	if err := s.db.WithContext(ctx).Create(policy).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrPolicyExists
		}
		return nil, fmt.Errorf("policy service: create policy: %w", err)
	}
	return policy, nil
}

// UpdatePolicy applies the supplied changes to an existing policy.
func (s *PolicyService) UpdatePolicy(ctx context.Context, id uint, input UpdatePolicyInput) (*models.QoSPolicy, error) {
	ctx = ensuredContext(ctx)

	policy, err := s.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if policy.Name, err = normalisePolicyName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.BandwidthLimit != nil {
		if err := validateBandwidth(*input.BandwidthLimit); err != nil {
			return nil, err
		}
		policy.BandwidthLimit = *input.BandwidthLimit
	}
	if input.Priority != nil {
		if policy.Priority, err = parsePriority(*input.Priority); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		policy.Description = strings.TrimSpace(*input.Description)
	}

	if err := s.db.WithContext(ctx).Save(policy).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrPolicyExists
		}
		return nil, fmt.Errorf("policy service: update policy: %w", err)
	}
	return policy, nil
}

// DeletePolicy removes a policy together with every assignment that references it.
func (s *PolicyService) DeletePolicy(ctx context.Context, id uint) error {
	ctx = ensuredContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("policy_id = ?", id).Delete(&models.DevicePolicyAssignment{}).Error; err != nil {
			return fmt.Errorf("policy service: delete device assignments: %w", err)
		}
		if err := tx.Where("policy_id = ?", id).Delete(&models.UserPolicyAssignment{}).Error; err != nil {
			return fmt.Errorf("policy service: delete user assignments: %w", err)
		}
		result := tx.Delete(&models.QoSPolicy{}, id)
		if result.Error != nil {
			return fmt.Errorf("policy service: delete policy: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrPolicyNotFound
		}
		return nil
	})
}

// GetPolicy loads a policy by id.
func (s *PolicyService) GetPolicy(ctx context.Context, id uint) (*models.QoSPolicy, error) {
	ctx = ensuredContext(ctx)

	var policy models.QoSPolicy
	if err := s.db.WithContext(ctx).First(&policy, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}
	return &policy, nil
}

// ListPolicies returns all policies ordered by name.
func (s *PolicyService) ListPolicies(ctx context.Context) ([]models.QoSPolicy, error) {
	ctx = ensuredContext(ctx)

	var policies []models.QoSPolicy
	if err := s.db.WithContext(ctx).Order("LOWER(name)").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

// AssignUserPolicy binds the policy to the user, replacing any previous assignment.
func (s *PolicyService) AssignUserPolicy(ctx context.Context, userID, policyID uint) (*models.UserPolicyAssignment, error) {
	ctx = ensuredContext(ctx)

	if err := s.requireRow(ctx, &models.User{}, userID, ErrUserNotFound); err != nil {
		return nil, err
	}
	if err := s.requireRow(ctx, &models.QoSPolicy{}, policyID, ErrPolicyNotFound); err != nil {
		return nil, err
	}

	assignment := &models.UserPolicyAssignment{UserID: userID, PolicyID: policyID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"policy_id", "updated_at"}),
	}).Create(assignment).Error
	if err != nil {
		return nil, fmt.Errorf("policy service: assign user policy: %w", err)
	}

	var stored models.UserPolicyAssignment
	if err := s.db.WithContext(ctx).Preload("Policy").Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// RemoveUserPolicy deletes the user's assignment and reports whether one existed.
func (s *PolicyService) RemoveUserPolicy(ctx context.Context, userID uint) (bool, error) {
	ctx = ensuredContext(ctx)

	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserPolicyAssignment{})
	if result.Error != nil {
		return false, fmt.Errorf("policy service: remove user policy: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// AssignDevicePolicy binds the policy to the device, replacing any previous assignment.
func (s *PolicyService) AssignDevicePolicy(ctx context.Context, deviceID, policyID uint, assignedBy, note string) (*models.DevicePolicyAssignment, error) {
	ctx = ensuredContext(ctx)

	if err := s.requireRow(ctx, &models.Device{}, deviceID, ErrDeviceNotFound); err != nil {
		return nil, err
	}
	if err := s.requireRow(ctx, &models.QoSPolicy{}, policyID, ErrPolicyNotFound); err != nil {
		return nil, err
	}

	assignment := &models.DevicePolicyAssignment{
		DeviceID:   deviceID,
		PolicyID:   policyID,
		AssignedBy: strings.TrimSpace(assignedBy),
		Note:       strings.TrimSpace(note),
		AssignedAt: s.now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"policy_id", "assigned_by", "note", "assigned_at", "updated_at"}),
	}).Create(assignment).Error
	if err != nil {
		return nil, fmt.Errorf("policy service: assign device policy: %w", err)
	}

	var stored models.DevicePolicyAssignment
	if err := s.db.WithContext(ctx).Preload("Policy").Where("device_id = ?", deviceID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// RemoveDevicePolicy deletes the device's assignment and reports whether one existed.
func (s *PolicyService) RemoveDevicePolicy(ctx context.Context, deviceID uint) (bool, error) {
	ctx = ensuredContext(ctx)

	result := s.db.WithContext(ctx).Where("device_id = ?", deviceID).Delete(&models.DevicePolicyAssignment{})
	if result.Error != nil {
		return false, fmt.Errorf("policy service: remove device policy: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ResolveEffectivePolicy returns the device's own policy, falling back to its owner's.
// A nil result with a nil error means no policy applies, including for unknown devices.
func (s *PolicyService) ResolveEffectivePolicy(ctx context.Context, deviceID uint) (*EffectivePolicy, error) {
	ctx = ensuredContext(ctx)

	var deviceAssignment models.DevicePolicyAssignment
	err := s.db.WithContext(ctx).Preload("Policy").Where("device_id = ?", deviceID).First(&deviceAssignment).Error
	switch {
	case err == nil && deviceAssignment.Policy != nil:
		return &EffectivePolicy{Policy: *deviceAssignment.Policy, Source: PolicySourceDevice}, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("policy service: load device assignment: %w", err)
	}

	var device models.Device
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&device, deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("policy service: load device: %w", err)
	}
	return s.ResolveUserPolicy(ctx, device.UserID)
}

// ResolveUserPolicy returns the user-level policy, or nil when none is assigned.
func (s *PolicyService) ResolveUserPolicy(ctx context.Context, userID uint) (*EffectivePolicy, error) {
	ctx = ensuredContext(ctx)

	var assignment models.UserPolicyAssignment
	err := s.db.WithContext(ctx).Preload("Policy").Where("user_id = ?", userID).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("policy service: load user assignment: %w", err)
	}
	if assignment.Policy == nil {
		return nil, nil
	}
	return &EffectivePolicy{Policy: *assignment.Policy, Source: PolicySourceUser}, nil
}

func (s *PolicyService) requireRow(ctx context.Context, model any, id uint, notFound error) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}

func normalisePolicyName(value string) (string, error) {
	name := strings.TrimSpace(value)
	if name == "" {
		return "", invalidField("name", "is required", nil)
	}
	if len(name) > maxPolicyName {
		return "", invalidField("name", fmt.Sprintf("must be at most %d characters", maxPolicyName), nil)
	}
	return name, nil
}

func validateBandwidth(limit int) error {
	if limit <= 0 {
		return invalidField("bandwidth_limit", "must be a positive number of kbit/s", nil)
	}
	return nil
}

func parsePriority(value string) (models.Priority, error) {
	priority, ok := models.ParsePriority(value)
	if !ok {
		return "", invalidField("priority", "must be one of low, medium, high", nil)
	}
	return priority, nil
}
