package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/ovpnhub/internal/models"
	"github.com/charlesng35/ovpnhub/pkg/cidr"
)

const maxNetworkDescription = 255

// NetworkService manages the LAN networks users route through their tunnel.
type NetworkService struct {
	db *gorm.DB
}

// NewNetworkService constructs a network registry once a database handle is supplied.
func NewNetworkService(db *gorm.DB) (*NetworkService, error) {
	if db == nil {
		return nil, errors.New("network service: db is required")
	}
	return &NetworkService{db: db}, nil
}

// RegisterNetworkInput captures a new LAN network. Enabled defaults to true when nil.
type RegisterNetworkInput struct {
	UserID      uint
	CIDR        string
	Description string
	Enabled     *bool
}

// UpdateNetworkInput describes mutable network fields. A nil pointer indicates no change.
type UpdateNetworkInput struct {
	CIDR        *string
	Description *string
	Enabled     *bool
}

// Register validates the CIDR and stores the network for its owner.
func (s *NetworkService) Register(ctx context.Context, input RegisterNetworkInput) (*models.LanNetwork, error) {
	ctx = ensuredContext(ctx)

	parsed, err := cidr.Parse(input.CIDR)
	if err != nil {
		return nil, invalidField("cidr", "must be an IPv4 network in a.b.c.d/n form", err)
	}
	description, err := normaliseDescription(input.Description)
	if err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, input.UserID); err != nil {
		return nil, err
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	network := &models.LanNetwork{
		UserID:      input.UserID,
		CIDR:        parsed.CIDR,
		Description: description,
		Enabled:     enabled,
	}
	if err := s.db.WithContext(ctx).Create(network).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrNetworkExists
		}
		return nil, fmt.Errorf("network service: create network: %w", err)
	}
	return network, nil
}

// Get loads a network by id.
func (s *NetworkService) Get(ctx context.Context, id uint) (*models.LanNetwork, error) {
	ctx = ensuredContext(ctx)

	var network models.LanNetwork
	if err := s.db.WithContext(ctx).First(&network, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNetworkNotFound
		}
		return nil, err
	}
	return &network, nil
}

// List returns every network owned by the user in creation order.
func (s *NetworkService) List(ctx context.Context, userID uint) ([]models.LanNetwork, error) {
	return s.list(ctx, userID, false)
}

// ListEnabled returns the user's enabled networks in creation order.
func (s *NetworkService) ListEnabled(ctx context.Context, userID uint) ([]models.LanNetwork, error) {
	return s.list(ctx, userID, true)
}

func (s *NetworkService) list(ctx context.Context, userID uint, enabledOnly bool) ([]models.LanNetwork, error) {
	ctx = ensuredContext(ctx)

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}

	var networks []models.LanNetwork
	if err := query.Order("id ASC").Find(&networks).Error; err != nil {
		return nil, err
	}
	return networks, nil
}

// SetEnabled toggles whether a network is emitted into profiles.
func (s *NetworkService) SetEnabled(ctx context.Context, id uint, enabled bool) (*models.LanNetwork, error) {
	return s.Update(ctx, id, UpdateNetworkInput{Enabled: &enabled})
}

// Update applies the supplied changes. Changing the CIDR re-derives address and mask.
func (s *NetworkService) Update(ctx context.Context, id uint, input UpdateNetworkInput) (*models.LanNetwork, error) {
	ctx = ensuredContext(ctx)

	network, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.CIDR != nil {
		parsed, err := cidr.Parse(*input.CIDR)
		if err != nil {
			return nil, invalidField("cidr", "must be an IPv4 network in a.b.c.d/n form", err)
		}
		network.CIDR = parsed.CIDR
	}
	if input.Description != nil {
		description, err := normaliseDescription(*input.Description)
		if err != nil {
			return nil, err
		}
		network.Description = description
	}
	if input.Enabled != nil {
		network.Enabled = *input.Enabled
	}

	if err := s.db.WithContext(ctx).Save(network).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrNetworkExists
		}
		return nil, fmt.Errorf("network service: update network: %w", err)
	}
	return network, nil
}

// Delete removes a network.
func (s *NetworkService) Delete(ctx context.Context, id uint) error {
	ctx = ensuredContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.LanNetwork{}, id)
	if result.Error != nil {
		return fmt.Errorf("network service: delete network: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNetworkNotFound
	}
	return nil
}

func (s *NetworkService) requireUser(ctx context.Context, userID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

func normaliseDescription(value string) (string, error) {
	value = strings.TrimSpace(value)
	if len(value) > maxNetworkDescription {
		return "", invalidField("description", fmt.Sprintf("must be at most %d characters", maxNetworkDescription), nil)
	}
	return value, nil
}
