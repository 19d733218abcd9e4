package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/ovpnhub/internal/models"
)

// UserService is a read-only view over accounts managed by the registration layer.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a user service once a database handle is supplied.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	ctx = ensuredContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Exists reports whether a user row exists.
func (s *UserService) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ensuredContext(ctx)).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// FindByUsernames resolves many usernames at once. The result is keyed by each
// requested name after trimming. An exact match wins; otherwise a
// case-insensitive match is used only when exactly one account folds to the
// name. Unknown and ambiguous names are absent from the result.
func (s *UserService) FindByUsernames(ctx context.Context, usernames []string) (map[string]models.User, error) {
	ctx = ensuredContext(ctx)

	requested, folded := normaliseUsernames(usernames)
	out := make(map[string]models.User, len(requested))
	if len(requested) == 0 {
		return out, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("LOWER(username) IN ?", folded).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	exact := make(map[string]models.User, len(users))
	byFold := make(map[string][]models.User, len(users))
	for _, user := range users {
		exact[user.Username] = user
		key := strings.ToLower(user.Username)
		byFold[key] = append(byFold[key], user)
	}

	for _, name := range requested {
		if user, ok := exact[name]; ok {
			out[name] = user
			continue
		}
		if candidates := byFold[strings.ToLower(name)]; len(candidates) == 1 {
			out[name] = candidates[0]
		}
	}
	return out, nil
}

// normaliseUsernames trims and de-duplicates the requested names and returns
// them alongside their distinct lower-cased forms.
func normaliseUsernames(values []string) (requested, folded []string) {
	seen := make(map[string]struct{}, len(values))
	seenFold := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		requested = append(requested, value)

		lower := strings.ToLower(value)
		if _, exists := seenFold[lower]; !exists {
			seenFold[lower] = struct{}{}
			folded = append(folded, lower)
		}
	}
	return requested, folded
}

// CreateUserInput seeds a local account row mirrored from the registration layer.
type CreateUserInput struct {
	Username    string
	Email       string
	DisplayName string
}

// Create inserts a user. It exists for seeding and tests; accounts are normally
// provisioned by the external registration layer.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensuredContext(ctx)

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, invalidField("username", "is required", nil)
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		email = strings.ToLower(username) + "@localhost"
	}

	user := &models.User{
		Username:    username,
		Email:       email,
		DisplayName: strings.TrimSpace(input.DisplayName),
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, invalidField("username", "is already taken", err)
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}
	return user, nil
}
