package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrDeviceNotFound indicates the referenced device does not exist.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrPolicyNotFound indicates the referenced QoS policy does not exist.
	ErrPolicyNotFound = errors.New("qos policy not found")
	// ErrPolicyExists is returned when a policy name is already taken.
	ErrPolicyExists = errors.New("qos policy name already exists")
	// ErrNetworkNotFound indicates the referenced LAN network does not exist.
	ErrNetworkNotFound = errors.New("lan network not found")
	// ErrNetworkExists is returned when the owner already registered the same CIDR.
	ErrNetworkExists = errors.New("lan network already registered for user")
)

// ValidationError reports a rejected input field. It is returned synchronously at the
// boundary where the value was accepted.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func invalidField(field, message string, cause error) error {
	return &ValidationError{Field: field, Message: message, Err: cause}
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
