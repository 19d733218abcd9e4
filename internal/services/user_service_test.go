package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/ovpnhub/internal/database/testutil"
)

func TestUserService_FindByUsernamesFoldsCaseWhenUnambiguous(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	alice, err := svc.Create(ctx, CreateUserInput{Username: "Alice", DisplayName: "Alice A."})
	require.NoError(t, err)
	require.Equal(t, "alice@localhost", alice.Email)

	found, err := svc.FindByUsernames(ctx, []string{"alice", " ALICE ", "Alice", "ghost", ""})
	require.NoError(t, err)
	require.Len(t, found, 3)
	require.Equal(t, alice.ID, found["alice"].ID)
	require.Equal(t, alice.ID, found["ALICE"].ID)
	require.Equal(t, alice.ID, found["Alice"].ID)

	_, err = svc.Create(ctx, CreateUserInput{Username: "Alice", Email: "other@example.com"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestUserService_FindByUsernamesPrefersExactMatch(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	upper := testutil.MustCreateUser(t, db, "Alice")
	lower := testutil.MustCreateUser(t, db, "alice")

	found, err := svc.FindByUsernames(ctx, []string{"Alice", "alice", "ALICE"})
	require.NoError(t, err)
	require.Equal(t, upper.ID, found["Alice"].ID)
	require.Equal(t, lower.ID, found["alice"].ID)

	_, ambiguous := found["ALICE"]
	require.False(t, ambiguous)
}

func TestUserService_Get(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	user := testutil.MustCreateUser(t, db, "bob")
	loaded, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "bob", loaded.Username)

	exists, err := svc.Exists(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, exists)

	_, err = svc.Get(ctx, 999)
	require.ErrorIs(t, err, ErrUserNotFound)
}
