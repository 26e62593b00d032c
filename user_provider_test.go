package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	auth "github.com/syntra/go-auth"
)

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	return &auth.User{
		ID:           uuid.New(),
		Name:         "Pepe Rone",
		Email:        "pepe.rone@example.com",
		Role:         auth.RoleLearner,
		PasswordHash: hash,
		IsActive:     true,
	}
}

func TestVerifyIdentitySuccess(t *testing.T) {
	ctx := context.Background()
	store := new(MockUserStore)
	user := activeUser(t, "Secret123")

	store.On("GetByIdentifier", mock.Anything, user.Email).Return(user, nil).Once()

	provider := auth.NewUserProvider(store).WithLogger(testLogger{})

	identity, err := provider.VerifyIdentity(ctx, user.Email, "Secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), identity.ID())
	assert.Equal(t, user.Email, identity.Email())
	assert.Equal(t, auth.RoleLearner, identity.Role())

	store.AssertExpectations(t)
}

func TestVerifyIdentityWrongPasswordAndUnknownUserAreIdentical(t *testing.T) {
	ctx := context.Background()
	store := new(MockUserStore)
	user := activeUser(t, "Secret123")

	store.On("GetByIdentifier", mock.Anything, user.Email).Return(user, nil).Once()
	store.On("GetByIdentifier", mock.Anything, "nobody@example.com").
		Return(nil, auth.ErrIdentityNotFound).Once()

	provider := auth.NewUserProvider(store).WithLogger(testLogger{})

	_, wrongPassErr := provider.VerifyIdentity(ctx, user.Email, "wrong-password")
	_, unknownErr := provider.VerifyIdentity(ctx, "nobody@example.com", "Secret123")

	require.Error(t, wrongPassErr)
	require.Error(t, unknownErr)
	assert.Equal(t, wrongPassErr, unknownErr)
	assert.Equal(t, auth.ErrMismatchedHashAndPassword, wrongPassErr)

	store.AssertExpectations(t)
}

func TestVerifyIdentityPasswordlessAccount(t *testing.T) {
	ctx := context.Background()
	store := new(MockUserStore)

	// OAuth provisioned account with no hash; any password fails with the
	// same generic credential error
	user := activeUser(t, "Secret123")
	user.PasswordHash = ""

	store.On("GetByIdentifier", mock.Anything, user.Email).Return(user, nil).Once()

	provider := auth.NewUserProvider(store).WithLogger(testLogger{})

	_, err := provider.VerifyIdentity(ctx, user.Email, "Secret123")
	require.Error(t, err)
	assert.Equal(t, auth.ErrMismatchedHashAndPassword, err)
}

func TestVerifyIdentityDisabledAccount(t *testing.T) {
	ctx := context.Background()
	store := new(MockUserStore)

	user := activeUser(t, "Secret123")
	user.IsActive = false

	store.On("GetByIdentifier", mock.Anything, user.Email).Return(user, nil).Once()

	provider := auth.NewUserProvider(store).WithLogger(testLogger{})

	// the password was correct, so the disabled response leaks nothing new
	_, err := provider.VerifyIdentity(ctx, user.Email, "Secret123")
	require.Error(t, err)
	assert.Equal(t, auth.ErrAccountDisabled, err)
}

func TestFindIdentityByIdentifier(t *testing.T) {
	ctx := context.Background()
	store := new(MockUserStore)
	user := activeUser(t, "Secret123")

	store.On("GetByIdentifier", mock.Anything, user.ID.String()).Return(user, nil).Once()

	provider := auth.NewUserProvider(store).WithLogger(testLogger{})

	identity, err := provider.FindIdentityByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), identity.ID())
}

func TestFindIdentityByIdentifierNotFound(t *testing.T) {
	ctx := context.Background()
	store := new(MockUserStore)

	store.On("GetByIdentifier", mock.Anything, "missing").
		Return(nil, auth.ErrIdentityNotFound).Once()

	provider := auth.NewUserProvider(store).WithLogger(testLogger{})

	_, err := provider.FindIdentityByIdentifier(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, auth.ErrIdentityNotFound, err)
}

func TestNewIdentityFromUser(t *testing.T) {
	assert.Nil(t, auth.NewIdentityFromUser(nil))

	user := activeUser(t, "Secret123")
	identity := auth.NewIdentityFromUser(user)
	require.NotNil(t, identity)
	assert.Equal(t, user.ID.String(), identity.ID())
	assert.Equal(t, user.Name, identity.Username())
	assert.Equal(t, user.Email, identity.Email())
}
