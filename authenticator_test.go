package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	auth "github.com/syntra/go-auth"
)

func TestAutherLoginSuccess(t *testing.T) {
	ctx := context.Background()
	provider := new(MockIdentityProvider)
	sink := new(MockActivitySink)

	identity := testIdentity{id: "user-1", username: "pepe", email: "pepe@example.com", role: auth.RoleLearner}

	provider.On("VerifyIdentity", mock.Anything, "pepe@example.com", "Secret123").
		Return(identity, nil).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
		return evt.EventType == auth.ActivityEventLoginSuccess && evt.UserID == "user-1"
	})).Return(nil).Once()

	auther := auth.NewAuthenticator(provider, newMockConfig()).
		WithLogger(testLogger{}).
		WithActivitySink(sink)

	token, err := auther.Login(ctx, "pepe@example.com", "Secret123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := auther.TokenService().Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, auth.RoleLearner, claims.Role())

	provider.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestAutherLoginFailureEmitsActivity(t *testing.T) {
	ctx := context.Background()
	provider := new(MockIdentityProvider)
	sink := new(MockActivitySink)

	provider.On("VerifyIdentity", mock.Anything, "pepe@example.com", "wrong").
		Return(nil, auth.ErrMismatchedHashAndPassword).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
		return evt.EventType == auth.ActivityEventLoginFailure
	})).Return(nil).Once()

	auther := auth.NewAuthenticator(provider, newMockConfig()).
		WithLogger(testLogger{}).
		WithActivitySink(sink)

	_, err := auther.Login(ctx, "pepe@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, auth.ErrMismatchedHashAndPassword, err)

	provider.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestAutherSessionFromToken(t *testing.T) {
	provider := new(MockIdentityProvider)
	auther := auth.NewAuthenticator(provider, newMockConfig()).WithLogger(testLogger{})

	identity := testIdentity{id: "user-1", role: auth.RoleTeam}
	token, err := auther.TokenForIdentity(context.Background(), identity)
	require.NoError(t, err)

	session, err := auther.SessionFromToken(token)
	require.NoError(t, err)

	assert.Equal(t, "user-1", session.GetUserID())
	assert.Equal(t, "test-issuer", session.GetIssuer())
	assert.Equal(t, []string{"test-audience"}, session.GetAudience())
	assert.Equal(t, auth.RoleTeam, session.GetData()["role"])
}

func TestAutherSessionFromTokenRejectsGarbage(t *testing.T) {
	provider := new(MockIdentityProvider)
	auther := auth.NewAuthenticator(provider, newMockConfig()).WithLogger(testLogger{})

	_, err := auther.SessionFromToken("garbage")
	assert.Error(t, err)
}

func TestAutherIdentityFromSession(t *testing.T) {
	ctx := context.Background()
	provider := new(MockIdentityProvider)

	identity := testIdentity{id: "user-1", role: auth.RoleLearner}
	provider.On("FindIdentityByIdentifier", mock.Anything, "user-1").
		Return(identity, nil).Once()

	auther := auth.NewAuthenticator(provider, newMockConfig()).WithLogger(testLogger{})

	got, err := auther.IdentityFromSession(ctx, &auth.SessionObject{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID())

	provider.AssertExpectations(t)
}

func TestAutherCustomTokenValidator(t *testing.T) {
	provider := new(MockIdentityProvider)

	custom := auth.TokenValidatorFunc(func(raw string) (auth.AuthClaims, error) {
		if raw != "external-token" {
			return nil, auth.ErrTokenMalformed
		}
		return &auth.JWTClaims{UID: "external-user", UserRole: auth.RoleEmployer}, nil
	})

	auther := auth.NewAuthenticator(provider, newMockConfig()).
		WithLogger(testLogger{}).
		WithTokenValidator(custom)

	session, err := auther.SessionFromToken("external-token")
	require.NoError(t, err)
	assert.Equal(t, "external-user", session.GetUserID())
}
