package auth_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	auth "github.com/syntra/go-auth"
)

func TestVerifyEmailHandlerSuccess(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &stubRepo{users: users}
	sink := &MockActivitySink{}

	challenge, err := auth.NewChallenge()
	require.NoError(t, err)

	verified := &auth.User{
		ID:            uuid.New(),
		Email:         "pepe.rone@example.com",
		EmailVerified: true,
		IsActive:      true,
	}

	// the handler hands the repo a digest, never the raw token
	users.On("ConsumeVerificationTokenTx", mock.Anything, mock.Anything, challenge.Digest, mock.Anything).
		Return(verified, nil).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
		return evt.EventType == auth.ActivityEventEmailVerified &&
			evt.UserID == verified.ID.String()
	})).Return(nil).Once()

	handler := auth.NewVerifyEmailHandler(repo).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	var resp *auth.VerifyEmailResponse
	err = handler.Execute(ctx, auth.VerifyEmailMessage{
		Token: challenge.Token,
		OnResponse: func(r *auth.VerifyEmailResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.User.EmailVerified)

	users.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestVerifyEmailHandlerUnknownOrExpiredToken(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &stubRepo{users: users}

	// covers both a forged token and a correct digest past its expiry; the
	// conditional consume matches no row either way
	users.On("ConsumeVerificationTokenTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.NewRecordNotFound()).Once()

	handler := auth.NewVerifyEmailHandler(repo).WithLogger(testLogger{})

	err := handler.Execute(ctx, auth.VerifyEmailMessage{Token: "some-token"})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, auth.TextCodeTokenInvalidOrExpired, richErr.TextCode)
}

func TestVerifyEmailHandlerEmptyToken(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	handler := auth.NewVerifyEmailHandler(&stubRepo{users: users}).WithLogger(testLogger{})

	err := handler.Execute(ctx, auth.VerifyEmailMessage{})
	require.Error(t, err)
	assert.Equal(t, auth.ErrInvalidOrExpiredToken, err)

	users.AssertNotCalled(t, "ConsumeVerificationTokenTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyEmailConsumeSQLGuardsExpiry(t *testing.T) {
	// the digest match and the expiry check must sit in the same statement
	assert.Contains(t, auth.ConsumeVerificationTokenSQL, `"verification_token" = ?`)
	assert.Contains(t, auth.ConsumeVerificationTokenSQL, `"verification_expires_at" > ?`)
	assert.Contains(t, auth.ConsumeVerificationTokenSQL, "RETURNING")
}
