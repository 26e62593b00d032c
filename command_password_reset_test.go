package auth_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	auth "github.com/syntra/go-auth"
)

func TestInitializePasswordResetKnownEmail(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &stubRepo{users: users}
	mailer := &MockMailer{}
	sink := &MockActivitySink{}

	user := &auth.User{
		ID:       uuid.New(),
		Email:    "pepe.rone@example.com",
		IsActive: true,
	}

	users.On("GetByEmailTx", mock.Anything, mock.Anything, user.Email).
		Return(user, nil).Once()
	users.On("UpdateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
		return u.ResetToken != "" && u.ResetExpiry != nil && u.ResetExpiry.After(time.Now())
	})).Return(nil, nil).Once()

	var sentToken string
	mailer.On("SendResetRequest", mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			sentToken = args.String(2)
		}).Once()

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
		return evt.EventType == auth.ActivityEventPasswordResetRequest
	})).Return(nil).Once()

	handler := auth.NewInitializePasswordResetHandler(repo, mailer).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	var resp *auth.InitializePasswordResetResponse
	err := handler.Execute(ctx, auth.InitializePasswordResetMessage{
		Email: user.Email,
		OnResponse: func(r *auth.InitializePasswordResetResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)

	// only the digest of the mailed token is on the record
	require.NotEmpty(t, sentToken)
	assert.Equal(t, auth.DigestChallengeToken(sentToken), user.ResetToken)

	users.AssertExpectations(t)
	mailer.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestInitializePasswordResetUnknownEmailLooksIdentical(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &stubRepo{users: users}
	mailer := &MockMailer{}

	users.On("GetByEmailTx", mock.Anything, mock.Anything, "nobody@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()

	handler := auth.NewInitializePasswordResetHandler(repo, mailer).WithLogger(testLogger{})

	var resp *auth.InitializePasswordResetResponse
	err := handler.Execute(ctx, auth.InitializePasswordResetMessage{
		Email: "nobody@example.com",
		OnResponse: func(r *auth.InitializePasswordResetResponse) {
			resp = r
		},
	})

	// same outcome a known address gets, so callers cannot probe for accounts
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)

	users.AssertNotCalled(t, "UpdateTx", mock.Anything, mock.Anything, mock.Anything)
	mailer.AssertNotCalled(t, "SendResetRequest", mock.Anything, mock.Anything, mock.Anything)
}

func TestInitializePasswordResetMailFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &stubRepo{users: users}
	mailer := &MockMailer{}

	user := &auth.User{ID: uuid.New(), Email: "pepe.rone@example.com", IsActive: true}

	users.On("GetByEmailTx", mock.Anything, mock.Anything, user.Email).
		Return(user, nil).Once()
	users.On("UpdateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil).Once()
	mailer.On("SendResetRequest", mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError).Once()

	handler := auth.NewInitializePasswordResetHandler(repo, mailer).WithLogger(testLogger{})

	err := handler.Execute(ctx, auth.InitializePasswordResetMessage{Email: user.Email})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, auth.TextCodeMailDelivery, richErr.TextCode)
}

func TestFinalizePasswordResetSuccess(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &stubRepo{users: users}
	mailer := &MockMailer{}
	sink := &MockActivitySink{}

	challenge, err := auth.NewChallenge()
	require.NoError(t, err)

	user := &auth.User{ID: uuid.New(), Email: "pepe.rone@example.com", IsActive: true}

	var storedHash string
	users.On("ConsumeResetTokenTx", mock.Anything, mock.Anything, challenge.Digest, mock.Anything, mock.Anything).
		Return(user, nil).
		Run(func(args mock.Arguments) {
			storedHash = args.String(3)
		}).Once()
	mailer.On("SendResetConfirmation", mock.Anything, user).Return(nil).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
		return evt.EventType == auth.ActivityEventPasswordResetSuccess &&
			evt.UserID == user.ID.String()
	})).Return(nil).Once()

	handler := auth.NewFinalizePasswordResetHandler(repo, mailer).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	err = handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:           challenge.Token,
		Password:        "NewSecret123",
		PasswordConfirm: "NewSecret123",
	})
	require.NoError(t, err)

	// the hash handed to the repo verifies against the new password
	require.NotEmpty(t, storedHash)
	assert.NoError(t, auth.ComparePasswordAndHash(storedHash, "NewSecret123"))

	users.AssertExpectations(t)
	mailer.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestFinalizePasswordResetSecondRedemptionFails(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &stubRepo{users: users}
	mailer := &MockMailer{}

	challenge, err := auth.NewChallenge()
	require.NoError(t, err)

	user := &auth.User{ID: uuid.New(), Email: "pepe.rone@example.com", IsActive: true}

	// first redemption consumes the token, second matches no row
	users.On("ConsumeResetTokenTx", mock.Anything, mock.Anything, challenge.Digest, mock.Anything, mock.Anything).
		Return(user, nil).Once()
	users.On("ConsumeResetTokenTx", mock.Anything, mock.Anything, challenge.Digest, mock.Anything, mock.Anything).
		Return(nil, repository.NewRecordNotFound()).Once()
	mailer.On("SendResetConfirmation", mock.Anything, user).Return(nil).Once()

	handler := auth.NewFinalizePasswordResetHandler(repo, mailer).WithLogger(testLogger{})

	msg := auth.FinalizePasswordResetMessage{
		Token:           challenge.Token,
		Password:        "NewSecret123",
		PasswordConfirm: "NewSecret123",
	}

	require.NoError(t, handler.Execute(ctx, msg))

	err = handler.Execute(ctx, msg)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, auth.TextCodeTokenInvalidOrExpired, richErr.TextCode)

	users.AssertExpectations(t)
}

func TestFinalizePasswordResetWeakPassword(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	handler := auth.NewFinalizePasswordResetHandler(&stubRepo{users: users}, &MockMailer{}).
		WithLogger(testLogger{})

	err := handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:           "some-token",
		Password:        "weak",
		PasswordConfirm: "weak",
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "WEAK_PASSWORD", richErr.TextCode)

	users.AssertNotCalled(t, "ConsumeResetTokenTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFinalizePasswordResetConfirmMismatch(t *testing.T) {
	ctx := context.Background()
	handler := auth.NewFinalizePasswordResetHandler(&stubRepo{users: &MockUsers{}}, &MockMailer{}).
		WithLogger(testLogger{})

	err := handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:           "some-token",
		Password:        "NewSecret123",
		PasswordConfirm: "Different123",
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "PASSWORD_MISMATCH", richErr.TextCode)
}

func TestResetConsumeSQLGuardsExpiry(t *testing.T) {
	assert.Contains(t, auth.ConsumeResetTokenSQL, `"reset_token" = ?`)
	assert.Contains(t, auth.ConsumeResetTokenSQL, `"reset_expires_at" > ?`)
	assert.Contains(t, auth.ConsumeResetTokenSQL, "RETURNING")
}
