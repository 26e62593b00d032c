package auth_test

import (
	"context"
	"testing"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auth "github.com/syntra/go-auth"
	"github.com/uptrace/bun"
)

// memoryUsers is an in-memory stand-in for the users table, enough to drive
// the full signup, verification, and login flow end to end.
type memoryUsers struct {
	auth.Users
	records map[string]*auth.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{records: map[string]*auth.User{}}
}

func (m *memoryUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*auth.User, error) {
	for _, u := range m.records {
		if u.Email == auth.NormalizeEmail(email) {
			return u, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (m *memoryUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	if u, ok := m.records[identifier]; ok {
		return u, nil
	}
	user, err := m.GetByEmailTx(ctx, nil, identifier)
	if err != nil {
		return nil, auth.ErrIdentityNotFound
	}
	return user, nil
}

func (m *memoryUsers) CreateTx(ctx context.Context, tx bun.IDB, record *auth.User, criteria ...repository.InsertCriteria) (*auth.User, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Email = auth.NormalizeEmail(record.Email)
	m.records[record.ID.String()] = record
	return record, nil
}

func (m *memoryUsers) UpdateTx(ctx context.Context, tx bun.IDB, record *auth.User, criteria ...repository.UpdateCriteria) (*auth.User, error) {
	m.records[record.ID.String()] = record
	return record, nil
}

func (m *memoryUsers) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, digest string, now time.Time) (*auth.User, error) {
	for _, u := range m.records {
		if u.VerificationToken == digest && u.VerificationExpiry != nil && u.VerificationExpiry.After(now) {
			u.EmailVerified = true
			u.ClearVerificationChallenge()
			return u, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (m *memoryUsers) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, digest, passwordHash string, now time.Time) (*auth.User, error) {
	for _, u := range m.records {
		if u.ResetToken == digest && u.ResetExpiry != nil && u.ResetExpiry.After(now) {
			u.PasswordHash = passwordHash
			u.ClearResetChallenge()
			return u, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

// captureMailer records the tokens handed to the dispatcher.
type captureMailer struct {
	verificationToken string
	resetToken        string
}

func (c *captureMailer) SendVerification(ctx context.Context, user *auth.User, token string) error {
	c.verificationToken = token
	return nil
}

func (c *captureMailer) SendResetRequest(ctx context.Context, user *auth.User, token string) error {
	c.resetToken = token
	return nil
}

func (c *captureMailer) SendResetConfirmation(ctx context.Context, user *auth.User) error {
	return nil
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	ctx := context.Background()
	users := newMemoryUsers()
	repo := &stubRepo{users: users}
	mailer := &captureMailer{}

	var signedUp *auth.User
	signup := auth.NewSignupHandler(repo, mailer).WithLogger(testLogger{})
	err := signup.Execute(ctx, auth.SignupMessage{
		Name:     "Pepe Rone",
		Email:    "Pepe.Rone@Example.com",
		Password: "Secret123",
		OnResponse: func(r *auth.SignupResponse) {
			signedUp = r.User
		},
	})
	require.NoError(t, err)
	require.NotNil(t, signedUp)
	assert.False(t, signedUp.EmailVerified)
	assert.Equal(t, "pepe.rone@example.com", signedUp.Email)
	require.NotEmpty(t, mailer.verificationToken)

	var verified *auth.User
	verify := auth.NewVerifyEmailHandler(repo).WithLogger(testLogger{})
	err = verify.Execute(ctx, auth.VerifyEmailMessage{
		Token: mailer.verificationToken,
		OnResponse: func(r *auth.VerifyEmailResponse) {
			verified = r.User
		},
	})
	require.NoError(t, err)
	require.NotNil(t, verified)
	assert.True(t, verified.EmailVerified)
	assert.Equal(t, signedUp.ID, verified.ID)

	// the mailed link is single use
	err = verify.Execute(ctx, auth.VerifyEmailMessage{Token: mailer.verificationToken})
	assert.Error(t, err)

	provider := auth.NewUserProvider(users).WithLogger(testLogger{})
	auther := auth.NewAuthenticator(provider, newMockConfig()).WithLogger(testLogger{})

	token, err := auther.Login(ctx, "pepe.rone@example.com", "Secret123")
	require.NoError(t, err)

	claims, err := auther.TokenService().Validate(token)
	require.NoError(t, err)
	assert.Equal(t, signedUp.ID.String(), claims.UserID())
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	users := newMemoryUsers()
	repo := &stubRepo{users: users}
	mailer := &captureMailer{}

	var signedUp *auth.User
	signup := auth.NewSignupHandler(repo, mailer).WithLogger(testLogger{})
	err := signup.Execute(ctx, auth.SignupMessage{
		Name:     "Pepe Rone",
		Email:    "pepe.rone@example.com",
		Password: "Secret123",
		OnResponse: func(r *auth.SignupResponse) {
			signedUp = r.User
		},
	})
	require.NoError(t, err)

	initialize := auth.NewInitializePasswordResetHandler(repo, mailer).WithLogger(testLogger{})
	err = initialize.Execute(ctx, auth.InitializePasswordResetMessage{Email: signedUp.Email})
	require.NoError(t, err)
	require.NotEmpty(t, mailer.resetToken)

	finalize := auth.NewFinalizePasswordResetHandler(repo, mailer).WithLogger(testLogger{})
	msg := auth.FinalizePasswordResetMessage{
		Token:           mailer.resetToken,
		Password:        "Changed456",
		PasswordConfirm: "Changed456",
	}
	require.NoError(t, finalize.Execute(ctx, msg))

	// redeemed tokens stay redeemed
	err = finalize.Execute(ctx, msg)
	assert.Error(t, err)

	provider := auth.NewUserProvider(users).WithLogger(testLogger{})
	auther := auth.NewAuthenticator(provider, newMockConfig()).WithLogger(testLogger{})

	_, err = auther.Login(ctx, signedUp.Email, "Secret123")
	assert.Error(t, err)

	token, err := auther.Login(ctx, signedUp.Email, "Changed456")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}
