package auth_test

import (
	"context"
	"database/sql"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/mock"
	auth "github.com/syntra/go-auth"
	"github.com/uptrace/bun"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// testIdentity implements auth.Identity
type testIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (t testIdentity) ID() string       { return t.id }
func (t testIdentity) Username() string { return t.username }
func (t testIdentity) Email() string    { return t.email }
func (t testIdentity) Role() string     { return t.role }

// stubRepo implements auth.RepositoryManager. RunInTx executes the body
// against a zero-value bun.Tx so transaction errors propagate unchanged.
type stubRepo struct {
	users auth.Users
}

func (s *stubRepo) Validate() error   { return nil }
func (s *stubRepo) MustValidate()     {}
func (s *stubRepo) Users() auth.Users { return s.users }

func (s *stubRepo) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// MockUsers implements the subset of auth.Users the command handlers touch.
// The embedded interface covers the rest; calling an unstubbed method panics.
type MockUsers struct {
	mock.Mock
	auth.Users
}

func (m *MockUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*auth.User, error) {
	args := m.Called(ctx, tx, email)
	var user *auth.User
	if v := args.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, args.Error(1)
}

func (m *MockUsers) GetByGithubIDTx(ctx context.Context, tx bun.IDB, githubID string) (*auth.User, error) {
	args := m.Called(ctx, tx, githubID)
	var user *auth.User
	if v := args.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, args.Error(1)
}

// CreateTx echoes the inserted record when the expectation returns nil,
// mirroring what the real repository does.
func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *auth.User, criteria ...repository.InsertCriteria) (*auth.User, error) {
	args := m.Called(ctx, tx, record)
	if v := args.Get(0); v != nil {
		return v.(*auth.User), args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockUsers) Update(ctx context.Context, record *auth.User, criteria ...repository.UpdateCriteria) (*auth.User, error) {
	args := m.Called(ctx, record)
	if v := args.Get(0); v != nil {
		return v.(*auth.User), args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockUsers) UpdateTx(ctx context.Context, tx bun.IDB, record *auth.User, criteria ...repository.UpdateCriteria) (*auth.User, error) {
	args := m.Called(ctx, tx, record)
	if v := args.Get(0); v != nil {
		return v.(*auth.User), args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockUsers) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, digest string, now time.Time) (*auth.User, error) {
	args := m.Called(ctx, tx, digest, now)
	var user *auth.User
	if v := args.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, args.Error(1)
}

func (m *MockUsers) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, digest, passwordHash string, now time.Time) (*auth.User, error) {
	args := m.Called(ctx, tx, digest, passwordHash, now)
	var user *auth.User
	if v := args.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, args.Error(1)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockMailer implements auth.NotificationDispatcher
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendVerification(ctx context.Context, user *auth.User, token string) error {
	args := m.Called(ctx, user, token)
	return args.Error(0)
}

func (m *MockMailer) SendResetRequest(ctx context.Context, user *auth.User, token string) error {
	args := m.Called(ctx, user, token)
	return args.Error(0)
}

func (m *MockMailer) SendResetConfirmation(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockUserStore implements auth.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	var user *auth.User
	if v := args.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, args.Error(1)
}

// MockIdentityProvider implements auth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (auth.Identity, error) {
	args := m.Called(ctx, identifier, password)
	var identity auth.Identity
	if v := args.Get(0); v != nil {
		identity = v.(auth.Identity)
	}
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (auth.Identity, error) {
	args := m.Called(ctx, identifier)
	var identity auth.Identity
	if v := args.Get(0); v != nil {
		identity = v.(auth.Identity)
	}
	return identity, args.Error(1)
}

// mockConfig implements auth.Config
type mockConfig struct {
	signingKey      string
	tokenExpiration int
	issuer          string
	audience        []string
}

func newMockConfig() *mockConfig {
	return &mockConfig{
		signingKey:      "test-signing-key",
		tokenExpiration: 1,
		issuer:          "test-issuer",
		audience:        []string{"test-audience"},
	}
}

func (c *mockConfig) GetSigningKey() string           { return c.signingKey }
func (c *mockConfig) GetSigningMethod() string        { return "HS256" }
func (c *mockConfig) GetContextKey() string           { return "user" }
func (c *mockConfig) GetTokenExpiration() int         { return c.tokenExpiration }
func (c *mockConfig) GetExtendedTokenDuration() int   { return c.tokenExpiration * 4 }
func (c *mockConfig) GetTokenLookup() string          { return "cookie:user" }
func (c *mockConfig) GetAuthScheme() string           { return "Bearer" }
func (c *mockConfig) GetIssuer() string               { return c.issuer }
func (c *mockConfig) GetAudience() []string           { return c.audience }
func (c *mockConfig) GetRejectedRouteKey() string     { return "rejected" }
func (c *mockConfig) GetRejectedRouteDefault() string { return "/login" }
