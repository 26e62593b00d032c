package social_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auth "github.com/syntra/go-auth"
	"github.com/syntra/go-auth/social"
)

// fakeProvider is a scriptable social.SocialProvider.
type fakeProvider struct {
	name     string
	token    *social.Token
	profile  *social.SocialProfile
	exchErr  error
	infoErr  error
	lastAuth social.AuthCodeConfig
	lastExch social.ExchangeConfig
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Scopes() []string { return []string{"user:email"} }

func (f *fakeProvider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	f.lastAuth = social.ApplyAuthCodeOptions(f.Scopes(), opts...)
	return "https://provider.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeProvider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	f.lastExch = social.ApplyExchangeOptions(opts...)
	if f.exchErr != nil {
		return nil, f.exchErr
	}
	return f.token, nil
}

func (f *fakeProvider) UserInfo(ctx context.Context, token *social.Token) (*social.SocialProfile, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.profile, nil
}

// fakeResolver returns a canned resolution.
type fakeResolver struct {
	result *social.ResolveResult
	err    error
}

func (f *fakeResolver) ResolveUser(ctx context.Context, profile *social.SocialProfile) (*social.ResolveResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testTokenService() auth.TokenService {
	return auth.NewTokenService([]byte("social-test-key"), 1, "test-issuer", jwt.ClaimStrings{"test"}, testLogger{})
}

func testSocialConfig() social.SocialAuthConfig {
	encKey := make([]byte, 32)
	macKey := make([]byte, 32)
	copy(encKey, "0123456789abcdef0123456789abcdef")
	copy(macKey, "fedcba9876543210fedcba9876543210")
	return social.SocialAuthConfig{
		BaseURL:            "https://app.example.com",
		DefaultRedirectURL: "/",
		StateEncryptionKey: encKey,
		StateHMACKey:       macKey,
		StateTTL:           10 * time.Minute,
	}
}

func newSocialAuth(provider social.SocialProvider, resolver social.UserResolver, opts ...social.SocialAuthOption) *social.SocialAuthenticator {
	base := []social.SocialAuthOption{
		social.WithProvider(provider),
		social.WithUserResolver(resolver),
	}
	return social.NewSocialAuthenticator(
		&stubRepo{users: &mockUsers{}},
		testTokenService(),
		testSocialConfig(),
		append(base, opts...)...,
	)
}

func TestBeginAuthIssuesPKCEState(t *testing.T) {
	provider := &fakeProvider{name: "github"}
	sa := newSocialAuth(provider, &fakeResolver{})

	redirect, err := sa.BeginAuth(context.Background(), "github", social.WithRedirectURL("/dashboard"))
	require.NoError(t, err)

	assert.Equal(t, "github", redirect.Provider)
	assert.Contains(t, redirect.URL, url.QueryEscape(redirect.State))

	// the provider saw an S256 challenge
	assert.Equal(t, "S256", provider.lastAuth.CodeChallengeMethod)
	assert.NotEmpty(t, provider.lastAuth.CodeChallenge)

	// the state round-trips through the manager used for callbacks
	sm := newTestStateManager()
	state, err := sm.Decode(redirect.State)
	require.NoError(t, err)
	assert.Equal(t, "github", state.Provider)
	assert.Equal(t, "/dashboard", state.RedirectURL)
	assert.NotEmpty(t, state.CodeVerifier)
}

func TestBeginAuthUnknownProvider(t *testing.T) {
	sa := newSocialAuth(&fakeProvider{name: "github"}, &fakeResolver{})

	_, err := sa.BeginAuth(context.Background(), "gitlab")
	require.Error(t, err)
	assert.ErrorIs(t, err, social.ErrProviderNotFound)
}

func TestCompleteAuthHappyPath(t *testing.T) {
	user := &auth.User{
		ID:       uuid.New(),
		Name:     "The Octocat",
		Email:    "octocat@example.com",
		GithubID: "583231",
		Role:     auth.RoleLearner,
		IsActive: true,
	}

	provider := &fakeProvider{
		name:    "github",
		token:   &social.Token{AccessToken: "gho_token", TokenType: "bearer"},
		profile: githubProfile(),
	}
	resolver := &fakeResolver{result: &social.ResolveResult{User: user, Resolution: social.ResolutionCreated}}
	sink := &recordingSink{}

	sa := newSocialAuth(provider, resolver, social.WithActivitySink(sink))

	redirect, err := sa.BeginAuth(context.Background(), "github", social.WithRedirectURL("/dashboard"))
	require.NoError(t, err)

	result, err := sa.CompleteAuth(context.Background(), "github", "auth-code", redirect.State)
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), result.User.ID())
	assert.Equal(t, social.ResolutionCreated, result.Resolution)
	assert.Equal(t, "/dashboard", result.RedirectURL)
	assert.NotEmpty(t, provider.lastExch.CodeVerifier)

	// the issued session token validates and names the resolved user
	claims, err := testTokenService().Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, auth.RoleLearner, claims.Role())

	require.Len(t, sink.events, 1)
	assert.Equal(t, auth.ActivityEventSocialLogin, sink.events[0].EventType)
	assert.Equal(t, "created", sink.events[0].Metadata["resolution"])
}

func TestCompleteAuthRejectsForgedState(t *testing.T) {
	sa := newSocialAuth(&fakeProvider{name: "github"}, &fakeResolver{})

	_, err := sa.CompleteAuth(context.Background(), "github", "code", "forged-state")
	require.Error(t, err)
	assert.ErrorIs(t, err, social.ErrInvalidState)
}

func TestCompleteAuthRejectsProviderMismatch(t *testing.T) {
	github := &fakeProvider{name: "github"}
	gitlab := &fakeProvider{name: "gitlab"}
	sa := newSocialAuth(github, &fakeResolver{}, social.WithProvider(gitlab))

	redirect, err := sa.BeginAuth(context.Background(), "github")
	require.NoError(t, err)

	// a state minted for github cannot complete a gitlab callback
	_, err = sa.CompleteAuth(context.Background(), "gitlab", "code", redirect.State)
	require.Error(t, err)
	assert.ErrorIs(t, err, social.ErrInvalidState)
}

func TestCompleteAuthExchangeFailure(t *testing.T) {
	provider := &fakeProvider{name: "github", exchErr: assert.AnError}
	sa := newSocialAuth(provider, &fakeResolver{})

	redirect, err := sa.BeginAuth(context.Background(), "github")
	require.NoError(t, err)

	_, err = sa.CompleteAuth(context.Background(), "github", "code", redirect.State)
	require.Error(t, err)
	assert.ErrorIs(t, err, social.ErrTokenExchangeFailed)
}

func TestCompleteAuthDisabledAccount(t *testing.T) {
	user := &auth.User{ID: uuid.New(), GithubID: "583231", IsActive: false}

	provider := &fakeProvider{
		name:    "github",
		token:   &social.Token{AccessToken: "gho_token"},
		profile: githubProfile(),
	}
	resolver := &fakeResolver{result: &social.ResolveResult{User: user, Resolution: social.ResolutionExisting}}

	sa := newSocialAuth(provider, resolver)

	redirect, err := sa.BeginAuth(context.Background(), "github")
	require.NoError(t, err)

	_, err = sa.CompleteAuth(context.Background(), "github", "code", redirect.State)
	require.Error(t, err)
	assert.Equal(t, auth.ErrAccountDisabled, err)
}

func TestListProviders(t *testing.T) {
	sa := newSocialAuth(&fakeProvider{name: "github"}, &fakeResolver{})

	providers := sa.ListProviders()
	require.Len(t, providers, 1)
	assert.Equal(t, "github", providers[0].Name)
	assert.Equal(t, []string{"user:email"}, providers[0].Scopes)
}

// recordingSink collects activity events.
type recordingSink struct {
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(ctx context.Context, event auth.ActivityEvent) error {
	r.events = append(r.events, event)
	return nil
}
