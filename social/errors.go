package social

import "github.com/goliatone/go-errors"

const (
	// TextCodeProviderNotFound indicates an unknown provider name in the route
	TextCodeProviderNotFound = "social_provider_not_found"
	// TextCodeInvalidState indicates the state parameter failed authentication
	TextCodeInvalidState = "social_invalid_state"
	// TextCodeStateExpired indicates the state parameter outlived its TTL
	TextCodeStateExpired = "social_state_expired"
	// TextCodeExchangeFailed indicates the code-for-token exchange failed
	TextCodeExchangeFailed = "social_token_exchange_failed"
	// TextCodeUserInfoFailed indicates the profile fetch failed
	TextCodeUserInfoFailed = "social_user_info_failed"
	// TextCodeProviderDenied indicates the provider returned an error callback
	TextCodeProviderDenied = "social_provider_denied"
)

// ErrProviderNotFound is returned when no provider matches the requested name.
var ErrProviderNotFound = errors.New("social provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state fails verification.
var ErrInvalidState = errors.New("invalid or tampered state parameter", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeUnauthorized)

// ErrStateExpired is returned when the OAuth state is past its TTL.
var ErrStateExpired = errors.New("state parameter has expired", errors.CategoryAuth).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExchangeFailed is returned when the provider rejects the code exchange.
var ErrTokenExchangeFailed = errors.New("failed to exchange authorization code", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFailed).
	WithCode(errors.CodeUnauthorized)

// ErrUserInfoFailed is returned when the provider profile fetch fails.
var ErrUserInfoFailed = errors.New("failed to fetch user profile from provider", errors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFailed).
	WithCode(errors.CodeUnauthorized)

// ErrProviderDenied is returned when the provider callback carries an error.
var ErrProviderDenied = errors.New("provider denied the authorization request", errors.CategoryAuth).
	WithTextCode(TextCodeProviderDenied).
	WithCode(errors.CodeUnauthorized)
