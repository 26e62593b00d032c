package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCreds marks credential failures; a wrong password and an
	// unknown email carry the exact same code so accounts cannot be enumerated.
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeAccountDisabled marks login attempts against deactivated accounts
	TextCodeAccountDisabled = "ACCOUNT_DISABLED"
	// TextCodeTokenInvalidOrExpired collapses forged and expired challenge
	// tokens into one observable case
	TextCodeTokenInvalidOrExpired = "TOKEN_INVALID_OR_EXPIRED"
	// TextCodeEmailInUse marks signup conflicts
	TextCodeEmailInUse = "EMAIL_IN_USE"
	// TextCodeEmptyPassword rejects empty plaintext before hashing
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	// TextCodeTokenExpired marks expired session tokens
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed marks undecodable session tokens
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeSessionNotFound marks requests that carry no session cookie
	TextCodeSessionNotFound = "SESSION_NOT_FOUND"
	// TextCodeSessionDecodeError marks sessions we could not decode
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	// TextCodeClaimsMappingError marks claims we could not map
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	// TextCodeDataParseError marks payloads we could not parse
	TextCodeDataParseError = "DATA_PARSE_ERROR"
	// TextCodeMailDelivery marks notification dispatch failures
	TextCodeMailDelivery = "MAIL_DELIVERY_FAILED"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is the single credential failure: unknown
// email, OAuth-only account, and wrong password are indistinguishable.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrAccountDisabled is returned when a deactivated account presents valid
// credentials. Deliberately distinguishable from ErrMismatchedHashAndPassword.
var ErrAccountDisabled = errors.New("account is disabled", errors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(errors.CodeForbidden)

// ErrEmailInUse is returned when a signup collides with an existing account.
// The message does not reveal whether the existing account is password or
// OAuth based.
var ErrEmailInUse = errors.New("email already in use", errors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(errors.CodeConflict)

// ErrInvalidOrExpiredToken covers verification/reset challenges that do not
// match any record or are past their expiry
var ErrInvalidOrExpiredToken = errors.New("invalid or expired token", errors.CategoryValidation).
	WithTextCode(TextCodeTokenInvalidOrExpired).
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString rejects empty passwords before they reach bcrypt
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned for session tokens past their expiry
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for session tokens that fail signature or
// structural checks
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput).
	WithTextCode(TextCodeDataParseError).
	WithCode(errors.CodeBadRequest)

// ErrMailDeliveryFailed is surfaced when a notification email could not be
// handed to the transport
var ErrMailDeliveryFailed = errors.New("failed to send notification email", errors.CategoryInternal).
	WithTextCode(TextCodeMailDelivery).
	WithCode(errors.CodeInternal)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
