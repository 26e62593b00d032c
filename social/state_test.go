package social_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntra/go-auth/social"
)

func newTestStateManager() *social.EncryptedStateManager {
	encKey := make([]byte, 32)
	macKey := make([]byte, 32)
	copy(encKey, "0123456789abcdef0123456789abcdef")
	copy(macKey, "fedcba9876543210fedcba9876543210")
	return social.NewEncryptedStateManager(encKey, macKey, 10*time.Minute)
}

func TestStateManagerRoundTrip(t *testing.T) {
	sm := newTestStateManager()

	state := &social.OAuthState{
		Provider:     "github",
		CodeVerifier: "verifier-value",
		RedirectURL:  "/dashboard",
	}

	token, err := sm.Encode(state)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	decoded, err := sm.Decode(token)
	require.NoError(t, err)

	assert.Equal(t, "github", decoded.Provider)
	assert.Equal(t, "verifier-value", decoded.CodeVerifier)
	assert.Equal(t, "/dashboard", decoded.RedirectURL)
	assert.NotEmpty(t, decoded.Nonce)
	assert.Greater(t, decoded.ExpiresAt, decoded.IssuedAt)
}

func TestStateManagerRejectsTampering(t *testing.T) {
	sm := newTestStateManager()

	token, err := sm.Encode(&social.OAuthState{Provider: "github"})
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(token)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.URLEncoding.EncodeToString(raw)

	_, err = sm.Decode(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, social.ErrInvalidState)
}

func TestStateManagerRejectsWrongHMACKey(t *testing.T) {
	sm := newTestStateManager()

	token, err := sm.Encode(&social.OAuthState{Provider: "github"})
	require.NoError(t, err)

	encKey := make([]byte, 32)
	otherMAC := make([]byte, 32)
	copy(encKey, "0123456789abcdef0123456789abcdef")
	other := social.NewEncryptedStateManager(encKey, otherMAC, 10*time.Minute)

	_, err = other.Decode(token)
	assert.ErrorIs(t, err, social.ErrInvalidState)
}

func TestStateManagerRejectsExpired(t *testing.T) {
	sm := newTestStateManager()

	state := &social.OAuthState{
		Provider:  "github",
		IssuedAt:  time.Now().Add(-time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-30 * time.Minute).Unix(),
	}

	token, err := sm.Encode(state)
	require.NoError(t, err)

	_, err = sm.Decode(token)
	assert.ErrorIs(t, err, social.ErrStateExpired)
}

func TestStateManagerRejectsGarbage(t *testing.T) {
	sm := newTestStateManager()

	_, err := sm.Decode("not base64 at all!!!")
	assert.Error(t, err)

	_, err = sm.Decode(base64.URLEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, social.ErrInvalidState)
}
