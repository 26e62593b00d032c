package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	auth "github.com/syntra/go-auth"
)

func TestJWTClaimsAccessors(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := issued.Add(time.Hour)

	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "subject-id",
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UID:      "user-id",
		UserRole: auth.RoleLearner,
	}

	assert.Equal(t, "subject-id", claims.Subject())
	assert.Equal(t, "user-id", claims.UserID())
	assert.Equal(t, auth.RoleLearner, claims.Role())
	assert.True(t, claims.HasRole(auth.RoleLearner))
	assert.False(t, claims.HasRole(auth.RoleAdmin))
	assert.True(t, claims.Expires().Equal(expires))
	assert.True(t, claims.IssuedAt().Equal(issued))
}

func TestJWTClaimsUserIDFallsBackToSubject(t *testing.T) {
	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "subject-id"},
	}
	assert.Equal(t, "subject-id", claims.UserID())
}

func TestJWTClaimsZeroTimes(t *testing.T) {
	claims := &auth.JWTClaims{}
	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())
}
