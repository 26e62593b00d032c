package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleLearner is the default role assigned at signup
	RoleLearner UserRole = "learner"
	// RoleTeam is a team-lead account
	RoleTeam UserRole = "team"
	// RoleEmployer is an employer account
	RoleEmployer UserRole = "employer"
	// RoleAdmin is an administrative account; it can never be self-assigned
	RoleAdmin UserRole = "admin"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role          UserRole  `bun:"user_role,notnull" json:"role,omitempty"`
	Name          string    `bun:"name,notnull" json:"name,omitempty"`
	Email         string    `bun:"email,notnull,unique" json:"email,omitempty"`
	AvatarURL     string    `bun:"avatar_url,nullzero" json:"avatar_url,omitempty"`
	// GithubID is sparse: most accounts have none, but it is unique when set.
	GithubID      string `bun:"github_id,nullzero,unique" json:"github_id,omitempty"`
	IsActive      bool   `bun:"is_active,notnull" json:"is_active"`
	EmailVerified bool   `bun:"is_email_verified,notnull" json:"email_verified"`

	// Secret material. Only challenge digests are stored, never raw tokens,
	// and none of these fields survive JSON serialization.
	PasswordHash       string     `bun:"password_hash,nullzero" json:"-"`
	VerificationToken  string     `bun:"verification_token,nullzero" json:"-"`
	VerificationExpiry *time.Time `bun:"verification_expires_at,nullzero" json:"-"`
	ResetToken         string     `bun:"reset_token,nullzero" json:"-"`
	ResetExpiry        *time.Time `bun:"reset_expires_at,nullzero" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// HasLocalPassword reports whether the account can authenticate with a
// password. OAuth-created accounts carry no hash until they set one.
func (u *User) HasLocalPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// HasPendingVerification reports whether an unexpired verification challenge
// is attached to the account.
func (u *User) HasPendingVerification(now time.Time) bool {
	if u == nil || u.VerificationToken == "" || u.VerificationExpiry == nil {
		return false
	}
	return u.VerificationExpiry.After(now)
}

// HasPendingReset reports whether an unexpired reset challenge is attached.
func (u *User) HasPendingReset(now time.Time) bool {
	if u == nil || u.ResetToken == "" || u.ResetExpiry == nil {
		return false
	}
	return u.ResetExpiry.After(now)
}

// SetVerificationChallenge attaches a verification digest and its expiry.
func (u *User) SetVerificationChallenge(digest string, expiresAt time.Time) *User {
	u.VerificationToken = digest
	u.VerificationExpiry = &expiresAt
	return u
}

// ClearVerificationChallenge removes any pending verification challenge.
func (u *User) ClearVerificationChallenge() *User {
	u.VerificationToken = ""
	u.VerificationExpiry = nil
	return u
}

// SetResetChallenge attaches a reset digest and its expiry.
func (u *User) SetResetChallenge(digest string, expiresAt time.Time) *User {
	u.ResetToken = digest
	u.ResetExpiry = &expiresAt
	return u
}

// ClearResetChallenge removes any pending reset challenge.
func (u *User) ClearResetChallenge() *User {
	u.ResetToken = ""
	u.ResetExpiry = nil
	return u
}
