package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
)

// ChallengeTTL is how long email verification and password reset tokens stay
// redeemable
const ChallengeTTL = time.Hour

// challengeTokenBytes of entropy per token; hex doubles it on the wire
const challengeTokenBytes = 32

// Challenge is a single-use, expiring proof sent to a user out of band. The
// plaintext token travels in the email link; only the digest is persisted, so
// a leaked database row cannot be replayed.
type Challenge struct {
	Token     string
	Digest    string
	ExpiresAt time.Time
}

// NewChallenge mints a fresh challenge expiring ChallengeTTL from now
func NewChallenge() (*Challenge, error) {
	return NewChallengeAt(time.Now())
}

// NewChallengeAt mints a challenge anchored at the given time, used by tests
// to pin expiries
func NewChallengeAt(now time.Time) (*Challenge, error) {
	buf := make([]byte, challengeTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate challenge token")
	}

	token := hex.EncodeToString(buf)

	return &Challenge{
		Token:     token,
		Digest:    DigestChallengeToken(token),
		ExpiresAt: now.Add(ChallengeTTL),
	}, nil
}

// DigestChallengeToken maps a plaintext token to its stored form. Lookups
// digest the presented token and compare digests, never plaintext.
func DigestChallengeToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
