package auth

import (
	"sync"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// hashing cost, matched to what the original accounts were created with so
// existing hashes keep verifying
var (
	bcryptCost   = 10
	bcryptCostMu sync.RWMutex
)

// SetBcryptCost overrides the hashing cost. Values outside bcrypt's supported
// range are ignored.
func SetBcryptCost(cost int) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return
	}
	bcryptCostMu.Lock()
	bcryptCost = cost
	bcryptCostMu.Unlock()
}

// BcryptCost returns the cost used for new hashes
func BcryptCost() int {
	bcryptCostMu.RLock()
	defer bcryptCostMu.RUnlock()
	return bcryptCost
}

// HashPassword hashes a plaintext password for storage. Empty plaintext is
// rejected before it reaches bcrypt.
func HashPassword(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrNoEmptyString
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), BcryptCost())
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	return string(hash), nil
}

// ComparePasswordAndHash checks a plaintext password against a stored hash.
// An empty stored hash (OAuth-only identities) never matches; we still return
// the generic credential error so the caller leaks nothing.
func ComparePasswordAndHash(hash, plaintext string) error {
	if hash == "" || plaintext == "" {
		return ErrMismatchedHashAndPassword
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		return ErrMismatchedHashAndPassword
	}

	return nil
}
