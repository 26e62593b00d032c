package auth

// TokenValidator validates a raw session token and returns its claims.
// TokenService satisfies it; external issuers plug in through
// Auther.WithTokenValidator.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// RotationValidator accepts sessions signed with the current key and falls
// back to the keys it replaced. Rotating the signing secret then keeps live
// sessions valid until they expire on their own.
//
// A signature minted under a retired key fails the current validator as
// malformed, which is the cue to try the next key. Expiry errors stop the
// chain, re-signing cannot revive a dead session.
type RotationValidator struct {
	current TokenValidator
	retired []TokenValidator
}

// NewRotationValidator builds a validator for the current key plus the
// retired keys still honored. Nil entries are dropped.
func NewRotationValidator(current TokenValidator, retired ...TokenValidator) *RotationValidator {
	kept := make([]TokenValidator, 0, len(retired))
	for _, v := range retired {
		if v != nil {
			kept = append(kept, v)
		}
	}
	return &RotationValidator{current: current, retired: kept}
}

// Validate satisfies the TokenValidator interface.
func (r *RotationValidator) Validate(tokenString string) (AuthClaims, error) {
	if r.current == nil {
		return nil, ErrUnableToDecodeSession
	}

	claims, err := r.current.Validate(tokenString)
	if err == nil {
		return claims, nil
	}
	if !IsMalformedError(err) {
		return nil, err
	}

	for _, v := range r.retired {
		claims, verr := v.Validate(tokenString)
		if verr == nil {
			return claims, nil
		}
		if !IsMalformedError(verr) {
			return nil, verr
		}
	}

	return nil, err
}
