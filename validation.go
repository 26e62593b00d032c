package auth

import (
	"errors"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

// MinPasswordLength is the floor for new passwords set through reset or signup
var MinPasswordLength = 6

// ValidatePasswordStrength enforces the password policy: minimum length plus
// at least one uppercase letter, one lowercase letter, and one digit.
func ValidatePasswordStrength(value any) error {
	s, _ := value.(string)

	if len(s) < MinPasswordLength {
		return errors.New("password is too short")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("password must contain upper and lower case letters and a number")
	}

	return nil
}

// PasswordStrengthRule exposes the password policy as an ozzo rule
func PasswordStrengthRule() validation.Rule {
	return validation.By(ValidatePasswordStrength)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
