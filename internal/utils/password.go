package utils

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at registration and
// reset.
const MinPasswordLength = 8

// ErrWeakPassword describes the password policy.
var ErrWeakPassword = errors.New("password must be at least 8 characters and contain an uppercase letter, a lowercase letter and a digit")

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// DummyHash returns a hash of a random password at the given cost.  It is
// compared against when no account matches a login so that both outcomes
// spend one bcrypt comparison of the same cost.
func DummyHash(cost int) (string, error) {
	secret, err := NewOTP()
	if err != nil {
		return "", err
	}
	return HashPassword("unmatched-"+secret, cost)
}

// ValidatePasswordStrength enforces the minimum length and the
// upper/lower/digit character classes.
func ValidatePasswordStrength(plain string) error {
	if len(plain) < MinPasswordLength {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}
