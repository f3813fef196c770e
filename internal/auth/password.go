package auth

import (
	"errors"
	"unicode/utf8"

	"github.com/example/ec-backoffice/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort = apperr.Validation("PASSWORD_TOO_SHORT", "password must be at least 8 characters")
	ErrPasswordTooLong  = apperr.Validation("PASSWORD_TOO_LONG", "password must be at most 72 bytes")
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// HashPassword hashes a member password with bcrypt. The minimum length is
// counted in characters; bcrypt itself caps the input at 72 bytes.
func HashPassword(password string) (string, error) {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword reports whether password matches a stored hash. A malformed
// hash never matches.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
