package share

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrWrongPassword is returned when a share password does not match.
var ErrWrongPassword = errors.New("wrong share password")

// HashPassword hashes an optional share-link password.
func HashPassword(password string) (string, error) {
	if len(password) < 4 {
		return "", errors.New("share password must be at least 4 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a candidate against the stored hash. An empty stored
// hash means the link is not password protected.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}
