package utils

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// ErrWeakPassword is returned by ValidatePassword.
var ErrWeakPassword = errors.New("password must be 8-72 bytes")

// ValidatePassword enforces the length bcrypt can hash.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 || len(password) > 72 {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword returns the bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares the bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
