package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// BcryptVerifier checks passwords against bcrypt hashes.
type BcryptVerifier struct{}

// NewBcryptVerifier creates a new password verifier
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

// VerifyPassword compares a plaintext password with its stored hash. A
// mismatch is a normal outcome, not an error.
func (v *BcryptVerifier) VerifyPassword(hashedPassword, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
