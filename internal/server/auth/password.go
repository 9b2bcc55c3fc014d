package auth

import (
	"errors"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

const PasswordTooLongMessage = "Password must be at most 72 bytes"

// HashPassword returns a bcrypt digest of password at the given cost.
// Passwords over MaxPasswordBytes fail validation.
func HashPassword(password string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", common.NewValidationError("password", PasswordTooLongMessage)
		}
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether password matches digest.
func CheckPassword(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
