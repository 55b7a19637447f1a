package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when asked to hash an empty password.
var ErrEmptyPassword = errors.New("empty password")

// BcryptEncoder hashes and compares passwords with bcrypt.
type BcryptEncoder struct {
	cost int
}

// NewBcryptEncoder uses bcrypt.DefaultCost when cost is out of range.
func NewBcryptEncoder(cost int) *BcryptEncoder {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptEncoder{cost: cost}
}

// Encode hashes password.
func (e *BcryptEncoder) Encode(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), e.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Matches reports whether password hashes to hash. Comparison time does not
// depend on where the inputs differ.
func (e *BcryptEncoder) Matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
