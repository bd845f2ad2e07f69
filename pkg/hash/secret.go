package hash

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is used for client secrets stored in configuration.
const DefaultCost = 12

const minSecretLength = 12

var ErrSecretMismatch = errors.New("secret does not match")

func HashSecret(secret string) (string, error) {
	return HashSecretWithCost(secret, DefaultCost)
}

func HashSecretWithCost(secret string, cost int) (string, error) {
	if len(secret) < minSecretLength {
		return "", fmt.Errorf("secret must be at least %d characters", minSecretLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}

	return string(hashed), nil
}

// VerifySecret reports ErrSecretMismatch for a wrong secret and a wrapped
// error when hashedSecret is not a bcrypt hash.
func VerifySecret(hashedSecret, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedSecret), []byte(secret))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrSecretMismatch
	default:
		return fmt.Errorf("invalid secret hash: %w", err)
	}
}
