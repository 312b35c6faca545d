package port

import (
	"context"

	"github.com/wizlearn/account-service/internal/core/domain"
)

// PasswordPolicyValidator enforces password strength requirements. userInputs are
// account attributes the password should not be derived from.
type PasswordPolicyValidator interface {
	Validate(password string, userInputs ...string) error
}

// Argon2Params captures tunable parameters for the Argon2id hashing algorithm.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// TokenIssuer mints bearer credentials bound to an account.
type TokenIssuer interface {
	Mint(ctx context.Context, account domain.Account) (string, error)
}
