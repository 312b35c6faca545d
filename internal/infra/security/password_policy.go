package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/wizlearn/account-service/internal/core/port"
)

const (
	defaultMinPasswordLength = 8
	maxPasswordLength        = 128
	defaultMinZxcvbnScore    = 2
	maxZxcvbnScore           = 4
)

// PolicyViolation names the first password rule that failed.
type PolicyViolation struct {
	Code    string
	Message string
}

func (e *PolicyViolation) Error() string {
	return e.Message
}

// PasswordPolicy applies the service password rules, feeding account attributes
// (email, name, phone) to zxcvbn so derived passwords score low.
type PasswordPolicy struct {
	minLength int
	minScore  int
}

// NewPasswordPolicy builds a policy; non-positive arguments fall back to defaults.
// A zero minScore disables the strength check.
func NewPasswordPolicy(minLength, minScore int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	if minScore < 0 {
		minScore = defaultMinZxcvbnScore
	}
	return &PasswordPolicy{minLength: minLength, minScore: min(minScore, maxZxcvbnScore)}
}

// Validate checks password against the rules in order: length bounds, a letter, a
// digit, then the zxcvbn score.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	length := len([]rune(password))
	switch {
	case length < p.minLength:
		return violation("min_length", fmt.Sprintf("password must be at least %d characters long", p.minLength))
	case length > maxPasswordLength:
		return violation("max_length", fmt.Sprintf("password must be at most %d characters long", maxPasswordLength))
	case !strings.ContainsFunc(password, unicode.IsLetter):
		return violation("letter", "password must include at least one letter")
	case !strings.ContainsFunc(password, unicode.IsDigit):
		return violation("digit", "password must include at least one digit")
	}

	if p.minScore == 0 {
		return nil
	}
	inputs := make([]string, 0, len(userInputs))
	for _, input := range userInputs {
		if input = strings.TrimSpace(input); input != "" {
			inputs = append(inputs, input)
		}
	}
	if zxcvbn.PasswordStrength(password, inputs).Score < p.minScore {
		return violation("weak_password", "password is too weak; choose a more complex value")
	}
	return nil
}

func violation(code, message string) error {
	return &PolicyViolation{Code: code, Message: message}
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
