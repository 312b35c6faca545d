package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChallengePurpose names the flow a cached challenge belongs to.
type ChallengePurpose string

const (
	PurposeRegistrationData ChallengePurpose = "registration_data"
	PurposeRegistrationOTP  ChallengePurpose = "registration_otp"
	PurposeAdminLogin       ChallengePurpose = "admin_login"
	PurposePasswordReset    ChallengePurpose = "password_reset"
)

// ChallengeKey addresses a single cache entry. Purpose, role and email together
// identify exactly one live challenge.
type ChallengeKey struct {
	Purpose ChallengePurpose
	Role    Role
	Email   string
}

// RegistrationDataKey addresses the staged registration payload.
func RegistrationDataKey(role Role, email string) ChallengeKey {
	return ChallengeKey{Purpose: PurposeRegistrationData, Role: role, Email: NormalizeEmail(email)}
}

// RegistrationOTPKey addresses the registration OTP.
func RegistrationOTPKey(role Role, email string) ChallengeKey {
	return ChallengeKey{Purpose: PurposeRegistrationOTP, Role: role, Email: NormalizeEmail(email)}
}

// AdminLoginKey addresses the second-factor challenge of the admin login. ADMIN and
// STAFF share one namespace since the login id is resolved across both roles.
func AdminLoginKey(email string) ChallengeKey {
	return ChallengeKey{Purpose: PurposeAdminLogin, Email: NormalizeEmail(email)}
}

// PasswordResetKey addresses the forgot-password OTP for one role.
func PasswordResetKey(role Role, email string) ChallengeKey {
	return ChallengeKey{Purpose: PurposePasswordReset, Role: role, Email: NormalizeEmail(email)}
}

// String renders the key without any deployment prefix.
func (k ChallengeKey) String() string {
	if k.Purpose == PurposeAdminLogin {
		return fmt.Sprintf("%s_%s", k.Purpose, k.Email)
	}
	return fmt.Sprintf("%s_%s_%s", k.Role.Slug(), k.Purpose, k.Email)
}

// Validate rejects keys that cannot address a challenge.
func (k ChallengeKey) Validate() error {
	if strings.TrimSpace(k.Email) == "" {
		return fmt.Errorf("challenge key: email required")
	}
	switch k.Purpose {
	case PurposeAdminLogin:
		return nil
	case PurposeRegistrationData, PurposeRegistrationOTP, PurposePasswordReset:
		if !k.Role.SelfService() {
			return fmt.Errorf("challenge key: role %q not allowed for %s", k.Role, k.Purpose)
		}
		return nil
	}
	return fmt.Errorf("challenge key: unknown purpose %q", k.Purpose)
}

// OTPChallenge is the cached one-time passcode together with its flow payload.
type OTPChallenge struct {
	Code      string    `json:"otp"`
	AccountID string    `json:"account_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified,omitempty"`
}

// Remaining returns how long the challenge stays valid after at.
func (c OTPChallenge) Remaining(at time.Time) time.Duration {
	return c.ExpiresAt.Sub(at)
}

// PendingRegistration is the staged, not-yet-persisted registration.
type PendingRegistration struct {
	Role         Role      `json:"role"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PhoneNumber  string    `json:"phone_number"`
	PasswordHash string    `json:"password_hash"`
	StagedAt     time.Time `json:"staged_at"`
}
