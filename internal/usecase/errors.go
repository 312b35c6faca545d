package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/wizlearn/account-service/internal/core/domain"
)

// ErrorKind classifies usecase failures for transport mapping.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindConflict            ErrorKind = "conflict"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindBadRequest          ErrorKind = "bad_request"
	KindEmailDeliveryFailed ErrorKind = "email_delivery_failed"
	KindInternal            ErrorKind = "internal"
)

var (
	// ErrAccountNotFound indicates no account matched the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrPendingRegistrationNotFound indicates resend was called without a staged registration.
	ErrPendingRegistrationNotFound = errors.New("no pending registration")

	// ErrEmailTaken indicates the email is already registered for the role.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPhoneTaken indicates the phone number is already registered for the role.
	ErrPhoneTaken = errors.New("phone number already registered")
	// ErrInvalidStatusTransition indicates the account is not in a state that allows the change.
	ErrInvalidStatusTransition = errors.New("invalid account status transition")

	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrPasswordMismatch       = errors.New("password mismatch")
	ErrAccountLocked          = errors.New("account is locked")
	ErrAccountPendingApproval = errors.New("account pending approval")
	ErrAccountDeactivated     = errors.New("account is deactivated")
	ErrAccountSuspended       = errors.New("account is suspended")
	ErrAccountDeleted         = errors.New("account has been deleted")
	ErrAccountNotActive       = errors.New("account is not active")

	ErrInvalidInput            = errors.New("invalid input")
	ErrUnsupportedRole         = errors.New("unsupported role")
	ErrInvalidStatus           = errors.New("invalid account status")
	ErrPasswordPolicyViolation = errors.New("password does not meet policy")
	ErrRegistrationDataMissing = errors.New("registration data missing")
	ErrOTPExpired              = errors.New("OTP expired")
	ErrOTPInvalid              = errors.New("invalid OTP")
	ErrPasswordReuse           = errors.New("cannot reuse current password")
	ErrResetNotVerified        = errors.New("OTP not verified")

	// ErrEmailDeliveryFailed indicates the mailer could not dispatch a message. Retryable.
	ErrEmailDeliveryFailed = errors.New("failed to send email, try again")
)

var errorKinds = []struct {
	kind ErrorKind
	errs []error
}{
	{KindEmailDeliveryFailed, []error{ErrEmailDeliveryFailed}},
	{KindNotFound, []error{ErrAccountNotFound, ErrPendingRegistrationNotFound}},
	{KindConflict, []error{ErrEmailTaken, ErrPhoneTaken, ErrInvalidStatusTransition}},
	{KindUnauthorized, []error{
		ErrInvalidCredentials, ErrPasswordMismatch, ErrAccountLocked,
		ErrAccountPendingApproval, ErrAccountDeactivated, ErrAccountSuspended,
		ErrAccountDeleted, ErrAccountNotActive,
	}},
	{KindBadRequest, []error{
		ErrInvalidInput, ErrUnsupportedRole, ErrInvalidStatus, ErrPasswordPolicyViolation,
		ErrRegistrationDataMissing, ErrOTPExpired, ErrOTPInvalid, ErrPasswordReuse,
		ErrResetNotVerified,
	}},
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, group := range errorKinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}

// AccountLockedError carries the time the lock expires.
type AccountLockedError struct {
	UnlockAt time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is locked until %s", e.UnlockAt.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Unwrap() error { return ErrAccountLocked }

// DeliveryError records which flow failed to dispatch its email.
type DeliveryError struct {
	Purpose domain.ChallengePurpose
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("send %s email: %v", e.Purpose, e.Err)
}

func (e *DeliveryError) Unwrap() []error { return []error{ErrEmailDeliveryFailed, e.Err} }

// statusError maps a non-active status to its login failure.
func statusError(status domain.AccountStatus) error {
	switch status {
	case domain.AccountStatusActive:
		return nil
	case domain.AccountStatusPending:
		return ErrAccountPendingApproval
	case domain.AccountStatusDeactive:
		return ErrAccountDeactivated
	case domain.AccountStatusSuspended:
		return ErrAccountSuspended
	case domain.AccountStatusDeleted:
		return ErrAccountDeleted
	}
	return ErrAccountNotActive
}
