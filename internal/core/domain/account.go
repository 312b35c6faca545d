package domain

import (
	"strings"
	"time"
)

// Role identifies which side of the marketplace an account belongs to.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleStaff Role = "STAFF"
	RoleUser  Role = "USER"
	RoleTutor Role = "TUTOR"
)

// ParseRole accepts the lower-case route form ("user", "tutor") as well as the stored form.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleStaff:
		return RoleStaff, true
	case RoleUser:
		return RoleUser, true
	case RoleTutor:
		return RoleTutor, true
	}
	return "", false
}

// SelfService reports whether accounts of this role can register themselves.
func (r Role) SelfService() bool {
	return r == RoleUser || r == RoleTutor
}

// Slug is the lower-case form used in cache keys and routes.
func (r Role) Slug() string {
	return strings.ToLower(string(r))
}

// AccountStatus enumerates the lifecycle states of an account.
type AccountStatus string

const (
	AccountStatusPending   AccountStatus = "PENDING"
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusDeactive  AccountStatus = "DEACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusDeleted   AccountStatus = "DELETED"
)

// ParseAccountStatus validates a raw status value.
func ParseAccountStatus(raw string) (AccountStatus, bool) {
	status := AccountStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case AccountStatusPending, AccountStatusActive, AccountStatusDeactive, AccountStatusSuspended, AccountStatusDeleted:
		return status, true
	}
	return "", false
}

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID                  string
	Email               string
	PhoneNumber         string
	PasswordHash        string
	Role                Role
	Status              AccountStatus
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time

	// DisplayName is read from the joined profile row and is empty when no profile exists.
	DisplayName string
}

// IsLocked reports whether a lock is still in force at the given instant.
func (a Account) IsLocked(at time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(at)
}

// HasFailureState reports whether the lockout counters carry anything worth clearing.
func (a Account) HasFailureState() bool {
	return a.FailedLoginAttempts != 0 || a.LockedUntil != nil
}

// Profile is the role-detail record created alongside a self-registered account.
type Profile struct {
	AccountID string
	Name      string
	TutorCode *string
	CreatedAt time.Time
}

// NewAccount holds the fields required to materialize an account and its profile.
type NewAccount struct {
	ID           string
	Email        string
	PhoneNumber  string
	PasswordHash string
	Role         Role
	Status       AccountStatus
	Name         string
	TutorCode    *string
	CreatedAt    time.Time
}

// Account returns the account row described by the builder.
func (n NewAccount) Account() Account {
	return Account{
		ID:           n.ID,
		Email:        n.Email,
		PhoneNumber:  n.PhoneNumber,
		PasswordHash: n.PasswordHash,
		Role:         n.Role,
		Status:       n.Status,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.CreatedAt,
		DisplayName:  n.Name,
	}
}

// Profile returns the role-detail row described by the builder.
func (n NewAccount) Profile() Profile {
	return Profile{
		AccountID: n.ID,
		Name:      n.Name,
		TutorCode: n.TutorCode,
		CreatedAt: n.CreatedAt,
	}
}

// LoginEvent distinguishes login history entries.
type LoginEvent string

const (
	LoginEventLogin  LoginEvent = "login"
	LoginEventLogout LoginEvent = "logout"
)

// NormalizeEmail trims and lower-cases an email for lookups and cache keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
