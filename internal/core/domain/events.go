package domain

import "time"

// AccountRegisteredEvent represents the payload for account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Email        string
	Role         Role
	Status       AccountStatus
	TutorCode    *string
	RegisteredAt time.Time
}

// AccountLockedEvent represents the payload for account.locked messages.
type AccountLockedEvent struct {
	EventID        string
	AccountID      string
	FailedAttempts int
	LockedUntil    time.Time
	LockedAt       time.Time
}

// PasswordResetEvent represents the payload for account.password.reset messages.
type PasswordResetEvent struct {
	EventID   string
	AccountID string
	Role      Role
	ResetAt   time.Time
}

// AccountStatusChangedEvent represents the payload for account.status.changed messages.
// Tutor approvals are published with From=PENDING and To=ACTIVE.
type AccountStatusChangedEvent struct {
	EventID   string
	AccountID string
	Role      Role
	From      AccountStatus
	To        AccountStatus
	ChangedBy string
	ChangedAt time.Time
}
