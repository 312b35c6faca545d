package port

import (
	"context"
	"time"

	"github.com/wizlearn/account-service/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts and their profiles.
// Mutations are single statements so concurrent requests never read-modify-write.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByIDOrEmail(ctx context.Context, value string, roles ...domain.Role) (*domain.Account, error)
	FindByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.Account, error)
	FindConflicts(ctx context.Context, email, phone string, role domain.Role) (emailTaken, phoneTaken bool, err error)
	Create(ctx context.Context, account domain.NewAccount) (*domain.Account, error)
	RegisterFailedAttempt(ctx context.Context, id string, threshold int, lockUntil, at time.Time) (*domain.Account, error)
	ResetFailedAttempts(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error
	TransitionStatus(ctx context.Context, id string, from, to domain.AccountStatus, at time.Time) error
}

// SequenceAllocator hands out monotonically increasing values per named counter.
// The first allocation of an unseeded counter returns start.
type SequenceAllocator interface {
	Next(ctx context.Context, name string, start int64) (int64, error)
}

// LoginHistoryRepository appends login and logout audit entries.
type LoginHistoryRepository interface {
	RecordLogin(ctx context.Context, accountID, ip string) error
	RecordLogout(ctx context.Context, accountID, ip string) error
}
