package port

import (
	"context"
	"time"

	"github.com/wizlearn/account-service/internal/core/domain"
)

// Mailer delivers transactional account emails.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, purpose domain.ChallengePurpose, expiresAt time.Time) error
	SendWelcome(ctx context.Context, to, name string, at time.Time) error
	SendTutorWelcome(ctx context.Context, to, name, tutorCode string, at time.Time) error
	SendTutorApproved(ctx context.Context, to, name string) error
	SendLockNotice(ctx context.Context, to string, unlockAt time.Time) error
}
