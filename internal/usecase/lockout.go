package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/core/port"
	"github.com/wizlearn/account-service/internal/infra/logger"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 10 * time.Minute
)

// LockoutOutcome is the result of a single guarded password attempt.
type LockoutOutcome int

const (
	OutcomeAuthenticated LockoutOutcome = iota
	OutcomeInvalidCredentials
	OutcomeLocked
)

// LockoutDecision reports the outcome and, when locked, the unlock time.
type LockoutDecision struct {
	Outcome  LockoutOutcome
	UnlockAt time.Time
	Attempts int
}

// LockoutPolicy configures the guard.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockoutGuard enforces a timed lock after consecutive failed password attempts.
type LockoutGuard struct {
	accounts port.AccountRepository
	mailer   port.Mailer
	events   port.EventPublisher
	policy   LockoutPolicy
	logger   *zap.Logger
	now      func() time.Time
	obs      instrumentation
}

// NewLockoutGuard constructs a guard. Zero policy values take the defaults (5 attempts, 10 minutes).
func NewLockoutGuard(accounts port.AccountRepository, mailer port.Mailer, events port.EventPublisher, policy LockoutPolicy) *LockoutGuard {
	if policy.Threshold <= 0 {
		policy.Threshold = defaultLockoutThreshold
	}
	if policy.Duration <= 0 {
		policy.Duration = defaultLockoutDuration
	}
	return &LockoutGuard{
		accounts: accounts,
		mailer:   mailer,
		events:   events,
		policy:   policy,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
}

// WithLogger attaches a logger.
func (g *LockoutGuard) WithLogger(log *zap.Logger) *LockoutGuard {
	if log != nil {
		g.logger = log
	}
	return g
}

// WithClock overrides the clock.
func (g *LockoutGuard) WithClock(now func() time.Time) *LockoutGuard {
	if now != nil {
		g.now = now
	}
	return g
}

// WithMetrics counts lockouts.
func (g *LockoutGuard) WithMetrics(metrics AuthMetrics) *LockoutGuard {
	g.obs.metrics = metrics
	return g
}

// CheckAndConsumeAttempt applies one password attempt against account. A live lock
// rejects the attempt without touching the counter. account is refreshed in place
// with the persisted counters.
func (g *LockoutGuard) CheckAndConsumeAttempt(ctx context.Context, account *domain.Account, passwordMatches bool) (LockoutDecision, error) {
	now := g.now().UTC()
	if account.IsLocked(now) {
		return LockoutDecision{
			Outcome:  OutcomeLocked,
			UnlockAt: account.LockedUntil.UTC(),
			Attempts: account.FailedLoginAttempts,
		}, nil
	}

	if passwordMatches {
		if account.HasFailureState() {
			if err := g.accounts.ResetFailedAttempts(ctx, account.ID, now); err != nil {
				return LockoutDecision{}, fmt.Errorf("reset failed attempts: %w", err)
			}
			account.FailedLoginAttempts = 0
			account.LockedUntil = nil
		}
		return LockoutDecision{Outcome: OutcomeAuthenticated}, nil
	}

	lockUntil := now.Add(g.policy.Duration)
	updated, err := g.accounts.RegisterFailedAttempt(ctx, account.ID, g.policy.Threshold, lockUntil, now)
	if err != nil {
		return LockoutDecision{}, fmt.Errorf("register failed attempt: %w", err)
	}
	account.FailedLoginAttempts = updated.FailedLoginAttempts
	account.LockedUntil = updated.LockedUntil

	decision := LockoutDecision{Outcome: OutcomeInvalidCredentials, Attempts: updated.FailedLoginAttempts}
	if updated.IsLocked(now) {
		decision.UnlockAt = updated.LockedUntil.UTC()
		g.onLocked(ctx, *updated, now)
	}
	return decision, nil
}

func (g *LockoutGuard) onLocked(ctx context.Context, account domain.Account, now time.Time) {
	g.obs.lockout()
	unlockAt := account.LockedUntil.UTC()
	fields := []zap.Field{
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
		zap.Time("unlock_at", unlockAt),
	}
	g.logger.Info("account locked", append(fields, zap.Int("failed_attempts", account.FailedLoginAttempts))...)

	if g.mailer != nil {
		sideEffect(g.logger, "send lock notice", g.mailer.SendLockNotice(ctx, account.Email, unlockAt), fields...)
	}
	if g.events != nil {
		event := domain.AccountLockedEvent{
			EventID:        uuid.NewString(),
			AccountID:      account.ID,
			FailedAttempts: account.FailedLoginAttempts,
			LockedUntil:    unlockAt,
			LockedAt:       now,
		}
		sideEffect(g.logger, "publish account locked", g.events.PublishAccountLocked(ctx, event), fields...)
	}
}
