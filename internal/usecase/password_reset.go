package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/core/port"
	"github.com/wizlearn/account-service/internal/infra/logger"
	"github.com/wizlearn/account-service/internal/repository"
)

// PasswordResetService runs the forgot, verify and reset password steps for USER and TUTOR accounts.
type PasswordResetService struct {
	accounts   port.AccountRepository
	hasher     port.PasswordHasher
	policy     port.PasswordPolicyValidator
	challenges *ChallengeStore
	mailer     port.Mailer
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
	obs        instrumentation
}

// NewPasswordResetService constructs the reset flow.
func NewPasswordResetService(accounts port.AccountRepository, hasher port.PasswordHasher, policy port.PasswordPolicyValidator, challenges *ChallengeStore, mailer port.Mailer, events port.EventPublisher) *PasswordResetService {
	return &PasswordResetService{
		accounts:   accounts,
		hasher:     hasher,
		policy:     policy,
		challenges: challenges,
		mailer:     mailer,
		events:     events,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
}

// WithLogger attaches a logger.
func (s *PasswordResetService) WithLogger(log *zap.Logger) *PasswordResetService {
	if log != nil {
		s.logger = log
	}
	return s
}

// WithClock overrides the clock.
func (s *PasswordResetService) WithClock(now func() time.Time) *PasswordResetService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMetrics wires outcome counters.
func (s *PasswordResetService) WithMetrics(metrics AuthMetrics) *PasswordResetService {
	s.obs.metrics = metrics
	return s
}

// ForgotPassword mails a reset OTP to an ACTIVE account of the given role.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, role domain.Role, email string) (result *OTPDispatch, err error) {
	ctx, done := s.obs.start(ctx, FlowForgotPassword)
	defer func() { done(err) }()

	account, err := s.activeAccount(ctx, role, email)
	if err != nil {
		return nil, err
	}
	challenge, err := s.challenges.IssueOTP(ctx, domain.PasswordResetKey(role, account.Email), s.now().UTC(), account.ID, "")
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendOTP(ctx, account.Email, challenge.Code, domain.PurposePasswordReset, challenge.ExpiresAt); err != nil {
		s.logger.Error("password reset otp delivery failed",
			zap.String("account_id", account.ID),
			zap.String("email", logger.MaskEmail(account.Email)),
			zap.Error(err),
		)
		return nil, &DeliveryError{Purpose: domain.PurposePasswordReset, Err: err}
	}
	return &OTPDispatch{Message: msgOTPSent, Email: account.Email, ExpiresAt: challenge.ExpiresAt}, nil
}

// VerifyResetOTP checks the code and marks the challenge verified. The entry stays
// live until ResetPassword consumes it or its TTL elapses.
func (s *PasswordResetService) VerifyResetOTP(ctx context.Context, role domain.Role, email, otp string) (err error) {
	ctx, done := s.obs.start(ctx, FlowVerifyResetOTP)
	defer func() { done(err) }()

	if !role.SelfService() {
		return ErrUnsupportedRole
	}
	email = domain.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	key := domain.PasswordResetKey(role, email)
	challenge, err := s.challenges.OTP(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOTPExpired
		}
		return err
	}
	if !otpMatches(challenge.Code, otp) {
		return ErrOTPInvalid
	}
	if err := s.challenges.MarkVerified(ctx, key, *challenge, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOTPExpired
		}
		return err
	}
	return nil
}

// ResetPassword replaces the password of an ACTIVE account. A verified reset challenge
// is required before the new password is compared with the current one.
func (s *PasswordResetService) ResetPassword(ctx context.Context, role domain.Role, email, newPassword string) (err error) {
	ctx, done := s.obs.start(ctx, FlowResetPassword)
	defer func() { done(err) }()

	newPassword = strings.TrimSpace(newPassword)
	if newPassword == "" {
		return fmt.Errorf("%w: new_password required", ErrInvalidInput)
	}
	account, err := s.activeAccount(ctx, role, email)
	if err != nil {
		return err
	}

	key := domain.PasswordResetKey(role, account.Email)
	challenge, err := s.challenges.OTP(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOTPExpired
		}
		return err
	}
	if !challenge.Verified || challenge.AccountID != account.ID {
		return ErrResetNotVerified
	}

	reused, err := s.hasher.Verify(newPassword, account.PasswordHash)
	if err != nil {
		s.logger.Warn("password hash unreadable", zap.String("account_id", account.ID), zap.Error(err))
	}
	if reused {
		return ErrPasswordReuse
	}

	if s.policy != nil {
		if err := s.policy.Validate(newPassword, account.Email, account.DisplayName, account.PhoneNumber); err != nil {
			return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
		}
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	fields := []zap.Field{zap.String("account_id", account.ID), zap.String("email", logger.MaskEmail(account.Email))}
	s.logger.Info("password reset", fields...)
	sideEffect(s.logger, "delete reset challenge", s.challenges.Delete(ctx, key), fields...)
	if s.events != nil {
		event := domain.PasswordResetEvent{
			EventID:   uuid.NewString(),
			AccountID: account.ID,
			Role:      account.Role,
			ResetAt:   now,
		}
		sideEffect(s.logger, "publish password reset", s.events.PublishPasswordReset(ctx, event), fields...)
	}
	return nil
}

func (s *PasswordResetService) activeAccount(ctx context.Context, role domain.Role, email string) (*domain.Account, error) {
	if !role.SelfService() {
		return nil, ErrUnsupportedRole
	}
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	account, err := s.accounts.FindByEmailAndRole(ctx, email, role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if account.Status != domain.AccountStatusActive {
		return nil, ErrAccountNotFound
	}
	return account, nil
}
