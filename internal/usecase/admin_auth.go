package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/core/port"
	"github.com/wizlearn/account-service/internal/infra/logger"
	"github.com/wizlearn/account-service/internal/repository"
)

// AdminSignInInput is the first step of the back-office login.
type AdminSignInInput struct {
	LoginID  string
	Password string
	IP       string
}

// AuthResult carries a minted bearer token.
type AuthResult struct {
	Token       string
	AccountID   string
	Email       string
	Role        domain.Role
	DisplayName string
}

// AdminAuthService runs the two-step password then OTP login for ADMIN and STAFF accounts.
type AdminAuthService struct {
	accounts   port.AccountRepository
	hasher     port.PasswordHasher
	guard      *LockoutGuard
	challenges *ChallengeStore
	mailer     port.Mailer
	tokens     port.TokenIssuer
	history    port.LoginHistoryRepository
	logger     *zap.Logger
	now        func() time.Time
	obs        instrumentation
}

// NewAdminAuthService constructs the admin login flow.
func NewAdminAuthService(accounts port.AccountRepository, hasher port.PasswordHasher, guard *LockoutGuard, challenges *ChallengeStore, mailer port.Mailer, tokens port.TokenIssuer, history port.LoginHistoryRepository) *AdminAuthService {
	return &AdminAuthService{
		accounts:   accounts,
		hasher:     hasher,
		guard:      guard,
		challenges: challenges,
		mailer:     mailer,
		tokens:     tokens,
		history:    history,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
}

// WithLogger attaches a logger.
func (s *AdminAuthService) WithLogger(log *zap.Logger) *AdminAuthService {
	if log != nil {
		s.logger = log
	}
	return s
}

// WithClock overrides the clock.
func (s *AdminAuthService) WithClock(now func() time.Time) *AdminAuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMetrics wires outcome counters.
func (s *AdminAuthService) WithMetrics(metrics AuthMetrics) *AdminAuthService {
	s.obs.metrics = metrics
	return s
}

// SignIn checks the password through the lockout guard and mails a login OTP. No token
// is issued until VerifyLoginOTP succeeds.
func (s *AdminAuthService) SignIn(ctx context.Context, input AdminSignInInput) (result *OTPDispatch, err error) {
	ctx, done := s.obs.start(ctx, FlowAdminSignIn)
	defer func() { done(err) }()

	loginID := strings.TrimSpace(input.LoginID)
	password := strings.TrimSpace(input.Password)
	if missing := missingFields(map[string]string{"login_id": loginID, "password": password}); missing != "" {
		return nil, fmt.Errorf("%w: %s required", ErrInvalidInput, missing)
	}

	account, err := s.accounts.FindByIDOrEmail(ctx, loginID, domain.RoleAdmin, domain.RoleStaff)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find admin account: %w", err)
	}

	matches, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		s.logger.Warn("admin password hash unreadable", zap.String("account_id", account.ID), zap.Error(err))
		matches = false
	}
	decision, err := s.guard.CheckAndConsumeAttempt(ctx, account, matches)
	if err != nil {
		return nil, err
	}
	switch decision.Outcome {
	case OutcomeLocked:
		return nil, &AccountLockedError{UnlockAt: decision.UnlockAt}
	case OutcomeInvalidCredentials:
		s.logger.Info("admin sign-in rejected",
			zap.String("account_id", account.ID),
			zap.Int("failed_attempts", decision.Attempts),
			zap.String("ip", logger.MaskIP(input.IP)),
		)
		return nil, ErrInvalidCredentials
	}
	if err := statusError(account.Status); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	challenge, err := s.challenges.IssueOTP(ctx, domain.AdminLoginKey(account.Email), now, account.ID, strings.TrimSpace(input.IP))
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendOTP(ctx, account.Email, challenge.Code, domain.PurposeAdminLogin, challenge.ExpiresAt); err != nil {
		s.logger.Error("admin login otp delivery failed",
			zap.String("account_id", account.ID),
			zap.String("email", logger.MaskEmail(account.Email)),
			zap.Error(err),
		)
		return nil, &DeliveryError{Purpose: domain.PurposeAdminLogin, Err: err}
	}
	return &OTPDispatch{Message: msgOTPSent, Email: account.Email, ExpiresAt: challenge.ExpiresAt}, nil
}

// VerifyLoginOTP consumes the login challenge and mints a token. The challenge is
// taken atomically so a code authenticates at most once even under concurrent
// verifies. A wrong code puts the challenge back for the lifetime it has left.
func (s *AdminAuthService) VerifyLoginOTP(ctx context.Context, email, otp string) (result *AuthResult, err error) {
	ctx, done := s.obs.start(ctx, FlowAdminVerifyOTP)
	defer func() { done(err) }()

	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	key := domain.AdminLoginKey(email)
	challenge, err := s.challenges.TakeOTP(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOTPExpired
		}
		return nil, err
	}
	if !otpMatches(challenge.Code, otp) {
		if remaining := challenge.Remaining(s.now().UTC()); remaining > 0 {
			if err := s.challenges.PutOTP(ctx, key, *challenge, remaining); err != nil {
				return nil, err
			}
		}
		return nil, ErrOTPInvalid
	}

	account, err := s.accounts.FindByID(ctx, challenge.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load admin account: %w", err)
	}
	if err := statusError(account.Status); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if account.HasFailureState() {
		if err := s.accounts.ResetFailedAttempts(ctx, account.ID, now); err != nil {
			return nil, fmt.Errorf("reset failed attempts: %w", err)
		}
		account.FailedLoginAttempts = 0
		account.LockedUntil = nil
	}

	fields := []zap.Field{zap.String("account_id", account.ID), zap.String("ip", logger.MaskIP(challenge.IP))}
	if s.history != nil {
		sideEffect(s.logger, "record login", s.history.RecordLogin(ctx, account.ID, challenge.IP), fields...)
	}
	token, err := s.tokens.Mint(ctx, *account)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}
	s.logger.Info("admin signed in", fields...)
	return &AuthResult{
		Token:       token,
		AccountID:   account.ID,
		Email:       account.Email,
		Role:        account.Role,
		DisplayName: account.DisplayName,
	}, nil
}
