package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/core/port"
	"github.com/wizlearn/account-service/internal/infra/logger"
	"github.com/wizlearn/account-service/internal/repository"
)

// LoginInput is the single-step user/tutor login form.
type LoginInput struct {
	Role     domain.Role
	Email    string
	Password string
	IP       string
}

// LoginService authenticates USER and TUTOR accounts with a password. No lockout
// is applied on this path.
type LoginService struct {
	accounts port.AccountRepository
	hasher   port.PasswordHasher
	tokens   port.TokenIssuer
	history  port.LoginHistoryRepository
	logger   *zap.Logger
	obs      instrumentation
}

// NewLoginService constructs the login flow.
func NewLoginService(accounts port.AccountRepository, hasher port.PasswordHasher, tokens port.TokenIssuer, history port.LoginHistoryRepository) *LoginService {
	return &LoginService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		history:  history,
		logger:   zap.NewNop(),
	}
}

// WithLogger attaches a logger.
func (s *LoginService) WithLogger(log *zap.Logger) *LoginService {
	if log != nil {
		s.logger = log
	}
	return s
}

// WithMetrics wires outcome counters.
func (s *LoginService) WithMetrics(metrics AuthMetrics) *LoginService {
	s.obs.metrics = metrics
	return s
}

// Login resolves the account by exact email and role, requires ACTIVE status, then
// checks the password.
func (s *LoginService) Login(ctx context.Context, input LoginInput) (result *AuthResult, err error) {
	ctx, done := s.obs.start(ctx, FlowLogin)
	defer func() { done(err) }()

	if !input.Role.SelfService() {
		return nil, ErrUnsupportedRole
	}
	email := domain.NormalizeEmail(input.Email)
	password := strings.TrimSpace(input.Password)
	if missing := missingFields(map[string]string{"email": email, "password": password}); missing != "" {
		return nil, fmt.Errorf("%w: %s required", ErrInvalidInput, missing)
	}

	account, err := s.accounts.FindByEmailAndRole(ctx, email, input.Role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if err := statusError(account.Status); err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		s.logger.Warn("password hash unreadable", zap.String("account_id", account.ID), zap.Error(err))
	}
	if !ok {
		return nil, ErrPasswordMismatch
	}

	fields := []zap.Field{zap.String("account_id", account.ID), zap.String("ip", logger.MaskIP(input.IP))}
	if s.history != nil {
		sideEffect(s.logger, "record login", s.history.RecordLogin(ctx, account.ID, strings.TrimSpace(input.IP)), fields...)
	}
	token, err := s.tokens.Mint(ctx, *account)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}
	return &AuthResult{
		Token:       token,
		AccountID:   account.ID,
		Email:       account.Email,
		Role:        account.Role,
		DisplayName: account.DisplayName,
	}, nil
}

// Logout records a logout entry. History failures are logged, never returned.
func (s *LoginService) Logout(ctx context.Context, accountID, ip string) (err error) {
	ctx, done := s.obs.start(ctx, FlowLogout)
	defer func() { done(err) }()

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("%w: account id required", ErrInvalidInput)
	}
	if s.history != nil {
		sideEffect(s.logger, "record logout", s.history.RecordLogout(ctx, accountID, strings.TrimSpace(ip)),
			zap.String("account_id", accountID),
			zap.String("ip", logger.MaskIP(ip)),
		)
	}
	return nil
}
