package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/core/port"
	"github.com/wizlearn/account-service/internal/infra/logger"
	"github.com/wizlearn/account-service/internal/repository"
)

const (
	// TutorCodeSequence names the counter row backing tutor identifiers.
	TutorCodeSequence = "tutor_code"

	defaultTutorCodePrefix    = "WIZ"
	defaultTutorFirstSequence = 1001

	msgOTPSent              = "OTP sent to your email"
	msgUserRegistered       = "Registration successful."
	msgTutorPendingApproval = "Registration successful. Your tutor account is pending admin approval."
)

// TutorCodeOptions shapes identifiers of the form {Prefix}{YYYYMMDD}/{sequence}.
type TutorCodeOptions struct {
	Prefix        string
	FirstSequence int64
}

// RegisterInput is the self-service registration form.
type RegisterInput struct {
	Role        domain.Role
	Email       string
	Name        string
	Password    string
	PhoneNumber string
}

// VerifyRegistrationInput confirms a staged registration.
type VerifyRegistrationInput struct {
	Role  domain.Role
	Email string
	OTP   string
	IP    string
}

// OTPDispatch acknowledges that a code was mailed.
type OTPDispatch struct {
	Message   string
	Email     string
	ExpiresAt time.Time
}

// RegistrationResult is returned once the account exists.
type RegistrationResult struct {
	Account *domain.Account
	Token   string
	Message string
}

// RegistrationService stages registrations behind an OTP and materializes accounts on verification.
type RegistrationService struct {
	accounts   port.AccountRepository
	sequences  port.SequenceAllocator
	hasher     port.PasswordHasher
	policy     port.PasswordPolicyValidator
	challenges *ChallengeStore
	mailer     port.Mailer
	tokens     port.TokenIssuer
	history    port.LoginHistoryRepository
	events     port.EventPublisher
	tutorCodes TutorCodeOptions
	logger     *zap.Logger
	now        func() time.Time
	spawn      spawnFunc
	obs        instrumentation
}

// NewRegistrationService constructs the registration pipeline.
func NewRegistrationService(
	accounts port.AccountRepository,
	sequences port.SequenceAllocator,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	challenges *ChallengeStore,
	mailer port.Mailer,
	tokens port.TokenIssuer,
	history port.LoginHistoryRepository,
	events port.EventPublisher,
	tutorCodes TutorCodeOptions,
) *RegistrationService {
	if strings.TrimSpace(tutorCodes.Prefix) == "" {
		tutorCodes.Prefix = defaultTutorCodePrefix
	}
	if tutorCodes.FirstSequence <= 0 {
		tutorCodes.FirstSequence = defaultTutorFirstSequence
	}
	return &RegistrationService{
		accounts:   accounts,
		sequences:  sequences,
		hasher:     hasher,
		policy:     policy,
		challenges: challenges,
		mailer:     mailer,
		tokens:     tokens,
		history:    history,
		events:     events,
		tutorCodes: tutorCodes,
		logger:     zap.NewNop(),
		now:        time.Now,
		spawn:      goSpawn,
	}
}

// WithLogger attaches a logger.
func (s *RegistrationService) WithLogger(log *zap.Logger) *RegistrationService {
	if log != nil {
		s.logger = log
	}
	return s
}

// WithClock overrides the clock.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMetrics wires outcome counters.
func (s *RegistrationService) WithMetrics(metrics AuthMetrics) *RegistrationService {
	s.obs.metrics = metrics
	return s
}

// WithSpawner overrides how detached welcome mail is run.
func (s *RegistrationService) WithSpawner(spawn func(func())) *RegistrationService {
	if spawn != nil {
		s.spawn = spawn
	}
	return s
}

// Register validates and stages a registration, then mails an OTP. The staged data
// survives a delivery failure so Resend can recover without re-entering it.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (result *OTPDispatch, err error) {
	ctx, done := s.obs.start(ctx, FlowRegister)
	defer func() { done(err) }()

	if !input.Role.SelfService() {
		return nil, ErrUnsupportedRole
	}
	email := domain.NormalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	password := strings.TrimSpace(input.Password)
	phone := strings.TrimSpace(input.PhoneNumber)
	if missing := missingFields(map[string]string{"email": email, "name": name, "password": password, "phone_number": phone}); missing != "" {
		return nil, fmt.Errorf("%w: %s required", ErrInvalidInput, missing)
	}
	if s.policy != nil {
		if err := s.policy.Validate(password, email, name, phone); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
		}
	}

	emailTaken, phoneTaken, err := s.accounts.FindConflicts(ctx, email, phone, input.Role)
	if err != nil {
		return nil, fmt.Errorf("check registration conflicts: %w", err)
	}
	if emailTaken {
		return nil, ErrEmailTaken
	}
	if phoneTaken {
		return nil, ErrPhoneTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	pending := domain.PendingRegistration{
		Role:         input.Role,
		Email:        email,
		Name:         name,
		PhoneNumber:  phone,
		PasswordHash: hash,
		StagedAt:     now,
	}
	if err := s.challenges.PutPending(ctx, domain.RegistrationDataKey(input.Role, email), pending); err != nil {
		return nil, err
	}
	return s.dispatchOTP(ctx, input.Role, email, now)
}

// Resend issues a fresh OTP for an already staged registration.
func (s *RegistrationService) Resend(ctx context.Context, role domain.Role, email string) (result *OTPDispatch, err error) {
	ctx, done := s.obs.start(ctx, FlowRegisterResend)
	defer func() { done(err) }()

	if !role.SelfService() {
		return nil, ErrUnsupportedRole
	}
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	if _, err := s.challenges.Pending(ctx, domain.RegistrationDataKey(role, email)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPendingRegistrationNotFound
		}
		return nil, err
	}
	return s.dispatchOTP(ctx, role, email, s.now().UTC())
}

func (s *RegistrationService) dispatchOTP(ctx context.Context, role domain.Role, email string, now time.Time) (*OTPDispatch, error) {
	challenge, err := s.challenges.IssueOTP(ctx, domain.RegistrationOTPKey(role, email), now, "", "")
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendOTP(ctx, email, challenge.Code, domain.PurposeRegistrationOTP, challenge.ExpiresAt); err != nil {
		s.logger.Error("registration otp delivery failed",
			zap.String("role", string(role)),
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
		return nil, &DeliveryError{Purpose: domain.PurposeRegistrationOTP, Err: err}
	}
	return &OTPDispatch{Message: msgOTPSent, Email: email, ExpiresAt: challenge.ExpiresAt}, nil
}

// Verify checks the OTP and creates the account. Users start ACTIVE, tutors PENDING
// until approved. A mismatched OTP leaves the staged data and challenge in place.
func (s *RegistrationService) Verify(ctx context.Context, input VerifyRegistrationInput) (result *RegistrationResult, err error) {
	ctx, done := s.obs.start(ctx, FlowRegisterVerify)
	defer func() { done(err) }()

	if !input.Role.SelfService() {
		return nil, ErrUnsupportedRole
	}
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	dataKey := domain.RegistrationDataKey(input.Role, email)
	otpKey := domain.RegistrationOTPKey(input.Role, email)

	pending, err := s.challenges.Pending(ctx, dataKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRegistrationDataMissing
		}
		return nil, err
	}
	challenge, err := s.challenges.OTP(ctx, otpKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOTPExpired
		}
		return nil, err
	}
	if !otpMatches(challenge.Code, input.OTP) {
		return nil, ErrOTPInvalid
	}

	now := s.now().UTC()
	draft := domain.NewAccount{
		ID:           uuid.NewString(),
		Email:        pending.Email,
		PhoneNumber:  pending.PhoneNumber,
		PasswordHash: pending.PasswordHash,
		Role:         pending.Role,
		Status:       domain.AccountStatusActive,
		Name:         pending.Name,
		CreatedAt:    now,
	}
	message := msgUserRegistered
	if pending.Role == domain.RoleTutor {
		code, err := s.nextTutorCode(ctx, now)
		if err != nil {
			return nil, err
		}
		draft.Status = domain.AccountStatusPending
		draft.TutorCode = &code
		message = msgTutorPendingApproval
	}

	account, err := s.accounts.Create(ctx, draft)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrDuplicatePhone):
			return nil, ErrPhoneTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	fields := []zap.Field{
		zap.String("account_id", account.ID),
		zap.String("role", string(account.Role)),
		zap.String("email", logger.MaskEmail(account.Email)),
	}
	s.logger.Info("account registered", fields...)

	s.sendWelcome(ctx, *account, draft.TutorCode, now)
	sideEffect(s.logger, "delete registration challenge", s.challenges.Delete(ctx, dataKey, otpKey), fields...)
	if s.history != nil {
		sideEffect(s.logger, "record login", s.history.RecordLogin(ctx, account.ID, input.IP), fields...)
	}

	token, err := s.tokens.Mint(ctx, *account)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}

	if s.events != nil {
		event := domain.AccountRegisteredEvent{
			EventID:      uuid.NewString(),
			AccountID:    account.ID,
			Email:        account.Email,
			Role:         account.Role,
			Status:       account.Status,
			TutorCode:    draft.TutorCode,
			RegisteredAt: now,
		}
		sideEffect(s.logger, "publish account registered", s.events.PublishAccountRegistered(ctx, event), fields...)
	}

	return &RegistrationResult{Account: account, Token: token, Message: message}, nil
}

func (s *RegistrationService) nextTutorCode(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.sequences.Next(ctx, TutorCodeSequence, s.tutorCodes.FirstSequence)
	if err != nil {
		return "", fmt.Errorf("allocate tutor code: %w", err)
	}
	return FormatTutorCode(s.tutorCodes.Prefix, now, seq), nil
}

// FormatTutorCode renders {prefix}{YYYYMMDD}/{sequence} using the UTC date.
func FormatTutorCode(prefix string, at time.Time, sequence int64) string {
	return prefix + at.UTC().Format("20060102") + "/" + strconv.FormatInt(sequence, 10)
}

func (s *RegistrationService) sendWelcome(ctx context.Context, account domain.Account, tutorCode *string, at time.Time) {
	if s.mailer == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.spawn(func() {
		var err error
		if account.Role == domain.RoleTutor && tutorCode != nil {
			err = s.mailer.SendTutorWelcome(detached, account.Email, account.DisplayName, *tutorCode, at)
		} else {
			err = s.mailer.SendWelcome(detached, account.Email, account.DisplayName, at)
		}
		sideEffect(s.logger, "send welcome email", err,
			zap.String("account_id", account.ID),
			zap.String("email", logger.MaskEmail(account.Email)),
		)
	})
}

// missingFields lists empty required values in stable order.
func missingFields(values map[string]string) string {
	order := []string{"login_id", "email", "name", "password", "phone_number", "otp", "new_password"}
	var missing []string
	for _, name := range order {
		if value, ok := values[name]; ok && value == "" {
			missing = append(missing, name)
		}
	}
	return strings.Join(missing, ", ")
}
