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
	"github.com/wizlearn/account-service/internal/repository"
)

// ChangeStatusInput is an administrative status change.
type ChangeStatusInput struct {
	AccountID string
	Status    string
	ActorID   string
}

// ReviewService handles back-office account lifecycle changes. Accounts are never
// hard deleted; DELETED is a terminal soft status.
type ReviewService struct {
	accounts port.AccountRepository
	mailer   port.Mailer
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
	spawn    spawnFunc
	obs      instrumentation
}

// NewReviewService constructs the review service.
func NewReviewService(accounts port.AccountRepository, mailer port.Mailer, events port.EventPublisher) *ReviewService {
	return &ReviewService{
		accounts: accounts,
		mailer:   mailer,
		events:   events,
		logger:   zap.NewNop(),
		now:      time.Now,
		spawn:    goSpawn,
	}
}

// WithLogger attaches a logger.
func (s *ReviewService) WithLogger(log *zap.Logger) *ReviewService {
	if log != nil {
		s.logger = log
	}
	return s
}

// WithClock overrides the clock.
func (s *ReviewService) WithClock(now func() time.Time) *ReviewService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMetrics wires outcome counters.
func (s *ReviewService) WithMetrics(metrics AuthMetrics) *ReviewService {
	s.obs.metrics = metrics
	return s
}

// WithSpawner overrides how detached approval mail is run.
func (s *ReviewService) WithSpawner(spawn func(func())) *ReviewService {
	if spawn != nil {
		s.spawn = spawn
	}
	return s
}

// ApproveTutor moves a PENDING tutor to ACTIVE.
func (s *ReviewService) ApproveTutor(ctx context.Context, tutorID, actorID string) (account *domain.Account, err error) {
	ctx, done := s.obs.start(ctx, FlowApproveTutor)
	defer func() { done(err) }()

	account, err = s.load(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	if account.Role != domain.RoleTutor || account.Status != domain.AccountStatusPending {
		return nil, fmt.Errorf("%w: %s account is %s", ErrInvalidStatusTransition, account.Role, account.Status)
	}
	if err := s.transition(ctx, account, domain.AccountStatusActive, actorID); err != nil {
		return nil, err
	}

	approved := *account
	detached := context.WithoutCancel(ctx)
	if s.mailer != nil {
		s.spawn(func() {
			sideEffect(s.logger, "send tutor approval", s.mailer.SendTutorApproved(detached, approved.Email, approved.DisplayName),
				zap.String("account_id", approved.ID))
		})
	}
	return account, nil
}

// ChangeStatus applies an administrative status change. PENDING is only reachable through
// registration and DELETED accounts cannot be revived.
func (s *ReviewService) ChangeStatus(ctx context.Context, input ChangeStatusInput) (account *domain.Account, err error) {
	ctx, done := s.obs.start(ctx, FlowChangeStatus)
	defer func() { done(err) }()

	target, ok := domain.ParseAccountStatus(input.Status)
	if !ok || target == domain.AccountStatusPending {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, strings.TrimSpace(input.Status))
	}
	account, err = s.load(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}
	if account.Status == target {
		return account, nil
	}
	if account.Status == domain.AccountStatusDeleted {
		return nil, fmt.Errorf("%w: account is deleted", ErrInvalidStatusTransition)
	}
	if err := s.transition(ctx, account, target, input.ActorID); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *ReviewService) load(ctx context.Context, id string) (*domain.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: account id required", ErrInvalidInput)
	}
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

// transition compare-and-sets the status and updates account in place.
func (s *ReviewService) transition(ctx context.Context, account *domain.Account, to domain.AccountStatus, actorID string) error {
	from := account.Status
	now := s.now().UTC()
	if err := s.accounts.TransitionStatus(ctx, account.ID, from, to, now); err != nil {
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: status changed concurrently", ErrInvalidStatusTransition)
		}
		return fmt.Errorf("transition status: %w", err)
	}
	account.Status = to
	account.UpdatedAt = now

	fields := []zap.Field{
		zap.String("account_id", account.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", actorID),
	}
	s.logger.Info("account status changed", fields...)
	if s.events != nil {
		event := domain.AccountStatusChangedEvent{
			EventID:   uuid.NewString(),
			AccountID: account.ID,
			Role:      account.Role,
			From:      from,
			To:        to,
			ChangedBy: actorID,
			ChangedAt: now,
		}
		sideEffect(s.logger, "publish status change", s.events.PublishAccountStatusChanged(ctx, event), fields...)
	}
	return nil
}
