package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/core/port"
	"github.com/wizlearn/account-service/internal/infra/security"
	"github.com/wizlearn/account-service/internal/repository"
)

const defaultOTPTTL = 2 * time.Minute

// ChallengeStore keeps OTP challenges and staged registrations in the cache as JSON.
// Absent or expired entries surface as repository.ErrNotFound.
type ChallengeStore struct {
	cache    port.Cache
	ttl      time.Duration
	generate func() (string, error)
}

// NewChallengeStore wires the store to a cache. Non-positive ttl falls back to two minutes.
func NewChallengeStore(cache port.Cache, ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	return &ChallengeStore{cache: cache, ttl: ttl, generate: security.GenerateOTP}
}

// WithCodeGenerator overrides OTP generation, primarily for tests.
func (s *ChallengeStore) WithCodeGenerator(generate func() (string, error)) *ChallengeStore {
	if generate != nil {
		s.generate = generate
	}
	return s
}

// IssueOTP generates a fresh code and stores it under key, replacing any live challenge.
func (s *ChallengeStore) IssueOTP(ctx context.Context, key domain.ChallengeKey, now time.Time, accountID, ip string) (domain.OTPChallenge, error) {
	code, err := s.generate()
	if err != nil {
		return domain.OTPChallenge{}, err
	}
	challenge := domain.OTPChallenge{
		Code:      code,
		AccountID: accountID,
		IP:        ip,
		IssuedAt:  now.UTC(),
		ExpiresAt: now.UTC().Add(s.ttl),
	}
	if err := s.PutOTP(ctx, key, challenge, s.ttl); err != nil {
		return domain.OTPChallenge{}, err
	}
	return challenge, nil
}

// PutOTP stores challenge with the given ttl.
func (s *ChallengeStore) PutOTP(ctx context.Context, key domain.ChallengeKey, challenge domain.OTPChallenge, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("store %s: otp challenges must expire", key.Purpose)
	}
	return s.put(ctx, key, challenge, ttl)
}

// OTP loads the live challenge under key.
func (s *ChallengeStore) OTP(ctx context.Context, key domain.ChallengeKey) (*domain.OTPChallenge, error) {
	var challenge domain.OTPChallenge
	if err := s.get(ctx, key, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// TakeOTP loads the challenge under key and removes it in the same step.
func (s *ChallengeStore) TakeOTP(ctx context.Context, key domain.ChallengeKey) (*domain.OTPChallenge, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	raw, err := s.cache.Take(ctx, key.String())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("take %s: %w", key.Purpose, err)
	}
	var challenge domain.OTPChallenge
	if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key.Purpose, err)
	}
	return &challenge, nil
}

// MarkVerified re-writes challenge as verified for whatever lifetime it has left.
func (s *ChallengeStore) MarkVerified(ctx context.Context, key domain.ChallengeKey, challenge domain.OTPChallenge, now time.Time) error {
	remaining := challenge.Remaining(now)
	if remaining <= 0 {
		return repository.ErrNotFound
	}
	challenge.Verified = true
	return s.put(ctx, key, challenge, remaining)
}

// PutPending stages a registration without expiry.
func (s *ChallengeStore) PutPending(ctx context.Context, key domain.ChallengeKey, pending domain.PendingRegistration) error {
	return s.put(ctx, key, pending, 0)
}

// Pending loads a staged registration.
func (s *ChallengeStore) Pending(ctx context.Context, key domain.ChallengeKey) (*domain.PendingRegistration, error) {
	var pending domain.PendingRegistration
	if err := s.get(ctx, key, &pending); err != nil {
		return nil, err
	}
	return &pending, nil
}

// Delete removes every key given.
func (s *ChallengeStore) Delete(ctx context.Context, keys ...domain.ChallengeKey) error {
	if len(keys) == 0 {
		return nil
	}
	raw := make([]string, 0, len(keys))
	for _, key := range keys {
		raw = append(raw, key.String())
	}
	if err := s.cache.Delete(ctx, raw...); err != nil {
		return fmt.Errorf("delete challenges: %w", err)
	}
	return nil
}

func (s *ChallengeStore) put(ctx context.Context, key domain.ChallengeKey, value any, ttl time.Duration) error {
	if err := key.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key.Purpose, err)
	}
	if err := s.cache.Set(ctx, key.String(), string(payload), ttl); err != nil {
		return fmt.Errorf("store %s: %w", key.Purpose, err)
	}
	return nil
}

func (s *ChallengeStore) get(ctx context.Context, key domain.ChallengeKey, dst any) error {
	if err := key.Validate(); err != nil {
		return err
	}
	raw, err := s.cache.Get(ctx, key.String())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("load %s: %w", key.Purpose, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key.Purpose, err)
	}
	return nil
}

func otpMatches(expected, provided string) bool {
	if strings.TrimSpace(provided) == "" {
		return false
	}
	return security.OTPEqual(expected, provided)
}
