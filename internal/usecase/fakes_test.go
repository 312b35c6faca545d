package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// memCache honours per-entry TTL against the fake clock.
type memCache struct {
	mu      sync.Mutex
	clock   *fakeClock
	entries map[string]cacheEntry
	setErr  error
}

func newMemCache(clock *fakeClock) *memCache {
	return &memCache{clock: clock, entries: map[string]cacheEntry{}}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !c.clock.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return "", repository.ErrNotFound
	}
	return entry.value, nil
}

func (c *memCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.clock.Now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *memCache) Take(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	delete(c.entries, key)
	if !entry.expiresAt.IsZero() && !c.clock.Now().Before(entry.expiresAt) {
		return "", repository.ErrNotFound
	}
	return entry.value, nil
}

func (c *memCache) has(key string) bool {
	_, err := c.Get(context.Background(), key)
	return err == nil
}

// memAccounts enforces the (email, role) and (phone, role) unique constraints.
type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	profiles map[string]domain.Profile
	resets   int
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: map[string]*domain.Account{}, profiles: map[string]domain.Profile{}}
}

func (r *memAccounts) add(account domain.Account) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	stored := account
	r.accounts[account.ID] = &stored
	copied := stored
	return &copied
}

func (r *memAccounts) get(id string) domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.accounts[id]
}

func (r *memAccounts) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *memAccounts) FindByIDOrEmail(_ context.Context, value string, roles ...domain.Role) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.ID != value && account.Email != domain.NormalizeEmail(value) {
			continue
		}
		for _, role := range roles {
			if account.Role == role {
				copied := *account
				return &copied, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memAccounts) FindByEmailAndRole(_ context.Context, email string, role domain.Role) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Email == domain.NormalizeEmail(email) && account.Role == role {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memAccounts) FindConflicts(_ context.Context, email, phone string, role domain.Role) (bool, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var emailTaken, phoneTaken bool
	for _, account := range r.accounts {
		if account.Role != role {
			continue
		}
		emailTaken = emailTaken || account.Email == email
		phoneTaken = phoneTaken || account.PhoneNumber == phone
	}
	return emailTaken, phoneTaken, nil
}

func (r *memAccounts) Create(_ context.Context, draft domain.NewAccount) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Role != draft.Role {
			continue
		}
		if account.Email == draft.Email {
			return nil, repository.ErrDuplicateEmail
		}
		if account.PhoneNumber == draft.PhoneNumber {
			return nil, repository.ErrDuplicatePhone
		}
	}
	account := draft.Account()
	r.accounts[account.ID] = &account
	r.profiles[account.ID] = draft.Profile()
	copied := account
	return &copied, nil
}

func (r *memAccounts) RegisterFailedAttempt(_ context.Context, id string, threshold int, lockUntil, at time.Time) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	account.FailedLoginAttempts++
	if account.FailedLoginAttempts >= threshold {
		until := lockUntil
		account.LockedUntil = &until
	}
	account.UpdatedAt = at
	copied := *account
	return &copied, nil
}

func (r *memAccounts) ResetFailedAttempts(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.resets++
	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	account.UpdatedAt = at
	return nil
}

func (r *memAccounts) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = hash
	account.UpdatedAt = at
	return nil
}

func (r *memAccounts) TransitionStatus(_ context.Context, id string, from, to domain.AccountStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok || account.Status != from {
		return repository.ErrConflict
	}
	account.Status = to
	account.UpdatedAt = at
	return nil
}

type memSequences struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func (s *memSequences) Next(_ context.Context, name string, start int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	if s.values == nil {
		s.values = map[string]int64{}
	}
	current, ok := s.values[name]
	if !ok {
		s.values[name] = start
		return start, nil
	}
	s.values[name] = current + 1
	return current + 1, nil
}

// plainHasher keeps tests fast; argon2 is covered by the security package.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Verify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "hashed:") {
		return false, fmt.Errorf("unsupported hash")
	}
	return encoded == "hashed:"+password, nil
}

type sentMail struct {
	kind      string
	to        string
	code      string
	purpose   domain.ChallengePurpose
	tutorCode string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
	// failKinds fails only the listed mail kinds.
	failKinds map[string]bool
}

func (m *recordingMailer) record(mail sentMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil || m.failKinds[mail.kind] {
		if m.err != nil {
			return m.err
		}
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *recordingMailer) SendOTP(_ context.Context, to, code string, purpose domain.ChallengePurpose, _ time.Time) error {
	return m.record(sentMail{kind: "otp", to: to, code: code, purpose: purpose})
}

func (m *recordingMailer) SendWelcome(_ context.Context, to, _ string, _ time.Time) error {
	return m.record(sentMail{kind: "welcome", to: to})
}

func (m *recordingMailer) SendTutorWelcome(_ context.Context, to, _ string, tutorCode string, _ time.Time) error {
	return m.record(sentMail{kind: "tutor_welcome", to: to, tutorCode: tutorCode})
}

func (m *recordingMailer) SendTutorApproved(_ context.Context, to, _ string) error {
	return m.record(sentMail{kind: "tutor_approved", to: to})
}

func (m *recordingMailer) SendLockNotice(_ context.Context, to string, _ time.Time) error {
	return m.record(sentMail{kind: "lock_notice", to: to})
}

func (m *recordingMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, mail := range m.sent {
		if mail.kind == kind {
			n++
		}
	}
	return n
}

func (m *recordingMailer) last(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

type fakeTokens struct {
	mu     sync.Mutex
	minted []string
}

func (t *fakeTokens) Mint(_ context.Context, account domain.Account) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.minted = append(t.minted, account.ID)
	return "token-" + account.ID, nil
}

type historyEntry struct {
	event     domain.LoginEvent
	accountID string
	ip        string
}

type memHistory struct {
	mu      sync.Mutex
	entries []historyEntry
	err     error
}

func (h *memHistory) RecordLogin(_ context.Context, accountID, ip string) error {
	return h.record(domain.LoginEventLogin, accountID, ip)
}

func (h *memHistory) RecordLogout(_ context.Context, accountID, ip string) error {
	return h.record(domain.LoginEventLogout, accountID, ip)
}

func (h *memHistory) record(event domain.LoginEvent, accountID, ip string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, historyEntry{event: event, accountID: accountID, ip: ip})
	return nil
}

type recordingEvents struct {
	mu         sync.Mutex
	registered []domain.AccountRegisteredEvent
	locked     []domain.AccountLockedEvent
	resets     []domain.PasswordResetEvent
	changes    []domain.AccountStatusChangedEvent
	err        error
}

func (e *recordingEvents) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = append(e.registered, event)
	return e.err
}

func (e *recordingEvents) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = append(e.locked, event)
	return e.err
}

func (e *recordingEvents) PublishPasswordReset(_ context.Context, event domain.PasswordResetEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets = append(e.resets, event)
	return e.err
}

func (e *recordingEvents) PublishAccountStatusChanged(_ context.Context, event domain.AccountStatusChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, event)
	return e.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	lockouts int
}

func (m *recordingMetrics) ObserveOutcome(flow, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[flow+"/"+outcome]++
}

func (m *recordingMetrics) IncLockout() {
	m.mu.Lock()
	m.lockouts++
	m.mu.Unlock()
}

// sequentialCodes hands out 100001, 100002, ... so tests know every code.
func sequentialCodes() func() (string, error) {
	var mu sync.Mutex
	next := 100000
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("%d", next), nil
	}
}

func syncSpawn(fn func()) { fn() }

// harness wires every service against the same fakes.
type harness struct {
	clock      *fakeClock
	cache      *memCache
	accounts   *memAccounts
	sequences  *memSequences
	mailer     *recordingMailer
	tokens     *fakeTokens
	history    *memHistory
	events     *recordingEvents
	metrics    *recordingMetrics
	challenges *ChallengeStore

	registration *RegistrationService
	admin        *AdminAuthService
	login        *LoginService
	reset        *PasswordResetService
	review       *ReviewService
	guard        *LockoutGuard
}

func newHarness() *harness {
	h := &harness{
		clock:     newFakeClock(),
		accounts:  newMemAccounts(),
		sequences: &memSequences{},
		mailer:    &recordingMailer{},
		tokens:    &fakeTokens{},
		history:   &memHistory{},
		events:    &recordingEvents{},
		metrics:   &recordingMetrics{},
	}
	h.cache = newMemCache(h.clock)
	h.challenges = NewChallengeStore(h.cache, 2*time.Minute).WithCodeGenerator(sequentialCodes())

	h.guard = NewLockoutGuard(h.accounts, h.mailer, h.events, LockoutPolicy{Threshold: 5, Duration: 10 * time.Minute}).
		WithClock(h.clock.Now).
		WithMetrics(h.metrics)
	h.registration = NewRegistrationService(h.accounts, h.sequences, plainHasher{}, nil, h.challenges, h.mailer, h.tokens, h.history, h.events, TutorCodeOptions{}).
		WithClock(h.clock.Now).
		WithSpawner(syncSpawn).
		WithMetrics(h.metrics)
	h.admin = NewAdminAuthService(h.accounts, plainHasher{}, h.guard, h.challenges, h.mailer, h.tokens, h.history).
		WithClock(h.clock.Now).
		WithMetrics(h.metrics)
	h.login = NewLoginService(h.accounts, plainHasher{}, h.tokens, h.history).WithMetrics(h.metrics)
	h.reset = NewPasswordResetService(h.accounts, plainHasher{}, nil, h.challenges, h.mailer, h.events).
		WithClock(h.clock.Now).
		WithMetrics(h.metrics)
	h.review = NewReviewService(h.accounts, h.mailer, h.events).
		WithClock(h.clock.Now).
		WithSpawner(syncSpawn)
	return h
}

func (h *harness) seedAccount(email string, role domain.Role, status domain.AccountStatus, password string) *domain.Account {
	return h.accounts.add(domain.Account{
		Email:        email,
		PhoneNumber:  "+1555" + fmt.Sprintf("%07d", len(h.accounts.accounts)+1),
		PasswordHash: "hashed:" + password,
		Role:         role,
		Status:       status,
		CreatedAt:    h.clock.Now(),
		DisplayName:  "Seeded " + strings.ToLower(string(role)),
	})
}

func (h *harness) lastOTP(t interface{ Fatalf(string, ...any) }, purpose domain.ChallengePurpose) string {
	h.mailer.mu.Lock()
	defer h.mailer.mu.Unlock()
	for i := len(h.mailer.sent) - 1; i >= 0; i-- {
		if h.mailer.sent[i].kind == "otp" && h.mailer.sent[i].purpose == purpose {
			return h.mailer.sent[i].code
		}
	}
	t.Fatalf("no %s otp was mailed", purpose)
	return ""
}
