package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/repository"
)

var accountRowColumns = []string{
	"id", "email", "phone_number", "password_hash", "role", "status", "failed_login_attempts", "locked_until", "created_at", "updated_at", "name",
}

func TestAccountRepository_FindByEmailAndRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)
	createdAt := time.Date(2025, 10, 24, 9, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(accountRowColumns).AddRow(
		"acc-1", "alice@example.com", "+1000000001", "hash", "USER", "ACTIVE", 0, nil, createdAt, createdAt, "Alice",
	)
	mock.ExpectQuery(`SELECT .*FROM wiz\.accounts a LEFT JOIN wiz\.profiles p`).
		WithArgs("alice@example.com", "USER").
		WillReturnRows(rows)

	account, err := repo.FindByEmailAndRole(context.Background(), " Alice@Example.com ", domain.RoleUser)
	if err != nil {
		t.Fatalf("FindByEmailAndRole returned error: %v", err)
	}
	if account.ID != "acc-1" || account.Role != domain.RoleUser || account.Status != domain.AccountStatusActive {
		t.Fatalf("unexpected account: %+v", account)
	}
	if account.DisplayName != "Alice" {
		t.Fatalf("expected display name from profile, got %q", account.DisplayName)
	}
	if account.LockedUntil != nil {
		t.Fatalf("expected no lock, got %v", account.LockedUntil)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByIDOrEmailNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM wiz\.accounts a .*WHERE a\.email = \$1 AND a\.role IN \(\$2,\$3\)`).
		WithArgs("admin@x.com", "ADMIN", "STAFF").
		WillReturnRows(pgxmock.NewRows(accountRowColumns))

	_, err = repo.FindByIDOrEmail(context.Background(), "admin@x.com", domain.RoleAdmin, domain.RoleStaff)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByIDOrEmailMatchesID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)
	id := "7d0c3a9e-4a43-4b59-9b7a-0d9b0f7f1c11"
	now := time.Date(2025, 10, 24, 9, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(accountRowColumns).AddRow(
		id, "admin@x.com", "+1000000009", "hash", "ADMIN", "ACTIVE", 2, nil, now, now, "",
	)
	mock.ExpectQuery(`WHERE \(a\.id = \$1 OR a\.email = \$2\)`).
		WithArgs(id, id, "ADMIN", "STAFF").
		WillReturnRows(rows)

	account, err := repo.FindByIDOrEmail(context.Background(), id, domain.RoleAdmin, domain.RoleStaff)
	if err != nil {
		t.Fatalf("FindByIDOrEmail returned error: %v", err)
	}
	if account.FailedLoginAttempts != 2 {
		t.Fatalf("expected 2 failed attempts, got %d", account.FailedLoginAttempts)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindConflicts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectQuery(`SELECT COALESCE\(bool_or\(email = \$1\), false\), COALESCE\(bool_or\(phone_number = \$2\), false\) FROM wiz\.accounts`).
		WithArgs("alice@example.com", "+1000000001", "TUTOR", "alice@example.com", "+1000000001").
		WillReturnRows(pgxmock.NewRows([]string{"email_taken", "phone_taken"}).AddRow(false, true))

	emailTaken, phoneTaken, err := repo.FindConflicts(context.Background(), "alice@example.com", "+1000000001", domain.RoleTutor)
	if err != nil {
		t.Fatalf("FindConflicts returned error: %v", err)
	}
	if emailTaken || !phoneTaken {
		t.Fatalf("expected phone conflict only, got email=%v phone=%v", emailTaken, phoneTaken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_CreateWritesAccountAndProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)
	now := time.Date(2025, 10, 24, 9, 0, 0, 0, time.UTC)
	code := "WIZ20251024/1001"

	account := domain.NewAccount{
		ID:           "acc-2",
		Email:        "tutor@example.com",
		PhoneNumber:  "+1000000002",
		PasswordHash: "hash",
		Role:         domain.RoleTutor,
		Status:       domain.AccountStatusPending,
		Name:         "Tess",
		TutorCode:    &code,
		CreatedAt:    now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO wiz\.accounts`).
		WithArgs("acc-2", "tutor@example.com", "+1000000002", "hash", "TUTOR", "PENDING", 0, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO wiz\.profiles`).
		WithArgs("acc-2", "Tess", code, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	created, err := repo.Create(context.Background(), account)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Status != domain.AccountStatusPending || created.DisplayName != "Tess" {
		t.Fatalf("unexpected created account: %+v", created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_CreateMapsUniqueViolations(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{"accounts_email_role_key", repository.ErrDuplicateEmail},
		{"accounts_phone_role_key", repository.ErrDuplicatePhone},
	}

	for _, tc := range cases {
		mock, err := pgxmock.NewPool()
		if err != nil {
			t.Fatalf("pgxmock.NewPool: %v", err)
		}

		repo := NewAccountRepository(mock)
		now := time.Date(2025, 10, 24, 9, 0, 0, 0, time.UTC)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO wiz\.accounts`).
			WithArgs("acc-3", "alice@example.com", "+1000000001", "hash", "USER", "ACTIVE", 0, now, now).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})
		mock.ExpectRollback()

		_, err = repo.Create(context.Background(), domain.NewAccount{
			ID:           "acc-3",
			Email:        "alice@example.com",
			PhoneNumber:  "+1000000001",
			PasswordHash: "hash",
			Role:         domain.RoleUser,
			Status:       domain.AccountStatusActive,
			CreatedAt:    now,
		})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.constraint, tc.want, err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("%s: unmet expectations: %v", tc.constraint, err)
		}
		mock.Close()
	}
}

func TestAccountRepository_RegisterFailedAttemptIsAtomic(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)
	now := time.Date(2025, 10, 24, 9, 0, 0, 0, time.UTC)
	lockUntil := now.Add(10 * time.Minute)

	rows := pgxmock.NewRows(accountRowColumns[:10]).AddRow(
		"acc-1", "admin@x.com", "+1000000009", "hash", "ADMIN", "ACTIVE", 5, &lockUntil, now, now,
	)
	mock.ExpectQuery(`UPDATE wiz\.accounts SET failed_login_attempts = failed_login_attempts \+ 1, locked_until = CASE WHEN failed_login_attempts \+ 1 >= \$1 THEN \$2 ELSE locked_until END`).
		WithArgs(5, lockUntil, now, "acc-1").
		WillReturnRows(rows)

	account, err := repo.RegisterFailedAttempt(context.Background(), "acc-1", 5, lockUntil, now)
	if err != nil {
		t.Fatalf("RegisterFailedAttempt returned error: %v", err)
	}
	if account.FailedLoginAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", account.FailedLoginAttempts)
	}
	if account.LockedUntil == nil || !account.LockedUntil.Equal(lockUntil) {
		t.Fatalf("expected lock until %v, got %v", lockUntil, account.LockedUntil)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_ResetFailedAttemptsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)
	now := time.Date(2025, 10, 24, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE wiz\.accounts SET failed_login_attempts = \$1, locked_until = NULL`).
		WithArgs(0, now, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.ResetFailedAttempts(context.Background(), "missing", now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_TransitionStatusRequiresExpectedState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)
	now := time.Date(2025, 10, 24, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE wiz\.accounts SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs("ACTIVE", now, "acc-2", "PENDING").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE wiz\.accounts SET status`).
		WithArgs("ACTIVE", now, "acc-2", "PENDING").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.TransitionStatus(context.Background(), "acc-2", domain.AccountStatusPending, domain.AccountStatusActive, now); err != nil {
		t.Fatalf("first transition returned error: %v", err)
	}
	if err := repo.TransitionStatus(context.Background(), "acc-2", domain.AccountStatusPending, domain.AccountStatusActive, now); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict on repeated transition, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
