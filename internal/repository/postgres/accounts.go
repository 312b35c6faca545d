package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/repository"
)

var accountColumns = []string{
	"a.id",
	"a.email",
	"a.phone_number",
	"a.password_hash",
	"a.role",
	"a.status",
	"a.failed_login_attempts",
	"a.locked_until",
	"a.created_at",
	"a.updated_at",
	"COALESCE(p.name, '')",
}

const accountReturning = "RETURNING id, email, phone_number, password_hash, role, status, failed_login_attempts, locked_until, created_at, updated_at"

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	repo := &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

func (r *AccountRepository) selectAccounts() squirrel.SelectBuilder {
	return r.builder.
		Select(accountColumns...).
		From(accountsTable + " a").
		LeftJoin(profilesTable + " p ON p.account_id = a.id")
}

// FindByID retrieves an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	stmt, args, err := r.selectAccounts().
		Where(squirrel.Eq{"a.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}
	return r.queryOne(ctx, "select account", stmt, args)
}

// FindByIDOrEmail resolves value against the account id or the email, restricted to roles when given.
func (r *AccountRepository) FindByIDOrEmail(ctx context.Context, value string, roles ...domain.Role) (*domain.Account, error) {
	var match squirrel.Sqlizer = squirrel.Eq{"a.email": domain.NormalizeEmail(value)}
	if _, err := uuid.Parse(value); err == nil {
		match = squirrel.Or{
			squirrel.Eq{"a.id": value},
			squirrel.Eq{"a.email": domain.NormalizeEmail(value)},
		}
	}

	query := r.selectAccounts().Where(match)
	if len(roles) > 0 {
		query = query.Where(squirrel.Eq{"a.role": roleStrings(roles)})
	}

	stmt, args, err := query.OrderBy("a.created_at").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by id or email sql: %w", err)
	}
	return r.queryOne(ctx, "select account by id or email", stmt, args)
}

// FindByEmailAndRole resolves an account by exact email and role.
func (r *AccountRepository) FindByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.Account, error) {
	stmt, args, err := r.selectAccounts().
		Where(squirrel.Eq{"a.email": domain.NormalizeEmail(email), "a.role": string(role)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by email sql: %w", err)
	}
	return r.queryOne(ctx, "select account by email", stmt, args)
}

// FindConflicts reports whether the email or the phone number is already taken within role.
func (r *AccountRepository) FindConflicts(ctx context.Context, email, phone string, role domain.Role) (bool, bool, error) {
	email = domain.NormalizeEmail(email)
	stmt, args, err := r.builder.
		Select().
		Column(squirrel.Expr("COALESCE(bool_or(email = ?), false)", email)).
		Column(squirrel.Expr("COALESCE(bool_or(phone_number = ?), false)", phone)).
		From(accountsTable).
		Where(squirrel.Eq{"role": string(role)}).
		Where(squirrel.Or{
			squirrel.Eq{"email": email},
			squirrel.Eq{"phone_number": phone},
		}).
		ToSql()
	if err != nil {
		return false, false, fmt.Errorf("build select conflicts sql: %w", err)
	}

	var emailTaken, phoneTaken bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&emailTaken, &phoneTaken); err != nil {
		return false, false, fmt.Errorf("select conflicts: %w", err)
	}
	return emailTaken, phoneTaken, nil
}

// Create inserts the account and its profile in one transaction.
func (r *AccountRepository) Create(ctx context.Context, account domain.NewAccount) (*domain.Account, error) {
	account.Email = domain.NormalizeEmail(account.Email)

	tx, err := r.exec.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create account: %w", err)
	}

	if err := r.WithTx(tx).insert(ctx, account); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapWriteError("commit create account", err)
	}

	created := account.Account()
	return &created, nil
}

func (r *AccountRepository) insert(ctx context.Context, account domain.NewAccount) error {
	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(
			"id",
			"email",
			"phone_number",
			"password_hash",
			"role",
			"status",
			"failed_login_attempts",
			"created_at",
			"updated_at",
		).
		Values(
			account.ID,
			account.Email,
			account.PhoneNumber,
			account.PasswordHash,
			string(account.Role),
			string(account.Status),
			0,
			account.CreatedAt,
			account.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return mapWriteError("insert account", err)
	}

	profile := account.Profile()
	var tutorCode any
	if profile.TutorCode != nil {
		tutorCode = *profile.TutorCode
	}
	stmt, args, err = r.builder.Insert(profilesTable).
		Columns("account_id", "name", "tutor_code", "created_at").
		Values(profile.AccountID, profile.Name, tutorCode, profile.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert profile sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return mapWriteError("insert profile", err)
	}
	return nil
}

// RegisterFailedAttempt increments the failure counter and sets the lock once the
// incremented value reaches threshold, in a single statement.
func (r *AccountRepository) RegisterFailedAttempt(ctx context.Context, id string, threshold int, lockUntil, at time.Time) (*domain.Account, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("failed_login_attempts", squirrel.Expr("failed_login_attempts + 1")).
		Set("locked_until", squirrel.Expr("CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE locked_until END", threshold, lockUntil)).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Suffix(accountReturning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build register failed attempt sql: %w", err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("register failed attempt: %w", err)
	}
	return account, nil
}

// ResetFailedAttempts zeroes the failure counter and clears the lock.
func (r *AccountRepository) ResetFailedAttempts(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("failed_login_attempts", 0).
		Set("locked_until", squirrel.Expr("NULL")).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset failed attempts sql: %w", err)
	}
	return r.execOne(ctx, "reset failed attempts", stmt, args)
}

// UpdatePassword stores a new password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("password_hash", passwordHash).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}
	return r.execOne(ctx, "update password", stmt, args)
}

// TransitionStatus moves the account from one status to another. It returns
// repository.ErrConflict when the account is not currently in from.
func (r *AccountRepository) TransitionStatus(ctx context.Context, id string, from, to domain.AccountStatus, at time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("status", string(to)).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build transition status sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *AccountRepository) execOne(ctx context.Context, op, stmt string, args []any) error {
	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) queryOne(ctx context.Context, op, stmt string, args []any) (*domain.Account, error) {
	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...), true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return account, nil
}

func scanAccount(row pgx.Row, withName bool) (*domain.Account, error) {
	var (
		account     domain.Account
		role        string
		status      string
		lockedUntil *time.Time
	)

	dest := []any{
		&account.ID,
		&account.Email,
		&account.PhoneNumber,
		&account.PasswordHash,
		&role,
		&status,
		&account.FailedLoginAttempts,
		&lockedUntil,
		&account.CreatedAt,
		&account.UpdatedAt,
	}
	if withName {
		dest = append(dest, &account.DisplayName)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	account.Role = domain.Role(role)
	account.Status = domain.AccountStatus(status)
	account.LockedUntil = lockedUntil
	return &account, nil
}

func roleStrings(roles []domain.Role) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return out
}
