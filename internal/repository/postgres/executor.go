package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wizlearn/account-service/internal/repository"
)

const (
	accountsTable     = "wiz.accounts"
	profilesTable     = "wiz.profiles"
	sequencesTable    = "wiz.sequences"
	loginHistoryTable = "wiz.login_history"

	uniqueViolation = "23505"

	constraintEmailRole = "accounts_email_role_key"
	constraintPhoneRole = "accounts_phone_role_key"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// mapWriteError translates unique violations into repository sentinels.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case constraintEmailRole:
			return repository.ErrDuplicateEmail
		case constraintPhoneRole:
			return repository.ErrDuplicatePhone
		default:
			return fmt.Errorf("%s: %w", op, repository.ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
