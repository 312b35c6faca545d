package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/wizlearn/account-service/internal/core/domain"
)

// LoginHistoryRepository appends login audit rows.
type LoginHistoryRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLoginHistoryRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewLoginHistoryRepository(exec pgExecutor) *LoginHistoryRepository {
	return &LoginHistoryRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// RecordLogin appends a login entry.
func (r *LoginHistoryRepository) RecordLogin(ctx context.Context, accountID, ip string) error {
	return r.record(ctx, accountID, domain.LoginEventLogin, ip)
}

// RecordLogout appends a logout entry.
func (r *LoginHistoryRepository) RecordLogout(ctx context.Context, accountID, ip string) error {
	return r.record(ctx, accountID, domain.LoginEventLogout, ip)
}

func (r *LoginHistoryRepository) record(ctx context.Context, accountID string, event domain.LoginEvent, ip string) error {
	var ipValue any
	if ip != "" {
		ipValue = ip
	}

	stmt, args, err := r.builder.Insert(loginHistoryTable).
		Columns("id", "account_id", "event", "ip").
		Values(uuid.NewString(), accountID, string(event), ipValue).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert login history: %w", err)
	}
	return nil
}
