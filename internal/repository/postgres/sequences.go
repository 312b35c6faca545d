package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
)

// SequenceRepository allocates values from named counter rows.
type SequenceRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSequenceRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSequenceRepository(exec pgExecutor) *SequenceRepository {
	return &SequenceRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Next increments the named counter and returns the new value. The upsert holds the
// row lock for the statement, so concurrent callers always receive distinct values.
func (r *SequenceRepository) Next(ctx context.Context, name string, start int64) (int64, error) {
	stmt, args, err := r.builder.Insert(sequencesTable).
		Columns("name", "value").
		Values(name, start).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = " + sequencesTable + ".value + 1 RETURNING value").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build next sequence sql: %w", err)
	}

	var value int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&value); err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", name, err)
	}
	return value, nil
}
