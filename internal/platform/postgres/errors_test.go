package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/athenus/review-api/internal/store"
)

func pgError(code string) *pgconn.PgError {
	return &pgconn.PgError{Code: code, ConstraintName: "some_constraint"}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("query: %w", sql.ErrNoRows), store.ErrNotFound},
		{"unique violation", pgError(uniqueViolationCode), store.ErrDuplicate},
		{"foreign key violation", pgError(foreignKeyViolationCode), store.ErrInvalidEntity},
		{"check violation", pgError(checkViolationCode), store.ErrInvalidEntity},
		{"not null violation", pgError(notNullViolationCode), store.ErrInvalidEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := MapError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestMapErrorPassesThroughUnknownErrors(t *testing.T) {
	t.Parallel()

	original := errors.New("connection refused")
	assert.Same(t, original, MapError(original))
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(pgError(uniqueViolationCode)))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgError(uniqueViolationCode))))
	assert.False(t, IsUniqueViolation(pgError(foreignKeyViolationCode)))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}

func TestIsForeignKeyViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsForeignKeyViolation(pgError(foreignKeyViolationCode)))
	assert.False(t, IsForeignKeyViolation(pgError(uniqueViolationCode)))
}
