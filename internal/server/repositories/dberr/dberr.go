// Package dberr translates Postgres failures into the common error taxonomy.
package dberr

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories care about.
const (
	ForeignKeyViolation = "23503"
	UniqueViolation     = "23505"
	CheckViolation      = "23514"
)

// Map wraps err with the matching sentinel. Errors that are not constraint
// violations are wrapped as plain db errors.
func Map(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case ForeignKeyViolation:
			return fmt.Errorf("%w: %s", common.ErrReferentialIntegrity, pgErr.ConstraintName)
		case UniqueViolation:
			return fmt.Errorf("%w: %s", common.ErrAlreadyExists, pgErr.ConstraintName)
		case CheckViolation:
			return fmt.Errorf("%w: %s", common.ErrValidation, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("db error: %w", err)
}
