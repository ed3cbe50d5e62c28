package repository

import (
	"errors"
	"fmt"

	"ecatalogue/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE Postgres reports for a duplicate key
const uniqueViolation = "23505"

var (
	ErrProductNotFound      = domain.NewError(domain.ErrNotFound, "product not found")
	ErrCategoryNotFound     = domain.NewError(domain.ErrNotFound, "category not found")
	ErrAdminNotFound        = domain.NewError(domain.ErrNotFound, "admin not found")
	ErrRefreshTokenNotFound = domain.NewError(domain.ErrNotFound, "refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")

	ErrCategoryAlreadyExists = domain.NewError(domain.ErrConflict, "category with this name already exists")
	ErrAdminAlreadyExists    = domain.NewError(domain.ErrConflict, "admin with this email already exists")
	ErrDuplicateSlug         = domain.NewError(domain.ErrConflict, "product with this slug already exists")
	ErrDuplicateSKU          = domain.NewError(domain.ErrConflict, "product with this SKU already exists")
)

// violatedConstraint returns the name of the unique constraint err violates
func violatedConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// storeError wraps a driver failure so callers can classify it as ErrStore
func storeError(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, domain.ErrStore, err)
}
