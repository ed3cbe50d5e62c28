package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ecatalogue/internal/domain"

	"github.com/google/uuid"
)

// RefreshTokenRepository defines the interface for refresh token data access
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForAdmin(ctx context.Context, adminID uuid.UUID) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type refreshTokenRepository struct {
	db *sql.DB
}

// NewRefreshTokenRepository creates a new instance of RefreshTokenRepository
func NewRefreshTokenRepository(db *sql.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

const refreshTokenColumns = `id, admin_id, token, expires_at, created_at, revoked`

// Create stores a newly issued refresh token
func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.AdminID, token.Token, token.ExpiresAt, token.CreatedAt, token.Revoked,
	)
	if err != nil {
		return storeError("failed to create refresh token", err)
	}
	return nil
}

// FindByToken returns a live token. Revoked tokens report ErrRefreshTokenRevoked;
// expiry is left to the caller.
func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token = $1`, token,
	).Scan(&t.ID, &t.AdminID, &t.Token, &t.ExpiresAt, &t.CreatedAt, &t.Revoked)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrRefreshTokenNotFound
	case err != nil:
		return nil, storeError("failed to find refresh token", err)
	case t.Revoked:
		return nil, ErrRefreshTokenRevoked
	}
	return &t, nil
}

// Revoke marks a single token as revoked
func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	if err != nil {
		return storeError("failed to revoke refresh token", err)
	}

	return expectOneRow(result, ErrRefreshTokenNotFound)
}

// RevokeAllForAdmin revokes every outstanding token of an admin
func (r *refreshTokenRepository) RevokeAllForAdmin(ctx context.Context, adminID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE admin_id = $1 AND NOT revoked`, adminID)
	if err != nil {
		return storeError("failed to revoke refresh tokens", err)
	}

	return nil
}

// DeleteExpired removes tokens that expired before the given instant
func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, storeError("failed to delete expired refresh tokens", err)
	}

	return result.RowsAffected()
}
