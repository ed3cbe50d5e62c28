package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ecatalogue/internal/domain"

	"github.com/google/uuid"
)

// AdminRepository defines the interface for back-office account data access
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Admin) error
	FindByEmail(ctx context.Context, email string) (*domain.Admin, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Count(ctx context.Context) (int, error)
}

const adminColumns = `id, email, password_hash, name, role, is_active, last_login_at, created_at, updated_at`

type adminRepository struct {
	db *sql.DB
}

// NewAdminRepository creates a new instance of AdminRepository
func NewAdminRepository(db *sql.DB) AdminRepository {
	return &adminRepository{db: db}
}

// Create inserts a new admin. Emails are stored lowercased.
func (r *adminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	query := `
		INSERT INTO admins (id, email, password_hash, name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	admin.Email = strings.ToLower(admin.Email)
	_, err := r.db.ExecContext(
		ctx,
		query,
		admin.ID,
		admin.Email,
		admin.PasswordHash,
		admin.Name,
		admin.Role,
		admin.IsActive,
		admin.CreatedAt,
		admin.UpdatedAt,
	)
	if err != nil {
		if _, ok := violatedConstraint(err); ok {
			return ErrAdminAlreadyExists
		}
		return storeError("failed to create admin", err)
	}

	return nil
}

func (r *adminRepository) FindByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE email = $1`

	admin, err := scanAdmin(r.db.QueryRowContext(ctx, query, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, storeError("failed to find admin by email", err)
	}

	return admin, nil
}

func (r *adminRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1`

	admin, err := scanAdmin(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, storeError("failed to find admin by ID", err)
	}

	return admin, nil
}

func (r *adminRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE admins SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return storeError("failed to update last login", err)
	}

	return expectOneRow(result, ErrAdminNotFound)
}

// Count returns the number of admin accounts
func (r *adminRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return 0, storeError("failed to count admins", err)
	}
	return count, nil
}

func scanAdmin(row rowScanner) (*domain.Admin, error) {
	var (
		admin     = &domain.Admin{}
		lastLogin sql.NullTime
	)

	err := row.Scan(
		&admin.ID,
		&admin.Email,
		&admin.PasswordHash,
		&admin.Name,
		&admin.Role,
		&admin.IsActive,
		&lastLogin,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		admin.LastLoginAt = &lastLogin.Time
	}

	return admin, nil
}
