package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ecatalogue/internal/domain"

	"github.com/google/uuid"
)

// CategorySort selects the ordering of category listings
type CategorySort string

const (
	// CategorySortName orders by sort order then name (storefront)
	CategorySortName CategorySort = "name"
	// CategorySortNewest orders by sort order then newest first (back office)
	CategorySortNewest CategorySort = "newest"
)

// CategoryFilter narrows a category listing
type CategoryFilter struct {
	Search string
	Active *bool
	Sort   CategorySort
	Page   int
	Limit  int
}

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	FindByName(ctx context.Context, name string) (*domain.Category, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Category, error)
	FindAll(ctx context.Context) ([]*domain.Category, error)
	List(ctx context.Context, filter CategoryFilter) ([]*domain.Category, int, error)
	UpdateProductCount(ctx context.Context, id uuid.UUID, count int) error
}

const categoryColumns = `id, name, description, image, is_active, sort_order, product_count, created_at, updated_at`

type categoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// Create inserts a new category. The product count always starts at zero.
func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	image, err := json.Marshal(category.Image)
	if err != nil {
		return fmt.Errorf("failed to encode category image: %w", err)
	}

	query := `
		INSERT INTO categories (id, name, description, image, is_active, sort_order, product_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, 0, $7, $8)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		category.ID,
		category.Name,
		category.Description,
		image,
		category.IsActive,
		category.SortOrder,
		category.CreatedAt,
		category.UpdatedAt,
	)
	if err != nil {
		if _, ok := violatedConstraint(err); ok {
			return ErrCategoryAlreadyExists
		}
		return storeError("failed to create category", err)
	}

	category.ProductCount = 0
	return nil
}

// Update writes the client-editable fields. product_count is owned by
// UpdateProductCount and never written here.
func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	image, err := json.Marshal(category.Image)
	if err != nil {
		return fmt.Errorf("failed to encode category image: %w", err)
	}

	query := `
		UPDATE categories
		SET name = $2, description = $3, image = $4::jsonb, is_active = $5,
		    sort_order = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		category.ID,
		category.Name,
		category.Description,
		image,
		category.IsActive,
		category.SortOrder,
		category.UpdatedAt,
	)
	if err != nil {
		if _, ok := violatedConstraint(err); ok {
			return ErrCategoryAlreadyExists
		}
		return storeError("failed to update category", err)
	}

	return expectOneRow(result, ErrCategoryNotFound)
}

func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return storeError("failed to delete category", err)
	}

	return expectOneRow(result, ErrCategoryNotFound)
}

func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	category, err := scanCategory(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, storeError("failed to find category by ID", err)
	}

	return category, nil
}

func (r *categoryRepository) FindByName(ctx context.Context, name string) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE name = $1`

	category, err := scanCategory(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, storeError("failed to find category by name", err)
	}

	return category, nil
}

// FindByIDs returns the categories that exist among ids, in no particular order
func (r *categoryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Category, error) {
	if len(ids) == 0 {
		return []*domain.Category{}, nil
	}

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ANY($1::uuid[])`

	rows, err := r.db.QueryContext(ctx, query, raw)
	if err != nil {
		return nil, storeError("failed to find categories", err)
	}
	defer rows.Close()

	return collectCategories(rows)
}

func (r *categoryRepository) FindAll(ctx context.Context) ([]*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY sort_order ASC, name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeError("failed to list categories", err)
	}
	defer rows.Close()

	return collectCategories(rows)
}

// List retrieves categories with optional status and text filtering, pagination and sorting
func (r *categoryRepository) List(ctx context.Context, filter CategoryFilter) ([]*domain.Category, int, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, search)
		conditions = append(conditions, fmt.Sprintf("search_vector @@ plainto_tsquery('english', $%d)", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM categories %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, storeError("failed to count categories", err)
	}

	orderBy := "sort_order ASC, name ASC"
	if filter.Sort == CategorySortNewest {
		orderBy = "sort_order ASC, created_at DESC"
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM categories
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, categoryColumns, whereClause, orderBy, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, storeError("failed to list categories", err)
	}
	defer rows.Close()

	categories, err := collectCategories(rows)
	if err != nil {
		return nil, 0, err
	}

	return categories, total, nil
}

// UpdateProductCount writes the denormalized product count
func (r *categoryRepository) UpdateProductCount(ctx context.Context, id uuid.UUID, count int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE categories SET product_count = $2 WHERE id = $1`, id, count)
	if err != nil {
		return storeError("failed to update product count", err)
	}

	return expectOneRow(result, ErrCategoryNotFound)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCategory(row rowScanner) (*domain.Category, error) {
	var (
		category = &domain.Category{}
		image    []byte
	)

	err := row.Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&image,
		&category.IsActive,
		&category.SortOrder,
		&category.ProductCount,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(image, &category.Image); err != nil {
		return nil, fmt.Errorf("failed to decode category image: %w", err)
	}

	return category, nil
}

func collectCategories(rows *sql.Rows) ([]*domain.Category, error) {
	categories := []*domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, storeError("failed to scan category", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("error iterating categories", err)
	}

	return categories, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}

// pageBounds turns a 1-based page and a page size into LIMIT and OFFSET
func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return limit, (page - 1) * limit
}
