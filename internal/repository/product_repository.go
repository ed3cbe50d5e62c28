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

// ProductSort selects the ordering of product listings
type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortOldest    ProductSort = "oldest"
	SortName      ProductSort = "name"
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
)

var productOrderBy = map[ProductSort]string{
	SortNewest:    "created_at DESC",
	SortOldest:    "created_at ASC",
	SortName:      "name ASC",
	SortPriceAsc:  "price ASC",
	SortPriceDesc: "price DESC",
}

// ProductFilter narrows a product listing. Nil pointers mean "any".
type ProductFilter struct {
	Search     string
	Tag        string
	CategoryID *uuid.UUID
	Active     *bool
	Featured   *bool
	Trending   *bool
	Sort       ProductSort
	Page       int
	Limit      int
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error)
	CountActiveByCategory(ctx context.Context, categoryID uuid.UUID) (int, error)
	CountByCategory(ctx context.Context, categoryID uuid.UUID) (int, error)
	DistinctTags(ctx context.Context) ([]domain.TagCount, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
	FindUncategorizedWithTag(ctx context.Context) ([]*domain.Product, error)
}

const productColumns = `id, name, description, short_description, price, original_price, categories, tag,
	images, image, specifications, features, sku, stock, weight, dimensions, is_active, slug,
	featured, trending, seo_title, seo_description, views, created_at, updated_at`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// productDocument holds the JSONB encodings of a product's nested values
type productDocument struct {
	categories     []byte
	images         []byte
	image          interface{}
	specifications []byte
	features       []byte
	dimensions     interface{}
}

func encodeProduct(product *domain.Product) (*productDocument, error) {
	var (
		doc = &productDocument{}
		err error
	)

	categories := product.Categories
	if categories == nil {
		categories = []uuid.UUID{}
	}
	if doc.categories, err = json.Marshal(categories); err != nil {
		return nil, fmt.Errorf("failed to encode categories: %w", err)
	}

	images := product.Images
	if images == nil {
		images = []domain.ProductImage{}
	}
	if doc.images, err = json.Marshal(images); err != nil {
		return nil, fmt.Errorf("failed to encode images: %w", err)
	}

	specifications := product.Specifications
	if specifications == nil {
		specifications = []domain.Specification{}
	}
	if doc.specifications, err = json.Marshal(specifications); err != nil {
		return nil, fmt.Errorf("failed to encode specifications: %w", err)
	}

	features := product.Features
	if features == nil {
		features = []string{}
	}
	if doc.features, err = json.Marshal(features); err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}

	if product.Image != nil && !product.Image.IsZero() {
		raw, err := json.Marshal(product.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		doc.image = raw
	}

	if product.Dimensions != nil {
		raw, err := json.Marshal(product.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode dimensions: %w", err)
		}
		doc.dimensions = raw
	}

	return doc, nil
}

// Create inserts a new product. Slug and SKU collisions surface as conflicts.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	doc, err := encodeProduct(product)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, name, description, short_description, price, original_price,
			categories, tag, images, image, specifications, features, sku, stock, weight,
			dimensions, is_active, slug, featured, trending, seo_title, seo_description,
			views, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9::jsonb, $10::jsonb, $11::jsonb,
			$12::jsonb, $13, $14, $15, $16::jsonb, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.ShortDescription,
		product.Price,
		product.OriginalPrice,
		doc.categories,
		product.Tag,
		doc.images,
		doc.image,
		doc.specifications,
		doc.features,
		product.SKU,
		product.Stock,
		product.Weight,
		doc.dimensions,
		product.IsActive,
		product.Slug,
		product.Featured,
		product.Trending,
		product.SEOTitle,
		product.SEODescription,
		product.Views,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return productWriteError("failed to create product", err)
	}

	return nil
}

// Update writes every mutable field. Slug, views and creation time are
// never rewritten.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	doc, err := encodeProduct(product)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET name = $2, description = $3, short_description = $4, price = $5, original_price = $6,
		    categories = $7::jsonb, tag = $8, images = $9::jsonb, image = $10::jsonb,
		    specifications = $11::jsonb, features = $12::jsonb, sku = $13, stock = $14,
		    weight = $15, dimensions = $16::jsonb, is_active = $17, featured = $18,
		    trending = $19, seo_title = $20, seo_description = $21, updated_at = $22
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.ShortDescription,
		product.Price,
		product.OriginalPrice,
		doc.categories,
		product.Tag,
		doc.images,
		doc.image,
		doc.specifications,
		doc.features,
		product.SKU,
		product.Stock,
		product.Weight,
		doc.dimensions,
		product.IsActive,
		product.Featured,
		product.Trending,
		product.SEOTitle,
		product.SEODescription,
		product.UpdatedAt,
	)
	if err != nil {
		return productWriteError("failed to update product", err)
	}

	return expectOneRow(result, ErrProductNotFound)
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return storeError("failed to delete product", err)
	}

	return expectOneRow(result, ErrProductNotFound)
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, storeError("failed to find product by ID", err)
	}

	return product, nil
}

func (r *productRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, storeError("failed to find product by slug", err)
	}

	return product, nil
}

// List retrieves products matching the filter with pagination and sorting
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error) {
	var (
		conditions []string
		args       []interface{}
	)

	add := func(expr string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if filter.Active != nil {
		add("is_active = $%d", *filter.Active)
	}
	if filter.Featured != nil {
		add("featured = $%d", *filter.Featured)
	}
	if filter.Trending != nil {
		add("trending = $%d", *filter.Trending)
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		add("tag = $%d", strings.ToLower(tag))
	}
	if filter.CategoryID != nil {
		add("categories @> $%d::jsonb", categoryContainment(*filter.CategoryID))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		add("search_vector @@ plainto_tsquery('english', $%d)", search)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, storeError("failed to count products", err)
	}

	orderBy, ok := productOrderBy[filter.Sort]
	if !ok {
		orderBy = productOrderBy[SortNewest]
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY %s, id
		LIMIT $%d OFFSET $%d
	`, productColumns, whereClause, orderBy, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, storeError("failed to list products", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// CountActiveByCategory counts active products assigned to the category
func (r *productRepository) CountActiveByCategory(ctx context.Context, categoryID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM products WHERE is_active = TRUE AND categories @> $1::jsonb`
	if err := r.db.QueryRowContext(ctx, query, categoryContainment(categoryID)).Scan(&count); err != nil {
		return 0, storeError("failed to count active products", err)
	}
	return count, nil
}

// CountByCategory counts every product assigned to the category, active or not
func (r *productRepository) CountByCategory(ctx context.Context, categoryID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM products WHERE categories @> $1::jsonb`
	if err := r.db.QueryRowContext(ctx, query, categoryContainment(categoryID)).Scan(&count); err != nil {
		return 0, storeError("failed to count products", err)
	}
	return count, nil
}

// DistinctTags returns the tags of active products with their counts, most
// used first.
func (r *productRepository) DistinctTags(ctx context.Context) ([]domain.TagCount, error) {
	query := `
		SELECT tag, COUNT(*)
		FROM products
		WHERE is_active = TRUE AND tag <> ''
		GROUP BY tag
		ORDER BY COUNT(*) DESC, tag ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeError("failed to list tags", err)
	}
	defer rows.Close()

	tags := []domain.TagCount{}
	for rows.Next() {
		var tc domain.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, storeError("failed to scan tag", err)
		}
		tags = append(tags, tc)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("error iterating tags", err)
	}

	return tags, nil
}

func (r *productRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return storeError("failed to increment views", err)
	}

	return expectOneRow(result, ErrProductNotFound)
}

// FindUncategorizedWithTag returns products that still rely on the legacy tag
func (r *productRepository) FindUncategorizedWithTag(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE jsonb_array_length(categories) = 0 AND tag <> ''
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeError("failed to find uncategorized products", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// categoryContainment is the JSONB operand matching products whose
// categories contain id
func categoryContainment(id uuid.UUID) []byte {
	return []byte(`["` + id.String() + `"]`)
}

func productWriteError(msg string, err error) error {
	if constraint, ok := violatedConstraint(err); ok {
		switch constraint {
		case "products_slug_key":
			return ErrDuplicateSlug
		case "products_sku_key":
			return ErrDuplicateSKU
		default:
			return domain.NewError(domain.ErrConflict, "product already exists")
		}
	}
	return storeError(msg, err)
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}

	var (
		categories, images, specifications, features []byte
		image, dimensions                            []byte
		sku                                          sql.NullString
	)

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.ShortDescription,
		&product.Price,
		&product.OriginalPrice,
		&categories,
		&product.Tag,
		&images,
		&image,
		&specifications,
		&features,
		&sku,
		&product.Stock,
		&product.Weight,
		&dimensions,
		&product.IsActive,
		&product.Slug,
		&product.Featured,
		&product.Trending,
		&product.SEOTitle,
		&product.SEODescription,
		&product.Views,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.SKU = sku.String

	if err := json.Unmarshal(categories, &product.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	if err := json.Unmarshal(images, &product.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}
	if err := json.Unmarshal(specifications, &product.Specifications); err != nil {
		return nil, fmt.Errorf("failed to decode specifications: %w", err)
	}
	if err := json.Unmarshal(features, &product.Features); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}
	if len(image) > 0 {
		product.Image = &domain.ImageAsset{}
		if err := json.Unmarshal(image, product.Image); err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
	}
	if len(dimensions) > 0 {
		product.Dimensions = &domain.Dimensions{}
		if err := json.Unmarshal(dimensions, product.Dimensions); err != nil {
			return nil, fmt.Errorf("failed to decode dimensions: %w", err)
		}
	}

	return product, nil
}

func collectProducts(rows *sql.Rows) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, storeError("failed to scan product", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("error iterating products", err)
	}

	return products, nil
}
