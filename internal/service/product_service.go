package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/identifier"
	"ecatalogue/internal/repository"
	"ecatalogue/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxProductImages is the number of images a product may carry
	MaxProductImages = 5

	publicProductLimit    = 12
	maxPublicProductLimit = 50
	adminProductLimit     = 20
	maxAdminProductLimit  = 100
)

var (
	ErrImagesRequired     = domain.NewValidationError("images", "At least one product image is required")
	ErrTooManyImages      = domain.NewValidationError("images", fmt.Sprintf("A product can have at most %d images", MaxProductImages))
	ErrCategoryOrTag      = domain.NewValidationError("categoryId", "Either categoryId or tag is required")
	ErrUnknownCategory    = domain.NewError(domain.ErrNotFound, "selected category does not exist")
	validProductSortOrder = map[string]repository.ProductSort{
		"":           repository.SortNewest,
		"newest":     repository.SortNewest,
		"oldest":     repository.SortOldest,
		"name":       repository.SortName,
		"price_asc":  repository.SortPriceAsc,
		"price_desc": repository.SortPriceDesc,
	}
)

// ProductInput carries the client-supplied product fields. Nil fields are
// left untouched on update.
type ProductInput struct {
	Name             *string                 `json:"name" validate:"omitempty,min=1,max=100"`
	Description      *string                 `json:"description" validate:"omitempty,min=1,max=2000"`
	ShortDescription *string                 `json:"shortDescription" validate:"omitempty,max=200"`
	Price            *float64                `json:"price" validate:"omitempty,gte=0"`
	OriginalPrice    *float64                `json:"originalPrice" validate:"omitempty,gte=0"`
	CategoryIDs      []uuid.UUID             `json:"categoryIds"`
	Tag              *string                 `json:"tag" validate:"omitempty,max=50"`
	Specifications   *[]domain.Specification `json:"specifications"`
	Features         *[]string               `json:"features"`
	SKU              *string                 `json:"sku" validate:"omitempty,max=64"`
	Stock            *int                    `json:"stock" validate:"omitempty,gte=0"`
	Weight           *float64                `json:"weight" validate:"omitempty,gte=0"`
	Dimensions       *domain.Dimensions      `json:"dimensions"`
	IsActive         *bool                   `json:"isActive"`
	Featured         *bool                   `json:"featured"`
	Trending         *bool                   `json:"trending"`
	SEOTitle         *string                 `json:"seoTitle" validate:"omitempty,max=60"`
	SEODescription   *string                 `json:"seoDescription" validate:"omitempty,max=160"`
	MainImageIndex   *int                    `json:"mainImageIndex" validate:"omitempty,gte=0"`
}

// ProductQuery narrows a product listing
type ProductQuery struct {
	Search   string
	Tag      string
	Sort     string
	Status   string
	Featured *bool
	Trending *bool
	Page     int
	Limit    int
}

// ProductPage is one page of products
type ProductPage struct {
	Products   []*domain.Product `json:"products"`
	Pagination Pagination        `json:"pagination"`
}

// ProductService defines the interface for product business logic
type ProductService interface {
	ListPublic(ctx context.Context, query ProductQuery) (*ProductPage, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID, page, limit int) (*ProductPage, error)
	ListByTag(ctx context.Context, tag string, page, limit int) (*ProductPage, error)
	ListAdmin(ctx context.Context, query ProductQuery) (*ProductPage, error)
	Tags(ctx context.Context) ([]domain.TagCount, error)
	GetPublic(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	Create(ctx context.Context, input ProductInput, files []storage.File) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input ProductInput, files []storage.File) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	products    repository.ProductRepository
	categories  repository.CategoryRepository
	consistency *ConsistencyMaintainer
	images      *ImageLifecycle
	logger      *zap.Logger
	now         func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	consistency *ConsistencyMaintainer,
	images *ImageLifecycle,
	logger *zap.Logger,
) ProductService {
	return &productService{
		products:    products,
		categories:  categories,
		consistency: consistency,
		images:      images,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListPublic lists active products with optional search, tag, highlight flags
// and sort
func (s *productService) ListPublic(ctx context.Context, query ProductQuery) (*ProductPage, error) {
	page, limit, err := pageParams(query.Page, query.Limit, publicProductLimit, maxPublicProductLimit)
	if err != nil {
		return nil, err
	}

	sort, ok := validProductSortOrder[query.Sort]
	if !ok {
		return nil, domain.NewValidationError("sort", "Must be one of: newest oldest name price_asc price_desc")
	}

	active := true
	return s.list(ctx, repository.ProductFilter{
		Search:   query.Search,
		Tag:      query.Tag,
		Active:   &active,
		Featured: query.Featured,
		Trending: query.Trending,
		Sort:     sort,
		Page:     page,
		Limit:    limit,
	})
}

func (s *productService) ListByCategory(ctx context.Context, categoryID uuid.UUID, page, limit int) (*ProductPage, error) {
	page, limit, err := pageParams(page, limit, publicProductLimit, maxPublicProductLimit)
	if err != nil {
		return nil, err
	}

	active := true
	return s.list(ctx, repository.ProductFilter{
		CategoryID: &categoryID,
		Active:     &active,
		Sort:       repository.SortNewest,
		Page:       page,
		Limit:      limit,
	})
}

func (s *productService) ListByTag(ctx context.Context, tag string, page, limit int) (*ProductPage, error) {
	page, limit, err := pageParams(page, limit, publicProductLimit, maxPublicProductLimit)
	if err != nil {
		return nil, err
	}

	active := true
	return s.list(ctx, repository.ProductFilter{
		Tag:    identifier.NormalizeTag(tag),
		Active: &active,
		Sort:   repository.SortNewest,
		Page:   page,
		Limit:  limit,
	})
}

// ListAdmin lists products regardless of status unless one is requested
func (s *productService) ListAdmin(ctx context.Context, query ProductQuery) (*ProductPage, error) {
	page, limit, err := pageParams(query.Page, query.Limit, adminProductLimit, maxAdminProductLimit)
	if err != nil {
		return nil, err
	}

	active, err := statusFilter(query.Status)
	if err != nil {
		return nil, err
	}

	sort, ok := validProductSortOrder[query.Sort]
	if !ok {
		return nil, domain.NewValidationError("sort", "Must be one of: newest oldest name price_asc price_desc")
	}

	return s.list(ctx, repository.ProductFilter{
		Search:   query.Search,
		Tag:      query.Tag,
		Active:   active,
		Featured: query.Featured,
		Trending: query.Trending,
		Sort:     sort,
		Page:     page,
		Limit:    limit,
	})
}

func (s *productService) list(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error) {
	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &ProductPage{Products: products, Pagination: newPagination(filter.Page, filter.Limit, total)}, nil
}

// Tags returns the tags of active products, most used first
func (s *productService) Tags(ctx context.Context) ([]domain.TagCount, error) {
	tags, err := s.products.DistinctTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// GetPublic returns an active product and counts the view
func (s *productService) GetPublic(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.viewed(ctx, product)
}

// GetBySlug looks an active product up by its unique slug and counts the view
func (s *productService) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	return s.viewed(ctx, product)
}

func (s *productService) viewed(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if !product.IsActive {
		return nil, repository.ErrProductNotFound
	}

	if err := s.products.IncrementViews(ctx, product.ID); err != nil {
		s.logger.Warn("Failed to count product view", zap.String("product_id", product.ID.String()), zap.Error(err))
		return product, nil
	}

	product.Views++
	return product, nil
}

// Create validates the input, verifies the categories, uploads the images and
// stores the product. Uploaded images are discarded if the product cannot be
// stored.
func (s *productService) Create(ctx context.Context, input ProductInput, files []storage.File) (*domain.Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := requireProductFields(input); err != nil {
		return nil, err
	}

	switch {
	case len(files) == 0:
		return nil, ErrImagesRequired
	case len(files) > MaxProductImages:
		return nil, ErrTooManyImages
	}

	if len(input.CategoryIDs) == 0 && strings.TrimSpace(deref(input.Tag)) == "" {
		return nil, ErrCategoryOrTag
	}

	categories, err := s.resolveCategories(ctx, input.CategoryIDs)
	if err != nil {
		return nil, err
	}

	assets, err := s.images.UploadAll(ctx, storage.ProductFolder, files)
	if err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:       uuid.New(),
		IsActive: true,
	}
	applyProductInput(product, input)
	product.Images = productImages(product.Name, assets)
	product.AssignCategories(categories, strings.TrimSpace(deref(input.Tag)))
	product.PrepareForCreate(s.now(), input.MainImageIndex)

	if err := s.products.Create(ctx, product); err != nil {
		s.images.Discard(ctx, "product create failed", assets...)
		return nil, err
	}

	s.recompute(ctx, product.Categories)

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("slug", product.Slug),
		zap.String("sku", product.SKU),
	)

	return product, nil
}

// Update applies a partial update. New uploads replace the image list; the
// assets the product no longer references are released after the write.
func (s *productService) Update(ctx context.Context, id uuid.UUID, input ProductInput, files []storage.File) (*domain.Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if len(files) > MaxProductImages {
		return nil, ErrTooManyImages
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var categories []*domain.Category
	if input.CategoryIDs != nil {
		if categories, err = s.resolveCategories(ctx, input.CategoryIDs); err != nil {
			return nil, err
		}
	}

	tag := strings.TrimSpace(deref(input.Tag))
	if input.CategoryIDs != nil && len(input.CategoryIDs) == 0 && tag == "" && product.Tag == "" {
		return nil, ErrCategoryOrTag
	}

	var assets []domain.ImageAsset
	if len(files) > 0 {
		if assets, err = s.images.UploadAll(ctx, storage.ProductFolder, files); err != nil {
			return nil, err
		}
	}

	previousCategories := append([]uuid.UUID{}, product.Categories...)
	previousAssets := product.AssetIDs()

	applyProductInput(product, input)
	switch {
	case input.CategoryIDs != nil:
		product.AssignCategories(categories, tag)
	case tag != "":
		product.Tag = identifier.NormalizeTag(tag)
	}
	if len(assets) > 0 {
		product.Images = productImages(product.Name, assets)
	}
	product.PrepareForUpdate(s.now(), input.MainImageIndex)

	if err := s.products.Update(ctx, product); err != nil {
		s.images.Discard(ctx, "product update failed", assets...)
		return nil, err
	}

	s.recompute(ctx, affectedCategories(previousCategories, product.Categories))
	s.images.ReleaseSuperseded(ctx, previousAssets, product.AssetIDs())

	s.logger.Info("Product updated", zap.String("product_id", product.ID.String()))

	return product, nil
}

// Delete removes the product, recounts its categories and releases its assets
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.recompute(ctx, product.Categories)
	s.images.ReleaseProduct(ctx, product)

	s.logger.Info("Product deleted", zap.String("product_id", id.String()))

	return nil
}

// resolveCategories loads the given categories in request order. Every id
// must exist.
func (s *productService) resolveCategories(ctx context.Context, ids []uuid.UUID) ([]*domain.Category, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	found, err := s.categories.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to verify categories: %w", err)
	}

	byID := make(map[uuid.UUID]*domain.Category, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	ordered := make([]*domain.Category, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, ErrUnknownCategory
		}
		ordered = append(ordered, c)
	}

	return ordered, nil
}

// recompute refreshes the counts of the given categories. The product write
// has already succeeded, so a failure is logged and left to read-repair.
func (s *productService) recompute(ctx context.Context, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}

	if err := s.consistency.Recompute(ctx, ids...); err != nil {
		s.logger.Error("Failed to recompute category product counts", zap.Error(err))
	}
}

func requireProductFields(input ProductInput) error {
	verr := &domain.ValidationError{Message: "Invalid input data"}

	if strings.TrimSpace(deref(input.Name)) == "" {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "name", Message: "Product name is required"})
	}
	if strings.TrimSpace(deref(input.Description)) == "" {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "description", Message: "Product description is required"})
	}
	if input.Price == nil {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "price", Message: "Product price is required"})
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func applyProductInput(product *domain.Product, input ProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.ShortDescription != nil {
		product.ShortDescription = strings.TrimSpace(*input.ShortDescription)
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.OriginalPrice != nil {
		product.OriginalPrice = input.OriginalPrice
	}
	if input.Specifications != nil {
		product.Specifications = *input.Specifications
	}
	if input.Features != nil {
		product.Features = *input.Features
	}
	if input.SKU != nil && strings.TrimSpace(*input.SKU) != "" {
		product.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.Stock != nil {
		product.Stock = *input.Stock
	}
	if input.Weight != nil {
		product.Weight = input.Weight
	}
	if input.Dimensions != nil {
		product.Dimensions = input.Dimensions
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if input.Featured != nil {
		product.Featured = *input.Featured
	}
	if input.Trending != nil {
		product.Trending = *input.Trending
	}
	if input.SEOTitle != nil {
		product.SEOTitle = strings.TrimSpace(*input.SEOTitle)
	}
	if input.SEODescription != nil {
		product.SEODescription = strings.TrimSpace(*input.SEODescription)
	}
}

func productImages(name string, assets []domain.ImageAsset) []domain.ProductImage {
	images := make([]domain.ProductImage, 0, len(assets))
	for i, asset := range assets {
		images = append(images, domain.ProductImage{
			URL:     asset.URL,
			AssetID: asset.AssetID,
			Alt:     fmt.Sprintf("%s - Image %d", name, i+1),
		})
	}
	return images
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
