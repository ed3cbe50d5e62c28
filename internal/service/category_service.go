package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/repository"
	"ecatalogue/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	publicCategoryLimit    = 20
	maxPublicCategoryLimit = 50
	adminCategoryLimit     = 20
	maxAdminCategoryLimit  = 100
)

var ErrCategoryImageRequired = domain.NewValidationError("image", "Category image is required")

// CategoryInput carries the client-supplied category fields. Nil fields are
// left untouched on update.
type CategoryInput struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	SortOrder   *int    `json:"sortOrder" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"isActive"`
}

// CategoryQuery narrows a category listing
type CategoryQuery struct {
	Search string
	Status string
	Active *bool
	Page   int
	Limit  int
}

// CategoryPage is one page of categories
type CategoryPage struct {
	Categories []*domain.Category `json:"categories"`
	Pagination Pagination         `json:"pagination"`
}

// CategoryService defines the interface for category business logic
type CategoryService interface {
	ListPublic(ctx context.Context, query CategoryQuery) (*CategoryPage, error)
	ListAdmin(ctx context.Context, query CategoryQuery) (*CategoryPage, error)
	GetPublic(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	Create(ctx context.Context, input CategoryInput, file *storage.File) (*domain.Category, error)
	Update(ctx context.Context, id uuid.UUID, input CategoryInput, file *storage.File) (*domain.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Recount(ctx context.Context) (int, error)
}

type categoryService struct {
	categories  repository.CategoryRepository
	consistency *ConsistencyMaintainer
	images      *ImageLifecycle
	logger      *zap.Logger
	now         func() time.Time
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(
	categories repository.CategoryRepository,
	consistency *ConsistencyMaintainer,
	images *ImageLifecycle,
	logger *zap.Logger,
) CategoryService {
	return &categoryService{
		categories:  categories,
		consistency: consistency,
		images:      images,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListPublic lists categories by sort order and name, optionally filtered by
// active flag. Stale product counts are repaired before returning.
func (s *categoryService) ListPublic(ctx context.Context, query CategoryQuery) (*CategoryPage, error) {
	page, limit, err := pageParams(query.Page, query.Limit, publicCategoryLimit, maxPublicCategoryLimit)
	if err != nil {
		return nil, err
	}

	return s.list(ctx, repository.CategoryFilter{
		Active: query.Active,
		Sort:   repository.CategorySortName,
		Page:   page,
		Limit:  limit,
	})
}

// ListAdmin lists categories for the back office, newest first within a sort order
func (s *categoryService) ListAdmin(ctx context.Context, query CategoryQuery) (*CategoryPage, error) {
	page, limit, err := pageParams(query.Page, query.Limit, adminCategoryLimit, maxAdminCategoryLimit)
	if err != nil {
		return nil, err
	}

	active, err := statusFilter(query.Status)
	if err != nil {
		return nil, err
	}

	return s.list(ctx, repository.CategoryFilter{
		Search: query.Search,
		Active: active,
		Sort:   repository.CategorySortNewest,
		Page:   page,
		Limit:  limit,
	})
}

func (s *categoryService) list(ctx context.Context, filter repository.CategoryFilter) (*CategoryPage, error) {
	categories, total, err := s.categories.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	if _, err := s.consistency.Repair(ctx, categories); err != nil {
		return nil, err
	}

	return &CategoryPage{Categories: categories, Pagination: newPagination(filter.Page, filter.Limit, total)}, nil
}

// GetPublic returns an active category
func (s *categoryService) GetPublic(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !category.IsActive {
		return nil, repository.ErrCategoryNotFound
	}

	return category, nil
}

// Create stores a category with its image. Name uniqueness is checked before
// the upload; the image is discarded if the category cannot be stored.
func (s *categoryService) Create(ctx context.Context, input CategoryInput, file *storage.File) (*domain.Category, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(deref(input.Name))
	if name == "" {
		return nil, domain.NewValidationError("name", "Category name is required")
	}
	if file == nil {
		return nil, ErrCategoryImageRequired
	}

	if err := s.ensureNameAvailable(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}

	assets, err := s.images.UploadAll(ctx, storage.CategoryFolder, []storage.File{*file})
	if err != nil {
		return nil, err
	}

	now := s.now()
	category := &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		Image:     assets[0],
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyCategoryInput(category, input)

	if err := s.categories.Create(ctx, category); err != nil {
		s.images.Discard(ctx, "category create failed", assets...)
		return nil, err
	}

	s.logger.Info("Category created", zap.String("category_id", category.ID.String()), zap.String("name", category.Name))

	return category, nil
}

// Update applies a partial update. A new image supersedes the old one, which
// is released after the write.
func (s *categoryService) Update(ctx context.Context, id uuid.UUID, input CategoryInput, file *storage.File) (*domain.Category, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "Category name cannot be empty")
		}
		if err := s.ensureNameAvailable(ctx, name, category.ID); err != nil {
			return nil, err
		}
	}

	var assets []domain.ImageAsset
	if file != nil {
		if assets, err = s.images.UploadAll(ctx, storage.CategoryFolder, []storage.File{*file}); err != nil {
			return nil, err
		}
	}

	previousImage := category.Image.AssetID
	applyCategoryInput(category, input)
	if len(assets) > 0 {
		category.Image = assets[0]
	}
	category.UpdatedAt = s.now()

	if err := s.categories.Update(ctx, category); err != nil {
		s.images.Discard(ctx, "category update failed", assets...)
		return nil, err
	}

	s.images.ReleaseSuperseded(ctx, []string{previousImage}, []string{category.Image.AssetID})

	s.logger.Info("Category updated", zap.String("category_id", category.ID.String()))

	return category, nil
}

// Delete removes a category no product references and releases its image
func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) error {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.consistency.EnsureDeletable(ctx, id); err != nil {
		return err
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}

	s.images.ReleaseCategory(ctx, category)

	s.logger.Info("Category deleted", zap.String("category_id", id.String()))

	return nil
}

// Recount recomputes the product count of every category
func (s *categoryService) Recount(ctx context.Context) (int, error) {
	repaired, err := s.consistency.RecomputeAll(ctx)
	if err != nil {
		return repaired, err
	}

	s.logger.Info("Category product counts recomputed", zap.Int("repaired", repaired))
	return repaired, nil
}

func (s *categoryService) ensureNameAvailable(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.categories.FindByName(ctx, name)
	switch {
	case errors.Is(err, repository.ErrCategoryNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check category name: %w", err)
	case existing.ID != self:
		return repository.ErrCategoryAlreadyExists
	default:
		return nil
	}
}

func applyCategoryInput(category *domain.Category, input CategoryInput) {
	if input.Name != nil {
		category.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		category.Description = strings.TrimSpace(*input.Description)
	}
	if input.SortOrder != nil {
		category.SortOrder = *input.SortOrder
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}
}
