package service

import (
	"context"
	"fmt"
	"time"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/identifier"
	"ecatalogue/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BackfillReport summarises a tag-to-category migration run
type BackfillReport struct {
	Scanned   int      `json:"scanned"`
	Migrated  int      `json:"migrated"`
	Unmatched []string `json:"unmatched"`
	Repaired  int      `json:"repaired"`
}

// BackfillService attaches legacy tag-only products to the category whose
// name maps to their tag
type BackfillService interface {
	MigrateTagsToCategories(ctx context.Context) (*BackfillReport, error)
}

type backfillService struct {
	products    repository.ProductRepository
	categories  repository.CategoryRepository
	consistency *ConsistencyMaintainer
	logger      *zap.Logger
}

// NewBackfillService creates a new instance of BackfillService
func NewBackfillService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	consistency *ConsistencyMaintainer,
	logger *zap.Logger,
) BackfillService {
	return &backfillService{
		products:    products,
		categories:  categories,
		consistency: consistency,
		logger:      logger,
	}
}

// MigrateTagsToCategories is idempotent: products that already have a
// category are never touched, and counts are recomputed from scratch.
func (s *backfillService) MigrateTagsToCategories(ctx context.Context) (*BackfillReport, error) {
	products, err := s.products.FindUncategorizedWithTag(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load uncategorized products: %w", err)
	}

	categories, err := s.categories.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	byTag := make(map[string]*domain.Category, len(categories))
	for _, c := range categories {
		tag := identifier.Tag(c.Name)
		if _, exists := byTag[tag]; !exists {
			byTag[tag] = c
		}
	}

	report := &BackfillReport{Scanned: len(products), Unmatched: []string{}}
	for _, product := range products {
		category, ok := byTag[product.Tag]
		if !ok {
			s.logger.Warn("No matching category for product",
				zap.String("product_id", product.ID.String()),
				zap.String("tag", product.Tag),
			)
			report.Unmatched = append(report.Unmatched, product.ID.String())
			continue
		}

		product.Categories = []uuid.UUID{category.ID}
		product.UpdatedAt = time.Now().UTC()
		if err := s.products.Update(ctx, product); err != nil {
			return report, fmt.Errorf("failed to migrate product %s: %w", product.ID, err)
		}

		s.logger.Info("Migrated product to category",
			zap.String("product_id", product.ID.String()),
			zap.String("category", category.Name),
		)
		report.Migrated++
	}

	repaired, err := s.consistency.RecomputeAll(ctx)
	if err != nil {
		return report, err
	}
	report.Repaired = repaired

	return report, nil
}
