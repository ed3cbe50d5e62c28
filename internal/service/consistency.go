package service

import (
	"context"
	"errors"
	"fmt"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConsistencyMaintainer keeps each category's denormalized product count in
// line with the products that reference it. Counts are written after the
// triggering product write, not in the same transaction, and are corrected
// again on category list reads.
type ConsistencyMaintainer struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
	logger     *zap.Logger
}

func NewConsistencyMaintainer(
	categories repository.CategoryRepository,
	products repository.ProductRepository,
	logger *zap.Logger,
) *ConsistencyMaintainer {
	return &ConsistencyMaintainer{
		categories: categories,
		products:   products,
		logger:     logger,
	}
}

// Recompute recounts the active products of every given category and writes
// the result through. Categories that no longer exist are skipped.
func (m *ConsistencyMaintainer) Recompute(ctx context.Context, ids ...uuid.UUID) error {
	for _, id := range uniqueIDs(ids) {
		count, err := m.products.CountActiveByCategory(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count products of category %s: %w", id, err)
		}

		if err := m.categories.UpdateProductCount(ctx, id, count); err != nil {
			if errors.Is(err, repository.ErrCategoryNotFound) {
				m.logger.Debug("Skipping count for missing category", zap.String("category_id", id.String()))
				continue
			}
			return fmt.Errorf("failed to update product count of category %s: %w", id, err)
		}
	}

	return nil
}

// Repair recomputes the counts of already loaded categories, persists only the
// ones that drifted and corrects the records in place. It returns how many
// were corrected.
func (m *ConsistencyMaintainer) Repair(ctx context.Context, categories []*domain.Category) (int, error) {
	repaired := 0
	for _, category := range categories {
		count, err := m.products.CountActiveByCategory(ctx, category.ID)
		if err != nil {
			return repaired, fmt.Errorf("failed to count products of category %s: %w", category.ID, err)
		}

		if count == category.ProductCount {
			continue
		}

		if err := m.categories.UpdateProductCount(ctx, category.ID, count); err != nil {
			if errors.Is(err, repository.ErrCategoryNotFound) {
				m.logger.Debug("Skipping repair of deleted category", zap.String("category_id", category.ID.String()))
				continue
			}
			return repaired, fmt.Errorf("failed to update product count of category %s: %w", category.ID, err)
		}

		m.logger.Info("Repaired stale product count",
			zap.String("category_id", category.ID.String()),
			zap.Int("stored", category.ProductCount),
			zap.Int("actual", count),
		)

		category.ProductCount = count
		repaired++
	}

	return repaired, nil
}

// RecomputeAll repairs every category in the store
func (m *ConsistencyMaintainer) RecomputeAll(ctx context.Context) (int, error) {
	categories, err := m.categories.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load categories: %w", err)
	}

	return m.Repair(ctx, categories)
}

// EnsureDeletable refuses to delete a category any product still references,
// active or not.
func (m *ConsistencyMaintainer) EnsureDeletable(ctx context.Context, categoryID uuid.UUID) error {
	count, err := m.products.CountByCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("failed to count products of category %s: %w", categoryID, err)
	}

	if count > 0 {
		return domain.NewError(domain.ErrConflict,
			fmt.Sprintf("cannot delete category: it has %d products associated with it", count))
	}

	return nil
}

// affectedCategories is the union of the category sets before and after a
// product mutation
func affectedCategories(before, after []uuid.UUID) []uuid.UUID {
	return uniqueIDs(append(append([]uuid.UUID{}, before...), after...))
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
