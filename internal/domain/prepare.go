package domain

import (
	"time"

	"ecatalogue/internal/identifier"

	"github.com/google/uuid"
)

// SelectMainImage marks exactly one image as main. When mainIndex points at an
// existing entry that entry wins; otherwise the first entry already marked main
// is kept, and failing that index 0 is promoted.
func SelectMainImage(images []ProductImage, mainIndex *int) {
	if len(images) == 0 {
		return
	}

	if mainIndex != nil && *mainIndex >= 0 && *mainIndex < len(images) {
		for i := range images {
			images[i].IsMain = i == *mainIndex
		}
		return
	}

	found := false
	for i := range images {
		if images[i].IsMain && !found {
			found = true
			continue
		}
		images[i].IsMain = false
	}

	if !found {
		images[0].IsMain = true
	}
}

// SyncLegacyImage mirrors the main image into the legacy single-image field.
// A product without images keeps whatever legacy image it already had.
func (p *Product) SyncLegacyImage() {
	for _, img := range p.Images {
		if img.IsMain {
			asset := img.Asset()
			p.Image = &asset
			return
		}
	}
}

// PrepareForCreate applies the creation-time defaults: slug from name and
// creation instant, SKU when absent, main image selection and the legacy image
// mirror.
func (p *Product) PrepareForCreate(now time.Time, mainIndex *int) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	p.Slug = identifier.Slug(p.Name, p.CreatedAt)
	if p.SKU == "" {
		p.SKU = identifier.SKU(p.CreatedAt)
	}

	SelectMainImage(p.Images, mainIndex)
	p.SyncLegacyImage()
}

// PrepareForUpdate re-applies the image invariants before an update is
// written. Slug and SKU are left untouched.
func (p *Product) PrepareForUpdate(now time.Time, mainIndex *int) {
	p.UpdatedAt = now

	SelectMainImage(p.Images, mainIndex)
	p.SyncLegacyImage()
}

// AssignCategories sets the category list and derives the legacy tag from the
// primary category name. An explicit tag overrides the derived one.
func (p *Product) AssignCategories(categories []*Category, explicitTag string) {
	ids := make([]uuid.UUID, 0, len(categories))
	for _, c := range categories {
		ids = append(ids, c.ID)
	}
	p.Categories = ids

	switch {
	case explicitTag != "":
		p.Tag = identifier.NormalizeTag(explicitTag)
	case len(categories) > 0:
		p.Tag = identifier.Tag(categories[0].Name)
	}
}
