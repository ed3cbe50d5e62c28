package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ImageAsset is a stored image as returned by the asset gateway
type ImageAsset struct {
	URL     string `json:"url"`
	AssetID string `json:"publicId"`
}

// IsZero reports whether the asset is unset
func (a ImageAsset) IsZero() bool {
	return a.URL == "" && a.AssetID == ""
}

// ProductImage is one entry of a product's ordered image list
type ProductImage struct {
	URL     string `json:"url"`
	AssetID string `json:"publicId"`
	Alt     string `json:"alt"`
	IsMain  bool   `json:"isMain"`
}

// Asset returns the gateway view of the image
func (i ProductImage) Asset() ImageAsset {
	return ImageAsset{URL: i.URL, AssetID: i.AssetID}
}

// Specification is a name/value product attribute
type Specification struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Dimensions of a shippable product
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Product represents a product in the catalog
type Product struct {
	ID               uuid.UUID       `json:"_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"shortDescription,omitempty"`
	Price            float64         `json:"price"`
	OriginalPrice    *float64        `json:"originalPrice,omitempty"`
	Categories       []uuid.UUID     `json:"categories"`
	Tag              string          `json:"tag,omitempty"`
	Images           []ProductImage  `json:"images"`
	Image            *ImageAsset     `json:"image,omitempty"`
	Specifications   []Specification `json:"specifications"`
	Features         []string        `json:"features"`
	SKU              string          `json:"sku"`
	Stock            int             `json:"stock"`
	Weight           *float64        `json:"weight,omitempty"`
	Dimensions       *Dimensions     `json:"dimensions,omitempty"`
	IsActive         bool            `json:"isActive"`
	Slug             string          `json:"slug"`
	Featured         bool            `json:"featured"`
	Trending         bool            `json:"trending"`
	SEOTitle         string          `json:"seoTitle,omitempty"`
	SEODescription   string          `json:"seoDescription,omitempty"`
	Views            int             `json:"views"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// IsOnSale reports whether the product is discounted against its original price
func (p *Product) IsOnSale() bool {
	return p.OriginalPrice != nil && *p.OriginalPrice > p.Price
}

// DiscountPercentage returns the rounded discount, or 0 when not on sale
func (p *Product) DiscountPercentage() int {
	if !p.IsOnSale() {
		return 0
	}
	return int(math.Round((*p.OriginalPrice - p.Price) / *p.OriginalPrice * 100))
}

// MainImage returns the main image, falling back to the first image and then
// to the legacy single image. Nil when the product has no image at all.
func (p *Product) MainImage() *ImageAsset {
	for _, img := range p.Images {
		if img.IsMain {
			asset := img.Asset()
			return &asset
		}
	}
	if len(p.Images) > 0 {
		asset := p.Images[0].Asset()
		return &asset
	}
	if p.Image == nil || p.Image.IsZero() {
		return nil
	}
	return p.Image
}

// AssetIDs returns every gateway asset the product references, including a
// legacy image that is not part of the image list.
func (p *Product) AssetIDs() []string {
	ids := make([]string, 0, len(p.Images)+1)
	seen := make(map[string]struct{}, len(p.Images)+1)

	for _, img := range p.Images {
		if img.AssetID == "" {
			continue
		}
		if _, ok := seen[img.AssetID]; ok {
			continue
		}
		seen[img.AssetID] = struct{}{}
		ids = append(ids, img.AssetID)
	}

	if p.Image != nil && p.Image.AssetID != "" {
		if _, ok := seen[p.Image.AssetID]; !ok {
			ids = append(ids, p.Image.AssetID)
		}
	}

	return ids
}

// Category represents a product category
type Category struct {
	ID           uuid.UUID  `json:"_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Image        ImageAsset `json:"image"`
	IsActive     bool       `json:"isActive"`
	SortOrder    int        `json:"sortOrder"`
	ProductCount int        `json:"productCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TagCount is a legacy tag with the number of active products carrying it
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
