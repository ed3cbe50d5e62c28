package transport

import (
	"net/http"
	"strings"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/middleware"
	"ecatalogue/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductView is the wire form of a product, including derived fields
type ProductView struct {
	*domain.Product
	MainImage          *domain.ImageAsset `json:"mainImage,omitempty"`
	IsOnSale           bool               `json:"isOnSale"`
	DiscountPercentage int                `json:"discountPercentage"`
}

func productView(p *domain.Product) ProductView {
	return ProductView{
		Product:            p,
		MainImage:          p.MainImage(),
		IsOnSale:           p.IsOnSale(),
		DiscountPercentage: p.DiscountPercentage(),
	}
}

func productViews(products []*domain.Product) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, productView(p))
	}
	return views
}

type productPage struct {
	Products   []ProductView      `json:"products"`
	Pagination service.Pagination `json:"pagination"`
}

// ProductHandler handles HTTP requests for the product catalogue
type ProductHandler struct {
	productService service.ProductService
	maxBody        int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler. maxUpload bounds a single
// image; the request body may carry the maximum number of them.
func NewProductHandler(productService service.ProductService, maxUpload int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		maxBody:        maxUpload*service.MaxProductImages + multipartMemory,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/category/{categoryId}", h.ListByCategory)
		r.Get("/tag/{tag}", h.ListByTag)
		r.Get("/tags/all", h.Tags)
		r.Get("/slug/{slug}", h.GetBySlug)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/admin/all", h.ListAdmin)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles the public product listing
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	featured, trending, err := highlightQuery(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	result, err := h.productService.ListPublic(r.Context(), service.ProductQuery{
		Search:   strings.TrimSpace(q.Get("search")),
		Tag:      strings.TrimSpace(q.Get("tag")),
		Sort:     q.Get("sort"),
		Featured: featured,
		Trending: trending,
		Page:     page,
		Limit:    limit,
	})
	h.respondPage(w, result, err)
}

// ListByCategory handles the listing of one category's active products
func (h *ProductHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := pathID(r, "categoryId", "category")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	page, limit, err := pageQuery(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	result, err := h.productService.ListByCategory(r.Context(), categoryID, page, limit)
	h.respondPage(w, result, err)
}

// ListByTag handles the legacy tag listing
func (h *ProductHandler) ListByTag(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	result, err := h.productService.ListByTag(r.Context(), chi.URLParam(r, "tag"), page, limit)
	h.respondPage(w, result, err)
}

// ListAdmin handles the back-office listing, inactive products included
func (h *ProductHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	featured, trending, err := highlightQuery(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	result, err := h.productService.ListAdmin(r.Context(), service.ProductQuery{
		Search:   strings.TrimSpace(q.Get("search")),
		Tag:      strings.TrimSpace(q.Get("tag")),
		Sort:     q.Get("sort"),
		Status:   q.Get("status"),
		Featured: featured,
		Trending: trending,
		Page:     page,
		Limit:    limit,
	})
	h.respondPage(w, result, err)
}

// Tags handles the tag summary
func (h *ProductHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.productService.Tags(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "", map[string]interface{}{"tags": tags})
}

// Get handles the public product detail
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	product, err := h.productService.GetPublic(r.Context(), id)
	h.respondProduct(w, http.StatusOK, "", product, err)
}

// GetBySlug handles the product detail addressed by slug
func (h *ProductHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	h.respondProduct(w, http.StatusOK, "", product, err)
}

// Create handles product creation from a multipart form with up to five images
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, files, cleanup, err := productRequest(w, r, h.maxBody)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	defer cleanup()

	product, err := h.productService.Create(r.Context(), input, files)
	h.respondProduct(w, http.StatusCreated, "Product created successfully", product, err)
}

// Update handles partial product updates; new images replace the old ones
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	input, files, cleanup, err := productRequest(w, r, h.maxBody)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	defer cleanup()

	product, err := h.productService.Update(r.Context(), id, input, files)
	h.respondProduct(w, http.StatusOK, "Product updated successfully", product, err)
}

// Delete handles product removal
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "Product deleted successfully", nil)
}

func (h *ProductHandler) respondPage(w http.ResponseWriter, result *service.ProductPage, err error) {
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "", productPage{
		Products:   productViews(result.Products),
		Pagination: result.Pagination,
	})
}

func (h *ProductHandler) respondProduct(w http.ResponseWriter, status int, message string, product *domain.Product, err error) {
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, status, message, map[string]interface{}{"product": productView(product)})
}
