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

// CategoryHandler handles HTTP requests for categories and their maintenance
type CategoryHandler struct {
	categoryService service.CategoryService
	backfillService service.BackfillService
	maxBody         int64
	logger          *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(
	categoryService service.CategoryService,
	backfillService service.BackfillService,
	maxUpload int64,
	logger *zap.Logger,
) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		backfillService: backfillService,
		maxBody:         maxUpload + multipartMemory,
		logger:          logger,
	}
}

// RegisterRoutes registers all category routes
func (h *CategoryHandler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/admin/all", h.ListAdmin)
			r.Post("/admin/recount", h.Recount)
			r.Post("/admin/backfill", h.Backfill)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles the public category listing
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	active, err := queryBool(r, "active")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	result, err := h.categoryService.ListPublic(r.Context(), service.CategoryQuery{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Active: active,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "", result)
}

// ListAdmin handles the back-office category listing
func (h *CategoryHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	result, err := h.categoryService.ListAdmin(r.Context(), service.CategoryQuery{
		Search: strings.TrimSpace(q.Get("search")),
		Status: q.Get("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "", result)
}

// Get handles the public category detail
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "category")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	category, err := h.categoryService.GetPublic(r.Context(), id)
	h.respondCategory(w, http.StatusOK, "", category, err)
}

// Create handles category creation; the image part is mandatory
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, file, cleanup, err := categoryRequest(w, r, h.maxBody)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	defer cleanup()

	category, err := h.categoryService.Create(r.Context(), input, file)
	if err == nil {
		h.logger.Info("Category created", zap.String("category_id", category.ID.String()))
	}
	h.respondCategory(w, http.StatusCreated, "Category created successfully", category, err)
}

// Update handles partial category updates and image replacement
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "category")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	input, file, cleanup, err := categoryRequest(w, r, h.maxBody)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	defer cleanup()

	category, err := h.categoryService.Update(r.Context(), id, input, file)
	h.respondCategory(w, http.StatusOK, "Category updated successfully", category, err)
}

// Delete handles category removal. Categories still referenced by products
// are refused with a conflict.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "category")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	if err := h.categoryService.Delete(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Category deleted", zap.String("category_id", id.String()))
	respond(w, http.StatusOK, "Category deleted successfully", nil)
}

// Recount recomputes every category's product count
func (h *CategoryHandler) Recount(w http.ResponseWriter, r *http.Request) {
	updated, err := h.categoryService.Recount(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "Product counts recomputed", map[string]int{"updated": updated})
}

// Backfill attaches legacy tag-only products to their matching categories
func (h *CategoryHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	report, err := h.backfillService.MigrateTagsToCategories(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Tag backfill finished",
		zap.Int("migrated", report.Migrated),
		zap.Int("unmatched", len(report.Unmatched)),
	)
	respond(w, http.StatusOK, "Tag backfill completed", map[string]interface{}{"report": report})
}

func (h *CategoryHandler) respondCategory(w http.ResponseWriter, status int, message string, category *domain.Category, err error) {
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, status, message, map[string]interface{}{"category": category})
}
