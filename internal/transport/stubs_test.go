package transport

import (
	"context"
	"io"
	"net/http"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/service"
	"ecatalogue/internal/storage"

	"github.com/google/uuid"
)

// receivedFile is an upload as seen by a stub service
type receivedFile struct {
	Filename string
	Content  string
}

func readFiles(files []storage.File) []receivedFile {
	out := make([]receivedFile, 0, len(files))
	for _, f := range files {
		body, _ := io.ReadAll(f.Body)
		out = append(out, receivedFile{Filename: f.Filename, Content: string(body)})
	}
	return out
}

type stubProductService struct {
	product *domain.Product
	page    *service.ProductPage
	tags    []domain.TagCount
	err     error

	query      service.ProductQuery
	categoryID uuid.UUID
	tag        string
	slug       string
	id         uuid.UUID
	input      service.ProductInput
	files      []receivedFile
	deleted    bool
}

func (s *stubProductService) ListPublic(ctx context.Context, query service.ProductQuery) (*service.ProductPage, error) {
	s.query = query
	return s.page, s.err
}

func (s *stubProductService) ListByCategory(ctx context.Context, categoryID uuid.UUID, page, limit int) (*service.ProductPage, error) {
	s.categoryID = categoryID
	s.query = service.ProductQuery{Page: page, Limit: limit}
	return s.page, s.err
}

func (s *stubProductService) ListByTag(ctx context.Context, tag string, page, limit int) (*service.ProductPage, error) {
	s.tag = tag
	s.query = service.ProductQuery{Page: page, Limit: limit}
	return s.page, s.err
}

func (s *stubProductService) ListAdmin(ctx context.Context, query service.ProductQuery) (*service.ProductPage, error) {
	s.query = query
	return s.page, s.err
}

func (s *stubProductService) Tags(ctx context.Context) ([]domain.TagCount, error) {
	return s.tags, s.err
}

func (s *stubProductService) GetPublic(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	s.id = id
	return s.product, s.err
}

func (s *stubProductService) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	s.slug = slug
	return s.product, s.err
}

func (s *stubProductService) Create(ctx context.Context, input service.ProductInput, files []storage.File) (*domain.Product, error) {
	s.input = input
	s.files = readFiles(files)
	return s.product, s.err
}

func (s *stubProductService) Update(ctx context.Context, id uuid.UUID, input service.ProductInput, files []storage.File) (*domain.Product, error) {
	s.id = id
	s.input = input
	s.files = readFiles(files)
	return s.product, s.err
}

func (s *stubProductService) Delete(ctx context.Context, id uuid.UUID) error {
	s.id = id
	s.deleted = s.err == nil
	return s.err
}

type stubCategoryService struct {
	category *domain.Category
	page     *service.CategoryPage
	recount  int
	err      error

	query service.CategoryQuery
	id    uuid.UUID
	input service.CategoryInput
	file  *receivedFile
}

func (s *stubCategoryService) ListPublic(ctx context.Context, query service.CategoryQuery) (*service.CategoryPage, error) {
	s.query = query
	return s.page, s.err
}

func (s *stubCategoryService) ListAdmin(ctx context.Context, query service.CategoryQuery) (*service.CategoryPage, error) {
	s.query = query
	return s.page, s.err
}

func (s *stubCategoryService) GetPublic(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	s.id = id
	return s.category, s.err
}

func (s *stubCategoryService) Create(ctx context.Context, input service.CategoryInput, file *storage.File) (*domain.Category, error) {
	s.input = input
	s.file = readFile(file)
	return s.category, s.err
}

func (s *stubCategoryService) Update(ctx context.Context, id uuid.UUID, input service.CategoryInput, file *storage.File) (*domain.Category, error) {
	s.id = id
	s.input = input
	s.file = readFile(file)
	return s.category, s.err
}

func (s *stubCategoryService) Delete(ctx context.Context, id uuid.UUID) error {
	s.id = id
	return s.err
}

func (s *stubCategoryService) Recount(ctx context.Context) (int, error) {
	return s.recount, s.err
}

func readFile(file *storage.File) *receivedFile {
	if file == nil {
		return nil
	}
	files := readFiles([]storage.File{*file})
	return &files[0]
}

type stubBackfillService struct {
	report *service.BackfillReport
	err    error
}

func (s *stubBackfillService) MigrateTagsToCategories(ctx context.Context) (*service.BackfillReport, error) {
	return s.report, s.err
}

// allowAll stands in for the admin middleware chain
func allowAll(next http.Handler) http.Handler {
	return next
}

// denyAll rejects every admin request
func denyAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}
