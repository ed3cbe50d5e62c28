package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/repository"
	"ecatalogue/internal/storage"

	"github.com/google/uuid"
)

// In-memory repositories. Records are copied on the way in and out so a
// service mutating a loaded record does not change the store behind its back.

type mockCategoryRepository struct {
	mu         sync.Mutex
	categories map[uuid.UUID]*domain.Category
	updateErr  error
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{categories: make(map[uuid.UUID]*domain.Category)}
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if strings.EqualFold(c.Name, category.Name) {
			return repository.ErrCategoryAlreadyExists
		}
	}
	c := *category
	m.categories[c.ID] = &c
	return nil
}

func (m *mockCategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.categories[category.ID]
	if !ok {
		return repository.ErrCategoryNotFound
	}
	c := *category
	c.ProductCount = stored.ProductCount
	m.categories[c.ID] = &c
	return nil
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockCategoryRepository) FindByName(ctx context.Context, name string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if strings.EqualFold(c.Name, name) {
			out := *c
			return &out, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

func (m *mockCategoryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Category
	for _, id := range ids {
		if c, ok := m.categories[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockCategoryRepository) FindAll(ctx context.Context) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCategoryRepository) List(ctx context.Context, filter repository.CategoryFilter) ([]*domain.Category, int, error) {
	all, _ := m.FindAll(ctx)
	var matched []*domain.Category
	for _, c := range all {
		if filter.Active != nil && c.IsActive != *filter.Active {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, c)
	}
	return paginate(matched, filter.Page, filter.Limit), len(matched), nil
}

func (m *mockCategoryRepository) UpdateProductCount(ctx context.Context, id uuid.UUID, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return repository.ErrCategoryNotFound
	}
	c.ProductCount = count
	return nil
}

// put stores a category as-is, stale counts included
func (m *mockCategoryRepository) put(c *domain.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.categories[c.ID] = &cp
}

func (m *mockCategoryRepository) count(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.categories[id].ProductCount
}

type mockProductRepository struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*domain.Product
	createErr error
	countErr  error
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func cloneProduct(p *domain.Product) *domain.Product {
	out := *p
	out.Categories = append([]uuid.UUID(nil), p.Categories...)
	out.Images = append([]domain.ProductImage(nil), p.Images...)
	if p.Image != nil {
		image := *p.Image
		out.Image = &image
	}
	return &out
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, p := range m.products {
		if p.Slug == product.Slug {
			return repository.ErrDuplicateSlug
		}
		if p.SKU == product.SKU {
			return repository.ErrDuplicateSKU
		}
	}
	m.products[product.ID] = cloneProduct(product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.products[product.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	p := cloneProduct(product)
	p.Slug = stored.Slug
	p.Views = stored.Views
	p.CreatedAt = stored.CreatedAt
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (m *mockProductRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Slug == slug {
			return cloneProduct(p), nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) all() []*domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	var matched []*domain.Product
	for _, p := range m.all() {
		if filter.Active != nil && p.IsActive != *filter.Active {
			continue
		}
		if filter.Tag != "" && p.Tag != filter.Tag {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		if filter.Trending != nil && p.Trending != *filter.Trending {
			continue
		}
		if filter.CategoryID != nil && !hasCategory(p, *filter.CategoryID) {
			continue
		}
		matched = append(matched, p)
	}
	return paginate(matched, filter.Page, filter.Limit), len(matched), nil
}

func (m *mockProductRepository) CountActiveByCategory(ctx context.Context, categoryID uuid.UUID) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for _, p := range m.all() {
		if p.IsActive && hasCategory(p, categoryID) {
			count++
		}
	}
	return count, nil
}

func (m *mockProductRepository) CountByCategory(ctx context.Context, categoryID uuid.UUID) (int, error) {
	count := 0
	for _, p := range m.all() {
		if hasCategory(p, categoryID) {
			count++
		}
	}
	return count, nil
}

func (m *mockProductRepository) DistinctTags(ctx context.Context) ([]domain.TagCount, error) {
	counts := map[string]int{}
	for _, p := range m.all() {
		if p.IsActive && p.Tag != "" {
			counts[p.Tag]++
		}
	}
	out := make([]domain.TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, domain.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

func (m *mockProductRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Views++
	return nil
}

func (m *mockProductRepository) FindUncategorizedWithTag(ctx context.Context) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range m.all() {
		if len(p.Categories) == 0 && p.Tag != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func hasCategory(p *domain.Product, id uuid.UUID) bool {
	for _, c := range p.Categories {
		if c == id {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// fakeGateway records uploads and deletes. failOn makes the n-th upload
// (1-based) fail; failDelete makes every delete fail.
type fakeGateway struct {
	mu         sync.Mutex
	uploaded   []string
	deleted    []string
	failOn     int
	failDelete bool
}

func (g *fakeGateway) Upload(ctx context.Context, file storage.File, opts storage.UploadOptions) (domain.ImageAsset, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if file.Body != nil {
		if _, err := io.Copy(io.Discard, file.Body); err != nil {
			return domain.ImageAsset{}, err
		}
	}
	if g.failOn > 0 && len(g.uploaded)+1 == g.failOn {
		g.failOn = 0
		return domain.ImageAsset{}, domain.NewError(domain.ErrAsset, "upload rejected")
	}
	id := fmt.Sprintf("%s/%s", opts.Folder, uuid.NewString()[:8])
	g.uploaded = append(g.uploaded, id)
	return domain.ImageAsset{URL: "https://cdn.test/" + id, AssetID: id}, nil
}

func (g *fakeGateway) Delete(ctx context.Context, assetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDelete {
		return domain.NewError(domain.ErrAsset, "delete rejected")
	}
	g.deleted = append(g.deleted, assetID)
	return nil
}

func (g *fakeGateway) deletedSet() map[string]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]bool, len(g.deleted))
	for _, id := range g.deleted {
		out[id] = true
	}
	return out
}

func testFiles(n int) []storage.File {
	files := make([]storage.File, n)
	for i := range files {
		files[i] = storage.File{Filename: fmt.Sprintf("image-%d.png", i+1), Size: 16, Body: strings.NewReader("png")}
	}
	return files
}

func testCategory(name string) *domain.Category {
	now := time.Now().UTC()
	return &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		Image:     domain.ImageAsset{URL: "https://cdn.test/" + name, AssetID: "ecatalogue-categories/" + name},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

var errStoreDown = fmt.Errorf("insert product: %w: %w", domain.ErrStore, errors.New("connection reset"))

// Mock admin repositories

type mockAdminRepository struct {
	admins map[string]*domain.Admin
}

func newMockAdminRepository() *mockAdminRepository {
	return &mockAdminRepository{admins: make(map[string]*domain.Admin)}
}

func (m *mockAdminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	email := strings.ToLower(admin.Email)
	if _, exists := m.admins[email]; exists {
		return repository.ErrAdminAlreadyExists
	}
	m.admins[email] = admin
	return nil
}

func (m *mockAdminRepository) FindByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	admin, exists := m.admins[strings.ToLower(email)]
	if !exists {
		return nil, repository.ErrAdminNotFound
	}
	return admin, nil
}

func (m *mockAdminRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	for _, admin := range m.admins {
		if admin.ID == id {
			return admin, nil
		}
	}
	return nil, repository.ErrAdminNotFound
}

func (m *mockAdminRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	admin, err := m.FindByID(ctx, id)
	if err != nil {
		return err
	}
	admin.LastLoginAt = &at
	return nil
}

func (m *mockAdminRepository) Count(ctx context.Context) (int, error) {
	return len(m.admins), nil
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForAdmin(ctx context.Context, adminID uuid.UUID) error {
	for _, token := range m.tokens {
		if token.AdminID == adminID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for key, token := range m.tokens {
		if token.ExpiresAt.Before(before) {
			delete(m.tokens, key)
			n++
		}
	}
	return n, nil
}
