package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/middleware"
	"ecatalogue/internal/repository"
	"ecatalogue/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type memoryAdminRepository struct {
	admins map[string]*domain.Admin
}

func newMemoryAdminRepository() *memoryAdminRepository {
	return &memoryAdminRepository{admins: make(map[string]*domain.Admin)}
}

func (m *memoryAdminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	key := strings.ToLower(admin.Email)
	if _, exists := m.admins[key]; exists {
		return repository.ErrAdminAlreadyExists
	}
	m.admins[key] = admin
	return nil
}

func (m *memoryAdminRepository) FindByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	admin, exists := m.admins[strings.ToLower(email)]
	if !exists {
		return nil, repository.ErrAdminNotFound
	}
	return admin, nil
}

func (m *memoryAdminRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	for _, admin := range m.admins {
		if admin.ID == id {
			return admin, nil
		}
	}
	return nil, repository.ErrAdminNotFound
}

func (m *memoryAdminRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	admin, err := m.FindByID(ctx, id)
	if err != nil {
		return err
	}
	admin.LastLoginAt = &at
	return nil
}

func (m *memoryAdminRepository) Count(ctx context.Context) (int, error) {
	return len(m.admins), nil
}

type memoryRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMemoryRefreshTokenRepository() *memoryRefreshTokenRepository {
	return &memoryRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *memoryRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *memoryRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *memoryRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *memoryRefreshTokenRepository) RevokeAllForAdmin(ctx context.Context, adminID uuid.UUID) error {
	for _, token := range m.tokens {
		if token.AdminID == adminID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *memoryRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	for key, token := range m.tokens {
		if token.ExpiresAt.Before(before) {
			delete(m.tokens, key)
			removed++
		}
	}
	return removed, nil
}

type authFixture struct {
	admins  *memoryAdminRepository
	service service.AdminService
	router  chi.Router
}

func newAuthFixture() *authFixture {
	logger := zap.NewNop()
	admins := newMemoryAdminRepository()
	adminService := service.NewAdminService(admins, newMemoryRefreshTokenRepository(), service.TokenConfig{Secret: testSecret}, logger)

	adminOnly := func(next http.Handler) http.Handler {
		return middleware.AuthMiddleware(testSecret, logger)(
			middleware.RequireAdmin(logger)(
				middleware.RequireActiveAdmin(adminService, logger)(next)))
	}

	router := chi.NewRouter()
	NewAuthHandler(adminService, logger).RegisterRoutes(router, adminOnly)

	return &authFixture{admins: admins, service: adminService, router: router}
}

func (f *authFixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type loginEnvelope struct {
	Success bool          `json:"success"`
	Data    LoginResponse `json:"data"`
}

// Property: a successful login returns two usable tokens and the admin profile
func TestProperty_ValidLoginReturnsBothTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid login returns access token and refresh token", prop.ForAll(
		func(email string, password string) bool {
			f := newAuthFixture()
			if _, err := f.service.CreateAdmin(context.Background(), service.AdminInput{Email: email, Password: password}); err != nil {
				t.Logf("FAIL: could not create admin: %v", err)
				return false
			}

			w := f.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: password})
			if w.Code != http.StatusOK {
				t.Logf("FAIL: Expected 200 status code, got %d", w.Code)
				return false
			}

			var resp loginEnvelope
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Logf("FAIL: Could not decode login response: %v", err)
				return false
			}

			if !resp.Success || resp.Data.AccessToken == "" || resp.Data.RefreshToken == "" {
				t.Logf("FAIL: missing tokens in %+v", resp)
				return false
			}

			if resp.Data.Admin == nil || resp.Data.Admin.Email != email {
				t.Logf("FAIL: admin profile mismatch")
				return false
			}

			claims, err := f.service.ValidateToken(resp.Data.AccessToken)
			if err != nil || claims.AdminID != resp.Data.Admin.ID {
				t.Logf("FAIL: access token does not identify the admin: %v", err)
				return false
			}

			refreshed := f.do(http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: resp.Data.RefreshToken})
			if refreshed.Code != http.StatusOK {
				t.Logf("FAIL: refresh returned %d", refreshed.Code)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: a login body missing either field is rejected before the service runs
func TestProperty_InvalidLoginDataIsRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("incomplete login bodies return 400", prop.ForAll(
		func(includeEmail, includePassword bool) bool {
			if includeEmail && includePassword {
				return true
			}

			body := map[string]string{}
			if includeEmail {
				body["email"] = "owner@shop.test"
			}
			if includePassword {
				body["password"] = "correct-horse"
			}

			w := newAuthFixture().do(http.MethodPost, "/api/auth/login", "", body)
			return w.Code == http.StatusBadRequest
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestLoginFailuresAreUnauthorized(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.service.CreateAdmin(ctx, service.AdminInput{Email: "owner@shop.test", Password: "correct-horse"})
	require.NoError(t, err)
	inactive, err := f.service.CreateAdmin(ctx, service.AdminInput{Email: "former@shop.test", Password: "correct-horse"})
	require.NoError(t, err)
	inactive.IsActive = false

	tests := []struct {
		name    string
		req     LoginRequest
		message string
	}{
		{name: "wrong password", req: LoginRequest{Email: "owner@shop.test", Password: "battery-staple"}, message: "invalid email or password"},
		{name: "unknown email", req: LoginRequest{Email: "ghost@shop.test", Password: "correct-horse"}, message: "invalid email or password"},
		{name: "inactive admin", req: LoginRequest{Email: "former@shop.test", Password: "correct-horse"}, message: "invalid or inactive admin account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/auth/login", "", tt.req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var resp middleware.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}

func TestProfileRequiresActiveAdmin(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.service.CreateAdmin(ctx, service.AdminInput{Email: "owner@shop.test", Password: "correct-horse", Name: "Owner"})
	require.NoError(t, err)
	token, _, admin, err := f.service.Login(ctx, "owner@shop.test", "correct-horse")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/auth/profile", "", nil).Code)

	w := f.do(http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Admin domain.Admin `json:"admin"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, admin.ID, resp.Data.Admin.ID)
	assert.Equal(t, "Owner", resp.Data.Admin.Name)
	assert.NotContains(t, w.Body.String(), "correct-horse")

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/auth/verify", token, nil).Code)

	admin.IsActive = false
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/auth/profile", token, nil).Code)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.service.CreateAdmin(ctx, service.AdminInput{Email: "owner@shop.test", Password: "correct-horse"})
	require.NoError(t, err)
	_, refresh, _, err := f.service.Login(ctx, "owner@shop.test", "correct-horse")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/auth/logout", "", RefreshRequest{RefreshToken: refresh}).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: refresh}).Code)

	// logging out twice is harmless
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/auth/logout", "", RefreshRequest{RefreshToken: refresh}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/auth/logout", "", map[string]string{}).Code)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.service.CreateAdmin(ctx, service.AdminInput{Email: "owner@shop.test", Password: "correct-horse"})
	require.NoError(t, err)
	access, laptop, _, err := f.service.Login(ctx, "owner@shop.test", "correct-horse")
	require.NoError(t, err)
	_, phone, _, err := f.service.Login(ctx, "owner@shop.test", "correct-horse")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/auth/logout-all", "", nil).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/auth/logout-all", access, nil).Code)

	for _, refresh := range []string{laptop, phone} {
		w := f.do(http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: refresh})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestCreateAdminEndpoint(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.service.CreateAdmin(ctx, service.AdminInput{Email: "owner@shop.test", Password: "correct-horse"})
	require.NoError(t, err)
	token, _, _, err := f.service.Login(ctx, "owner@shop.test", "correct-horse")
	require.NoError(t, err)

	newAdmin := service.AdminInput{Email: "Staff@Shop.test", Password: "another-pass", Name: "Staff"}

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/auth/admins", "", newAdmin).Code)

	w := f.do(http.MethodPost, "/api/auth/admins", token, newAdmin)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"staff@shop.test"`)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/auth/admins", token, newAdmin).Code)

	weak := service.AdminInput{Email: "weak@shop.test", Password: "short"}
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/auth/admins", token, weak).Code)
}
