package transport

import (
	"errors"
	"net/http"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/middleware"
	"ecatalogue/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token for refresh and logout
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	Admin        *domain.Admin `json:"admin"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// AuthHandler handles back-office authentication
type AuthHandler struct {
	adminService service.AdminService
	logger       *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(adminService service.AdminService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		adminService: adminService,
		logger:       logger,
	}
}

// RegisterRoutes registers all auth routes
func (h *AuthHandler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/refresh", h.RefreshToken)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/profile", h.GetProfile)
			r.Get("/verify", h.Verify)
			r.Post("/logout-all", h.LogoutAll)
			r.Post("/admins", h.CreateAdmin)
		})
	})
}

// Login handles admin authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	accessToken, refreshToken, admin, err := h.adminService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		h.respondAuthError(w, err)
		return
	}

	h.logger.Info("Admin logged in", zap.String("admin_id", admin.ID.String()))
	respond(w, http.StatusOK, "Login successful", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Admin:        admin,
	})
}

// Logout revokes a refresh token. Unknown tokens are accepted.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	if err := h.adminService.Logout(r.Context(), req.RefreshToken); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "Logged out successfully", nil)
}

// LogoutAll revokes every refresh token of the authenticated admin
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetAdminID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.adminService.LogoutAll(r.Context(), adminID); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "All sessions revoked", nil)
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	accessToken, err := h.adminService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Debug("Token refresh failed", zap.Error(err))
		h.respondAuthError(w, err)
		return
	}

	respond(w, http.StatusOK, "", RefreshResponse{AccessToken: accessToken})
}

// GetProfile returns the authenticated admin
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.currentAdmin(w, r)
	if !ok {
		return
	}

	respond(w, http.StatusOK, "", map[string]interface{}{"admin": admin})
}

// Verify confirms the access token is still good
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.currentAdmin(w, r)
	if !ok {
		return
	}

	respond(w, http.StatusOK, "Token is valid", map[string]interface{}{"valid": true, "admin": admin})
}

// CreateAdmin adds another back-office account
func (h *AuthHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var input service.AdminInput
	if err := middleware.DecodeJSON(w, r, &input); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	admin, err := h.adminService.CreateAdmin(r.Context(), input)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	respond(w, http.StatusCreated, "Admin created successfully", map[string]interface{}{"admin": admin})
}

func (h *AuthHandler) currentAdmin(w http.ResponseWriter, r *http.Request) (*domain.Admin, bool) {
	adminID, ok := middleware.GetAdminID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	admin, err := h.adminService.GetAdminByID(r.Context(), adminID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return nil, false
	}
	return admin, true
}

func (h *AuthHandler) respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, service.ErrInactiveAdmin):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid or inactive admin account")
	case errors.Is(err, service.ErrInvalidToken):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, service.ErrTokenExpired):
		middleware.RespondWithError(w, http.StatusUnauthorized, "refresh token expired")
	default:
		middleware.RespondWithDomainError(w, h.logger, err)
	}
}
