package middleware

import (
	"context"
	"net/http"

	"ecatalogue/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminStatusChecker reports whether an admin account may still act
type AdminStatusChecker interface {
	IsActive(ctx context.Context, adminID uuid.UUID) (bool, error)
}

// RequireAdmin ensures the token carries the admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]string{domain.RoleAdmin}, logger)
}

// RequireRole middleware ensures the caller has one of the specified roles
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetAdminRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			for _, allowedRole := range allowedRoles {
				if role == allowedRole {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("Role not authorized",
				zap.String("role", role),
				zap.Strings("allowed_roles", allowedRoles),
			)
			RespondWithError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

// RequireActiveAdmin rejects tokens whose admin has since been deactivated or
// removed
func RequireActiveAdmin(checker AdminStatusChecker, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			adminID, ok := GetAdminID(r.Context())
			if !ok {
				RespondWithError(w, http.StatusUnauthorized, "access token is required")
				return
			}

			active, err := checker.IsActive(r.Context(), adminID)
			if err != nil {
				logger.Error("Failed to check admin status", zap.String("admin_id", adminID.String()), zap.Error(err))
				RespondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			if !active {
				logger.Warn("Inactive admin rejected", zap.String("admin_id", adminID.String()))
				RespondWithError(w, http.StatusUnauthorized, "invalid or inactive admin account")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
