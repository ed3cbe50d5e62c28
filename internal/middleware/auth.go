package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	AdminIDKey   contextKey = "admin_id"
	AdminRoleKey contextKey = "admin_role"
)

var hmacMethods = jwt.WithValidMethods([]string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
})

// bearerToken returns the token of an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "access token is required"
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" {
		return "", "invalid authorization header format"
	}
	return token, ""
}

// adminClaims verifies the token and extracts the admin id and role. The
// second result is the client-facing reason on failure.
func adminClaims(tokenString, secret string) (uuid.UUID, string, string, error) {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, hmacMethods)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, "", "token expired", err
		}
		return uuid.Nil, "", "invalid token", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, "", "invalid token", jwt.ErrTokenInvalidClaims
	}

	rawID, _ := claims["admin_id"].(string)
	adminID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", "invalid token claims", err
	}
	role, ok := claims["role"].(string)
	if !ok {
		return uuid.Nil, "", "invalid token claims", jwt.ErrTokenInvalidClaims
	}
	return adminID, role, "", nil
}

// AuthMiddleware validates JWT access tokens and puts the admin claims on the
// request context
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, reason := bearerToken(r)
			if reason != "" {
				logger.Debug("Rejected authorization header", zap.String("reason", reason))
				RespondWithError(w, http.StatusUnauthorized, reason)
				return
			}

			adminID, role, reason, err := adminClaims(tokenString, jwtSecret)
			if err != nil {
				logger.Debug("Token validation failed", zap.String("reason", reason), zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, reason)
				return
			}

			ctx := context.WithValue(r.Context(), AdminIDKey, adminID)
			ctx = context.WithValue(ctx, AdminRoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminID extracts the authenticated admin ID from request context
func GetAdminID(ctx context.Context) (uuid.UUID, bool) {
	adminID, ok := ctx.Value(AdminIDKey).(uuid.UUID)
	return adminID, ok
}

// GetAdminRole extracts the authenticated admin role from request context
func GetAdminRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(AdminRoleKey).(string)
	return role, ok
}
