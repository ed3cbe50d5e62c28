package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for admin password hashes
	BcryptCost = 10

	// Default token lifetimes
	AccessTokenExpiration  = 15 * time.Minute
	RefreshTokenExpiration = 7 * 24 * time.Hour

	minPasswordLength = 8
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveAdmin      = errors.New("invalid or inactive admin account")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// TokenConfig controls how access and refresh tokens are issued
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AdminInput carries the fields of a new admin account
type AdminInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=100"`
}

// AdminService defines the interface for back-office authentication
type AdminService interface {
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, admin *domain.Admin, err error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, adminID uuid.UUID) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetAdminByID(ctx context.Context, adminID uuid.UUID) (*domain.Admin, error)
	CreateAdmin(ctx context.Context, input AdminInput) (*domain.Admin, error)
	EnsureBootstrapAdmin(ctx context.Context, input AdminInput) (bool, error)
	IsActive(ctx context.Context, adminID uuid.UUID) (bool, error)
}

// Claims represents the JWT claims
type Claims struct {
	AdminID uuid.UUID `json:"admin_id"`
	Role    string    `json:"role"`
	jwt.RegisteredClaims
}

type adminService struct {
	adminRepo        repository.AdminRepository
	refreshTokenRepo repository.RefreshTokenRepository
	tokens           TokenConfig
	logger           *zap.Logger
}

// NewAdminService creates a new instance of AdminService
func NewAdminService(
	adminRepo repository.AdminRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	tokens TokenConfig,
	logger *zap.Logger,
) AdminService {
	if tokens.AccessTTL <= 0 {
		tokens.AccessTTL = AccessTokenExpiration
	}
	if tokens.RefreshTTL <= 0 {
		tokens.RefreshTTL = RefreshTokenExpiration
	}

	return &adminService{
		adminRepo:        adminRepo,
		refreshTokenRepo: refreshTokenRepo,
		tokens:           tokens,
		logger:           logger,
	}
}

// Login authenticates an admin and returns JWT tokens
func (s *adminService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, admin *domain.Admin, err error) {
	admin, err = s.adminRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find admin: %w", err)
	}

	if err := s.verifyPassword(admin.PasswordHash, password); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	if !admin.IsActive {
		return "", "", nil, ErrInactiveAdmin
	}

	accessToken, err = s.generateAccessToken(admin)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(ctx, admin)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	if err := s.adminRepo.UpdateLastLogin(ctx, admin.ID, now); err != nil {
		s.logger.Warn("Failed to record last login", zap.String("admin_id", admin.ID.String()), zap.Error(err))
	} else {
		admin.LastLoginAt = &now
	}

	return accessToken, refreshToken, admin, nil
}

// Logout invalidates the refresh token
func (s *adminService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// Unknown tokens count as already logged out
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// LogoutAll revokes every refresh token of the admin, ending all sessions
// once their access tokens lapse
func (s *adminService) LogoutAll(ctx context.Context, adminID uuid.UUID) error {
	if err := s.refreshTokenRepo.RevokeAllForAdmin(ctx, adminID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	s.logger.Info("Admin sessions revoked", zap.String("admin_id", adminID.String()))
	return nil
}

// RefreshToken generates a new access token using a valid refresh token
func (s *adminService) RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken string, err error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	admin, err := s.adminRepo.FindByID(ctx, refreshToken.AdminID)
	if err != nil {
		return "", fmt.Errorf("failed to find admin: %w", err)
	}

	if !admin.IsActive {
		return "", ErrInactiveAdmin
	}

	newAccessToken, err = s.generateAccessToken(admin)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *adminService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.tokens.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetAdminByID retrieves an admin by ID
func (s *adminService) GetAdminByID(ctx context.Context, adminID uuid.UUID) (*domain.Admin, error) {
	admin, err := s.adminRepo.FindByID(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return admin, nil
}

// CreateAdmin creates a new admin account with a hashed password
func (s *adminService) CreateAdmin(ctx context.Context, input AdminInput) (*domain.Admin, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := s.adminRepo.FindByEmail(ctx, email); err == nil {
		return nil, repository.ErrAdminAlreadyExists
	} else if !errors.Is(err, repository.ErrAdminNotFound) {
		return nil, fmt.Errorf("failed to check existing admin: %w", err)
	}

	hashedPassword, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Administrator"
	}

	now := time.Now().UTC()
	admin := &domain.Admin{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		Role:         domain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	s.logger.Info("Admin created", zap.String("admin_id", admin.ID.String()), zap.String("email", admin.Email))

	return admin, nil
}

// EnsureBootstrapAdmin creates the first admin when none exists yet
func (s *adminService) EnsureBootstrapAdmin(ctx context.Context, input AdminInput) (bool, error) {
	if input.Email == "" || input.Password == "" {
		return false, nil
	}

	count, err := s.adminRepo.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if len(input.Password) < minPasswordLength {
		return false, fmt.Errorf("bootstrap admin password must be at least %d characters", minPasswordLength)
	}

	if _, err := s.CreateAdmin(ctx, input); err != nil {
		return false, err
	}

	return true, nil
}

// IsActive reports whether the admin exists and may still use the back office
func (s *adminService) IsActive(ctx context.Context, adminID uuid.UUID) (bool, error) {
	admin, err := s.adminRepo.FindByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return false, nil
		}
		return false, err
	}
	return admin.IsActive, nil
}

func (s *adminService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *adminService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateAccessToken generates a JWT access token with admin ID and role claims
func (s *adminService) generateAccessToken(admin *domain.Admin) (string, error) {
	now := time.Now()
	claims := &Claims{
		AdminID: admin.ID,
		Role:    admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokens.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.tokens.Secret))
}

// generateRefreshToken generates a refresh token and stores it in the database
func (s *adminService) generateRefreshToken(ctx context.Context, admin *domain.Admin) (string, error) {
	now := time.Now().UTC()
	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		AdminID:   admin.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.tokens.RefreshTTL),
		CreatedAt: now,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return refreshToken.Token, nil
}
