package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"ecatalogue/internal/config"
	custommiddleware "ecatalogue/internal/middleware"
	"ecatalogue/internal/repository"
	"ecatalogue/internal/service"
	"ecatalogue/internal/storage"
	"ecatalogue/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// tokenPruneInterval is how often expired refresh tokens are removed
const tokenPruneInterval = time.Hour

type Server struct {
	*http.Server
	config        *config.Config
	logger        *zap.Logger
	db            *sql.DB
	redis         *redis.Client
	adminService  service.AdminService
	refreshTokens repository.RefreshTokenRepository
}

// NewServer wires repositories, services and handlers onto a chi router.
// redisClient may be nil, in which case rate limiting is off.
func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, redisClient *redis.Client, gateway storage.Gateway) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))

	rateLimited := cfg.RateLimit.Enabled && redisClient != nil
	if rateLimited {
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "rate_limit:public",
		}, logger))
	}

	// Initialize repositories
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)

	// Initialize services
	consistency := service.NewConsistencyMaintainer(categoryRepo, productRepo, logger)
	images := service.NewImageLifecycle(gateway, cfg.Storage.MaxUploadSize, logger)
	productService := service.NewProductService(productRepo, categoryRepo, consistency, images, logger)
	categoryService := service.NewCategoryService(categoryRepo, consistency, images, logger)
	backfillService := service.NewBackfillService(productRepo, categoryRepo, consistency, logger)
	adminService := service.NewAdminService(adminRepo, refreshTokenRepo, service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshTTL: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	}, logger)

	// Admin chain: valid token, admin role, account still active
	adminChain := []func(http.Handler) http.Handler{
		custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger),
		custommiddleware.RequireAdmin(logger),
		custommiddleware.RequireActiveAdmin(adminService, logger),
	}
	if rateLimited {
		adminChain = append(adminChain, custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "rate_limit:admin",
		}, logger))
	}
	adminOnly := chi.Chain(adminChain...).Handler

	// Register routes
	transport.NewProductHandler(productService, cfg.Storage.MaxUploadSize, logger).RegisterRoutes(router, adminOnly)
	transport.NewCategoryHandler(categoryService, backfillService, cfg.Storage.MaxUploadSize, logger).RegisterRoutes(router, adminOnly)
	transport.NewAuthHandler(adminService, logger).RegisterRoutes(router, adminOnly)

	s := &Server{
		config:        cfg,
		logger:        logger,
		db:            db,
		redis:         redisClient,
		adminService:  adminService,
		refreshTokens: refreshTokenRepo,
	}

	router.Get("/health", s.health)

	if local, ok := gateway.(*storage.LocalGateway); ok {
		router.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(local.Root()))))
	}

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return s
}

// health reports database and cache reachability. Redis is optional, so only
// a database failure makes the service unhealthy.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "up", "redis": "disabled"}
	code := http.StatusOK

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("Health check: database unreachable", zap.Error(err))
		status["status"] = "degraded"
		status["database"] = "down"
		code = http.StatusServiceUnavailable
	}

	if s.redis != nil {
		status["redis"] = "up"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
		}
	}

	custommiddleware.RespondWithJSON(w, code, status)
}

// Bootstrap seeds the first admin account from configuration
func (s *Server) Bootstrap(ctx context.Context) error {
	created, err := s.adminService.EnsureBootstrapAdmin(ctx, service.AdminInput{
		Email:    s.config.Admin.Email,
		Password: s.config.Admin.Password,
		Name:     s.config.Admin.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	if created {
		s.logger.Info("Bootstrap admin created", zap.String("email", s.config.Admin.Email))
	}
	return nil
}

// PruneRefreshTokens deletes expired refresh tokens until ctx is cancelled
func (s *Server) PruneRefreshTokens(ctx context.Context) {
	ticker := time.NewTicker(tokenPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.refreshTokens.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				s.logger.Warn("Failed to prune refresh tokens", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("Pruned expired refresh tokens", zap.Int64("count", removed))
			}
		}
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
