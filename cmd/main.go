package main

import (
	"context"
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"

	"kompello/internal/caching"
	"kompello/internal/common"
	"kompello/internal/config"
	"kompello/internal/handlers"
	"kompello/internal/jobs"
	"kompello/internal/jobs/background"
	"kompello/internal/middleware"
	"kompello/internal/providers"
	"kompello/internal/repositories"
	"kompello/internal/services"
	"kompello/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = random.String(32)
		log.Printf("WARNING: JWT_SECRET not set, using a generated secret; sessions will not survive restarts")
	}

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	tenantRepo := repositories.NewTenantRepo(pool)
	membershipRepo := repositories.NewMembershipRepo(pool)
	socialRepo := repositories.NewSocialAuthRepo(pool)

	// Cache
	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// Services
	tokenSvc := services.NewTokenService(jwtSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	storageSvc, err := services.NewMinioStorage(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}
	if err := storageSvc.EnsureBucketExists(ctx, cfg.AvatarBucket); err != nil {
		log.Printf("WARNING: Failed to ensure avatar bucket exists: %v", err)
	}

	// Social login providers
	var providerList []providers.Provider
	if cfg.GoogleClientID != "" {
		google, err := providers.NewGoogleProvider(cfg.GoogleClientID)
		if err != nil {
			log.Fatalf("Failed to configure google provider: %v", err)
		}
		providerList = append(providerList, google)
	}
	if cfg.OIDCName != "" {
		oidc, err := providers.NewOIDCProvider(cfg.OIDCName, cfg.OIDCIssuer, cfg.OIDCJWKSURL, cfg.OIDCClientID)
		if err != nil {
			log.Fatalf("Failed to configure %s provider: %v", cfg.OIDCName, err)
		}
		providerList = append(providerList, oidc)
	}
	registry := providers.NewRegistry(providerList...)

	// Handlers
	authHandlers := handlers.NewAuthHandlers(tokenSvc, userRepo, socialRepo, registry, cacheSvc, cfg)
	userHandlers := handlers.NewUserHandlers(userRepo, socialRepo, storageSvc, cacheSvc, registry, cfg.AvatarBucket)
	tenantHandlers := handlers.NewTenantHandlers(tenantRepo, membershipRepo, cacheSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc)

	// Background jobs
	refresher := jobs.NewStatsRefresher(membershipRepo, cacheSvc, cfg.StatsRefreshInterval*2)
	scheduler, err := background.NewJobScheduler(refresher, cfg.StatsRefreshInterval)
	if err != nil {
		log.Fatalf("Failed to create job scheduler: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = common.HTTPErrorHandler

	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)

	// All API routes resolve the caller; anonymous requests pass through and
	// per-handler policy checks decide.
	v1 := e.Group("/v1")
	v1.Use(middleware.ResolveCaller(tokenSvc, userRepo))

	// Authentication routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandlers.Register)
	auth.POST("/standard", authHandlers.PasswordLogin)
	auth.POST("/social", authHandlers.SocialLogin)
	auth.POST("/refresh", authHandlers.Refresh)

	// User routes
	v1.GET("/users", userHandlers.ListUsers)
	v1.POST("/users", userHandlers.CreateUser)
	v1.GET("/users/me", userHandlers.Me)
	v1.GET("/users/:id", userHandlers.GetUser)
	v1.PUT("/users/:id", userHandlers.UpdateUser)
	v1.PATCH("/users/:id", userHandlers.UpdateUser)
	v1.DELETE("/users/:id", userHandlers.DeleteUser)
	v1.POST("/users/:id/set-password", userHandlers.SetPassword)
	v1.GET("/users/:id/permissions", userHandlers.Permissions)
	v1.POST("/users/:id/avatar", userHandlers.UploadAvatar)
	v1.GET("/users/:id/avatar", userHandlers.GetAvatar)
	v1.GET("/users/:id/social-links", userHandlers.SocialLinks)
	v1.POST("/users/:id/social-links", userHandlers.AddSocialLink)

	// Tenant routes
	v1.GET("/tenants", tenantHandlers.ListTenants)
	v1.POST("/tenants", tenantHandlers.CreateTenant)
	v1.GET("/tenants/:id", tenantHandlers.GetTenant)
	v1.PUT("/tenants/:id", tenantHandlers.UpdateTenant)
	v1.PATCH("/tenants/:id", tenantHandlers.UpdateTenant)
	v1.DELETE("/tenants/:id", tenantHandlers.DeleteTenant)
	v1.GET("/tenants/:id/users", tenantHandlers.ListTenantUsers)
	v1.POST("/tenants/:id/add-users", tenantHandlers.AddUsers)
	v1.POST("/tenants/:id/remove-users", tenantHandlers.RemoveUsers)

	log.Printf("kompello server v%s starting on port %d", version, cfg.Port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", cfg.Port)))
}
