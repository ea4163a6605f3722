package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kestrelworks/orgvault/internal/clients/redis"
	"github.com/kestrelworks/orgvault/internal/db"
	"github.com/kestrelworks/orgvault/internal/handlers"
	"github.com/kestrelworks/orgvault/internal/logger"
	"github.com/kestrelworks/orgvault/internal/middleware"
	"github.com/kestrelworks/orgvault/internal/observability"
	"github.com/kestrelworks/orgvault/internal/repos"
	"github.com/kestrelworks/orgvault/internal/server"
	"github.com/kestrelworks/orgvault/internal/services"
	"github.com/kestrelworks/orgvault/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

	// Tracing
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "orgvault",
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	if otelShutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(ctx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	departmentRepo := repos.NewDepartmentRepo(thePG, log)
	preferenceRepo := repos.NewPreferenceRepo(thePG, log)
	projectRepo := repos.NewProjectRepo(thePG, log)

	// Token store
	tokenStore, err := redis.NewTokenStore(log)
	if err != nil {
		log.Warn("Redis token store unavailable, using in-memory store", "error", err)
		tokenStore = services.NewMemoryTokenStore()
	}

	// Services
	log.Info("Setting up Services from main...")
	userService := services.NewUserService(thePG, log, userRepo)
	departmentService := services.NewDepartmentService(thePG, log, departmentRepo)
	preferenceService := services.NewPreferenceService(thePG, log, preferenceRepo)
	projectService := services.NewProjectService(thePG, log, projectRepo)
	authService := services.NewAuthService(thePG, log, userService, tokenStore, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	departmentHandler := handlers.NewDepartmentHandler(departmentService)
	preferenceHandler := handlers.NewPreferenceHandler(preferenceService)
	projectHandler := handlers.NewProjectHandler(projectService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ServiceName:       "orgvault",
		AuthHandler:       authHandler,
		AuthMiddleware:    authMiddleware,
		UserHandler:       userHandler,
		DepartmentHandler: departmentHandler,
		PreferenceHandler: preferenceHandler,
		ProjectHandler:    projectHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
