package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/kestrelworks/orgvault/internal/handlers"
	"github.com/kestrelworks/orgvault/internal/middleware"
)

type RouterConfig struct {
	ServiceName       string
	AuthHandler       *handlers.AuthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	UserHandler       *handlers.UserHandler
	DepartmentHandler *handlers.DepartmentHandler
	PreferenceHandler *handlers.PreferenceHandler
	ProjectHandler    *handlers.ProjectHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/auth/register", cfg.AuthHandler.Register)
		api.POST("/auth/login", cfg.AuthHandler.Login)
		api.POST("/auth/refresh", cfg.AuthHandler.Refresh)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/auth/logout", cfg.AuthHandler.Logout)
	// User
	protected.GET("/me", cfg.UserHandler.GetMe)
	protected.GET("/users", cfg.UserHandler.List)
	protected.GET("/users/:id", cfg.UserHandler.Get)
	protected.GET("/users/:id/asof", cfg.UserHandler.GetAsOf)
	protected.GET("/users/:id/history", cfg.UserHandler.History)
	protected.PATCH("/users/:id", cfg.UserHandler.Update)
	protected.DELETE("/users/:id", cfg.UserHandler.Delete)
	protected.POST("/users/:id/restore", cfg.UserHandler.Restore)
	// Department
	protected.POST("/departments", cfg.DepartmentHandler.Create)
	protected.GET("/departments", cfg.DepartmentHandler.List)
	protected.GET("/departments/:id", cfg.DepartmentHandler.Get)
	protected.GET("/departments/:id/asof", cfg.DepartmentHandler.GetAsOf)
	protected.GET("/departments/:id/history", cfg.DepartmentHandler.History)
	protected.PATCH("/departments/:id", cfg.DepartmentHandler.Update)
	protected.DELETE("/departments/:id", cfg.DepartmentHandler.Delete)
	protected.POST("/departments/:id/restore", cfg.DepartmentHandler.Restore)
	// Preferences
	protected.GET("/me/preferences", cfg.PreferenceHandler.GetMine)
	protected.GET("/me/preferences/history", cfg.PreferenceHandler.HistoryMine)
	protected.PUT("/me/preferences", cfg.PreferenceHandler.UpdateMine)
	// Project
	protected.POST("/projects", cfg.ProjectHandler.Create)
	protected.GET("/projects", cfg.ProjectHandler.List)
	protected.GET("/projects/:id", cfg.ProjectHandler.Get)
	protected.GET("/projects/:id/asof", cfg.ProjectHandler.GetAsOf)
	protected.GET("/projects/:id/history", cfg.ProjectHandler.History)
	protected.GET("/projects/:id/branches", cfg.ProjectHandler.Branches)
	protected.PATCH("/projects/:id", cfg.ProjectHandler.Update)
	protected.DELETE("/projects/:id", cfg.ProjectHandler.Delete)
	protected.POST("/projects/:id/branch", cfg.ProjectHandler.CreateBranch)
	protected.POST("/projects/:id/merge", cfg.ProjectHandler.Merge)
	protected.POST("/projects/:id/revert", cfg.ProjectHandler.Revert)

	return router
}
