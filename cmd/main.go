package main

import (
	"inventory-service/internal/handler"
	mid "inventory-service/internal/middleware"
	"inventory-service/pkg/config"
	"inventory-service/pkg/database"
	"inventory-service/pkg/jwtutil"
	"inventory-service/pkg/logger"
	"inventory-service/prometheus"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type requestValidator struct {
	validate *validator.Validate
}

func (rv *requestValidator) Validate(i interface{}) error {
	return rv.validate.Struct(i)
}

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting inventory-service",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	err = database.InitDB(appConfig)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Handlers read limits and import settings from the config
	handler.Init(appConfig)

	// Initialize Echo instance
	e := echo.New()
	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", handler.Health)

	// Auth routes
	e.POST("/api/auth/login", handler.Login)
	e.GET("/api/auth/me", handler.Me, mid.AuthMiddleware)

	// Inventory API routes
	inventoryAPI := e.Group("/api/inventory", mid.AuthMiddleware)
	inventoryAPI.GET("", handler.ListInventory)
	inventoryAPI.POST("", handler.BulkInsertInventory)
	inventoryAPI.DELETE("", handler.ClearInventory, mid.RequireAdmin)
	inventoryAPI.PATCH("/:id", handler.UpdateInventory)
	inventoryAPI.GET("/images", handler.ListInventoryImages)
	inventoryAPI.POST("/import", handler.ImportInventory)
	inventoryAPI.GET("/export", handler.ExportInventory)

	// Stock opname API routes
	opnameAPI := e.Group("/api/stock-opname", mid.AuthMiddleware)
	opnameAPI.GET("", handler.ListStockOpname)
	opnameAPI.POST("", handler.CreateStockOpname)
	opnameAPI.DELETE("", handler.ClearStockOpname, mid.RequireAdmin)
	opnameAPI.PATCH("/:id", handler.UpdateStockOpname)
	opnameAPI.DELETE("/:id", handler.DeleteStockOpname)
	opnameAPI.GET("/export", handler.ExportStockOpname)

	// Activity log API routes
	activityAPI := e.Group("/api/activities", mid.AuthMiddleware)
	activityAPI.GET("", handler.ListActivities)
	activityAPI.POST("", handler.CreateActivity)

	// User management is restricted to administrators
	userAPI := e.Group("/api/users", mid.AuthMiddleware, mid.RequireAdmin)
	userAPI.GET("", handler.ListUsers)
	userAPI.POST("", handler.CreateUser)
	userAPI.PUT("/:id", handler.UpdateUser)
	userAPI.DELETE("/:id", handler.DeleteUser)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
