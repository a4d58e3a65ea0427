package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leonclem/one-minute-menu-sub003/config"
	"github.com/leonclem/one-minute-menu-sub003/handler"
	"github.com/leonclem/one-minute-menu-sub003/middleware"
	"github.com/leonclem/one-minute-menu-sub003/pkg/logger"
	"github.com/leonclem/one-minute-menu-sub003/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}
	if err := minioSvc.EnsureBucket(context.Background()); err != nil {
		slog.Error("failed to ensure storage bucket", "error", err)
		os.Exit(1)
	}

	store, err := service.OpenPGStore(context.Background(), &cfg.Database, slog.Default())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	qrSvc := service.NewQRService(minioSvc, cfg.Server.PublicBaseURL)

	authHandler := handler.NewAuthHandler(store, cfg)
	menuHandler := handler.NewMenuHandler(store, qrSvc)
	itemHandler := handler.NewItemHandler(store)
	jobHandler := handler.NewJobHandler(store, minioSvc)
	analyticsHandler := handler.NewAnalyticsHandler(store)
	billingHandler := handler.NewBillingHandler(store, cfg)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(100, time.Minute))

	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := store.Ping(c.Request.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public surface: diner-facing menu pages and provider webhooks
	router.GET("/m/:slug", menuHandler.PublicBySlug)
	router.POST("/m/:slug/scan", analyticsHandler.RecordScan)
	router.POST("/webhooks/billing", billingHandler.HandleWebhook)

	api := router.Group("/api")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.POST("/menus", menuHandler.Create)
		protected.GET("/menus", menuHandler.List)
		protected.GET("/menus/:id", menuHandler.Get)
		protected.PUT("/menus/:id", menuHandler.Update)
		protected.DELETE("/menus/:id", menuHandler.Delete)
		protected.POST("/menus/:id/publish", menuHandler.Publish)
		protected.POST("/menus/:id/unpublish", menuHandler.Unpublish)

		protected.POST("/menus/:id/items", itemHandler.Create)
		protected.PUT("/menus/:id/items/:item_id", itemHandler.Update)
		protected.DELETE("/menus/:id/items/:item_id", itemHandler.Delete)
		protected.POST("/menus/:id/migrate-categories", itemHandler.MigrateCategories)
		protected.GET("/menus/:id/analytics", analyticsHandler.GetScanStats)

		protected.POST("/extraction/upload", jobHandler.Upload)
		protected.POST("/extraction/jobs", jobHandler.Submit)
		protected.GET("/extraction/jobs/:id", jobHandler.Get)

		protected.GET("/billing/purchases", billingHandler.ListPurchases)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
