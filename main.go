package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fewie27/ultimate/backend/analysis"
	"github.com/fewie27/ultimate/backend/config"
	"github.com/fewie27/ultimate/backend/corpus"
	"github.com/fewie27/ultimate/backend/handler"
	"github.com/fewie27/ultimate/backend/middleware"
	"github.com/fewie27/ultimate/backend/pkg/logger"
	"github.com/fewie27/ultimate/backend/service"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	ctx := context.Background()

	// Initialize the GenAI client (embeddings + judgment)
	genaiSvc, err := service.NewGenAIService(ctx, &cfg.GenAI)
	if err != nil {
		slog.Error("failed to initialize GenAI service", "error", err)
		os.Exit(1)
	}

	// Load the reference corpus and embed any exemplars shipped without vectors
	library, err := corpus.Load(cfg.Corpus.Path)
	if err != nil {
		slog.Error("failed to load corpus", "error", err, "path", cfg.Corpus.Path)
		os.Exit(1)
	}
	if err := library.EnsureEmbeddings(ctx, genaiSvc); err != nil {
		slog.Error("failed to embed corpus", "error", err)
		os.Exit(1)
	}
	corpus.Swap(library)
	slog.Info("corpus loaded",
		"exemplars", len(library.Exemplars),
		"requirements", len(library.Requirements),
	)

	// Document archive is optional; without MinIO the engine runs in-memory only
	var archiveSvc *service.ArchiveService
	if cfg.Minio.Endpoint != "" {
		archiveSvc, err = service.NewArchiveService(&cfg.Minio)
		if err != nil {
			slog.Error("failed to initialize archive service", "error", err)
			os.Exit(1)
		}
		if err := archiveSvc.EnsureBucket(ctx); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("no archive configured, submitted documents are kept in memory only")
	}

	// Initialize analysis store with config
	service.InitAnalysisStore(&cfg.Store)
	store := service.GetAnalysisStore()

	// Wire the analysis engine
	var archiver analysis.Archiver
	if archiveSvc != nil {
		archiver = archiveSvc
	}
	orchestrator := analysis.NewOrchestrator(&cfg.Analysis, genaiSvc, genaiSvc, store, archiver)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	analysisHandler := handler.NewAnalysisHandler(orchestrator, archiveSvc)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(cacheMiddleware())                      // Cache control
	router.Use(middleware.RateLimit(100, time.Minute)) // Rate limiting: 100 requests per minute

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/documents", analysisHandler.Submit)
		protected.GET("/analysis", analysisHandler.List)
		protected.GET("/analysis/:id", analysisHandler.Get)
		protected.GET("/analysis/:id/status", analysisHandler.GetStatus)
		protected.GET("/analysis/:id/document", analysisHandler.Download)
		protected.DELETE("/analysis/:id", analysisHandler.Delete)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
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

// cacheMiddleware disables caching of analysis responses; results change as
// the pipeline progresses
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}

		c.Next()
	}
}
