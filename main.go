package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SpikeIreland/clarence-sub005/config"
	"github.com/SpikeIreland/clarence-sub005/handler"
	"github.com/SpikeIreland/clarence-sub005/middleware"
	"github.com/SpikeIreland/clarence-sub005/pkg/logger"
	"github.com/SpikeIreland/clarence-sub005/service"
	"github.com/SpikeIreland/clarence-sub005/ws"
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

	// Initialize services
	var archiveSvc *service.ArchiveService
	if cfg.Archive.Endpoint != "" {
		archiveSvc, err = service.NewArchiveService(&cfg.Archive)
		if err != nil {
			slog.Error("failed to initialize document archive", "error", err)
			os.Exit(1)
		}
		if err := archiveSvc.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("document archive disabled, download links will use backend URLs")
	}

	generatorSvc := service.NewGeneratorService(&cfg.Generator)
	chatSvc := service.NewChatService(&cfg.Chat)
	store := service.NewNegotiationStore(&cfg.Store)

	hub := ws.NewHub(&cfg.Auth)
	go hub.Run()

	lifecycle := service.NewLifecycle(generatorSvc, archiveSvc, hub)

	sessionProvider := service.NewSessionProvider(&cfg.Sources)
	quickContractProvider := service.NewQuickContractProvider(&cfg.Sources)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	negotiationHandler := handler.NewNegotiationHandler(store, sessionProvider, quickContractProvider)
	documentHandler := handler.NewDocumentHandler(store, lifecycle, archiveSvc)
	chatHandler := handler.NewChatHandler(store, chatSvc, hub)
	callbackHandler := handler.NewCallbackHandler(generatorSvc, lifecycle, store)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(middleware.RateLimit(100, time.Minute)) // Rate limiting: 100 requests per minute

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Live event stream. The hub validates the JWT itself because browser
	// websocket dials cannot carry an Authorization header.
	router.GET("/ws", gin.WrapF(hub.HandleWebSocket))

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/generation/callback", callbackHandler.HandleCallback)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/negotiations/open", negotiationHandler.Open)
		protected.GET("/negotiations", negotiationHandler.List)
		protected.GET("/negotiations/:id", negotiationHandler.Get)
		protected.DELETE("/negotiations/:id", negotiationHandler.Close)
		protected.POST("/negotiations/:id/stage", negotiationHandler.SetStage)
		protected.GET("/negotiations/:id/documents", documentHandler.List)
		protected.GET("/negotiations/:id/documents/:docID", documentHandler.Get)
		protected.POST("/negotiations/:id/documents/:docID/generate", documentHandler.Generate)
		protected.GET("/negotiations/:id/documents/:docID/download", documentHandler.Download)
		protected.GET("/negotiations/:id/chat", chatHandler.List)
		protected.POST("/negotiations/:id/chat", chatHandler.Post)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
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
