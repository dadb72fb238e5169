package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-assist-service/config"
	"call-assist-service/database"
	"call-assist-service/gemini"
	"call-assist-service/handlers"
	"call-assist-service/metrics"
	"call-assist-service/middleware"
	"call-assist-service/report"
	"call-assist-service/service"
	"call-assist-service/stt"
	ws "call-assist-service/websocket"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn(".env file not found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()

	if cfg.CartesiaAPIKey == "" {
		log.Fatal("CARTESIA_API_KEY environment variable is required")
	}
	// A missing Gemini key is not fatal: transcription still works and the
	// report generator reports the configuration error per request.
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not set, report generation will fail until configured")
	}

	log.Info("Starting the call assist service...")

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	// Register Prometheus metrics
	metrics.Register()

	// Initialize WebSocket hub for live call updates
	hub := ws.NewHub()
	go hub.Run()

	// Initialize provider clients and the call workflow
	sttClient := stt.NewClient(cfg.CartesiaAPIURL, cfg.CartesiaAPIKey, cfg.CartesiaVersion,
		cfg.STTModel, cfg.STTLanguage, cfg.ProviderTimeout)
	llmClient := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ProviderTimeout)
	generator := report.NewGenerator(llmClient, cfg.GeminiAPIKey)
	callService := service.NewCallService(db, sttClient, generator, hub)

	// Initialize handlers
	h := handlers.NewHandlers(db, callService)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Setup router
	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, time.Minute))
	{
		api.GET("/health", h.HealthCheck)
		api.POST("/calls", h.CreateCall)
		api.GET("/calls", h.ListCalls)
		api.GET("/calls/:id", h.GetCall)
		api.PUT("/calls/:id", h.UpdateCall)
		api.DELETE("/calls/:id", h.DeleteCall)
		api.GET("/calls/:id/transcripts", h.ListTranscripts)
		api.POST("/calls/:id/transcribe", h.Transcribe)
		api.GET("/calls/:id/report", h.GetReport)
	}

	// Live call updates
	router.GET("/ws/calls", wsHandler.ListenCallUpdates)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Call assist service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
