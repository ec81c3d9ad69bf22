package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hisham-kadambot/LLM-MCP/internal/api"
	"github.com/hisham-kadambot/LLM-MCP/internal/auth"
	"github.com/hisham-kadambot/LLM-MCP/internal/config"
	"github.com/hisham-kadambot/LLM-MCP/internal/database"
	"github.com/hisham-kadambot/LLM-MCP/internal/drive"
	"github.com/hisham-kadambot/LLM-MCP/internal/llm"
	"github.com/hisham-kadambot/LLM-MCP/internal/logger"
	"github.com/hisham-kadambot/LLM-MCP/internal/mcptools"
	"github.com/hisham-kadambot/LLM-MCP/internal/services"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply database migrations: %v", err)
	}

	// Set up services
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenExpiry)
	userService := services.NewUserService(db, cfg.MinPasswordLength)
	apiKeyService := services.NewAPIKeyService(db)
	llmFactory := llm.NewFactory(apiKeyService, cfg.OpenAIAPIKey, cfg.AnthropicAPIKey)
	driveService := drive.NewService(cfg.GoogleCredentialsPath, cfg.GoogleTokenPath)

	// Set up the MCP tool server
	mcpServer := mcptools.New(mcptools.Deps{
		Users:   userService,
		Factory: llmFactory,
		Drive:   driveService,
	})

	// Set up router
	router := api.NewRouter(issuer, userService, apiKeyService, llmFactory, driveService, mcpServer)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on port %d\n", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
