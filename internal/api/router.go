package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hisham-kadambot/LLM-MCP/internal/api/handlers"
	"github.com/hisham-kadambot/LLM-MCP/internal/auth"
	"github.com/hisham-kadambot/LLM-MCP/internal/drive"
	"github.com/hisham-kadambot/LLM-MCP/internal/llm"
	"github.com/hisham-kadambot/LLM-MCP/internal/services"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(
	issuer *auth.TokenIssuer,
	userService services.UserServiceProvider,
	apiKeyService services.APIKeyServiceProvider,
	llmFactory *llm.Factory,
	driveService *drive.Service,
	mcpServer *mcpserver.MCPServer,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, issuer)
	apiKeyHandler := handlers.NewAPIKeyHandler(userService, apiKeyService)
	llmHandler := handlers.NewLLMHandler(userService, llmFactory)
	driveHandler := handlers.NewDriveHandler(driveService)
	mcpHandler := handlers.NewMCPHandler(mcpServer)

	// Public endpoints
	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)

	// Authenticated endpoints
	r.Group(func(r chi.Router) {
		r.Use(issuer.Middleware())

		r.Get("/protected", handlers.Protected)

		r.Post("/set_api_key", apiKeyHandler.Set)
		r.Get("/api_keys", apiKeyHandler.List)
		r.Delete("/api_keys/{model_name}", apiKeyHandler.Delete)

		r.Post("/chat", llmHandler.Chat)

		r.Route("/google-drive", func(r chi.Router) {
			r.Post("/authenticate", driveHandler.Authenticate)
			r.Get("/status", driveHandler.Status)
			r.Post("/create-folder", driveHandler.CreateFolder)
			r.Post("/upload-content", driveHandler.UploadContent)
			r.Get("/download-file/{file_id}", driveHandler.DownloadFile)
			r.Get("/list-files", driveHandler.ListFiles)
			r.Get("/search-files", driveHandler.SearchFiles)
			r.Delete("/delete-file/{file_id}", driveHandler.DeleteFile)
			r.Post("/share-file", driveHandler.ShareFile)
			r.Post("/create-shared-link", driveHandler.CreateSharedLink)
			r.Post("/create-customer-folder", driveHandler.CreateCustomerFolder)
			r.Post("/upload-customer-document", driveHandler.UploadCustomerDocument)
			r.Get("/get-customer-documents/{customer_folder_id}", driveHandler.CustomerDocuments)
		})

		// MCP tool invocations share the same authentication boundary.
		r.Post("/mcp", mcpHandler.Serve)
	})

	return r
}
