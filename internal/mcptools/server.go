// Package mcptools exposes the backend's capabilities as MCP tools. The
// server speaks MCP JSON-RPC over HTTP; the transport handler feeds it
// request bodies via HandleMessage.
package mcptools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hisham-kadambot/LLM-MCP/internal/auth"
	"github.com/hisham-kadambot/LLM-MCP/internal/drive"
	"github.com/hisham-kadambot/LLM-MCP/internal/llm"
	"github.com/hisham-kadambot/LLM-MCP/internal/services"
)

const serverVersion = "1.0.0"

// Deps carries the services the tools call into.
type Deps struct {
	Users   services.UserServiceProvider
	Factory *llm.Factory
	Drive   *drive.Service
}

// New builds the MCP server with all tools registered. Callers are
// authenticated before HandleMessage runs; tools read the verified
// username from the request context.
func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"LLM-MCP",
		serverVersion,
		server.WithToolCapabilities(true),
	)

	registerDummyTool(s)
	registerChatTool(s, deps)
	registerDriveTools(s, deps.Drive)

	return s
}

// username extracts the authenticated caller from the context placed there
// by the JWT middleware.
func username(ctx context.Context) (string, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("no authenticated user in context")
	}
	return claims.Username, nil
}

func decodeArgs(request mcp.CallToolRequest, out interface{}) error {
	argsBytes, err := json.Marshal(request.GetArguments())
	if err != nil {
		return err
	}
	return json.Unmarshal(argsBytes, out)
}

func toolResultJSON(v interface{}) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(b))
}

func registerDummyTool(s *server.MCPServer) {
	tool := mcp.NewTool("dummy_tool",
		mcp.WithDescription("Returns a greeting for the authenticated user"),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := username(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("MCP says hi to %s", user)), nil
	})
}

func registerChatTool(s *server.MCPServer, deps Deps) {
	tool := mcp.NewTool("llm_chat_tool",
		mcp.WithDescription("Send a message to an LLM (OpenAI or Anthropic) and get a response"),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The message to send to the LLM"),
		),
		mcp.WithString("model_name",
			mcp.Description("The model to use ('openai', 'anthropic', 'gpt', 'claude', etc.)"),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Maximum tokens for the response"),
		),
		mcp.WithNumber("temperature",
			mcp.Description("Temperature for response generation"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := username(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var args struct {
			Message     string   `json:"message"`
			ModelName   string   `json:"model_name"`
			MaxTokens   int      `json:"max_tokens"`
			Temperature *float64 `json:"temperature"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		if args.ModelName == "" {
			args.ModelName = "openai"
		}

		account, err := deps.Users.GetUserByUsername(user)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
		}

		client, err := deps.Factory.ClientFor(account.ID, args.ModelName)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
		}

		reply, err := client.Chat(ctx, args.Message, llm.ChatOptions{
			MaxTokens:   args.MaxTokens,
			Temperature: args.Temperature,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
		}
		return mcp.NewToolResultText(reply), nil
	})
}

func registerDriveTools(s *server.MCPServer, svc *drive.Service) {
	s.AddTool(mcp.NewTool("google_drive_authenticate",
		mcp.WithDescription("Authenticate with the Google Drive API"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := svc.Authenticate(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Authentication error: %v", err)), nil
		}
		return toolResultJSON(map[string]interface{}{"authenticated": true}), nil
	})

	s.AddTool(mcp.NewTool("google_drive_status",
		mcp.WithDescription("Report whether a Google Drive credential is cached"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolResultJSON(map[string]interface{}{"authenticated": svc.Authenticated()}), nil
	})

	s.AddTool(mcp.NewTool("google_drive_create_folder",
		mcp.WithDescription("Create a new folder in Google Drive"),
		mcp.WithString("folder_name", mcp.Required(), mcp.Description("Name of the folder to create")),
		mcp.WithString("parent_folder_id", mcp.Description("ID of the parent folder")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			FolderName     string `json:"folder_name"`
			ParentFolderID string `json:"parent_folder_id"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		folder, err := svc.CreateFolder(ctx, args.FolderName, args.ParentFolderID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error creating folder: %v", err)), nil
		}
		return toolResultJSON(folder), nil
	})

	s.AddTool(mcp.NewTool("google_drive_upload_content",
		mcp.WithDescription("Upload base64-encoded content to Google Drive"),
		mcp.WithString("content", mcp.Required(), mcp.Description("File content, base64 encoded")),
		mcp.WithString("file_name", mcp.Required(), mcp.Description("Name of the file")),
		mcp.WithString("folder_id", mcp.Description("ID of the folder to upload to")),
		mcp.WithString("mime_type", mcp.Description("MIME type of the file")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Content  string `json:"content"`
			FileName string `json:"file_name"`
			FolderID string `json:"folder_id"`
			MimeType string `json:"mime_type"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		content, err := base64.StdEncoding.DecodeString(args.Content)
		if err != nil {
			return mcp.NewToolResultError("content must be base64 encoded"), nil
		}
		file, err := svc.UploadContent(ctx, content, args.FileName, args.FolderID, args.MimeType)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error uploading content: %v", err)), nil
		}
		return toolResultJSON(file), nil
	})

	s.AddTool(mcp.NewTool("google_drive_download_file",
		mcp.WithDescription("Download a file from Google Drive as base64"),
		mcp.WithString("file_id", mcp.Required(), mcp.Description("ID of the file to download")),
		mcp.WithString("export_mime_type", mcp.Description("MIME type for exporting Google Docs/Sheets/Slides")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			FileID         string `json:"file_id"`
			ExportMimeType string `json:"export_mime_type"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		content, err := svc.DownloadFile(ctx, args.FileID, args.ExportMimeType)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error downloading file: %v", err)), nil
		}
		return toolResultJSON(map[string]interface{}{
			"file_id": args.FileID,
			"content": base64.StdEncoding.EncodeToString(content),
			"size":    len(content),
		}), nil
	})

	s.AddTool(mcp.NewTool("google_drive_list_files",
		mcp.WithDescription("List files and folders in Google Drive"),
		mcp.WithString("folder_id", mcp.Description("ID of the folder to list")),
		mcp.WithString("query", mcp.Description("Extra Drive query expression")),
		mcp.WithNumber("page_size", mcp.Description("Number of items per page")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			FolderID string `json:"folder_id"`
			Query    string `json:"query"`
			PageSize int    `json:"page_size"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		files, err := svc.ListFiles(ctx, args.FolderID, args.Query, args.PageSize)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error listing files: %v", err)), nil
		}
		return toolResultJSON(map[string]interface{}{"files": files, "count": len(files)}), nil
	})

	s.AddTool(mcp.NewTool("google_drive_search_files",
		mcp.WithDescription("Search Google Drive files by name"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("page_size", mcp.Description("Number of items per page")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Query    string `json:"query"`
			PageSize int    `json:"page_size"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		files, err := svc.SearchFiles(ctx, args.Query, args.PageSize)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error searching files: %v", err)), nil
		}
		return toolResultJSON(map[string]interface{}{"files": files, "count": len(files)}), nil
	})

	s.AddTool(mcp.NewTool("google_drive_delete_file",
		mcp.WithDescription("Delete a file from Google Drive"),
		mcp.WithString("file_id", mcp.Required(), mcp.Description("ID of the file to delete")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			FileID string `json:"file_id"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		if err := svc.DeleteFile(ctx, args.FileID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error deleting file: %v", err)), nil
		}
		return toolResultJSON(map[string]interface{}{"deleted": true, "file_id": args.FileID}), nil
	})

	s.AddTool(mcp.NewTool("google_drive_share_file",
		mcp.WithDescription("Share a Google Drive file with a user"),
		mcp.WithString("file_id", mcp.Required(), mcp.Description("ID of the file to share")),
		mcp.WithString("email", mcp.Required(), mcp.Description("Email address to share with")),
		mcp.WithString("role", mcp.Description("Role to grant"), mcp.Enum("reader", "writer", "commenter")),
		mcp.WithBoolean("notify", mcp.Description("Whether to send a notification email")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			FileID string `json:"file_id"`
			Email  string `json:"email"`
			Role   string `json:"role"`
			Notify *bool  `json:"notify"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		notify := true
		if args.Notify != nil {
			notify = *args.Notify
		}
		perm, err := svc.ShareFile(ctx, args.FileID, args.Email, args.Role, notify)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error sharing file: %v", err)), nil
		}
		return toolResultJSON(perm), nil
	})

	s.AddTool(mcp.NewTool("google_drive_create_shared_link",
		mcp.WithDescription("Create a link anyone can use to view a Google Drive file"),
		mcp.WithString("file_id", mcp.Required(), mcp.Description("ID of the file")),
		mcp.WithString("permission", mcp.Description("Permission level"), mcp.Enum("reader", "writer", "commenter")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			FileID     string `json:"file_id"`
			Permission string `json:"permission"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		link, err := svc.CreateSharedLink(ctx, args.FileID, args.Permission)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error creating shared link: %v", err)), nil
		}
		return toolResultJSON(map[string]string{"shared_link": link}), nil
	})

	s.AddTool(mcp.NewTool("google_drive_create_customer_folder",
		mcp.WithDescription("Create the customer support folder structure for a customer"),
		mcp.WithString("customer_name", mcp.Required(), mcp.Description("Name of the customer")),
		mcp.WithString("customer_email", mcp.Description("Email of the customer")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			CustomerName  string `json:"customer_name"`
			CustomerEmail string `json:"customer_email"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		folder, err := svc.CreateCustomerFolder(ctx, args.CustomerName, args.CustomerEmail)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error creating customer folder: %v", err)), nil
		}
		return toolResultJSON(folder), nil
	})

	s.AddTool(mcp.NewTool("google_drive_upload_customer_document",
		mcp.WithDescription("Upload a document into a customer's support subfolder"),
		mcp.WithString("customer_folder_id", mcp.Required(), mcp.Description("ID of the customer's main folder")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document content, base64 encoded")),
		mcp.WithString("document_name", mcp.Required(), mcp.Description("Name of the document")),
		mcp.WithString("document_type", mcp.Description("Type of document"),
			mcp.Enum("documents", "contracts", "tickets", "communications")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			CustomerFolderID string `json:"customer_folder_id"`
			Content          string `json:"content"`
			DocumentName     string `json:"document_name"`
			DocumentType     string `json:"document_type"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		content, err := base64.StdEncoding.DecodeString(args.Content)
		if err != nil {
			return mcp.NewToolResultError("content must be base64 encoded"), nil
		}
		file, err := svc.UploadCustomerDocument(ctx, args.CustomerFolderID, content, args.DocumentName, args.DocumentType)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error uploading customer document: %v", err)), nil
		}
		return toolResultJSON(file), nil
	})

	s.AddTool(mcp.NewTool("google_drive_get_customer_documents",
		mcp.WithDescription("List a customer's documents grouped by type"),
		mcp.WithString("customer_folder_id", mcp.Required(), mcp.Description("ID of the customer's main folder")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			CustomerFolderID string `json:"customer_folder_id"`
		}
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		documents, err := svc.CustomerDocuments(ctx, args.CustomerFolderID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error getting customer documents: %v", err)), nil
		}
		return toolResultJSON(documents), nil
	})
}
