package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

// MCPHandler serves MCP JSON-RPC 2.0 messages over HTTP. The route is
// protected by the token middleware, so tool handlers can rely on the
// claims in the request context.
type MCPHandler struct {
	server *server.MCPServer
}

// NewMCPHandler creates a new MCPHandler.
func NewMCPHandler(s *server.MCPServer) *MCPHandler {
	return &MCPHandler{server: s}
}

// Serve handles a single MCP JSON-RPC message.
func (h *MCPHandler) Serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Failed to read request body")
		return
	}

	response := h.server.HandleMessage(r.Context(), body)

	// A nil response means the message was a notification.
	if response == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
