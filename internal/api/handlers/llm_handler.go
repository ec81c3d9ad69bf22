package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hisham-kadambot/LLM-MCP/internal/auth"
	"github.com/hisham-kadambot/LLM-MCP/internal/llm"
	"github.com/hisham-kadambot/LLM-MCP/internal/services"
)

// LLMHandler proxies chat requests to the caller's configured provider.
type LLMHandler struct {
	users   services.UserServiceProvider
	factory *llm.Factory
}

// NewLLMHandler creates a new LLMHandler.
func NewLLMHandler(users services.UserServiceProvider, factory *llm.Factory) *LLMHandler {
	return &LLMHandler{users: users, factory: factory}
}

// ChatPayload defines the structure for chat requests.
type ChatPayload struct {
	Message     string   `json:"message"`
	ModelName   string   `json:"model_name"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Chat forwards a single-turn message to an LLM provider and returns its
// reply. Upstream failures are surfaced with the provider's detail but are
// never retried here.
func (h *LLMHandler) Chat(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Could not resolve user from token")
		return
	}

	var payload ChatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}
	if payload.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "message is required")
		return
	}
	if payload.ModelName == "" {
		payload.ModelName = "openai"
	}

	user, err := h.users.GetUserByUsername(claims.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	client, err := h.factory.ClientFor(user.ID, payload.ModelName)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	reply, err := client.Chat(r.Context(), payload.Message, llm.ChatOptions{
		MaxTokens:   payload.MaxTokens,
		Temperature: payload.Temperature,
	})
	if err != nil {
		log.Error().Err(err).Str("model_name", payload.ModelName).Msg("LLM chat failed")
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}
