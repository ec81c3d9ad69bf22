package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hisham-kadambot/LLM-MCP/internal/auth"
	"github.com/hisham-kadambot/LLM-MCP/internal/models"
	"github.com/hisham-kadambot/LLM-MCP/internal/services"
)

// APIKeyHandler handles per-user API key management. Every operation is
// scoped to the identity carried by the verified token.
type APIKeyHandler struct {
	users services.UserServiceProvider
	keys  services.APIKeyServiceProvider
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(users services.UserServiceProvider, keys services.APIKeyServiceProvider) *APIKeyHandler {
	return &APIKeyHandler{users: users, keys: keys}
}

// currentUser resolves the authenticated caller from the request context.
func (h *APIKeyHandler) currentUser(r *http.Request) (models.User, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return models.User{}, false
	}
	user, err := h.users.GetUserByUsername(claims.Username)
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

// APIKeyPayload defines the structure for set_api_key requests.
type APIKeyPayload struct {
	ModelName string `json:"model_name"`
	APIKey    string `json:"api_key"`
}

// APIKeySummary is the masked representation returned on listings.
type APIKeySummary struct {
	ModelName string    `json:"model_name"`
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

// Set stores or overwrites the caller's key for a model.
func (h *APIKeyHandler) Set(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Could not resolve user from token")
		return
	}

	var payload APIKeyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}
	if payload.ModelName == "" || payload.APIKey == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "model_name and api_key are required")
		return
	}

	if _, err := h.keys.UpsertAPIKey(user.ID, payload.ModelName, payload.APIKey); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Str("model_name", payload.ModelName).Msg("Failed to store API key")
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"msg": "API key for model '" + payload.ModelName + "' saved successfully for user '" + user.Username + "'",
	})
}

// List returns the caller's keys with the key material masked.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Could not resolve user from token")
		return
	}

	records, err := h.keys.ListAPIKeys(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to list API keys")
		writeServiceError(w, err)
		return
	}

	summaries := make([]APIKeySummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, APIKeySummary{
			ModelName: rec.ModelName,
			APIKey:    rec.MaskedKey(),
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Delete removes the caller's key for a model. Deleting a key that does
// not exist still succeeds.
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Could not resolve user from token")
		return
	}

	modelName := chi.URLParam(r, "model_name")
	removed, err := h.keys.DeleteAPIKey(user.ID, modelName)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Str("model_name", modelName).Msg("Failed to delete API key")
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"msg":     "API key for model '" + modelName + "' deleted",
		"removed": removed,
	})
}
