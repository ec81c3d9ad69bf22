package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hisham-kadambot/LLM-MCP/internal/auth"
	"github.com/hisham-kadambot/LLM-MCP/internal/drive"
	"github.com/hisham-kadambot/LLM-MCP/internal/llm"
	"github.com/hisham-kadambot/LLM-MCP/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"kind": kind, "error": message})
}

// writeServiceError maps a service-layer error to a stable status code and
// machine-readable kind string.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrDuplicateUser):
		writeError(w, http.StatusConflict, "duplicate_user", err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, services.ErrAccountInactive):
		writeError(w, http.StatusForbidden, "account_inactive", "Account is inactive")
	case errors.Is(err, services.ErrNotFound), errors.Is(err, drive.ErrNotFound), errors.Is(err, llm.ErrMissingAPIKey):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token_expired", "Token expired")
	case errors.Is(err, auth.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, "token_invalid", "Invalid token")
	case errors.Is(err, llm.ErrProviderNotSupported):
		writeError(w, http.StatusBadRequest, "provider_not_supported", err.Error())
	case errors.Is(err, drive.ErrAuthenticationRequired):
		writeError(w, http.StatusUnauthorized, "authentication_required", err.Error())
	case errors.Is(err, llm.ErrUpstream), errors.Is(err, drive.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream_provider_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
