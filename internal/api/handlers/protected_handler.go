package handlers

import (
	"fmt"
	"net/http"

	"github.com/hisham-kadambot/LLM-MCP/internal/auth"
)

// Protected is a minimal authenticated route used to exercise the token
// middleware.
func Protected(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Could not retrieve user from token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"msg": fmt.Sprintf("Hello, %s! This is protected.", claims.Username),
	})
}
