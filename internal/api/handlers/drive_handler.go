package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hisham-kadambot/LLM-MCP/internal/drive"
)

// DriveHandler exposes the Google Drive wrapper over HTTP.
type DriveHandler struct {
	drive *drive.Service
}

// NewDriveHandler creates a new DriveHandler.
func NewDriveHandler(service *drive.Service) *DriveHandler {
	return &DriveHandler{drive: service}
}

// Authenticate eagerly builds the Drive credential instead of waiting for
// the first file operation.
func (h *DriveHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	if err := h.drive.Authenticate(r.Context()); err != nil {
		log.Warn().Err(err).Msg("Drive authentication failed")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"message":       "Authentication successful",
	})
}

// Status reports whether a Drive credential is currently cached.
func (h *DriveHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": h.drive.Authenticated(),
	})
}

// CreateFolder creates a folder, optionally under a parent.
func (h *DriveHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FolderName     string `json:"folder_name"`
		ParentFolderID string `json:"parent_folder_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.FolderName == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "folder_name is required")
		return
	}

	folder, err := h.drive.CreateFolder(r.Context(), payload.FolderName, payload.ParentFolderID)
	if err != nil {
		log.Error().Err(err).Str("folder_name", payload.FolderName).Msg("Failed to create Drive folder")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// UploadContent uploads base64-encoded content as a new file.
func (h *DriveHandler) UploadContent(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content  string `json:"content"`
		FileName string `json:"file_name"`
		FolderID string `json:"folder_id,omitempty"`
		MimeType string `json:"mime_type,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Content == "" || payload.FileName == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "content and file_name are required")
		return
	}

	content, err := base64.StdEncoding.DecodeString(payload.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "content must be base64 encoded")
		return
	}
	if payload.MimeType == "" {
		payload.MimeType = "text/plain"
	}

	file, err := h.drive.UploadContent(r.Context(), content, payload.FileName, payload.FolderID, payload.MimeType)
	if err != nil {
		log.Error().Err(err).Str("file_name", payload.FileName).Msg("Failed to upload to Drive")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// DownloadFile streams a file's content back as base64.
func (h *DriveHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")
	exportMimeType := r.URL.Query().Get("export_mime_type")

	content, err := h.drive.DownloadFile(r.Context(), fileID, exportMimeType)
	if err != nil {
		log.Error().Err(err).Str("file_id", fileID).Msg("Failed to download from Drive")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"file_id": fileID,
		"content": base64.StdEncoding.EncodeToString(content),
		"size":    len(content),
	})
}

// ListFiles lists files, optionally scoped to a folder.
func (h *DriveHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	files, err := h.drive.ListFiles(r.Context(), q.Get("folder_id"), q.Get("query"), pageSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list Drive files")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files, "count": len(files)})
}

// SearchFiles finds files by name.
func (h *DriveHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "query is required")
		return
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	files, err := h.drive.SearchFiles(r.Context(), query, pageSize)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Failed to search Drive files")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files, "count": len(files)})
}

// DeleteFile permanently deletes a file.
func (h *DriveHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")
	if err := h.drive.DeleteFile(r.Context(), fileID); err != nil {
		log.Error().Err(err).Str("file_id", fileID).Msg("Failed to delete Drive file")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true, "file_id": fileID})
}

// ShareFile grants a user access to a file.
func (h *DriveHandler) ShareFile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FileID string `json:"file_id"`
		Email  string `json:"email"`
		Role   string `json:"role,omitempty"`
		Notify *bool  `json:"notify,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.FileID == "" || payload.Email == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "file_id and email are required")
		return
	}
	notify := true
	if payload.Notify != nil {
		notify = *payload.Notify
	}

	perm, err := h.drive.ShareFile(r.Context(), payload.FileID, payload.Email, payload.Role, notify)
	if err != nil {
		log.Error().Err(err).Str("file_id", payload.FileID).Msg("Failed to share Drive file")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perm)
}

// CreateSharedLink makes a file link-accessible and returns the link.
func (h *DriveHandler) CreateSharedLink(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FileID     string `json:"file_id"`
		Permission string `json:"permission,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.FileID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "file_id is required")
		return
	}

	link, err := h.drive.CreateSharedLink(r.Context(), payload.FileID, payload.Permission)
	if err != nil {
		log.Error().Err(err).Str("file_id", payload.FileID).Msg("Failed to create shared link")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shared_link": link})
}

// CreateCustomerFolder builds the support folder structure for a customer.
func (h *DriveHandler) CreateCustomerFolder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CustomerName  string `json:"customer_name"`
		CustomerEmail string `json:"customer_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.CustomerName == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "customer_name is required")
		return
	}

	folder, err := h.drive.CreateCustomerFolder(r.Context(), payload.CustomerName, payload.CustomerEmail)
	if err != nil {
		log.Error().Err(err).Str("customer_name", payload.CustomerName).Msg("Failed to create customer folder")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// UploadCustomerDocument uploads a document into a customer's subfolder.
func (h *DriveHandler) UploadCustomerDocument(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CustomerFolderID string `json:"customer_folder_id"`
		Content          string `json:"content"`
		DocumentName     string `json:"document_name"`
		DocumentType     string `json:"document_type,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil ||
		payload.CustomerFolderID == "" || payload.Content == "" || payload.DocumentName == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "customer_folder_id, content and document_name are required")
		return
	}

	content, err := base64.StdEncoding.DecodeString(payload.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "content must be base64 encoded")
		return
	}

	file, err := h.drive.UploadCustomerDocument(r.Context(), payload.CustomerFolderID, content, payload.DocumentName, payload.DocumentType)
	if err != nil {
		log.Error().Err(err).Str("document_name", payload.DocumentName).Msg("Failed to upload customer document")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// CustomerDocuments lists a customer's documents grouped by type.
func (h *DriveHandler) CustomerDocuments(w http.ResponseWriter, r *http.Request) {
	folderID := chi.URLParam(r, "customer_folder_id")
	documents, err := h.drive.CustomerDocuments(r.Context(), folderID)
	if err != nil {
		log.Error().Err(err).Str("customer_folder_id", folderID).Msg("Failed to list customer documents")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documents)
}
