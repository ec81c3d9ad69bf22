package services

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/hisham-kadambot/LLM-MCP/internal/models"
)

// APIKeyServiceProvider defines the interface for per-user API key storage.
type APIKeyServiceProvider interface {
	UpsertAPIKey(userID, modelName, key string) (models.APIKey, error)
	GetAPIKey(userID, modelName string) (models.APIKey, error)
	ListAPIKeys(userID string) ([]models.APIKey, error)
	DeleteAPIKey(userID, modelName string) (bool, error)
}

// APIKeyService provides business logic for per-user, per-provider API keys.
type APIKeyService struct {
	db *sql.DB
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(db *sql.DB) *APIKeyService {
	return &APIKeyService{db: db}
}

// UpsertAPIKey creates or overwrites the key for a (user, model name) pair.
func (s *APIKeyService) UpsertAPIKey(userID, modelName, key string) (models.APIKey, error) {
	stmt, err := s.db.Prepare(`
		INSERT INTO api_keys(id, user_id, model_name, api_key) VALUES(?, ?, ?, ?)
		ON CONFLICT(user_id, model_name)
		DO UPDATE SET api_key = excluded.api_key, updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return models.APIKey{}, err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(uuid.New().String(), userID, modelName, key); err != nil {
		return models.APIKey{}, err
	}
	return s.GetAPIKey(userID, modelName)
}

// GetAPIKey retrieves the key record for a (user, model name) pair.
func (s *APIKeyService) GetAPIKey(userID, modelName string) (models.APIKey, error) {
	var rec models.APIKey
	row := s.db.QueryRow(
		"SELECT id, user_id, model_name, api_key, created_at, updated_at FROM api_keys WHERE user_id = ? AND model_name = ?",
		userID, modelName,
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.ModelName, &rec.Key, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.APIKey{}, ErrNotFound
		}
		return models.APIKey{}, err
	}
	return rec, nil
}

// ListAPIKeys returns all key records for a user.
func (s *APIKeyService) ListAPIKeys(userID string) ([]models.APIKey, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, model_name, api_key, created_at, updated_at FROM api_keys WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []models.APIKey{}
	for rows.Next() {
		var rec models.APIKey
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ModelName, &rec.Key, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, rec)
	}
	return keys, rows.Err()
}

// DeleteAPIKey removes the key for a (user, model name) pair. Deleting a
// pair that does not exist is not an error; the bool reports whether a
// record was removed.
func (s *APIKeyService) DeleteAPIKey(userID, modelName string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM api_keys WHERE user_id = ? AND model_name = ?", userID, modelName)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
