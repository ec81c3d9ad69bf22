package models

import "time"

// APIKey stores a user's key material for a single provider/model.
// At most one row exists per (user, model name) pair.
type APIKey struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ModelName string    `json:"modelName"`
	Key       string    `json:"-"` // Raw key material, masked before display
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MaskedKey returns a display-safe form of the key material, keeping only
// the last four characters.
func (k APIKey) MaskedKey() string {
	if len(k.Key) <= 4 {
		return "****"
	}
	return "****" + k.Key[len(k.Key)-4:]
}
