package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hisham-kadambot/LLM-MCP/internal/models"
)

func newTestUser(t *testing.T, users *UserService, username string) models.User {
	t.Helper()
	user, err := users.CreateUser(username, "Secret123", "")
	require.NoError(t, err)
	return user
}

func TestUpsertAPIKey(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, 8)
	keys := NewAPIKeyService(db)
	user := newTestUser(t, users, "alice")

	rec, err := keys.UpsertAPIKey(user.ID, "openai", "sk-abc")
	require.NoError(t, err)
	assert.Equal(t, "openai", rec.ModelName)
	assert.Equal(t, "sk-abc", rec.Key)

	// Overwriting replaces the value without creating a second row.
	rec, err = keys.UpsertAPIKey(user.ID, "openai", "sk-def")
	require.NoError(t, err)
	assert.Equal(t, "sk-def", rec.Key)

	all, err := keys.ListAPIKeys(user.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAPIKeysPerProvider(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, 8)
	keys := NewAPIKeyService(db)
	user := newTestUser(t, users, "alice")

	_, err := keys.UpsertAPIKey(user.ID, "openai", "sk-openai")
	require.NoError(t, err)
	_, err = keys.UpsertAPIKey(user.ID, "anthropic", "sk-anthropic")
	require.NoError(t, err)

	openai, err := keys.GetAPIKey(user.ID, "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", openai.Key)

	anthropic, err := keys.GetAPIKey(user.ID, "anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-anthropic", anthropic.Key)
}

func TestGetAPIKeyNotFound(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, 8)
	keys := NewAPIKeyService(db)
	user := newTestUser(t, users, "alice")

	_, err := keys.GetAPIKey(user.ID, "openai")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAPIKeyIdempotent(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, 8)
	keys := NewAPIKeyService(db)
	user := newTestUser(t, users, "alice")

	_, err := keys.UpsertAPIKey(user.ID, "openai", "sk-abc")
	require.NoError(t, err)

	removed, err := keys.DeleteAPIKey(user.ID, "openai")
	require.NoError(t, err)
	assert.True(t, removed)

	// Deleting a pair that no longer exists is not a fault.
	removed, err = keys.DeleteAPIKey(user.ID, "openai")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDeleteUserCascadesAPIKeys(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, 8)
	keys := NewAPIKeyService(db)
	user := newTestUser(t, users, "alice")

	_, err := keys.UpsertAPIKey(user.ID, "openai", "sk-abc")
	require.NoError(t, err)

	require.NoError(t, users.DeleteUser(user.ID))

	all, err := keys.ListAPIKeys(user.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestKeysAreScopedPerUser(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, 8)
	keys := NewAPIKeyService(db)
	alice := newTestUser(t, users, "alice")
	bob := newTestUser(t, users, "bob")

	_, err := keys.UpsertAPIKey(alice.ID, "openai", "sk-alice")
	require.NoError(t, err)

	_, err = keys.GetAPIKey(bob.ID, "openai")
	assert.ErrorIs(t, err, ErrNotFound)
}
