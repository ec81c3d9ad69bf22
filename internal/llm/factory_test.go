package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hisham-kadambot/LLM-MCP/internal/models"
	"github.com/hisham-kadambot/LLM-MCP/internal/services"
)

type fakeKeyStore struct {
	keys map[string]string // "userID/modelName" -> key
}

func (f *fakeKeyStore) GetAPIKey(userID, modelName string) (models.APIKey, error) {
	if key, ok := f.keys[userID+"/"+modelName]; ok {
		return models.APIKey{UserID: userID, ModelName: modelName, Key: key}, nil
	}
	return models.APIKey{}, services.ErrNotFound
}

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		modelName string
		want      Provider
		wantErr   bool
	}{
		{"openai", ProviderOpenAI, false},
		{"gpt-4", ProviderOpenAI, false},
		{"GPT-4o", ProviderOpenAI, false},
		{"anthropic", ProviderAnthropic, false},
		{"claude", ProviderAnthropic, false},
		{"claude-3-opus-20240229", ProviderAnthropic, false},
		{"llama", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.modelName, func(t *testing.T) {
			got, err := ResolveProvider(tt.modelName)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrProviderNotSupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientForUsesStoredKey(t *testing.T) {
	store := &fakeKeyStore{keys: map[string]string{"u1/openai": "sk-user"}}
	factory := NewFactory(store, "", "")

	client, err := factory.ClientFor("u1", "gpt-4")
	require.NoError(t, err)

	openai, ok := client.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "sk-user", openai.apiKey)
}

func TestClientForFallsBackToEnvKey(t *testing.T) {
	factory := NewFactory(&fakeKeyStore{keys: map[string]string{}}, "", "sk-env")

	client, err := factory.ClientFor("u1", "claude")
	require.NoError(t, err)

	anthropic, ok := client.(*AnthropicClient)
	require.True(t, ok)
	assert.Equal(t, "sk-env", anthropic.apiKey)
}

func TestClientForMissingKey(t *testing.T) {
	factory := NewFactory(&fakeKeyStore{keys: map[string]string{}}, "", "")

	_, err := factory.ClientFor("u1", "openai")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClientForCachesPerUserProvider(t *testing.T) {
	store := &fakeKeyStore{keys: map[string]string{
		"u1/openai": "sk-u1",
		"u2/openai": "sk-u2",
	}}
	factory := NewFactory(store, "", "")

	first, err := factory.ClientFor("u1", "openai")
	require.NoError(t, err)
	second, err := factory.ClientFor("u1", "gpt-4")
	require.NoError(t, err)
	assert.Same(t, first, second, "same user and provider should reuse the cached client")

	other, err := factory.ClientFor("u2", "openai")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}
