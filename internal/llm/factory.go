package llm

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hisham-kadambot/LLM-MCP/internal/models"
	"github.com/hisham-kadambot/LLM-MCP/internal/services"
)

// Provider identifies a supported LLM vendor.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Model name aliases accepted per provider, checked in order when
// resolving a stored API key.
var providerAliases = map[Provider][]string{
	ProviderOpenAI:    {"openai", "gpt", "gpt-3.5-turbo", "gpt-4"},
	ProviderAnthropic: {"anthropic", "claude", "claude-3"},
}

// ResolveProvider maps a model name to its provider.
func ResolveProvider(modelName string) (Provider, error) {
	name := strings.ToLower(modelName)
	for provider, aliases := range providerAliases {
		for _, alias := range aliases {
			if name == alias {
				return provider, nil
			}
		}
	}
	// Fall back to substring patterns for concrete model names like
	// gpt-4o or claude-3-opus-20240229.
	switch {
	case strings.Contains(name, "gpt") || strings.Contains(name, "openai"):
		return ProviderOpenAI, nil
	case strings.Contains(name, "claude") || strings.Contains(name, "anthropic"):
		return ProviderAnthropic, nil
	}
	return "", fmt.Errorf("%w: %s", ErrProviderNotSupported, modelName)
}

// KeyStore is the narrow slice of the key manager the factory consumes.
type KeyStore interface {
	GetAPIKey(userID, modelName string) (models.APIKey, error)
}

// Factory builds and caches per-(user, provider) LLM clients. Keys are
// resolved from the user's stored keys first, then from process-wide
// fallback keys supplied at construction.
type Factory struct {
	keys         KeyStore
	fallbackKeys map[Provider]string

	mu    sync.Mutex
	cache map[string]Client
}

// NewFactory creates a client factory backed by the given key store.
func NewFactory(keys KeyStore, openAIFallback, anthropicFallback string) *Factory {
	return &Factory{
		keys: keys,
		fallbackKeys: map[Provider]string{
			ProviderOpenAI:    openAIFallback,
			ProviderAnthropic: anthropicFallback,
		},
		cache: make(map[string]Client),
	}
}

// ClientFor returns a chat client for the given user and model name,
// reusing a cached instance when the same pair was seen before.
func (f *Factory) ClientFor(userID, modelName string) (Client, error) {
	provider, err := ResolveProvider(modelName)
	if err != nil {
		return nil, err
	}

	apiKey, err := f.resolveKey(userID, modelName, provider)
	if err != nil {
		return nil, err
	}

	cacheKey := userID + ":" + string(provider)
	f.mu.Lock()
	defer f.mu.Unlock()
	if client, ok := f.cache[cacheKey]; ok {
		return client, nil
	}

	var client Client
	switch provider {
	case ProviderOpenAI:
		client = NewOpenAIClient(apiKey)
	case ProviderAnthropic:
		client = NewAnthropicClient(apiKey)
	}
	f.cache[cacheKey] = client
	return client, nil
}

// resolveKey checks the exact model name first, then every alias of the
// provider, then the process fallback key.
func (f *Factory) resolveKey(userID, modelName string, provider Provider) (string, error) {
	lookups := append([]string{strings.ToLower(modelName)}, providerAliases[provider]...)
	for _, name := range lookups {
		rec, err := f.keys.GetAPIKey(userID, name)
		if err == nil {
			return rec.Key, nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return "", err
		}
	}
	if key := f.fallbackKeys[provider]; key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w for provider %q; set it via /set_api_key", ErrMissingAPIKey, provider)
}
