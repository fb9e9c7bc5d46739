package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kokoro-apps/empathy-diary/internal/config"
)

// ProviderFactory builds a provider for a resolved model name.
type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type registryEntry struct {
	defaultModel string
	factory      ProviderFactory
}

// Registry routes a configured provider name to its factory. Each entry
// carries the model used when the caller does not name one.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

func (r *Registry) Register(name, defaultModel string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = registryEntry{defaultModel: defaultModel, factory: f}
}

// Get builds a provider for name. An empty model falls back to the model
// registered with the entry.
func (r *Registry) Get(ctx context.Context, name, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = e.defaultModel
	}
	return e.factory(ctx, model)
}

// DefaultRegistry registers the providers this service ships with, wired
// from config. Both binaries resolve their provider through it.
func DefaultRegistry(cfg config.Config) *Registry {
	reg := NewRegistry()
	reg.Register("gemini", cfg.GeminiModel, func(ctx context.Context, model string) (Provider, error) {
		return NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, model), nil
	})
	reg.Register("ollama", cfg.OllamaModel, func(ctx context.Context, model string) (Provider, error) {
		return NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	return reg
}
