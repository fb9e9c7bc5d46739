package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/kokoro-apps/empathy-diary/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		GeminiBaseURL: "http://gemini.test",
		GeminiAPIKey:  "k",
		GeminiModel:   "gemini-1.5-flash-latest",
		OllamaBaseURL: "http://ollama.test",
		OllamaModel:   "llama3",
	}
}

func TestDefaultRegistry_ResolvesConfiguredProviders(t *testing.T) {
	reg := DefaultRegistry(testConfig())

	p, err := reg.Get(context.Background(), "gemini", "")
	if err != nil {
		t.Fatalf("get gemini: %v", err)
	}
	g, ok := p.(*GeminiProvider)
	if !ok {
		t.Fatalf("expected *GeminiProvider, got %T", p)
	}
	if g.Model != "gemini-1.5-flash-latest" || g.BaseURL != "http://gemini.test" {
		t.Fatalf("gemini not wired from config: %+v", g)
	}

	p, err = reg.Get(context.Background(), "ollama", "")
	if err != nil {
		t.Fatalf("get ollama: %v", err)
	}
	o, ok := p.(*OllamaProvider)
	if !ok {
		t.Fatalf("expected *OllamaProvider, got %T", p)
	}
	if o.Model != "llama3" {
		t.Fatalf("ollama default model not applied: %+v", o)
	}
}

func TestRegistryGet_ExplicitModelOverridesDefault(t *testing.T) {
	reg := DefaultRegistry(testConfig())

	p, err := reg.Get(context.Background(), "gemini", "gemini-1.5-pro")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.(*GeminiProvider).Model != "gemini-1.5-pro" {
		t.Fatalf("explicit model lost: %+v", p)
	}
}

func TestRegistryGet_NameNormalization(t *testing.T) {
	reg := DefaultRegistry(testConfig())

	if _, err := reg.Get(context.Background(), "  Gemini ", ""); err != nil {
		t.Fatalf("normalized name should resolve: %v", err)
	}
}

func TestRegistryGet_UnknownProvider(t *testing.T) {
	reg := DefaultRegistry(testConfig())

	_, err := reg.Get(context.Background(), "gpt4all", "")
	if err == nil || !strings.Contains(err.Error(), "unknown ai provider") {
		t.Fatalf("expected unknown-provider error, got %v", err)
	}
}
