package embedder

import (
	"log/slog"
	"testing"
)

func TestValidate_OllamaNeedsNothing(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "ollama")

	if err := Validate(slog.Default()); err != nil {
		t.Errorf("ollama backend should validate without credentials: %v", err)
	}
}

func TestValidate_OpenAIMissingKey(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if err := Validate(slog.Default()); err == nil {
		t.Error("expected error for openai backend without API key")
	}
}

func TestValidate_OpenAIWithKey(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	if err := Validate(slog.Default()); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate_AzureMissingEndpoint(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("EMBEDDING_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")

	if err := Validate(slog.Default()); err == nil {
		t.Error("expected error for azure backend without endpoint")
	}
}

func TestValidate_UnimplementedBackends(t *testing.T) {
	for _, backend := range []string{"bedrock", "gemini"} {
		t.Setenv("EMBEDDING_PROVIDER", backend)
		if err := Validate(slog.Default()); err == nil {
			t.Errorf("expected error for unimplemented backend %q", backend)
		}
	}
}
