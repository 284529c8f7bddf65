package config

import (
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/concierge/llm"
	"github.com/richinex/concierge/locale"
)

var providerKeys = []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "DEEPSEEK_API_KEY"}

// clearProviderKeys unsets every provider key for the duration of the test.
func clearProviderKeys(t *testing.T) {
	t.Helper()
	for _, key := range providerKeys {
		original, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				os.Setenv(key, original)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	clearProviderKeys(t)

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.MaxTokens != 1024 {
		t.Errorf("expected max tokens 1024, got %d", settings.LLM.MaxTokens)
	}
	if settings.LLM.Timeout != 20*time.Second {
		t.Errorf("expected 20s timeout, got %v", settings.LLM.Timeout)
	}
	if settings.Engine.Language != locale.Spanish {
		t.Errorf("expected default language es, got %q", settings.Engine.Language)
	}
	if settings.Engine.MaxTurns != 8 || settings.Engine.HighConfidenceMatches != 2 {
		t.Errorf("unexpected engine defaults: %+v", settings.Engine)
	}
	if settings.Engine.Polish {
		t.Error("polish should be off by default")
	}
	if settings.Storage.DBPath != DefaultDBPath {
		t.Errorf("expected default db path, got %q", settings.Storage.DBPath)
	}
	if settings.Log.Level != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %v", settings.Log.Level)
	}
	if len(settings.LLM.Providers) != 0 {
		t.Errorf("expected no providers without keys, got %d", len(settings.LLM.Providers))
	}
}

func TestNewReadsEngineOverrides(t *testing.T) {
	t.Setenv("CONCIERGE_LANGUAGE", "en-US")
	t.Setenv("CONCIERGE_MAX_TURNS", "12")
	t.Setenv("CONCIERGE_POLISH", "true")
	t.Setenv("CONCIERGE_PROVIDER", "claude")
	t.Setenv("CONCIERGE_LOG_LEVEL", "DEBUG")

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Engine.Language != locale.English {
		t.Errorf("expected en, got %q", settings.Engine.Language)
	}
	if settings.Engine.MaxTurns != 12 {
		t.Errorf("expected 12 turns, got %d", settings.Engine.MaxTurns)
	}
	if !settings.Engine.Polish {
		t.Error("expected polish on")
	}
	if settings.LLM.Preferred != "anthropic" {
		t.Errorf("expected preferred 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Preferred)
	}
	if settings.Log.Level != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %v", settings.Log.Level)
	}
}

func TestNewRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"LLM_MAX_TOKENS":         "not-a-number",
		"LLM_TIMEOUT_SECONDS":    "0",
		"CONCIERGE_PROVIDER":     "mistral",
		"CONCIERGE_LANGUAGE":     "fr",
		"CONCIERGE_MIN_COVERAGE": "1.5",
		"CONCIERGE_POLISH":       "maybe",
		"CONCIERGE_LOG_LEVEL":    "loud",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := New(); err == nil {
				t.Errorf("expected error for %s=%q", key, val)
			}
		})
	}
}

func TestConfiguredProvidersFixedOrder(t *testing.T) {
	clearProviderKeys(t)
	t.Setenv("DEEPSEEK_API_KEY", "ds")
	t.Setenv("OPENAI_API_KEY", "oa")
	t.Setenv("DEEPSEEK_MODEL", llm.ModelDeepSeekReasoner)

	configured := ConfiguredProviders()
	if len(configured) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(configured))
	}
	if configured[0].Name() != "openai" || configured[1].Name() != "deepseek" {
		t.Errorf("unexpected order: %s, %s", configured[0].Name(), configured[1].Name())
	}
	if configured[0].Model != llm.ProviderOpenAI.DefaultModel() {
		t.Errorf("expected default openai model, got %q", configured[0].Model)
	}
	if configured[1].Model != llm.ModelDeepSeekReasoner {
		t.Errorf("expected model override, got %q", configured[1].Model)
	}
}

func TestSupportedProvidersOrder(t *testing.T) {
	want := []string{"openai", "anthropic", "gemini", "deepseek"}
	if got := SupportedProviders(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	key, err := APIKeyFor("gpt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	clearProviderKeys(t)

	if _, err := APIKeyFor("openai"); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	if _, err := APIKeyFor("unknown"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "")

	model, err := ModelFor("google")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != llm.ModelGeminiFlash25 {
		t.Errorf("expected %q, got %q", llm.ModelGeminiFlash25, model)
	}
}

func TestMustNewPanicsOnInvalidEnv(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "warm")

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustNew()
}
