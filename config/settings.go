// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup in the fixed provider order

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/concierge/llm"
	"github.com/richinex/concierge/locale"
)

// Settings holds all application configuration.
type Settings struct {
	LLM     LLMConfig
	Engine  EngineConfig
	Storage StorageConfig
	Log     LogConfig
}

// LLMConfig holds provider configuration shared by every provider.
type LLMConfig struct {
	// Preferred is the canonical name of the first provider to try. Empty
	// means the first configured provider.
	Preferred   string
	MaxTokens   uint32
	Temperature float64
	Timeout     time.Duration
	// Providers lists every provider with an API key, in fixed order.
	Providers []ProviderConfig
}

// ProviderConfig is one configured provider.
type ProviderConfig struct {
	Type   llm.ProviderType
	Model  string
	APIKey string
}

// Name returns the canonical provider name.
func (p ProviderConfig) Name() string {
	return p.Type.String()
}

// EngineConfig holds answering engine limits.
type EngineConfig struct {
	Language              locale.Language
	MaxTurns              int
	TurnChars             int
	SearchLimit           int
	HighConfidenceMatches int
	ExcerptChars          int
	MinCoverage           float64
	Polish                bool
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	DBPath string
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  zerolog.Level
	Pretty bool
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	kind     llm.ProviderType
	modelEnv string
}

// Supported providers in fixed fallback order.
var providers = []providerInfo{
	{llm.ProviderOpenAI, "OPENAI_MODEL"},
	{llm.ProviderAnthropic, "ANTHROPIC_MODEL"},
	{llm.ProviderGemini, "GEMINI_MODEL"},
	{llm.ProviderDeepSeek, "DEEPSEEK_MODEL"},
}

// DefaultDBPath is used when CONCIERGE_DB is unset.
const DefaultDBPath = ".concierge/concierge.db"

// New loads settings from environment variables.
// Returns an error if any variable holds an invalid value.
func New() (Settings, error) {
	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 1024)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.4)
	if err != nil {
		return Settings{}, err
	}

	timeoutSeconds, err := getEnvInt("LLM_TIMEOUT_SECONDS", 20)
	if err != nil {
		return Settings{}, err
	}
	if timeoutSeconds <= 0 {
		return Settings{}, fmt.Errorf("invalid value for LLM_TIMEOUT_SECONDS: %d: must be positive", timeoutSeconds)
	}

	preferred := ""
	if val := os.Getenv("CONCIERGE_PROVIDER"); val != "" {
		preferred, err = NormalizeProvider(val)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid value for CONCIERGE_PROVIDER: %w", err)
		}
	}

	lang := locale.Default
	if val := os.Getenv("CONCIERGE_LANGUAGE"); val != "" {
		lang, err = locale.Parse(val)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid value for CONCIERGE_LANGUAGE: %w", err)
		}
	}

	maxTurns, err := getEnvInt("CONCIERGE_MAX_TURNS", 8)
	if err != nil {
		return Settings{}, err
	}
	turnChars, err := getEnvInt("CONCIERGE_TURN_CHARS", 800)
	if err != nil {
		return Settings{}, err
	}
	searchLimit, err := getEnvInt("CONCIERGE_SEARCH_LIMIT", 3)
	if err != nil {
		return Settings{}, err
	}
	highConfidence, err := getEnvInt("CONCIERGE_HIGH_CONFIDENCE_MATCHES", 2)
	if err != nil {
		return Settings{}, err
	}
	excerptChars, err := getEnvInt("CONCIERGE_EXCERPT_CHARS", 380)
	if err != nil {
		return Settings{}, err
	}
	minCoverage, err := getEnvFloat64("CONCIERGE_MIN_COVERAGE", 0.5)
	if err != nil {
		return Settings{}, err
	}
	if minCoverage <= 0 || minCoverage > 1 {
		return Settings{}, fmt.Errorf("invalid value for CONCIERGE_MIN_COVERAGE: %v: must be in (0, 1]", minCoverage)
	}
	polish, err := getEnvBool("CONCIERGE_POLISH", false)
	if err != nil {
		return Settings{}, err
	}

	level := zerolog.WarnLevel
	if val := os.Getenv("CONCIERGE_LOG_LEVEL"); val != "" {
		level, err = zerolog.ParseLevel(strings.ToLower(val))
		if err != nil {
			return Settings{}, fmt.Errorf("invalid value for CONCIERGE_LOG_LEVEL: %q: %w", val, err)
		}
	}
	pretty, err := getEnvBool("CONCIERGE_LOG_PRETTY", false)
	if err != nil {
		return Settings{}, err
	}

	dbPath := os.Getenv("CONCIERGE_DB")
	if dbPath == "" {
		dbPath = DefaultDBPath
	}

	return Settings{
		LLM: LLMConfig{
			Preferred:   preferred,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			Timeout:     time.Duration(timeoutSeconds) * time.Second,
			Providers:   ConfiguredProviders(),
		},
		Engine: EngineConfig{
			Language:              lang,
			MaxTurns:              maxTurns,
			TurnChars:             turnChars,
			SearchLimit:           searchLimit,
			HighConfidenceMatches: highConfidence,
			ExcerptChars:          excerptChars,
			MinCoverage:           minCoverage,
			Polish:                polish,
		},
		Storage: StorageConfig{DBPath: dbPath},
		Log:     LogConfig{Level: level, Pretty: pretty},
	}, nil
}

// MustNew loads settings and panics on invalid environment values.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// NormalizeProvider converts a provider name or alias to its canonical name.
func NormalizeProvider(provider string) (string, error) {
	pt, err := llm.ParseProviderType(provider)
	if err != nil {
		return "", err
	}
	return pt.String(), nil
}

// ConfiguredProviders returns every provider whose API key is set, in the
// fixed order.
func ConfiguredProviders() []ProviderConfig {
	var configured []ProviderConfig
	for _, info := range providers {
		key := os.Getenv(info.kind.EnvVar())
		if key == "" {
			continue
		}
		configured = append(configured, ProviderConfig{
			Type:   info.kind,
			Model:  modelFor(info),
			APIKey: key,
		})
	}
	return configured
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.kind.EnvVar())
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.kind.EnvVar())
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}
	return modelFor(info), nil
}

// SupportedProviders returns every supported provider name in fixed order.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for _, info := range providers {
		result = append(result, info.kind.String())
	}
	return result
}

func modelFor(info providerInfo) string {
	if val := os.Getenv(info.modelEnv); val != "" {
		return val
	}
	return info.kind.DefaultModel()
}

// getProviderInfo returns configuration for a provider name or alias.
func getProviderInfo(provider string) (providerInfo, error) {
	pt, err := llm.ParseProviderType(provider)
	if err != nil {
		return providerInfo{}, err
	}
	for _, info := range providers {
		if info.kind == pt {
			return info, nil
		}
	}
	return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}
