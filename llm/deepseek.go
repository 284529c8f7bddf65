// DeepSeek Provider implementation using go-openai library.
//
// DeepSeek exposes an OpenAI-compatible API under a different base URL,
// so it reuses the OpenAI request/response conversion.

package llm

import (
	openai "github.com/sashabaranov/go-openai"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekProvider implements the Provider interface for DeepSeek.
type DeepSeekProvider struct {
	*OpenAIProvider
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *DeepSeekProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = deepseekBaseURL

	return &DeepSeekProvider{
		OpenAIProvider: newOpenAICompatible("deepseek", config, model, maxTokens, temperature),
	}
}

// Verify DeepSeekProvider implements Provider
var _ Provider = (*DeepSeekProvider)(nil)
