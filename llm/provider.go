// Package llm provides the generative-text provider abstraction.
//
// Each provider implementation hides:
// - SDK client initialization and authentication
// - Request/response format conversion
// - Vendor-specific usage accounting
//
// Providers perform exactly one request per Chat call. Retries and
// cross-provider fallback belong to the caller.

package llm

import (
	"context"
)

// Provider defines the interface every generative-text provider implements.
type Provider interface {
	// Name returns the provider name (for logging and result tagging).
	Name() string

	// Model returns the model used for completions.
	Model() string

	// Chat sends one chat completion request.
	Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error)
}
