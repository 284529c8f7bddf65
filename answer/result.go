package answer

import (
	"github.com/richinex/concierge/convo"
	"github.com/richinex/concierge/knowledge"
	"github.com/richinex/concierge/llm"
	"github.com/richinex/concierge/locale"
)

// SourceKnowledgeBase tags replies composed from knowledge-base matches.
const SourceKnowledgeBase = "knowledge-base"

const (
	// ModelUnavailable marks the apology returned when every provider failed.
	ModelUnavailable = "unavailable"
	// ModelNone marks replies produced without calling any provider.
	ModelNone = "none"
)

// Confidence of a knowledge-base reply.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Query is one question submitted to the engine.
type Query struct {
	Identity          string          `json:"identity"`
	Message           string          `json:"message"`
	Language          locale.Language `json:"language,omitempty"`
	History           []convo.Turn    `json:"history,omitempty"`
	PreferredProvider string          `json:"preferredProvider,omitempty"`
}

// KnowledgeAnswer is the knowledge-base variant of a Result.
type KnowledgeAnswer struct {
	Snippets   []knowledge.Match `json:"snippets"`
	Confidence Confidence        `json:"confidence"`
}

// ProviderAnswer is the provider variant of a Result.
type ProviderAnswer struct {
	Model    string          `json:"model"`
	Language locale.Language `json:"language"`
	Usage    *llm.TokenUsage `json:"usage,omitempty"`
	Polished bool            `json:"polished,omitempty"`
}

// Result is a tagged union: exactly one of Knowledge and Provider is set.
// Source is SourceKnowledgeBase for the first and a provider name for the
// second.
type Result struct {
	Source    string           `json:"source"`
	Reply     string           `json:"reply"`
	Knowledge *KnowledgeAnswer `json:"knowledge,omitempty"`
	Provider  *ProviderAnswer  `json:"metadata,omitempty"`
}

// FromKnowledgeBase reports whether the reply came from the knowledge base.
func (r Result) FromKnowledgeBase() bool {
	return r.Knowledge != nil
}

// Degraded reports whether the reply is the apology for a total failure.
func (r Result) Degraded() bool {
	return r.Provider != nil && r.Provider.Model == ModelUnavailable
}
