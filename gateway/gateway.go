// Package gateway provides a uniform call contract over registered providers.
//
// Information Hiding:
// - Provider registry and its fixed order hidden
// - Per-call timeout enforcement hidden
// - Conversion from call context to provider messages hidden
//
// The gateway performs one call per Call and never retries. Fallback across
// providers is the caller's responsibility.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richinex/concierge/convo"
	"github.com/richinex/concierge/llm"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 20 * time.Second

var (
	// ErrUnknownProvider is returned when no provider is registered under a name.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrEmptyReply is returned when a provider answers with no text.
	ErrEmptyReply = errors.New("empty reply")
)

// ProviderError describes a failed provider call.
type ProviderError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider %s: timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Completion is the normalized result of a successful call.
type Completion struct {
	Provider string
	Reply    string
	Model    string
	Usage    *llm.TokenUsage
}

// Gateway dispatches calls to registered providers.
type Gateway struct {
	providers map[string]llm.Provider
	order     []string
	timeout   time.Duration
}

// New creates a gateway. Providers keep their registration order; a
// provider registered twice under the same name keeps its first position
// and the later instance.
func New(timeout time.Duration, providers ...llm.Provider) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	g := &Gateway{
		providers: make(map[string]llm.Provider, len(providers)),
		timeout:   timeout,
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := p.Name()
		if _, exists := g.providers[name]; !exists {
			g.order = append(g.order, name)
		}
		g.providers[name] = p
	}
	return g
}

// Names returns registered provider names in their fixed order.
func (g *Gateway) Names() []string {
	names := make([]string, len(g.order))
	copy(names, g.order)
	return names
}

// Has reports whether a provider is registered under name.
func (g *Gateway) Has(name string) bool {
	_, ok := g.providers[name]
	return ok
}

// Timeout returns the per-call timeout.
func (g *Gateway) Timeout() time.Duration {
	return g.timeout
}

// Call performs exactly one request against the named provider.
// Every failure, including a panic inside the provider, is returned as
// a *ProviderError.
func (g *Gateway) Call(ctx context.Context, name string, cc convo.CallContext) (completion Completion, err error) {
	provider, ok := g.providers[name]
	if !ok {
		return Completion{}, &ProviderError{Provider: name, Err: ErrUnknownProvider}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			completion = Completion{}
			err = &ProviderError{Provider: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	resp, callErr := provider.Chat(callCtx, Messages(cc))
	if callErr != nil {
		timedOut := errors.Is(callErr, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return Completion{}, &ProviderError{Provider: name, Timeout: timedOut, Err: callErr}
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return Completion{}, &ProviderError{Provider: name, Err: ErrEmptyReply}
	}

	model := resp.Model
	if model == "" {
		model = provider.Model()
	}

	return Completion{
		Provider: name,
		Reply:    reply,
		Model:    model,
		Usage:    resp.Usage,
	}, nil
}

// Messages converts a call context into provider chat messages: the
// system policy and tone as one system message, the history, then the
// latest user message.
func Messages(cc convo.CallContext) []llm.ChatMessage {
	system := cc.SystemPolicy
	if cc.Tone != "" {
		system += "\n\n" + cc.Tone
	}

	messages := make([]llm.ChatMessage, 0, len(cc.History)+2)
	messages = append(messages, llm.SystemMessage(system))
	for _, turn := range cc.History {
		switch turn.Role {
		case convo.RoleUser:
			messages = append(messages, llm.UserMessage(turn.Content))
		case convo.RoleAssistant:
			messages = append(messages, llm.AssistantMessage(turn.Content))
		}
	}
	return append(messages, llm.UserMessage(cc.Message))
}
