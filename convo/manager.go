package convo

import (
	"strings"

	"github.com/richinex/concierge/locale"
)

const (
	// DefaultMaxTurns is the number of most recent turns kept in a prompt.
	DefaultMaxTurns = 8
	// DefaultTurnChars is the per-turn ceiling when folded into a prompt.
	DefaultTurnChars = 800
)

// Manager bounds conversation history and assembles provider prompts.
type Manager struct {
	maxTurns  int
	turnChars int
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxTurns sets the history cap. Non-positive values keep the default.
func WithMaxTurns(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxTurns = n
		}
	}
}

// WithTurnChars sets the per-turn ceiling. Non-positive values keep the default.
func WithTurnChars(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.turnChars = n
		}
	}
}

// NewManager creates a Manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		maxTurns:  DefaultMaxTurns,
		turnChars: DefaultTurnChars,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxTurns returns the history cap.
func (m *Manager) MaxTurns() int {
	return m.maxTurns
}

// Normalize clips every turn to MaxTurnChars and drops empty turns and
// unknown roles. The input is not modified.
func (m *Manager) Normalize(history []Turn) []Turn {
	out := make([]Turn, 0, len(history))
	for _, turn := range history {
		role, ok := ParseRole(string(turn.Role))
		if !ok {
			continue
		}
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		content, _ = truncateRunes(content, MaxTurnChars)
		out = append(out, Turn{Role: role, Content: content})
	}
	return out
}

// Trim normalizes history and keeps only the most recent MaxTurns turns,
// dropping the oldest first.
func (m *Manager) Trim(history []Turn) []Turn {
	normalized := m.Normalize(history)
	if len(normalized) <= m.maxTurns {
		return normalized
	}
	return normalized[len(normalized)-m.maxTurns:]
}

// Sanitize trims whitespace and hard-truncates content to the per-turn ceiling.
func (m *Manager) Sanitize(content string) string {
	cut, _ := truncateRunes(strings.TrimSpace(content), m.turnChars)
	return strings.TrimSpace(cut)
}

// CallContext is the ephemeral input of one provider attempt.
type CallContext struct {
	Language     locale.Language
	SystemPolicy string
	Tone         string
	History      []Turn
	Message      string
}

// Build constructs the call context for one provider attempt. A non-empty
// narrative is carried as a synthetic assistant turn after the history.
// The result never holds more than MaxTurns history turns.
func (m *Manager) Build(lang locale.Language, history []Turn, narrative, message string) CallContext {
	lang = lang.OrDefault(locale.Default)

	turns := history
	if narrative = strings.TrimSpace(narrative); narrative != "" {
		turns = Append(history, AssistantTurn(narrative))
	}
	turns = m.Trim(turns)

	sanitized := make([]Turn, len(turns))
	for i, turn := range turns {
		sanitized[i] = Turn{Role: turn.Role, Content: m.Sanitize(turn.Content)}
	}

	latest, _ := truncateRunes(strings.TrimSpace(message), MaxTurnChars)

	return CallContext{
		Language:     lang,
		SystemPolicy: SystemPolicy(lang),
		Tone:         locale.For(lang).Tone,
		History:      sanitized,
		Message:      latest,
	}
}

// AssemblePrompt renders a call context into a single prompt text.
func (m *Manager) AssemblePrompt(cc CallContext) string {
	return AssemblePrompt(cc.SystemPolicy, cc.Tone, cc.History, cc.Message)
}

// AssemblePrompt renders policy, tone, history and the latest message as
// one prompt. The policy always comes first and is never omitted.
func AssemblePrompt(policy, tone string, history []Turn, latest string) string {
	var b strings.Builder
	b.WriteString(policy)
	if tone != "" {
		b.WriteString("\n\n")
		b.WriteString(tone)
	}
	if len(history) > 0 {
		b.WriteString("\n\nConversation so far:\n")
		for _, turn := range history {
			b.WriteString(string(turn.Role))
			b.WriteString(": ")
			b.WriteString(turn.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nuser: ")
	b.WriteString(latest)
	return b.String()
}
