// Package convo manages conversational context for provider calls.
//
// Information Hiding:
// - History cap and per-turn sanitization hidden behind Manager
// - Fixed system policy text hidden; callers cannot replace it
// - Polish acceptance rules (citation preservation) hidden behind Polish

package convo

import (
	"strings"
	"unicode/utf8"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxTurnChars is the ceiling for a recorded turn's content.
const MaxTurnChars = 4000

// Turn is one message within a conversation history.
// Turns are values; a history is rebuilt, never mutated in place.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn creates a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn creates an assistant turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// ParseRole maps a stored role string to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant:
		return RoleAssistant, true
	default:
		return "", false
	}
}

// Append returns a new history with turns added at the end.
func Append(history []Turn, turns ...Turn) []Turn {
	out := make([]Turn, 0, len(history)+len(turns))
	out = append(out, history...)
	return append(out, turns...)
}

// truncateRunes truncates s to maxLen runes, preserving UTF-8 boundaries.
func truncateRunes(s string, maxLen int) (string, bool) {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:maxLen]), true
}

// Excerpt trims s and caps it at maxLen runes, appending an ellipsis when cut.
func Excerpt(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	cut, truncated := truncateRunes(s, maxLen)
	if !truncated {
		return s
	}
	return strings.TrimRightFunc(cut, isSpace) + "…"
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
