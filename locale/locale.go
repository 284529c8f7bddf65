// Package locale holds the supported reply languages and the localized
// strings used across the answering engine.
//
// Adding a language means adding a Language constant and a Strings entry;
// nothing else in the engine branches on language.

package locale

import (
	"fmt"
	"strings"
)

// Language is a supported reply language.
type Language string

const (
	// Spanish is the default language of the site.
	Spanish Language = "es"
	// English is the secondary language.
	English Language = "en"
)

// Default is used when a caller supplies no language.
const Default = Spanish

// Parse normalizes a language tag ("ES", "es-MX", "en_US") to a supported
// Language. Returns an error for anything else.
func Parse(s string) (Language, error) {
	tag := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	switch Language(tag) {
	case Spanish:
		return Spanish, nil
	case English:
		return English, nil
	default:
		return "", fmt.Errorf("unsupported language: %q", s)
	}
}

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool {
	_, ok := tables[l]
	return ok
}

// OrDefault returns l when supported, otherwise def.
func (l Language) OrDefault(def Language) Language {
	if l.IsValid() {
		return l
	}
	if def.IsValid() {
		return def
	}
	return Default
}

// Strings is the localized text set for one language.
type Strings struct {
	// KnowledgeHeader opens replies composed from knowledge-base matches.
	KnowledgeHeader string
	// RelatedDemos prefixes the list of assigned demos relevant to the question.
	RelatedDemos string
	// Clarify asks the user to rephrase an empty message.
	Clarify string
	// Fallback is the apology returned when every provider failed.
	Fallback string
	// Tone is the tone instruction appended to the system policy.
	Tone string
	// PolishInstruction asks a provider to rewrite a reply for tone.
	PolishInstruction string
	// AssignedDemos formats the client-context narrative; %s is a name list.
	AssignedDemos string
	// ListJoiner joins the last two items of a name list.
	ListJoiner string
	// Citation is the citation marker token for this language.
	Citation string
}

var tables = map[Language]Strings{
	Spanish: {
		KnowledgeHeader:   "Esto es lo que encontré en nuestra base de conocimiento:",
		RelatedDemos:      "Tus demos relacionadas:",
		Clarify:           "¿Podrías contarme un poco más sobre lo que necesitas? Así podré ayudarte mejor.",
		Fallback:          "Lo siento, en este momento no puedo responder. Por favor contáctanos directamente y te ayudaremos enseguida.",
		Tone:              "Responde en español, con un tono cercano, profesional y breve.",
		PolishInstruction: "Reescribe la siguiente respuesta con un tono más cálido y claro. Conserva literalmente todos los datos, nombres, cifras y cualquier línea que empiece con \"Fuente:\" o \"Source:\". Devuelve solo la respuesta reescrita.",
		AssignedDemos:     "El cliente tiene acceso a las siguientes demos: %s.",
		ListJoiner:        " y ",
		Citation:          "Fuente:",
	},
	English: {
		KnowledgeHeader:   "Here is what I found in our knowledge base:",
		RelatedDemos:      "Your related demos:",
		Clarify:           "Could you tell me a bit more about what you need? That way I can help you better.",
		Fallback:          "Sorry, I can't answer right now. Please contact us directly and we'll help you right away.",
		Tone:              "Reply in English, with a friendly, professional and concise tone.",
		PolishInstruction: "Rewrite the following answer with a warmer, clearer tone. Keep every fact, name, figure and any line starting with \"Source:\" or \"Fuente:\" exactly as written. Return only the rewritten answer.",
		AssignedDemos:     "The client has access to the following demos: %s.",
		ListJoiner:        " and ",
		Citation:          "Source:",
	},
}

// For returns the string table for l, falling back to the default language.
func For(l Language) Strings {
	return tables[l.OrDefault(Default)]
}

// CitationTokens returns the citation marker of every supported language.
// A citation written in one language is recognized in the other.
func CitationTokens() []string {
	return []string{tables[English].Citation, tables[Spanish].Citation}
}

// JoinList joins names as "a, b y c" / "a, b and c".
func (s Strings) JoinList(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + s.ListJoiner + names[len(names)-1]
	}
}
