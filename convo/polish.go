package convo

import (
	"context"
	"strings"

	"github.com/richinex/concierge/locale"
)

// RewriteFunc rewrites text for tone. Implementations typically call a provider.
type RewriteFunc func(ctx context.Context, text string) (string, error)

// Citation is one citation line found in a reply.
type Citation struct {
	Marker string // the marker token as written, e.g. "Source:"
	Value  string // text after the marker, trimmed
}

// Citations returns every line of text that starts with a citation marker
// in any supported language.
func Citations(text string) []Citation {
	var citations []Citation
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, token := range locale.CitationTokens() {
			if len(line) >= len(token) && strings.EqualFold(line[:len(token)], token) {
				citations = append(citations, Citation{
					Marker: line[:len(token)],
					Value:  strings.TrimSpace(line[len(token):]),
				})
				break
			}
		}
	}
	return citations
}

// PreservesCitations reports whether every citation of raw reappears as a
// citation line of polished. The marker may switch language; the value may not.
func PreservesCitations(raw, polished string) bool {
	want := Citations(raw)
	if len(want) == 0 {
		return true
	}
	have := Citations(polished)
	for _, c := range want {
		if !containsCitation(have, c.Value) {
			return false
		}
	}
	return true
}

func containsCitation(citations []Citation, value string) bool {
	for _, c := range citations {
		if c.Value == value {
			return true
		}
	}
	return false
}

// Polish runs rewrite over raw and returns the rewrite only when it is
// non-empty and keeps every citation of raw. Otherwise raw is returned
// unchanged. The boolean reports whether the rewrite was accepted.
func Polish(ctx context.Context, rewrite RewriteFunc, raw string) (string, bool) {
	if rewrite == nil || strings.TrimSpace(raw) == "" {
		return raw, false
	}
	polished, err := rewrite(ctx, raw)
	if err != nil {
		return raw, false
	}
	polished = strings.TrimSpace(polished)
	if polished == "" || !PreservesCitations(raw, polished) {
		return raw, false
	}
	return polished, true
}
