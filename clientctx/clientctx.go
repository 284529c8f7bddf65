// Package clientctx builds the per-request client context summary: which
// demos the caller currently has access to, as one localized sentence.
//
// Summaries are recomputed on every call and never cached, since
// entitlements can change between requests.
package clientctx

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/richinex/concierge/locale"
)

// Entitlements is the caller's current entitlement state.
type Entitlements struct {
	DemoNames []string
	Language  locale.Language
}

// EntitlementSource resolves an identity to its current entitlements.
// An unknown identity has zero entitlements, not an error.
type EntitlementSource interface {
	Entitlements(ctx context.Context, identity string) (Entitlements, error)
}

// Summary is the client context of one request.
type Summary struct {
	AssignedDemoNames []string `json:"assignedDemoNames"`
	Narrative         string   `json:"narrative"`
}

// IsEmpty reports whether the summary carries no entitlements.
func (s Summary) IsEmpty() bool {
	return len(s.AssignedDemoNames) == 0 && s.Narrative == ""
}

// Builder produces summaries from an entitlement source.
type Builder struct {
	source EntitlementSource
}

// NewBuilder creates a Builder. A nil source yields empty summaries.
func NewBuilder(source EntitlementSource) *Builder {
	return &Builder{source: source}
}

// Build summarizes identity's entitlements in lang. An empty identity or
// zero assignments produce an empty summary. Errors come only from the
// entitlement source.
func (b *Builder) Build(ctx context.Context, identity string, lang locale.Language) (Summary, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || b == nil || b.source == nil {
		return Summary{}, nil
	}

	ent, err := b.source.Entitlements(ctx, identity)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load entitlements for %s: %w", identity, err)
	}

	names := normalizeNames(ent.DemoNames)
	if len(names) == 0 {
		return Summary{}, nil
	}

	strs := locale.For(lang.OrDefault(ent.Language))
	return Summary{
		AssignedDemoNames: names,
		Narrative:         fmt.Sprintf(strs.AssignedDemos, strs.JoinList(names)),
	}, nil
}

// normalizeNames trims, dedupes and sorts names.
func normalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SourceFunc adapts a function to EntitlementSource.
type SourceFunc func(ctx context.Context, identity string) (Entitlements, error)

// Entitlements calls f.
func (f SourceFunc) Entitlements(ctx context.Context, identity string) (Entitlements, error) {
	return f(ctx, identity)
}
