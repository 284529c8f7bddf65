package catalog

import (
	"context"
	"fmt"

	"github.com/richinex/concierge/clientctx"
	"github.com/richinex/concierge/locale"
)

// AssignmentSource lists the demo ids assigned to an identity.
type AssignmentSource interface {
	AssignedDemoIDs(ctx context.Context, identity string) ([]string, error)
}

// ProfileSource returns an identity's preferred display language.
// An empty language means no preference.
type ProfileSource interface {
	ProfileLanguage(ctx context.Context, identity string) (locale.Language, error)
}

// Entitlements resolves assignments to visible demo names.
type Entitlements struct {
	catalog     *Catalog
	assignments AssignmentSource
	profiles    ProfileSource
}

// NewEntitlements creates the adapter. profiles may be nil.
func NewEntitlements(c *Catalog, assignments AssignmentSource, profiles ProfileSource) *Entitlements {
	return &Entitlements{catalog: c, assignments: assignments, profiles: profiles}
}

// Entitlements implements clientctx.EntitlementSource. Unknown and hidden
// demo ids are skipped. A profile lookup failure leaves the language empty.
func (e *Entitlements) Entitlements(ctx context.Context, identity string) (clientctx.Entitlements, error) {
	ids, err := e.assignments.AssignedDemoIDs(ctx, identity)
	if err != nil {
		return clientctx.Entitlements{}, fmt.Errorf("failed to list assignments: %w", err)
	}

	var names []string
	for _, id := range ids {
		d, ok, err := e.catalog.Lookup(ctx, id)
		if err != nil {
			return clientctx.Entitlements{}, err
		}
		if !ok || d.Hidden {
			continue
		}
		names = append(names, d.Name)
	}

	var lang locale.Language
	if e.profiles != nil {
		if l, err := e.profiles.ProfileLanguage(ctx, identity); err == nil && l.IsValid() {
			lang = l
		}
	}

	return clientctx.Entitlements{DemoNames: names, Language: lang}, nil
}

var _ clientctx.EntitlementSource = (*Entitlements)(nil)
