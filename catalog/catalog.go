// Package catalog holds the demo catalog: a static list of demos with
// override records applied on top, cached once per process.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Demo is one catalog entry.
type Demo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Hidden      bool   `json:"hidden,omitempty"`
}

// Override renames, redescribes or hides a demo. An override for an
// unknown id adds a demo when it carries a name.
type Override struct {
	DemoID      string `json:"demoId"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Hidden      bool   `json:"hidden,omitempty"`
}

// OverrideSource supplies override records.
type OverrideSource interface {
	DemoOverrides(ctx context.Context) ([]Override, error)
}

// DefaultDemos returns the built-in demo list.
func DefaultDemos() []Demo {
	return []Demo{
		{ID: "guardian-ai", Name: "Guardian AI", Description: "Real-time threat monitoring and alerting."},
		{ID: "atlas-crm", Name: "Atlas CRM", Description: "Customer pipeline and account management."},
		{ID: "nimbus-analytics", Name: "Nimbus Analytics", Description: "Self-service dashboards over business data."},
		{ID: "pulse-helpdesk", Name: "Pulse Helpdesk", Description: "Ticketing with an AI support assistant."},
		{ID: "ledger-flow", Name: "Ledger Flow", Description: "Invoice automation and payment reconciliation."},
	}
}

// Catalog merges the default demos with overrides. The merged list is
// built lazily once; concurrent first callers share one build. A failed
// build is not cached.
type Catalog struct {
	defaults  []Demo
	overrides OverrideSource
	logger    zerolog.Logger

	mu    sync.RWMutex
	demos []Demo
	byID  map[string]Demo
	sf    singleflight.Group
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithDemos replaces the built-in demo list.
func WithDemos(demos []Demo) Option {
	return func(c *Catalog) {
		c.defaults = append([]Demo(nil), demos...)
	}
}

// New creates a catalog. overrides may be nil.
func New(overrides OverrideSource, logger zerolog.Logger, opts ...Option) *Catalog {
	c := &Catalog{
		defaults:  DefaultDemos(),
		overrides: overrides,
		logger:    logger.With().Str("component", "catalog").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Demos returns the visible demos sorted by name.
func (c *Catalog) Demos(ctx context.Context) ([]Demo, error) {
	all, _, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]Demo, 0, len(all))
	for _, d := range all {
		if !d.Hidden {
			visible = append(visible, d)
		}
	}
	return visible, nil
}

// All returns every demo, hidden ones included.
func (c *Catalog) All(ctx context.Context) ([]Demo, error) {
	all, _, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return append([]Demo(nil), all...), nil
}

// Lookup returns the demo with id, hidden or not.
func (c *Catalog) Lookup(ctx context.Context, id string) (Demo, bool, error) {
	_, byID, err := c.ensure(ctx)
	if err != nil {
		return Demo{}, false, err
	}
	d, ok := byID[id]
	return d, ok, nil
}

// Invalidate drops the cached list so the next read rebuilds it.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.demos = nil
	c.byID = nil
	c.mu.Unlock()
}

type snapshot struct {
	demos []Demo
	byID  map[string]Demo
}

func (c *Catalog) ensure(ctx context.Context) ([]Demo, map[string]Demo, error) {
	c.mu.RLock()
	demos, byID := c.demos, c.byID
	c.mu.RUnlock()
	if demos != nil {
		return demos, byID, nil
	}

	v, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		c.mu.RLock()
		demos, byID := c.demos, c.byID
		c.mu.RUnlock()
		if demos != nil {
			return snapshot{demos, byID}, nil
		}

		var overrides []Override
		if c.overrides != nil {
			var err error
			overrides, err = c.overrides.DemoOverrides(context.WithoutCancel(ctx))
			if err != nil {
				return nil, fmt.Errorf("failed to load demo overrides: %w", err)
			}
		}
		snap := build(c.defaults, overrides)

		c.mu.Lock()
		c.demos, c.byID = snap.demos, snap.byID
		c.mu.Unlock()

		c.logger.Debug().Int("demos", len(snap.demos)).Int("overrides", len(overrides)).Msg("catalog built")
		return snap, nil
	})
	if err != nil {
		return nil, nil, err
	}
	snap := v.(snapshot)
	return snap.demos, snap.byID, nil
}

func build(defaults []Demo, overrides []Override) snapshot {
	byID := make(map[string]Demo, len(defaults)+len(overrides))
	for _, d := range defaults {
		byID[d.ID] = d
	}
	for _, o := range overrides {
		id := strings.TrimSpace(o.DemoID)
		if id == "" {
			continue
		}
		d, known := byID[id]
		if !known {
			if strings.TrimSpace(o.Name) == "" {
				continue
			}
			d = Demo{ID: id}
		}
		if name := strings.TrimSpace(o.Name); name != "" {
			d.Name = name
		}
		if desc := strings.TrimSpace(o.Description); desc != "" {
			d.Description = desc
		}
		d.Hidden = o.Hidden
		byID[id] = d
	}

	demos := make([]Demo, 0, len(byID))
	for _, d := range byID {
		demos = append(demos, d)
	}
	sort.Slice(demos, func(i, j int) bool {
		if demos[i].Name != demos[j].Name {
			return demos[i].Name < demos[j].Name
		}
		return demos[i].ID < demos[j].ID
	})
	return snapshot{demos: demos, byID: byID}
}
