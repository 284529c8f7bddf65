package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richinex/concierge/catalog"
	"github.com/richinex/concierge/locale"
)

// SetDemoOverride stores or replaces the override of one demo.
func (s *SqliteStorage) SetDemoOverride(ctx context.Context, o catalog.Override) error {
	if strings.TrimSpace(o.DemoID) == "" {
		return errors.New("demo id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO demo_overrides (demo_id, name, description, hidden, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.DemoID, nullable(o.Name), nullable(o.Description), o.Hidden, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store demo override: %w", err)
	}
	return nil
}

// DeleteDemoOverride removes the override of one demo.
func (s *SqliteStorage) DeleteDemoOverride(ctx context.Context, demoID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM demo_overrides WHERE demo_id = ?", demoID); err != nil {
		return fmt.Errorf("failed to delete demo override: %w", err)
	}
	return nil
}

// DemoOverrides implements catalog.OverrideSource.
func (s *SqliteStorage) DemoOverrides(ctx context.Context) ([]catalog.Override, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT demo_id, name, description, hidden FROM demo_overrides ORDER BY demo_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query demo overrides: %w", err)
	}
	defer rows.Close()

	overrides := []catalog.Override{}
	for rows.Next() {
		var o catalog.Override
		var name, desc sql.NullString
		if err := rows.Scan(&o.DemoID, &name, &desc, &o.Hidden); err != nil {
			return nil, fmt.Errorf("failed to scan demo override: %w", err)
		}
		o.Name = name.String
		o.Description = desc.String
		overrides = append(overrides, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating demo overrides: %w", err)
	}
	return overrides, nil
}

// Assign grants identity access to a demo. Assigning twice is a no-op.
func (s *SqliteStorage) Assign(ctx context.Context, identity, demoID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO assignments (identity, demo_id, assigned_at) VALUES (?, ?, ?)",
		identity, demoID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to assign demo: %w", err)
	}
	return nil
}

// Unassign revokes identity's access to a demo.
func (s *SqliteStorage) Unassign(ctx context.Context, identity, demoID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM assignments WHERE identity = ? AND demo_id = ?",
		identity, demoID)
	if err != nil {
		return fmt.Errorf("failed to unassign demo: %w", err)
	}
	return nil
}

// AssignedDemoIDs implements catalog.AssignmentSource, oldest assignment first.
func (s *SqliteStorage) AssignedDemoIDs(ctx context.Context, identity string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT demo_id FROM assignments WHERE identity = ? ORDER BY assigned_at ASC, demo_id ASC",
		identity)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return ids, nil
}

// SetProfileLanguage records identity's preferred display language.
func (s *SqliteStorage) SetProfileLanguage(ctx context.Context, identity string, lang locale.Language) error {
	if !lang.IsValid() {
		return fmt.Errorf("unsupported language: %q", lang)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO profiles (identity, language, updated_at) VALUES (?, ?, ?)",
		identity, string(lang), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}
	return nil
}

// ProfileLanguage implements catalog.ProfileSource. An unknown identity
// has no preference.
func (s *SqliteStorage) ProfileLanguage(ctx context.Context, identity string) (locale.Language, error) {
	var lang string
	err := s.db.QueryRowContext(ctx,
		"SELECT language FROM profiles WHERE identity = ?", identity).Scan(&lang)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	return locale.Parse(lang)
}

var (
	_ catalog.OverrideSource   = (*SqliteStorage)(nil)
	_ catalog.AssignmentSource = (*SqliteStorage)(nil)
	_ catalog.ProfileSource    = (*SqliteStorage)(nil)
)
