package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/richinex/concierge/knowledge"
	"github.com/richinex/concierge/locale"
)

// ContentHash returns the dedup key of a document body.
// xxhash is non-cryptographic; it only detects repeated content.
func ContentHash(content string) string {
	return strconv.FormatUint(xxhash.Sum64String(content), 16)
}

// ReplaceSource swaps every stored chunk of source for docs in one
// transaction. Chunks whose content is already stored under another source
// are skipped. Returns the number of chunks inserted.
func (s *SqliteStorage) ReplaceSource(ctx context.Context, source string, docs []knowledge.Document) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM knowledge_documents WHERE source = ?", source); err != nil {
		return 0, fmt.Errorf("failed to clear source %s: %w", source, err)
	}

	added, err := insertDocuments(ctx, tx, docs)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return added, nil
}

// StoreDocuments inserts docs, skipping content that is already stored.
// Returns the number of documents inserted.
func (s *SqliteStorage) StoreDocuments(ctx context.Context, docs []knowledge.Document) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	added, err := insertDocuments(ctx, tx, docs)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return added, nil
}

func insertDocuments(ctx context.Context, tx *sql.Tx, docs []knowledge.Document) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO knowledge_documents
		(id, content_hash, content, source, title, language, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	added := 0
	for i, doc := range docs {
		if doc.Content == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx,
			uuid.New().String(),
			ContentHash(doc.Content),
			doc.Content,
			nullable(doc.Source),
			nullable(doc.Title),
			nullable(string(doc.Language)),
			i,
			now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert document: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}
	return added, nil
}

// LoadDocuments implements knowledge.Loader, returning documents in
// ingestion order.
func (s *SqliteStorage) LoadDocuments(ctx context.Context) ([]knowledge.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, source, title, language
		FROM knowledge_documents
		ORDER BY created_at ASC, source ASC, position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []knowledge.Document{}
	for rows.Next() {
		var doc knowledge.Document
		var source, title, lang sql.NullString
		if err := rows.Scan(&doc.ID, &doc.Content, &source, &title, &lang); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Source = source.String
		doc.Title = title.String
		if l, err := locale.Parse(lang.String); err == nil {
			doc.Language = l
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// CountDocuments returns the number of stored documents.
func (s *SqliteStorage) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// nullable converts empty strings to NULL for optional columns.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

var _ knowledge.Loader = (*SqliteStorage)(nil)
