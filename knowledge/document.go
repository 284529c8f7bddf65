// Package knowledge implements the knowledge store: ingested reference
// documents and a lexical similarity search over them.
//
// Information Hiding:
// - Index structure (term trie, phrase suffix arrays) hidden behind Store
// - Lazy single-flight initialization hidden; callers only Search
// - Load failures never surface on the query path
package knowledge

import (
	"context"

	"github.com/richinex/concierge/locale"
)

// Document is one ingested chunk of reference text.
type Document struct {
	ID       string          `json:"id"`
	Content  string          `json:"content"`
	Source   string          `json:"source,omitempty"`
	Title    string          `json:"title,omitempty"`
	Language locale.Language `json:"language,omitempty"`
}

// Match is one search hit. Produced fresh per query.
type Match struct {
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Title   string  `json:"title,omitempty"`
	Score   float64 `json:"score"`
}

// Searcher answers similarity queries. Implementations return an empty
// result, never an error, when nothing is loaded.
type Searcher interface {
	Search(ctx context.Context, query string, lang locale.Language, limit int) []Match
}

// Loader supplies the documents an index is built from.
type Loader interface {
	LoadDocuments(ctx context.Context) ([]Document, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]Document, error)

// LoadDocuments calls f.
func (f LoaderFunc) LoadDocuments(ctx context.Context) ([]Document, error) {
	return f(ctx)
}

// StaticLoader serves a fixed document set.
type StaticLoader []Document

// LoadDocuments returns a copy of the documents.
func (s StaticLoader) LoadDocuments(ctx context.Context) ([]Document, error) {
	docs := make([]Document, len(s))
	copy(docs, s)
	return docs, nil
}
