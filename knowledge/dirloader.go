package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/richinex/concierge/locale"
)

// DirLoader loads .md and .txt files below Root as chunked documents.
// A file named "pricing.es.md" is tagged Spanish; untagged files match
// every language.
type DirLoader struct {
	Root    string
	Chunker ChunkerConfig
}

// NewDirLoader creates a loader with the default chunker settings.
func NewDirLoader(root string) *DirLoader {
	return &DirLoader{Root: root, Chunker: DefaultChunkerConfig()}
}

// LoadDocuments walks Root in lexical order.
func (l *DirLoader) LoadDocuments(ctx context.Context) ([]Document, error) {
	var paths []string
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != l.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", l.Root, err)
	}
	sort.Strings(paths)

	var docs []Document
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(l.Root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		rel = filepath.ToSlash(rel)
		docs = append(docs, FileDocuments(rel, string(data), l.Chunker)...)
	}
	return docs, nil
}

// FileDocuments chunks one file's content into documents sourced at name.
func FileDocuments(name, content string, cfg ChunkerConfig) []Document {
	title := titleOf(name, content)
	lang := languageOf(name)

	chunks := ChunkText(content, cfg)
	docs := make([]Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, Document{
			ID:       fmt.Sprintf("%s#%d", name, i),
			Content:  chunk,
			Source:   name,
			Title:    title,
			Language: lang,
		})
	}
	return docs
}

// titleOf returns the first "# " heading, else the file name without extensions.
func titleOf(name, content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	base := filepath.Base(name)
	for ext := filepath.Ext(base); ext != ""; ext = filepath.Ext(base) {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// languageOf reads a language tag from "name.<lang>.<ext>".
func languageOf(name string) locale.Language {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	tag := strings.TrimPrefix(filepath.Ext(base), ".")
	if tag == "" {
		return ""
	}
	lang, err := locale.Parse(tag)
	if err != nil {
		return ""
	}
	return lang
}
