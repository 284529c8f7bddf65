package knowledge

import (
	"strings"
	"unicode/utf8"
)

// ChunkerConfig configures ChunkText.
type ChunkerConfig struct {
	Size    int // target chunk size in characters (default 900)
	Overlap int // characters carried from one chunk into the next (default 80)
}

// DefaultChunkerConfig returns the ingestion defaults.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{Size: 900, Overlap: 80}
}

// separators in priority order: paragraphs, lines, sentences, words.
var separators = []string{"\n\n", "\n", ". ", " "}

// ChunkText splits text into chunks of roughly cfg.Size characters,
// preferring paragraph boundaries, then lines, sentences and words.
// A chunk may exceed Size by at most Overlap.
func ChunkText(text string, cfg ChunkerConfig) []string {
	if cfg.Size <= 0 {
		cfg.Size = DefaultChunkerConfig().Size
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		cfg.Overlap = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= cfg.Size {
		return []string{text}
	}

	pieces := splitPieces(text, separators, cfg.Size)

	var chunks []string
	var current strings.Builder
	currentLen := 0
	flush := func() {
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		tail := runeTail(current.String(), cfg.Overlap)
		current.Reset()
		current.WriteString(tail)
		currentLen = utf8.RuneCountInString(tail)
	}

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if currentLen+n > cfg.Size+cfg.Overlap && currentLen > cfg.Overlap {
			flush()
		}
		current.WriteString(piece)
		currentLen += n
	}
	if chunk := strings.TrimSpace(current.String()); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitPieces breaks text into pieces no longer than size, keeping each
// separator attached to the piece it ends so concatenation restores text.
func splitPieces(text string, seps []string, size int) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	if len(seps) == 0 {
		return splitRunes(text, size)
	}

	parts := strings.SplitAfter(text, seps[0])
	if len(parts) == 1 {
		return splitPieces(text, seps[1:], size)
	}

	var pieces []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		pieces = append(pieces, splitPieces(part, seps[1:], size)...)
	}
	return pieces
}

func splitRunes(text string, n int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += n {
		end := min(i+n, len(runes))
		out = append(out, string(runes[i:end]))
	}
	return out
}

func runeTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}
