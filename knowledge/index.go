package knowledge

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/richinex/concierge/internal/dsa"
	"github.com/richinex/concierge/locale"
)

const (
	// DefaultMinCoverage is the share of query terms a document must match.
	DefaultMinCoverage = 0.5

	exactHit     = 1.0
	prefixHit    = 0.5
	phraseBonus  = 0.5
	minPrefixLen = 4
)

// stopwords for both supported languages, accent-folded.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a al algo como con cual cuales de del el en es esta este esto la las lo los mas me mi mis
		no o para pero por que se si sin sobre su sus te tu tus un una uno unos y ya
		an and are as at be by can do does for from has have how i in is it its my of on or
		so than that the their them this to was what when where which who why will with you your`) {
		stopwords[w] = struct{}{}
	}
}

// fold lowercases s and strips diacritics ("Qué" -> "que").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// tokenize folds s and returns its content terms in order. Stopwords and
// single characters are dropped.
func tokenize(s string) []string {
	words := strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := words[:0]
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

func unique(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Index is an immutable lexical index over a document set.
type Index struct {
	docs    []Document
	terms   *dsa.Trie[[]int]   // term -> ascending document positions
	phrases []*dsa.SuffixArray // per document, over " term term ... "
}

// BuildIndex indexes docs. Documents with no content terms are kept but
// never match.
func BuildIndex(docs []Document) *Index {
	idx := &Index{
		docs:    docs,
		terms:   dsa.NewTrie[[]int](),
		phrases: make([]*dsa.SuffixArray, len(docs)),
	}
	for i, doc := range docs {
		terms := tokenize(doc.Title + "\n" + doc.Content)
		idx.phrases[i] = dsa.BuildSuffixArray(" " + strings.Join(terms, " ") + " ")
		for _, term := range unique(terms) {
			idx.terms.Upsert(term, func(postings []int, _ bool) []int {
				return append(postings, i)
			})
		}
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.docs)
}

// Search ranks documents against query. A document tagged with a language
// other than lang is skipped; untagged documents match every language.
func (idx *Index) Search(query string, lang locale.Language, limit int, minCoverage float64) []Match {
	if idx == nil || len(idx.docs) == 0 || limit <= 0 {
		return nil
	}
	ordered := tokenize(query)
	terms := unique(ordered)
	if len(terms) == 0 {
		return nil
	}

	scores := make(map[int]float64)
	for _, term := range terms {
		hits := make(map[int]float64)
		if postings, ok := idx.terms.Search(term); ok {
			for _, d := range postings {
				hits[d] = exactHit
			}
		}
		if len([]rune(term)) >= minPrefixLen {
			idx.terms.WalkPrefix(term, func(key string, postings []int) bool {
				if key == term {
					return true
				}
				for _, d := range postings {
					if hits[d] < prefixHit {
						hits[d] = prefixHit
					}
				}
				return true
			})
		}
		for d, s := range hits {
			scores[d] += s
		}
	}

	phrase := ""
	if len(ordered) > 1 {
		phrase = " " + strings.Join(ordered, " ") + " "
	}

	type ranked struct {
		pos   int
		score float64
	}
	var hits []ranked
	for d, score := range scores {
		doc := idx.docs[d]
		if doc.Language != "" && lang != "" && doc.Language != lang {
			continue
		}
		if score/float64(len(terms)) < minCoverage {
			continue
		}
		if phrase != "" && idx.phrases[d].Contains(phrase) {
			score += phraseBonus
		}
		hits = append(hits, ranked{pos: d, score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	matches := make([]Match, len(hits))
	for i, h := range hits {
		doc := idx.docs[h.pos]
		matches[i] = Match{
			Content: doc.Content,
			Source:  doc.Source,
			Title:   doc.Title,
			Score:   h.score,
		}
	}
	return matches
}
