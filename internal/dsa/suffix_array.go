// Suffix array over a normalized document text, used for phrase lookups.
package dsa

import (
	"sort"
	"strings"
)

// SuffixArray indexes every suffix of a text.
// Phrase lookup is O(m log n) where m is pattern length, n is text length.
type SuffixArray struct {
	text string
	sa   []int // sa[i] = start of the i-th smallest suffix
}

// BuildSuffixArray constructs a suffix array by prefix doubling.
// Time Complexity: O(n log^2 n)
func BuildSuffixArray(text string) *SuffixArray {
	n := len(text)
	s := &SuffixArray{text: text, sa: make([]int, n)}
	if n == 0 {
		return s
	}

	rank := make([]int, n)
	for i := 0; i < n; i++ {
		s.sa[i] = i
		rank[i] = int(text[i])
	}

	// rankAt returns -1 past the end so shorter suffixes sort first.
	rankAt := func(i int) int {
		if i < n {
			return rank[i]
		}
		return -1
	}

	next := make([]int, n)
	for k := 1; ; k *= 2 {
		less := func(a, b int) bool {
			if rank[a] != rank[b] {
				return rank[a] < rank[b]
			}
			return rankAt(a+k) < rankAt(b+k)
		}
		sort.Slice(s.sa, func(i, j int) bool { return less(s.sa[i], s.sa[j]) })

		next[s.sa[0]] = 0
		for i := 1; i < n; i++ {
			next[s.sa[i]] = next[s.sa[i-1]]
			if less(s.sa[i-1], s.sa[i]) {
				next[s.sa[i]]++
			}
		}
		copy(rank, next)

		if rank[s.sa[n-1]] == n-1 || k >= n {
			break
		}
	}

	return s
}

// Len returns the indexed text length in bytes.
func (s *SuffixArray) Len() int {
	return len(s.text)
}

// Search returns the sorted start offsets of every occurrence of pattern.
func (s *SuffixArray) Search(pattern string) []int {
	if pattern == "" || len(s.sa) == 0 {
		return nil
	}
	m := len(pattern)
	prefix := func(i int) string {
		suffix := s.text[s.sa[i]:]
		if len(suffix) > m {
			return suffix[:m]
		}
		return suffix
	}

	left := sort.Search(len(s.sa), func(i int) bool { return prefix(i) >= pattern })
	var matches []int
	for i := left; i < len(s.sa) && strings.HasPrefix(s.text[s.sa[i]:], pattern); i++ {
		matches = append(matches, s.sa[i])
	}
	sort.Ints(matches)
	return matches
}

// Contains reports whether pattern occurs in the text.
func (s *SuffixArray) Contains(pattern string) bool {
	if pattern == "" || len(s.sa) == 0 {
		return false
	}
	m := len(pattern)
	i := sort.Search(len(s.sa), func(i int) bool {
		suffix := s.text[s.sa[i]:]
		if len(suffix) > m {
			suffix = suffix[:m]
		}
		return suffix >= pattern
	})
	return i < len(s.sa) && strings.HasPrefix(s.text[s.sa[i]:], pattern)
}

// Count returns the number of occurrences of pattern.
func (s *SuffixArray) Count(pattern string) int {
	return len(s.Search(pattern))
}
