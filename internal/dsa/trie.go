// Package dsa provides the lexical index primitives used by the knowledge store.
// Uses go-radix for a compressed prefix tree (radix tree).
package dsa

import (
	"github.com/armon/go-radix"
)

// Trie wraps go-radix as a typed term dictionary.
// Shared prefixes of index terms ("monitor", "monitorea", "monitoreo")
// collapse into one path, and prefix walks back prefix-matching.
//
// Time Complexity: O(k) per lookup where k is key length
type Trie[V any] struct {
	tree *radix.Tree
	size int
}

// NewTrie creates a new empty radix tree.
func NewTrie[V any]() *Trie[V] {
	return &Trie[V]{
		tree: radix.New(),
	}
}

// Insert adds or replaces the value stored under key.
func (t *Trie[V]) Insert(key string, value V) {
	if _, updated := t.tree.Insert(key, value); !updated {
		t.size++
	}
}

// Upsert stores fn(old, found) under key and returns the stored value.
func (t *Trie[V]) Upsert(key string, fn func(old V, found bool) V) V {
	old, found := t.Search(key)
	next := fn(old, found)
	t.Insert(key, next)
	return next
}

// Search looks up a key in the tree.
func (t *Trie[V]) Search(key string) (V, bool) {
	val, found := t.tree.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	v, ok := val.(V)
	return v, ok
}

// WalkPrefix calls fn for every key starting with prefix, in key order.
// Returning false from fn stops the walk.
func (t *Trie[V]) WalkPrefix(prefix string, fn func(key string, value V) bool) {
	t.tree.WalkPrefix(prefix, func(k string, v interface{}) bool {
		val, ok := v.(V)
		if !ok {
			return false
		}
		return !fn(k, val)
	})
}

// StartsWith returns all keys that start with the given prefix.
func (t *Trie[V]) StartsWith(prefix string) []string {
	var keys []string
	t.WalkPrefix(prefix, func(k string, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Contains checks if a key exists in the tree.
func (t *Trie[V]) Contains(key string) bool {
	_, found := t.tree.Get(key)
	return found
}

// Delete removes a key from the tree.
// Returns true if the key was found and deleted.
func (t *Trie[V]) Delete(key string) bool {
	_, deleted := t.tree.Delete(key)
	if deleted {
		t.size--
	}
	return deleted
}

// Size returns the number of keys in the tree.
func (t *Trie[V]) Size() int {
	return t.size
}

// IsEmpty returns true if the tree has no keys.
func (t *Trie[V]) IsEmpty() bool {
	return t.size == 0
}
