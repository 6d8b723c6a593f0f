// Package globals holds the per-note cache of persistent bindings that
// survive across block and inline evaluations within one note session. The
// cache is an explicit handle passed into every call, never ambient state;
// serializing concurrent renders of the same note is the host's job.
package globals

import "github.com/zclconf/go-cty/cty"

// Cache stores persistent bindings keyed by note identifier.
type Cache interface {
	// Get returns a copy of the persistent bindings for a note. An unknown
	// note yields an empty map.
	Get(noteID string) (map[string]cty.Value, error)
	// Merge folds bindings into a note's entry, overwriting on collision.
	// Bookkeeping only; no evaluation happens here.
	Merge(noteID string, bindings map[string]cty.Value) error
	// Close releases resources.
	Close() error
}

// Merge is the merge primitive exposed to hosts: it folds bindings into the
// shared cache under noteID.
func Merge(noteID string, bindings map[string]cty.Value, cache Cache) error {
	if len(bindings) == 0 {
		return nil
	}
	return cache.Merge(noteID, bindings)
}
