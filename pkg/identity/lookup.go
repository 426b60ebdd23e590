package identity

// ReverseLookupMap provides reverse lookups from content identifier to a
// previously-seen path, adapted from the teacher's
// ReverseLookupMap/byteLookupMap{16,20,32} specialization in
// synchronization/core/cache.go. Because every Identifier in this package is
// a fixed Size-byte array, a single array-keyed map specialization suffices
// (the teacher needs three because its cache entries can hold legacy
// shorter digests); this is the one used by
// manifest.StageContent to recognize when staged content
// is already present on disk under another path before copying bytes again.
type ReverseLookupMap struct {
	entries map[Identifier]string
}

// NewReverseLookupMap builds a reverse lookup map from a path-to-identifier
// manifest-shaped source. Each identifier maps to a single path; when
// several paths share an identifier, the first one met while ranging over
// paths is kept, and since paths is a Go map, which one that is is not
// defined. For staging purposes any existing path with matching content is
// equally usable.
func NewReverseLookupMap(paths map[string]Identifier) *ReverseLookupMap {
	m := &ReverseLookupMap{entries: make(map[Identifier]string, len(paths))}
	for path, id := range paths {
		if _, ok := m.entries[id]; !ok {
			m.entries[id] = path
		}
	}
	return m
}

// Length returns the number of entries in the map.
func (m *ReverseLookupMap) Length() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Lookup attempts a lookup in the map.
func (m *ReverseLookupMap) Lookup(id Identifier) (string, bool) {
	if m == nil {
		return "", false
	}
	path, ok := m.entries[id]
	return path, ok
}
