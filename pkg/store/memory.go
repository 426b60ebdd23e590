package store

import (
	"fmt"
	"sync"

	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/manifest"
	"github.com/dscherger/monotone-core/pkg/revision"
)

// MemoryRevisionStore is a minimal in-process RevisionStore, the reference
// implementation used by this package's own tests and by anything driving
// the core engine against a throwaway graph (an ingest dry run, a unit
// test) rather than a real external store. It is deliberately not the
// "on-disk database" spec.md §1 excludes: nothing here persists past the
// process.
type MemoryRevisionStore struct {
	mu        sync.RWMutex
	revisions map[identity.Identifier]*revision.Revision
	manifests map[identity.Identifier]manifest.Manifest
}

// NewMemoryRevisionStore returns an empty store.
func NewMemoryRevisionStore() *MemoryRevisionStore {
	return &MemoryRevisionStore{
		revisions: map[identity.Identifier]*revision.Revision{},
		manifests: map[identity.Identifier]manifest.Manifest{},
	}
}

// PutManifest registers a manifest under its own identifier, as a real
// store's content-addressed manifest table would on first write.
func (s *MemoryRevisionStore) PutManifest(m manifest.Manifest) identity.Identifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := m.Identifier()
	s.manifests[id] = m
	return id
}

func (s *MemoryRevisionStore) GetRevision(id identity.Identifier) (*revision.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.revisions[id]
	if !ok {
		return nil, fmt.Errorf("revision %s not found", id)
	}
	return rec, nil
}

func (s *MemoryRevisionStore) GetRevisionManifest(id identity.Identifier) (identity.Identifier, error) {
	rec, err := s.GetRevision(id)
	if err != nil {
		return identity.Identifier{}, err
	}
	return rec.NewManifest, nil
}

func (s *MemoryRevisionStore) GetManifest(id identity.Identifier) (manifest.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[id]
	if !ok {
		return nil, fmt.Errorf("manifest %s not found", id)
	}
	return m, nil
}

func (s *MemoryRevisionStore) GetRevisionParents(id identity.Identifier) ([]identity.Identifier, error) {
	rec, err := s.GetRevision(id)
	if err != nil {
		return nil, err
	}
	var parents []identity.Identifier
	for _, e := range rec.Edges {
		if !e.OldRevision.IsNull() {
			parents = append(parents, e.OldRevision)
		}
	}
	return parents, nil
}

func (s *MemoryRevisionStore) GetRevisionAncestry() (map[identity.Identifier][]identity.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[identity.Identifier][]identity.Identifier{}
	for child, rec := range s.revisions {
		for _, e := range rec.Edges {
			if !e.OldRevision.IsNull() {
				out[e.OldRevision] = append(out[e.OldRevision], child)
			}
		}
	}
	return out, nil
}

func (s *MemoryRevisionStore) PutRevision(id identity.Identifier, rec *revision.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.revisions[id]; ok {
		if existingID, err := revision.Identifier(existing); err == nil {
			if newID, err2 := revision.Identifier(rec); err2 == nil && existingID == newID {
				return nil
			}
		}
	}
	s.revisions[id] = rec
	return nil
}

func (s *MemoryRevisionStore) RevisionExists(id identity.Identifier) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revisions[id]
	return ok, nil
}

// MemoryContentStore is a minimal in-process ContentStore keyed by content
// hash; StoreDelta does not actually delta-encode (there is no on-disk
// database or transport-layer delta codec in scope here), it simply stores
// the target content whole and reports it unchanged, which is the
// documented fallback for a store with no delta support (§6).
type MemoryContentStore struct {
	mu      sync.RWMutex
	content map[identity.Identifier][]byte
}

// NewMemoryContentStore returns an empty content store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{content: map[identity.Identifier][]byte{}}
}

func (s *MemoryContentStore) Store(content []byte) (identity.Identifier, error) {
	id := identity.Hash(content)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.content[id]; !ok {
		cp := make([]byte, len(content))
		copy(cp, content)
		s.content[id] = cp
	}
	return id, nil
}

func (s *MemoryContentStore) Load(id identity.Identifier) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.content[id]
	if !ok {
		return nil, fmt.Errorf("content %s not found", id)
	}
	return content, nil
}

func (s *MemoryContentStore) StoreDelta(_ identity.Identifier, targetContent []byte) (identity.Identifier, []byte, error) {
	id, err := s.Store(targetContent)
	if err != nil {
		return identity.Identifier{}, nil, err
	}
	return id, targetContent, nil
}
