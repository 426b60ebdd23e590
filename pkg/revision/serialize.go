package revision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dscherger/monotone-core/pkg/changeset"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/vcserr"
)

// Serialize produces the canonical textual form of §4.8: a new_manifest
// stanza followed by one old_revision/old_manifest/change-set group per
// edge, sorted by parent identifier so that two revisions with the same
// ancestry and change-sets in different edge orders serialize identically.
func Serialize(r *Revision) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "new_manifest [%s]\n", r.NewManifest)

	edges := append([]Edge{}, r.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		return identity.Less(edges[i].OldRevision, edges[j].OldRevision)
	})

	for _, e := range edges {
		fmt.Fprintf(&b, "old_revision [%s]\n", e.OldRevision)
		fmt.Fprintf(&b, "old_manifest [%s]\n", e.OldManifest)
		body, err := changeset.Serialize(e.ChangeSet)
		if err != nil {
			return "", err
		}
		b.WriteString(body)
	}
	return b.String(), nil
}

// Identifier computes the revision_id: the digest of the canonical
// serialization (§4.8, mirroring manifest.Manifest.Identifier).
func Identifier(r *Revision) (identity.Identifier, error) {
	text, err := Serialize(r)
	if err != nil {
		return identity.Identifier{}, err
	}
	return identity.Hash([]byte(text)), nil
}

// Parse decodes a revision from its canonical textual form.
func Parse(text string) (*Revision, error) {
	lines := strings.Split(text, "\n")
	i := 0
	readStanza := func(keyword string) (identity.Identifier, error) {
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) {
			return identity.Identifier{}, fmt.Errorf("revision: unexpected end of input, expected %q: %w", keyword, vcserr.ErrDecoding)
		}
		line := strings.TrimSpace(lines[i])
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 || fields[0] != keyword {
			return identity.Identifier{}, fmt.Errorf("revision: expected %q, got %q: %w", keyword, line, vcserr.ErrDecoding)
		}
		val := strings.TrimSpace(fields[1])
		if len(val) < 2 || val[0] != '[' || val[len(val)-1] != ']' {
			return identity.Identifier{}, fmt.Errorf("revision: malformed identifier %q: %w", val, vcserr.ErrDecoding)
		}
		id, err := identity.Parse(val[1 : len(val)-1])
		if err != nil {
			return identity.Identifier{}, fmt.Errorf("revision: %v: %w", err, vcserr.ErrDecoding)
		}
		i++
		return id, nil
	}

	newManifest, err := readStanza("new_manifest")
	if err != nil {
		return nil, err
	}

	var edges []Edge
	for i < len(lines) {
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) {
			break
		}
		oldRevision, err := readStanza("old_revision")
		if err != nil {
			return nil, err
		}
		oldManifest, err := readStanza("old_manifest")
		if err != nil {
			return nil, err
		}
		// The remainder of this edge's change-set stanzas run until the next
		// old_revision keyword or end of input.
		start := i
		for i < len(lines) {
			trimmed := strings.TrimSpace(lines[i])
			if strings.HasPrefix(trimmed, "old_revision ") {
				break
			}
			i++
		}
		cs, err := changeset.Parse(strings.Join(lines[start:i], "\n"))
		if err != nil {
			return nil, err
		}
		edges = append(edges, Edge{OldRevision: oldRevision, OldManifest: oldManifest, ChangeSet: cs})
	}

	return &Revision{NewManifest: newManifest, Edges: edges}, nil
}
