package changeset

import (
	"bufio"
	"fmt"
	"sort"
	"strings"

	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/vcserr"
	"github.com/dscherger/monotone-core/pkg/vpath"
)

// Serialize produces the canonical textual form of §4.2/§6: stanzas grouped
// by kind in the fixed order delete_file, delete_dir, rename_file,
// rename_dir, add_file, patch, each group sorted lexicographically by
// primary path. Round-tripping through Parse is exact and idempotent
// (testable property 5).
func Serialize(cs *ChangeSet) (string, error) {
	var b strings.Builder

	for _, p := range sortedStrings(keys(cs.Rearrangement.DeletedFiles)) {
		fmt.Fprintf(&b, "delete_file %s\n", quote(p))
	}
	for _, p := range sortedStrings(keys(cs.Rearrangement.DeletedDirs)) {
		fmt.Fprintf(&b, "delete_dir  %s\n", quote(p))
	}
	for _, src := range sortedStrings(mapKeys(cs.Rearrangement.RenamedFiles)) {
		fmt.Fprintf(&b, "rename_file %s\n", quote(src))
		fmt.Fprintf(&b, "      to    %s\n", quote(cs.Rearrangement.RenamedFiles[src]))
	}
	for _, src := range sortedStrings(mapKeys(cs.Rearrangement.RenamedDirs)) {
		fmt.Fprintf(&b, "rename_dir  %s\n", quote(src))
		fmt.Fprintf(&b, "      to    %s\n", quote(cs.Rearrangement.RenamedDirs[src]))
	}
	for _, p := range sortedStrings(keys(cs.Rearrangement.AddedFiles)) {
		fmt.Fprintf(&b, "add_file    %s\n", quote(p))
	}
	for _, p := range sortedStrings(deltaKeys(cs.Deltas)) {
		d := cs.Deltas[p]
		fmt.Fprintf(&b, "patch       %s\n", quote(p))
		fmt.Fprintf(&b, "      from  %s\n", bracket(d.Src))
		fmt.Fprintf(&b, "      to    %s\n", bracket(d.Dst))
	}
	return b.String(), nil
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func mapKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func deltaKeys(m map[string]Delta) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortedStrings(ss []string) []string {
	sort.Slice(ss, func(i, j int) bool { return vpath.Less(ss[i], ss[j]) })
	return ss
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("changeset: malformed quoted string %q: %w", s, vcserr.ErrDecoding)
	}
	body := s[1 : len(s)-1]
	var b strings.Builder
	escaped := false
	for _, r := range body {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	if escaped {
		return "", fmt.Errorf("changeset: trailing escape in %q: %w", s, vcserr.ErrDecoding)
	}
	return b.String(), nil
}

func bracket(id identity.Identifier) string {
	return "[" + id.String() + "]"
}

func unbracket(s string) (identity.Identifier, error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return identity.Identifier{}, fmt.Errorf("changeset: malformed identifier %q: %w", s, vcserr.ErrDecoding)
	}
	id, err := identity.Parse(s[1 : len(s)-1])
	if err != nil {
		return identity.Identifier{}, fmt.Errorf("changeset: %v: %w", err, vcserr.ErrDecoding)
	}
	return id, nil
}

// Parse decodes a change-set from its canonical textual form.
func Parse(text string) (*ChangeSet, error) {
	cs := New()
	scanner := bufio.NewScanner(strings.NewReader(text))
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	i := 0
	readField := func(keyword string) (string, error) {
		if i >= len(lines) {
			return "", fmt.Errorf("changeset: unexpected end of input, expected %q: %w", keyword, vcserr.ErrDecoding)
		}
		fields := strings.SplitN(lines[i], " ", 2)
		if len(fields) != 2 || fields[0] != keyword {
			return "", fmt.Errorf("changeset: expected %q, got %q: %w", keyword, lines[i], vcserr.ErrDecoding)
		}
		i++
		return strings.TrimSpace(fields[1]), nil
	}

	for i < len(lines) {
		keyword := strings.SplitN(lines[i], " ", 2)[0]
		switch keyword {
		case "delete_file":
			raw, err := readField("delete_file")
			if err != nil {
				return nil, err
			}
			p, err := unquote(raw)
			if err != nil {
				return nil, err
			}
			cs.Rearrangement.DeletedFiles[p] = struct{}{}
		case "delete_dir":
			raw, err := readField("delete_dir")
			if err != nil {
				return nil, err
			}
			p, err := unquote(raw)
			if err != nil {
				return nil, err
			}
			cs.Rearrangement.DeletedDirs[p] = struct{}{}
		case "rename_file", "rename_dir":
			raw, err := readField(keyword)
			if err != nil {
				return nil, err
			}
			src, err := unquote(raw)
			if err != nil {
				return nil, err
			}
			rawTo, err := readField("to")
			if err != nil {
				return nil, err
			}
			dst, err := unquote(rawTo)
			if err != nil {
				return nil, err
			}
			if keyword == "rename_file" {
				cs.Rearrangement.RenamedFiles[src] = dst
			} else {
				cs.Rearrangement.RenamedDirs[src] = dst
			}
		case "add_file":
			raw, err := readField("add_file")
			if err != nil {
				return nil, err
			}
			p, err := unquote(raw)
			if err != nil {
				return nil, err
			}
			cs.Rearrangement.AddedFiles[p] = struct{}{}
		case "patch":
			raw, err := readField("patch")
			if err != nil {
				return nil, err
			}
			p, err := unquote(raw)
			if err != nil {
				return nil, err
			}
			rawFrom, err := readField("from")
			if err != nil {
				return nil, err
			}
			src, err := unbracket(rawFrom)
			if err != nil {
				return nil, err
			}
			rawTo, err := readField("to")
			if err != nil {
				return nil, err
			}
			dst, err := unbracket(rawTo)
			if err != nil {
				return nil, err
			}
			cs.Deltas[p] = Delta{Src: src, Dst: dst}
		default:
			return nil, fmt.Errorf("changeset: unknown stanza keyword %q: %w", keyword, vcserr.ErrDecoding)
		}
	}
	return cs, nil
}
