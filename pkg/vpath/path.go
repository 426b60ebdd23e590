// Package vpath implements the internal normalized path vocabulary described
// in §3 and §4.1: path components, split/compose, and bookkeeping-directory
// detection. It is adapted from the teacher's
// synchronization/core/path.go and fastpath package, generalized from
// root-relative synchronization paths (which never need to reject
// individual components) to the stricter component vocabulary this core
// requires.
package vpath

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// BookkeepingDirectoryName is the reserved top-level directory name. A
// file-path whose first component equals this name (case-insensitively) is
// rejected as a supplied external path.
const BookkeepingDirectoryName = "_MTN"

// ErrInvalidPath is returned for any byte sequence that is not a legal path
// or component, corresponding to the invalid-path error kind in §7.
var ErrInvalidPath = errors.New("invalid path")

// NullComponent is the distinguished component used only inside the
// path-analysis engine to mark an entity as non-present on one side of an
// analysis. It must never appear in an external file-path.
const NullComponent = ""

// IsNullComponent reports whether a component is the null component.
func IsNullComponent(component string) bool {
	return component == NullComponent
}

// validComponent reports whether c is legal as a single path component: it
// must be non-empty, must not contain the path separator, and must not be
// "." or "..".
func validComponent(c string) bool {
	if c == "" || c == "." || c == ".." {
		return false
	}
	return strings.IndexByte(c, '/') == -1
}

// SplitPath splits a full file-path into its ordered sequence of components.
// An empty path splits to an empty (nil) slice, representing the root. It is
// the total inverse of ComposePath: SplitPath(ComposePath(xs)) == xs for any
// xs accepted by ComposePath whose components are already in Unicode NFC
// (SplitPath normalizes to NFC; ComposePath does not). Illegal components
// are rejected with
// ErrInvalidPath; the bookkeeping directory is rejected only as the first
// component, matching IsBookkeeping.
func SplitPath(fp string) ([]string, error) {
	if fp == "" {
		return nil, nil
	}
	parts := strings.Split(fp, "/")
	for i, c := range parts {
		// Normalize to NFC so that visually identical paths compare equal
		// regardless of the decomposition used by the producing filesystem,
		// matching the normalization the teacher applies during scanning
		// (synchronization/core/scan.go) before names ever reach the core.
		normalized := norm.NFC.String(c)
		if !validComponent(normalized) {
			return nil, ErrInvalidPath
		}
		if i == 0 && strings.EqualFold(normalized, BookkeepingDirectoryName) {
			return nil, ErrInvalidPath
		}
		parts[i] = normalized
	}
	return parts, nil
}

// ComposePath joins an ordered sequence of components into a full file-path.
// It is the total inverse of SplitPath. An empty (or nil) slice composes to
// the empty root path.
func ComposePath(components []string) (string, error) {
	for i, c := range components {
		if !validComponent(c) {
			return "", ErrInvalidPath
		}
		if i == 0 && strings.EqualFold(c, BookkeepingDirectoryName) {
			return "", ErrInvalidPath
		}
	}
	return strings.Join(components, "/"), nil
}

// IsBookkeeping reports whether fp's first component is the bookkeeping
// directory name, case-insensitively. A malformed path is never considered
// bookkeeping.
func IsBookkeeping(fp string) bool {
	if fp == "" {
		return false
	}
	components := strings.Split(fp, "/")
	for _, c := range components {
		if !validComponent(norm.NFC.String(c)) {
			return false
		}
	}
	return strings.EqualFold(norm.NFC.String(components[0]), BookkeepingDirectoryName)
}

// Join is a fast alternative to composing a parent path and a leaf component,
// adapted from the teacher's fastpath.Joinable / pathJoin helpers. The leaf
// must be non-empty.
func Join(base, leaf string) string {
	if leaf == "" {
		panic("vpath: empty leaf component")
	}
	if base == "" {
		return leaf
	}
	return base + "/" + leaf
}

// Dir is a fast alternative to path.Dir for root-relative paths, adapted from
// the teacher's pathDir. The provided path must be non-empty.
func Dir(p string) string {
	if p == "" {
		panic("vpath: empty path")
	}
	idx := strings.LastIndexByte(p, '/')
	if idx == -1 {
		return ""
	}
	if idx == 0 {
		panic("vpath: empty parent path")
	}
	return p[:idx]
}

// Base is a fast alternative to path.Base for root-relative paths, adapted
// from the teacher's PathBase.
func Base(p string) string {
	if p == "" {
		return ""
	}
	idx := strings.LastIndexByte(p, '/')
	if idx == -1 {
		return p
	}
	if idx == len(p)-1 {
		panic("vpath: empty base name")
	}
	return p[idx+1:]
}

// Less performs a depth-first-traversal-order comparison between two
// root-relative paths, adapted from the teacher's pathLess. It underlies the
// sorted-stanza ordering required by §4.2's canonical serialization.
func Less(first, second string) bool {
	if first == second {
		return false
	} else if first == "" {
		return true
	} else if second == "" {
		return false
	}
	for {
		fi := strings.IndexByte(first, '/')
		var ff string
		if fi == -1 {
			ff = first
		} else {
			ff = first[:fi]
		}
		si := strings.IndexByte(second, '/')
		var sf string
		if si == -1 {
			sf = second
		} else {
			sf = second[:si]
		}
		if ff < sf {
			return true
		} else if sf < ff {
			return false
		}
		if fi == -1 {
			return true
		} else if si == -1 {
			return false
		}
		first = first[fi+1:]
		second = second[si+1:]
	}
}
