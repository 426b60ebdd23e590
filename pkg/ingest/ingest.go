// Package ingest implements the legacy-ingest mode described in §9's Open
// Questions and recorded in SPEC_FULL.md §C.1/§D: the one-shot knob §7 and
// Design Note §9 call for, allowing a batch job that is importing
// pre-existing history to relax two invariants that are always fatal for a
// newly constructed change-set, downgrading them to a logged warning
// instead. It replaces the original's process-wide mutable "sanity"
// singleton with an explicit SanityContext threaded through the two call
// sites that need it, per Design Note §9.
package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dscherger/monotone-core/pkg/changeset"
	"github.com/dscherger/monotone-core/pkg/encoding"
	"github.com/dscherger/monotone-core/pkg/logging"
	"github.com/dscherger/monotone-core/pkg/vcserr"
	"github.com/dscherger/monotone-core/pkg/vpath"
)

// log is this package's sublogger.
var log = logging.RootLogger.Sublogger("ingest")

// LogSink receives the warnings a relaxed SanityContext downgrades
// invariant violations to. It is satisfied by *logging.Logger's Warn
// method via the adapter below, or by any caller-supplied sink that wants
// to accumulate legacy-ingest warnings for a batch report instead of
// printing them as they occur.
type LogSink interface {
	Warnf(format string, args ...interface{})
}

// loggerSink adapts a *logging.Logger to LogSink.
type loggerSink struct {
	logger *logging.Logger
}

func (s loggerSink) Warnf(format string, args ...interface{}) {
	s.logger.Warn(fmt.Errorf(format, args...))
}

// SanityContext is threaded through ingest operations in place of the
// original's global "relaxed sanity" singleton (Design Note §9). Relaxed
// controls whether the two legacy hazards below are downgraded from a hard
// invariant-violation to a logged warning; it must never be set for new
// commits (§9: "the spec above requires this to be an invariant violation
// on new commits but permits it, with warning, only in the legacy ingest
// path").
type SanityContext struct {
	// Relaxed enables legacy-ingest tolerance. Loadable from YAML for batch
	// jobs (§A.3).
	Relaxed bool `yaml:"relaxed"`
	// Log receives warnings emitted while Relaxed is true. Not part of the
	// YAML form; defaults to this package's logger if left nil.
	Log LogSink `yaml:"-"`
}

// NewSanityContext returns a non-relaxed context logging through this
// package's logger, the default posture for anything that isn't an
// explicit legacy-ingest batch job.
func NewSanityContext() *SanityContext {
	return &SanityContext{Log: loggerSink{logger: log}}
}

// LoadSanityContext loads a SanityContext from a YAML file (§A.3), for
// batch legacy-ingest jobs that need to toggle relaxed checking without
// a full CLI (out of scope per spec.md §1).
func LoadSanityContext(path string) (*SanityContext, error) {
	ctx := NewSanityContext()
	if err := encoding.LoadAndUnmarshalYAML(path, ctx); err != nil {
		return nil, fmt.Errorf("ingest: load sanity context: %w", err)
	}
	if ctx.Log == nil {
		ctx.Log = loggerSink{logger: log}
	}
	return ctx, nil
}

func (ctx *SanityContext) warnf(format string, args ...interface{}) {
	if ctx == nil || ctx.Log == nil {
		return
	}
	ctx.Log.Warnf(format, args...)
}

// CanonicalizePath resolves the "empty-name legacy path" hazard (§9): the
// source's comment that the ""-named directory entry is ambiguous, with
// multiple empty-leaf-name files collapsing onto a single map slot. A path
// with a legal component vocabulary is returned unchanged. A path with an
// illegal empty component is rejected outright unless ctx is relaxed, in
// which case every empty component is rewritten to a synthetic,
// position-qualified name and the rewrite is logged — an explicit, audited
// rewrite rather than the original's silent collapse.
func CanonicalizePath(raw string, ctx *SanityContext) (string, error) {
	if _, err := vpath.SplitPath(raw); err == nil {
		return raw, nil
	}
	if ctx == nil || !ctx.Relaxed {
		return "", vpath.ErrInvalidPath
	}

	parts := strings.Split(raw, "/")
	rewritten := false
	for i, c := range parts {
		if c == "" {
			parts[i] = fmt.Sprintf("_legacy_empty_%d", i)
			rewritten = true
		}
	}
	canonical := strings.Join(parts, "/")
	if _, err := vpath.SplitPath(canonical); err != nil {
		// Some other illegal component (not an empty name): still invalid.
		return "", vpath.ErrInvalidPath
	}
	if rewritten {
		ctx.warnf("ingest: canonicalized ambiguous empty-name legacy path %q to %q", raw, canonical)
	}
	return canonical, nil
}

// IngestChangeSet performs the same sanity check a newly constructed
// change-set undergoes (changeset.Validate), but first checks for the
// "undeleting an item during a rearrangement rebuild" hazard (§9): a path
// that the rearrangement both deletes and re-adds, which a freshly built
// change-set must never contain (such a pair is always better expressed as
// no operation at all, or as two genuinely distinct entities), but which
// legacy history occasionally does contain as an artifact of how the
// original rebuilt rearrangements from a roster. Under a relaxed context,
// each such path is logged as a warning instead of failing the ingest.
func IngestChangeSet(cs *changeset.ChangeSet, ctx *SanityContext) error {
	undeleted := undeletedPaths(cs)
	if len(undeleted) == 0 {
		return cs.Validate()
	}
	if ctx == nil || !ctx.Relaxed {
		return fmt.Errorf("ingest: %d path(s) deleted and re-added within one change-set (%s): %w",
			len(undeleted), strings.Join(undeleted, ", "), vcserr.ErrInvariantViolation)
	}
	for _, p := range undeleted {
		ctx.warnf("ingest: undeleting %q during rearrangement rebuild", p)
	}

	// The delete-then-add pair nets to nothing; collapse it away before
	// running the ordinary sanity check, the same way Normalize collapses a
	// rename followed by its inverse (§4.2). This is the explicit, logged
	// analogue of the original's silent collapse (§9).
	cleaned := cs.Clone()
	for _, p := range undeleted {
		delete(cleaned.Rearrangement.DeletedFiles, p)
		delete(cleaned.Rearrangement.AddedFiles, p)
		delete(cleaned.Deltas, p)
	}
	return cleaned.Validate()
}

// undeletedPaths returns, in sorted order, every path present in both
// DeletedFiles and AddedFiles of cs's rearrangement.
func undeletedPaths(cs *changeset.ChangeSet) []string {
	var out []string
	for p := range cs.Rearrangement.DeletedFiles {
		if _, ok := cs.Rearrangement.AddedFiles[p]; ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
