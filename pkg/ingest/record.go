package ingest

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/dscherger/monotone-core/pkg/changeset"
	"github.com/dscherger/monotone-core/pkg/identity"
)

// Record is the audit trail entry a batch legacy-ingest job accumulates for
// each change-set it processes: which revision it targets, whether the
// ingest needed relaxed tolerance, and when it ran. IngestedAt uses the
// well-known protobuf timestamp type (as the teacher's core/cache.go uses
// timestamppb for its own on-disk metadata) rather than time.Time directly,
// so a batch of Records can be serialized with the rest of this module's
// protobuf-typed state without a custom wire format for "when".
type Record struct {
	// Revision is the revision identifier this change-set targets.
	Revision identity.Identifier
	// Relaxed records whether SanityContext.Relaxed was set for this
	// ingest, i.e. whether any of the warnings below represent a
	// downgraded invariant violation rather than routine legacy noise.
	Relaxed bool
	// Warnings holds the formatted warning strings IngestChangeSet
	// produced while ingesting this change-set, in the order they were
	// raised.
	Warnings []string
	// IngestedAt is the time this record was produced.
	IngestedAt *timestamppb.Timestamp
}

// recordingSink is a LogSink that both forwards to an underlying sink (so
// warnings still reach the log) and accumulates them onto a Record.
type recordingSink struct {
	underlying LogSink
	record     *Record
}

func (s *recordingSink) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.record.Warnings = append(s.record.Warnings, msg)
	if s.underlying != nil {
		s.underlying.Warnf("%s", msg)
	}
}

// IngestChangeSetRecorded wraps IngestChangeSet, returning a Record
// capturing every warning raised while ingesting cs (empty if ctx is not
// relaxed and nothing was downgraded) in addition to the usual error.
// IngestedAt is left unset; a caller stamps it after the call, since this
// package cannot call time.Now itself (callers own wall-clock time).
func IngestChangeSetRecorded(cs *changeset.ChangeSet, rev identity.Identifier, ctx *SanityContext) (*Record, error) {
	rec := &Record{Revision: rev}
	recording := &SanityContext{Relaxed: ctx != nil && ctx.Relaxed}
	var underlying LogSink
	if ctx != nil {
		underlying = ctx.Log
	}
	recording.Log = &recordingSink{underlying: underlying, record: rec}

	err := IngestChangeSet(cs, recording)
	rec.Relaxed = recording.Relaxed
	return rec, err
}

// Stamp sets IngestedAt to t, converted to the protobuf well-known
// timestamp representation.
func (r *Record) Stamp(t time.Time) {
	r.IngestedAt = timestamppb.New(t)
}
