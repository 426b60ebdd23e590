package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dscherger/monotone-core/pkg/identity"
)

func TestShortIDIsNarrowerThanHex(t *testing.T) {
	id := identity.Hash([]byte("a revision"))
	short := ShortID(id)
	if short == id.String() {
		t.Errorf("ShortID should differ from the full hex form")
	}
	if len(short) >= len(id.String()) {
		t.Errorf("ShortID(%q) = %q is not narrower than the hex form", id, short)
	}
}

func TestWriterSplitsLines(t *testing.T) {
	var got []string
	l := &Logger{level: LevelInfo}
	w := &writer{callback: func(s string) { got = append(got, s) }}
	_ = l

	if _, err := w.Write([]byte("first\nsecond\r\nthird")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("unexpected split lines: %v", got)
	}

	// The trailing partial line is flushed on the next newline.
	if _, err := w.Write([]byte(" remainder\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(got) != 3 || got[2] != "third remainder" {
		t.Fatalf("unexpected final line: %v", got)
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	var l *Logger
	l.Info("should not panic")
	if w := l.Writer(); w == nil {
		t.Fatal("nil logger must still return a usable writer")
	} else if n, err := w.Write([]byte("discarded\n")); err != nil || n == 0 {
		t.Fatalf("discard writer: n=%d err=%v", n, err)
	}
}

func TestSubloggerInheritsLevelAndNestsPrefix(t *testing.T) {
	root := New(LevelDebug)
	child := root.Sublogger("ancestry")
	grandchild := child.Sublogger("merge")
	if grandchild.prefix != "ancestry.merge" {
		t.Errorf("prefix = %q, want %q", grandchild.prefix, "ancestry.merge")
	}
	if !grandchild.enabled(LevelDebug) {
		t.Error("sublogger should inherit its parent's level")
	}
}

func TestBufferReuseAcrossWrites(t *testing.T) {
	var buf bytes.Buffer
	w := &writer{callback: func(s string) { buf.WriteString(s + "|") }}
	parts := []string{"a", "b\nc", "d\n"}
	for _, p := range parts {
		if _, err := w.Write([]byte(p)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if got := buf.String(); !strings.Contains(got, "ab|") || !strings.Contains(got, "cd|") {
		t.Errorf("unexpected buffered output: %q", got)
	}
}
