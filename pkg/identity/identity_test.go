package identity

import (
	"errors"
	"strings"
	"testing"
)

func TestHashIsDeterministicAndContentSensitive(t *testing.T) {
	first := Hash([]byte("hello, world\n"))
	second := Hash([]byte("hello, world\n"))
	if first != second {
		t.Fatalf("identical content hashed to %s and %s", first, second)
	}
	if Hash([]byte("hello, world")) == first {
		t.Fatalf("distinct content produced identical identifiers")
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	id := Hash([]byte("adc"))
	text := id.String()
	if len(text) != Size*2 {
		t.Fatalf("expected %d-character hex, got %d", Size*2, len(text))
	}
	if text != strings.ToLower(text) {
		t.Fatalf("expected lowercase hex, got %q", text)
	}
	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	if parsed != id {
		t.Fatalf("round trip changed identifier: %s != %s", parsed, id)
	}
}

func TestParseRejectsMalformedText(t *testing.T) {
	tests := []string{
		"",
		"adc83b19",
		strings.Repeat("g", Size*2),
		strings.ToUpper(Hash([]byte("x")).String()),
		Hash([]byte("x")).String() + "00",
	}
	for _, test := range tests {
		if _, err := Parse(test); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q): expected ErrMalformed, got %v", test, err)
		}
	}
}

func TestNullIdentifier(t *testing.T) {
	if !Null.IsNull() {
		t.Fatalf("Null is not null")
	}
	if Hash(nil).IsNull() {
		t.Fatalf("the digest of empty content must not collide with the null identifier")
	}
}

func TestLessIsATotalOrder(t *testing.T) {
	a := Hash([]byte("a"))
	b := Hash([]byte("b"))
	if Less(a, a) {
		t.Fatalf("Less is not irreflexive")
	}
	if Less(a, b) == Less(b, a) {
		t.Fatalf("Less is not antisymmetric for distinct identifiers")
	}
	if !Less(Null, a) && !Less(a, Null) {
		t.Fatalf("null identifier does not participate in the order")
	}
}

func TestReverseLookupMap(t *testing.T) {
	aID := Hash([]byte("content a"))
	bID := Hash([]byte("content b"))
	m := NewReverseLookupMap(map[string]Identifier{
		"usr/a": aID,
		"usr/b": bID,
	})
	if m.Length() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Length())
	}
	if path, ok := m.Lookup(aID); !ok || path != "usr/a" {
		t.Errorf("Lookup(a): got %q, %v", path, ok)
	}
	if _, ok := m.Lookup(Hash([]byte("absent"))); ok {
		t.Errorf("Lookup of absent content succeeded")
	}
	var nilMap *ReverseLookupMap
	if nilMap.Length() != 0 {
		t.Errorf("nil map has nonzero length")
	}
	if _, ok := nilMap.Lookup(aID); ok {
		t.Errorf("nil map lookup succeeded")
	}
}
