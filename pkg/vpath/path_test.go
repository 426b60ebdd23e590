package vpath

import (
	"errors"
	"testing"

	"github.com/dscherger/monotone-core/pkg/comparison"
)

func TestSplitComposeRoundTrip(t *testing.T) {
	tests := []struct {
		path       string
		components []string
	}{
		{"", nil},
		{"cat", []string{"cat"}},
		{"usr/bin/cat", []string{"usr", "bin", "cat"}},
	}
	for _, test := range tests {
		components, err := SplitPath(test.path)
		if err != nil {
			t.Errorf("SplitPath(%q): %v", test.path, err)
			continue
		}
		if !comparison.StringSlicesEqual(components, test.components) {
			t.Errorf("SplitPath(%q): expected %v, got %v", test.path, test.components, components)
			continue
		}
		composed, err := ComposePath(components)
		if err != nil {
			t.Errorf("ComposePath(%v): %v", components, err)
			continue
		}
		if composed != test.path {
			t.Errorf("ComposePath(SplitPath(%q)) = %q", test.path, composed)
		}
	}
}

func TestSplitPathRejectsIllegalComponents(t *testing.T) {
	tests := []string{
		"usr//cat",
		"usr/./cat",
		"usr/../cat",
		"/usr",
		"usr/",
		"_MTN/secrets",
		"_mtn/secrets",
	}
	for _, test := range tests {
		if _, err := SplitPath(test); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("SplitPath(%q): expected ErrInvalidPath, got %v", test, err)
		}
	}
}

func TestBookkeepingIsFirstComponentOnly(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"", false},
		{"usr/bin/cat", false},
		{"usr/_MTN/cat", false},
		{"_MTN/secrets", true}, // bookkeeping name as the first component
	}
	for _, test := range tests {
		if got := IsBookkeeping(test.path); got != test.expected {
			t.Errorf("IsBookkeeping(%q): expected %v, got %v", test.path, test.expected, got)
		}
	}
}

func TestJoinDirBase(t *testing.T) {
	tests := []struct {
		base, leaf, joined string
	}{
		{"", "cat", "cat"},
		{"usr", "bin", "usr/bin"},
		{"usr/bin", "cat", "usr/bin/cat"},
	}
	for _, test := range tests {
		joined := Join(test.base, test.leaf)
		if joined != test.joined {
			t.Errorf("Join(%q, %q): expected %q, got %q", test.base, test.leaf, test.joined, joined)
		}
		if got := Dir(joined); got != test.base {
			t.Errorf("Dir(%q): expected %q, got %q", joined, test.base, got)
		}
		if got := Base(joined); got != test.leaf {
			t.Errorf("Base(%q): expected %q, got %q", joined, test.leaf, got)
		}
	}
}

func TestLessIsDepthFirstTraversalOrder(t *testing.T) {
	tests := []struct {
		first, second string
		expected      bool
	}{
		{"", "", false},
		{"", "cat", true},
		{"cat", "", false},
		{"usr", "usr/bin", true},
		{"usr/bin", "usr", false},
		{"usr/ant", "usr/bin/cat", true},
		{"usr/bin/cat", "usr/cat", true},
		{"same/path", "same/path", false},
	}
	for _, test := range tests {
		if got := Less(test.first, test.second); got != test.expected {
			t.Errorf("Less(%q, %q): expected %v, got %v", test.first, test.second, test.expected, got)
		}
	}
}
