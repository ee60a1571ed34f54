// Package symbol defines the names and read-only descriptors of the symbols that
// flow through the acquisition and instrumentation policies.
package symbol

import (
	"sort"
	"strings"
)

// Name is a dot-delimited fully qualified symbol name, e.g. "android.view.View"
// or "android.R$styleable" for a nested symbol.
type Name string

// Package returns the substring before the last '.', or "" when there is none.
func (n Name) Package() string {
	s := string(n)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return ""
}

// SimpleName returns the substring after the last '.'.
func (n Name) SimpleName() string {
	s := string(n)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Outer strips any nested part ("$...") from the simple name.
func (n Name) Outer() Name {
	s := string(n)
	dot := strings.LastIndexByte(s, '.')
	if i := strings.IndexByte(s[dot+1:], '$'); i >= 0 {
		return Name(s[:dot+1+i])
	}
	return n
}

// Path maps the name onto the slash separated source path a byte-code source
// stores it under: "android.view.View" -> "android/view/View.go".
func (n Name) Path() string {
	return strings.ReplaceAll(string(n), ".", "/") + ".go"
}

// Ident is the Go identifier a symbol's code declares for it: the simple name
// with nested separators turned into underscores.
func (n Name) Ident() string {
	return strings.ReplaceAll(n.SimpleName(), "$", "_")
}

// HasPrefix reports whether the name starts with prefix. Prefixes are compared
// literally, so "org.junit" matches "org.junitx.Foo" as well.
func (n Name) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(n), prefix)
}

func (n Name) String() string { return string(n) }

// Valid reports whether the name is usable: non-empty, no empty segments.
func (n Name) Valid() bool {
	if n == "" {
		return false
	}
	for _, seg := range strings.Split(string(n), ".") {
		if seg == "" {
			return false
		}
	}
	return true
}

// FromImportPath converts a Go import path into the dotted owner name used by
// the interception registry: "math/rand" -> "math.rand".
func FromImportPath(path string) Name {
	return Name(strings.ReplaceAll(path, "/", "."))
}

// Set is an immutable set of names.
type Set struct {
	m map[Name]struct{}
}

// NewSet builds a set from the given names.
func NewSet(names ...Name) Set {
	m := make(map[Name]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return Set{m: m}
}

// Contains reports membership.
func (s Set) Contains(n Name) bool {
	_, ok := s.m[n]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int { return len(s.m) }

// Union returns a new set holding the members of s and the extra names.
func (s Set) Union(names ...Name) Set {
	all := s.Members()
	return NewSet(append(all, names...)...)
}

// Members returns the members in sorted order.
func (s Set) Members() []Name {
	out := make([]Name, 0, len(s.m))
	for n := range s.m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
