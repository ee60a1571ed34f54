// Package translate maps host runtime symbols that are unavailable under test
// onto test-safe stand-ins.
package translate

import (
	"sort"

	"shadowbox/internal/symbol"
)

// Map is an immutable name translation table. The zero value translates
// nothing.
type Map struct {
	m map[symbol.Name]symbol.Name
}

// New builds a map from the given pairs. The input is copied.
func New(pairs map[symbol.Name]symbol.Name) Map {
	m := make(map[symbol.Name]symbol.Name, len(pairs))
	for from, to := range pairs {
		m[from] = to
	}
	return Map{m: m}
}

// Default returns the stock translations.
func Default() Map {
	return New(map[symbol.Name]symbol.Name{
		"java.net.ExtendedResponseCache": "org.robolectric.impl.ExtendedResponseCache",
		"java.net.ResponseSource":        "org.robolectric.impl.ResponseSource",
		"java.nio.charset.Charsets":      "org.robolectric.impl.FakeCharsets",
	})
}

// Translate returns the stand-in for name, or name itself.
func (t Map) Translate(name symbol.Name) symbol.Name {
	if to, ok := t.m[name]; ok {
		return to
	}
	return name
}

// With returns a copy of t with extra pairs added; extra wins on conflict.
func (t Map) With(extra map[symbol.Name]symbol.Name) Map {
	merged := make(map[symbol.Name]symbol.Name, len(t.m)+len(extra))
	for k, v := range t.m {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return Map{m: merged}
}

// Len returns the number of translations.
func (t Map) Len() int { return len(t.m) }

// Sources returns the translated names, sorted.
func (t Map) Sources() []symbol.Name {
	out := make([]symbol.Name, 0, len(t.m))
	for k := range t.m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
