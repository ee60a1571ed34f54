package loader

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"go.uber.org/goleak"

	"shadowbox/internal/symbol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memDefiner defines classes without executing them.
type memDefiner struct {
	*Table
	defines atomic.Int32

	mu    sync.Mutex
	order []symbol.Name
}

func newMemDefiner(scope string) *memDefiner {
	return &memDefiner{Table: NewTable(scope)}
}

func (d *memDefiner) Define(def Definition) (*Class, error) {
	d.defines.Add(1)
	c := NewClass(def, d.Scope(), nil)
	if err := d.Add(c); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.order = append(d.order, def.Name)
	d.mu.Unlock()
	return c, nil
}

func (d *memDefiner) defined() []symbol.Name {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]symbol.Name(nil), d.order...)
}

// lineDiscovery reads kind, markers and "//requires a.B c.D" lines.
type lineDiscovery struct{}

func (lineDiscovery) Describe(name symbol.Name, code []byte) (symbol.Descriptor, error) {
	kind := symbol.KindClass
	var markers []symbol.Marker
	var requires []symbol.Name
	sc := bufio.NewScanner(bytes.NewReader(code))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "//requires "); ok {
			for _, f := range strings.Fields(rest) {
				requires = append(requires, symbol.Name(f))
			}
			continue
		}
		switch line {
		case "//interface":
			kind = symbol.KindInterface
		case "//annotation":
			kind = symbol.KindAnnotation
		case "//instrument":
			markers = append(markers, symbol.MarkerInstrument)
		case "//donotinstrument":
			markers = append(markers, symbol.MarkerDoNotInstrument)
		case "//malformed":
			return symbol.Descriptor{}, errors.New("cannot parse")
		}
	}
	return symbol.NewDescriptor(name, kind, markers...).WithRequires(requires...), nil
}

// recordingTransform prefixes rewritten code and remembers every request.
type recordingTransform struct {
	mu       sync.Mutex
	requests []RewriteRequest
	fail     map[symbol.Name]error
}

func (t *recordingTransform) Rewrite(req RewriteRequest) ([]byte, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	err := t.fail[req.Name]
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	prefix := "// rewritten\n"
	if req.Stubs {
		prefix = "// stubbed\n"
	}
	return append([]byte(prefix), req.Code...), nil
}

func (t *recordingTransform) count(name symbol.Name) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.requests {
		if r.Name == name {
			n++
		}
	}
	return n
}

// countingSource counts reads per name.
type countingSource struct {
	inner Source
	mu    sync.Mutex
	reads map[symbol.Name]int
}

func newCountingSource(files fstest.MapFS) *countingSource {
	return &countingSource{inner: NewFSSource(files), reads: make(map[symbol.Name]int)}
}

func (s *countingSource) Bytes(name symbol.Name) ([]byte, error) {
	s.mu.Lock()
	s.reads[name]++
	s.mu.Unlock()
	return s.inner.Bytes(name)
}

func (s *countingSource) count(name symbol.Name) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[name]
}

// failingHost fails every lookup with err.
type failingHost struct{ err error }

func (h failingHost) LoadClass(symbol.Name) (*Class, error) { return nil, h.err }

func code(lines ...string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(strings.Join(lines, "\n") + "\n")}
}
