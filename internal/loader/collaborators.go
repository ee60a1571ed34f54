package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"shadowbox/internal/intercept"
	"shadowbox/internal/symbol"
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// Source supplies raw code for a name. A missing name is reported with an error
// matching ErrSymbolNotFound.
type Source interface {
	Bytes(name symbol.Name) ([]byte, error)
}

// Discovery describes a candidate symbol from its raw code.
type Discovery interface {
	Describe(name symbol.Name, code []byte) (symbol.Descriptor, error)
}

// RewriteRequest is the input of one rewriting pass.
type RewriteRequest struct {
	Name     symbol.Name
	Code     []byte
	Registry *intercept.Registry
	// Stubs asks for every body to be replaced by a zero-value return instead
	// of per-call interception.
	Stubs bool
}

// Transform rewrites a symbol's code. It is only invoked for symbols the
// instrumentation policy selects.
type Transform interface {
	Rewrite(req RewriteRequest) ([]byte, error)
}

// Definer is the isolated scope's definition primitive. Define must reject a
// second definition of the same name with a DuplicateDefinitionError.
type Definer interface {
	Defined(name symbol.Name) (*Class, bool)
	Define(def Definition) (*Class, error)
}

// Provider is the host (parent) side of delegation. The loader never rewrites
// or caches what a Provider returns.
type Provider interface {
	LoadClass(name symbol.Name) (*Class, error)
}

// =============================================================================
// FILESYSTEM SOURCE
// =============================================================================

// FSSource reads code from one or more fs.FS roots, "<pkg path>/<Simple>.go",
// first root wins.
type FSSource struct {
	roots []fs.FS
}

// NewFSSource returns a source over roots.
func NewFSSource(roots ...fs.FS) *FSSource {
	return &FSSource{roots: roots}
}

// Bytes reads the code stored for name.
func (s *FSSource) Bytes(name symbol.Name) ([]byte, error) {
	p := name.Path()
	for _, root := range s.roots {
		data, err := fs.ReadFile(root, p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
	}
	return nil, &SymbolNotFoundError{Name: name}
}

// =============================================================================
// STATIC HOST
// =============================================================================

// StaticHost is a Provider over classes registered by the host process. One
// StaticHost is shared by every scope, so host classes keep a single identity.
type StaticHost struct {
	mu    sync.Mutex
	table *Table
}

// NewStaticHost creates an empty host.
func NewStaticHost() *StaticHost {
	return &StaticHost{table: NewTable(OriginHost)}
}

// Register defines name on the host side. Registering a name twice returns
// the existing class.
func (h *StaticHost) Register(name symbol.Name, binding Binding) *Class {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.table.Defined(name); ok {
		return c
	}
	c := NewClass(Definition{Name: name}, OriginHost, binding)
	_ = h.table.Add(c) // cannot collide under h.mu
	return c
}

// LoadClass returns the registered class for name.
func (h *StaticHost) LoadClass(name symbol.Name) (*Class, error) {
	if c, ok := h.table.Defined(name); ok {
		return c, nil
	}
	return nil, &SymbolNotFoundError{Name: name}
}

// Names lists the registered names.
func (h *StaticHost) Names() []symbol.Name { return h.table.Names() }
