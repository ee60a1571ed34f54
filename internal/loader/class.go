package loader

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"shadowbox/internal/symbol"
)

// OriginHost is the origin of classes supplied by the host provider.
const OriginHost = "host"

// Binding resolves identifiers declared by a defined class at runtime.
type Binding interface {
	Lookup(ident string) (reflect.Value, error)
}

// Class is a defined symbol. Its identity is the pointer: loading a name twice
// from one scope yields the same *Class, and two scopes never share one.
type Class struct {
	name         symbol.Name
	origin       string
	instrumented bool
	stubbed      bool
	binding      Binding
}

// Definition is what a Definer turns into a Class.
type Definition struct {
	Name         symbol.Name
	Code         []byte
	Instrumented bool
	Stubbed      bool
}

// NewClass creates a class owned by origin. binding may be nil.
func NewClass(def Definition, origin string, binding Binding) *Class {
	return &Class{
		name:         def.Name,
		origin:       origin,
		instrumented: def.Instrumented,
		stubbed:      def.Stubbed,
		binding:      binding,
	}
}

func (c *Class) Name() symbol.Name { return c.name }

// Origin names the scope that defined the class, or OriginHost.
func (c *Class) Origin() string { return c.origin }

func (c *Class) Instrumented() bool { return c.instrumented }

func (c *Class) Stubbed() bool { return c.stubbed }

// Lookup resolves an identifier the class declares.
func (c *Class) Lookup(ident string) (reflect.Value, error) {
	if c.binding == nil {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrNoBinding, c.name)
	}
	return c.binding.Lookup(ident)
}

func (c *Class) String() string {
	return fmt.Sprintf("%s@%s", c.name, c.origin)
}

// Table records the classes defined in one scope and rejects redefinition.
// Definers embed it to get idempotent-safe bookkeeping.
type Table struct {
	mu      sync.RWMutex
	scope   string
	classes map[symbol.Name]*Class
}

// NewTable creates an empty table for scope.
func NewTable(scope string) *Table {
	return &Table{scope: scope, classes: make(map[symbol.Name]*Class)}
}

// Scope returns the table's scope id.
func (t *Table) Scope() string { return t.scope }

// Defined returns the class already defined under name.
func (t *Table) Defined(name symbol.Name) (*Class, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.classes[name]
	return c, ok
}

// Reserve fails with DuplicateDefinitionError when name is already taken.
// Definers call it before doing expensive work; Add is still authoritative.
func (t *Table) Reserve(name symbol.Name) error {
	if _, ok := t.Defined(name); ok {
		return &DuplicateDefinitionError{Name: name, Scope: t.scope}
	}
	return nil
}

// Add records c. A second class under the same name is rejected.
func (t *Table) Add(c *Class) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.classes[c.name]; exists {
		return &DuplicateDefinitionError{Name: c.name, Scope: t.scope}
	}
	t.classes[c.name] = c
	return nil
}

// Len returns the number of defined classes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.classes)
}

// Names returns the defined names, sorted.
func (t *Table) Names() []symbol.Name {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]symbol.Name, 0, len(t.classes))
	for n := range t.classes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
