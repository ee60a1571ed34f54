package policy

import "shadowbox/internal/symbol"

// Instrumentation decides whether a symbol's code is rewritten for substitution.
type Instrumentation struct {
	rules Rules
}

// NewInstrumentation returns an instrumentation policy over the given rules.
func NewInstrumentation(rules Rules) *Instrumentation {
	return &Instrumentation{rules: rules}
}

// ShouldInstrument reports whether the described symbol must be rewritten.
// Interfaces and annotations have nothing to substitute. An explicit
// do-not-instrument marker wins over everything, including the force marker.
func (p *Instrumentation) ShouldInstrument(desc symbol.Descriptor) bool {
	if desc.IsInterface() || desc.IsAnnotation() || desc.Has(symbol.MarkerDoNotInstrument) {
		return false
	}
	if desc.Has(symbol.MarkerInstrument) {
		return true
	}
	return p.IsFramework(desc.Name())
}

// IsFramework reports whether name lies in the simulated framework namespace.
func (p *Instrumentation) IsFramework(name symbol.Name) bool {
	return hasAnyPrefix(name, p.rules.FrameworkPrefixes)
}

// ContainsStubs reports whether the symbol's real implementation is replaced
// entirely by placeholder bodies instead of per-call interception.
func (p *Instrumentation) ContainsStubs(desc symbol.Descriptor) bool {
	return hasAnyPrefix(desc.Name(), p.rules.StubPrefixes)
}
