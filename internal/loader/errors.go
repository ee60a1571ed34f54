package loader

import (
	"errors"
	"fmt"
	"strings"

	"shadowbox/internal/symbol"
)

// Loader errors. Typed errors below match these sentinels with errors.Is.
var (
	// ErrSymbolNotFound: neither the isolated scope nor the host can supply a name.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrTransform: rewriting a symbol's code failed. Never retried.
	ErrTransform = errors.New("transform failed")

	// ErrDuplicateDefinition: a name was defined twice in one scope.
	ErrDuplicateDefinition = errors.New("symbol already defined")

	// ErrInvalidName is returned for empty or malformed names.
	ErrInvalidName = errors.New("invalid symbol name")

	// ErrMissingCollaborator is returned by New when a required collaborator is nil.
	ErrMissingCollaborator = errors.New("missing loader collaborator")

	// ErrCycle: symbols require each other, directly or through others.
	ErrCycle = errors.New("require cycle")

	// ErrNoBinding is returned by Class.Lookup when the class has no runtime binding.
	ErrNoBinding = errors.New("class has no runtime binding")
)

// SymbolNotFoundError reports a name no provider could supply.
type SymbolNotFoundError struct {
	Name symbol.Name
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Name)
}

func (e *SymbolNotFoundError) Is(target error) bool { return target == ErrSymbolNotFound }

// TransformError wraps a failure of the rewriting transform.
type TransformError struct {
	Name symbol.Name
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Name, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

func (e *TransformError) Is(target error) bool { return target == ErrTransform }

// DuplicateDefinitionError reports a second definition of a name in one scope.
// It points at a concurrency bug, not at a missing symbol.
type DuplicateDefinitionError struct {
	Name  symbol.Name
	Scope string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("symbol %s already defined in scope %s", e.Name, e.Scope)
}

func (e *DuplicateDefinitionError) Is(target error) bool { return target == ErrDuplicateDefinition }

// CycleError reports a chain of requires that leads back to its first name.
type CycleError struct {
	Chain []symbol.Name
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Chain))
	for i, n := range e.Chain {
		parts[i] = string(n)
	}
	return "require cycle: " + strings.Join(parts, " -> ")
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// BootstrapError carries whatever stopped a test class from being bootstrapped.
// Test execution cannot proceed past it.
type BootstrapError struct {
	Name symbol.Name
	Err  error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s: %v", e.Name, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }
