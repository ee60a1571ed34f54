// Package intercept holds the fixed set of calls that are redirected to a
// central dispatcher regardless of which symbol they are made from, and the
// dispatcher itself.
package intercept

import (
	"fmt"
	"strings"

	"shadowbox/internal/symbol"
)

// Method is either a single named method or every method of an owner.
type Method struct {
	name string
	all  bool
}

// Named selects one method by name.
func Named(name string) Method { return Method{name: name} }

// AllMethods selects every method of the owner.
func AllMethods() Method { return Method{all: true} }

// IsAll reports whether m selects every method.
func (m Method) IsAll() bool { return m.all }

// Name returns the method name; ok is false for AllMethods.
func (m Method) Name() (name string, ok bool) {
	return m.name, !m.all
}

// Matches reports whether m selects the named method.
func (m Method) Matches(name string) bool {
	return m.all || m.name == name
}

func (m Method) String() string {
	if m.all {
		return "*"
	}
	return m.name
}

// MethodRef identifies a method by owner and Method. It compares structurally
// and can be used as a map key.
type MethodRef struct {
	Owner  symbol.Name
	Method Method
}

// Ref is shorthand for a named MethodRef.
func Ref(owner symbol.Name, method string) MethodRef {
	return MethodRef{Owner: owner, Method: Named(method)}
}

// All is shorthand for a wildcard MethodRef.
func All(owner symbol.Name) MethodRef {
	return MethodRef{Owner: owner, Method: AllMethods()}
}

// ParseMethodRef parses "owner.method" or "owner.*".
func ParseMethodRef(s string) (MethodRef, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return MethodRef{}, fmt.Errorf("%w: %q", ErrInvalidMethodRef, s)
	}
	owner := symbol.Name(s[:i])
	if !owner.Valid() {
		return MethodRef{}, fmt.Errorf("%w: %q", ErrInvalidMethodRef, s)
	}
	if m := s[i+1:]; m != "*" {
		return Ref(owner, m), nil
	}
	return All(owner), nil
}

// Signature renders the ref in slash form, the key a redirected call carries:
// "java/lang/System/nanoTime".
func (r MethodRef) Signature() string {
	return strings.ReplaceAll(string(r.Owner), ".", "/") + "/" + r.Method.String()
}

func (r MethodRef) String() string {
	return string(r.Owner) + "." + r.Method.String()
}
