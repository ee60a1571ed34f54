package intercept

import (
	"sort"

	"shadowbox/internal/symbol"
)

// Registry is the immutable set of MethodRefs whose call sites are redirected.
// It only answers membership queries; dispatch lives in Dispatcher.
type Registry struct {
	refs map[MethodRef]struct{}
}

// NewRegistry builds a registry from refs.
func NewRegistry(refs ...MethodRef) *Registry {
	m := make(map[MethodRef]struct{}, len(refs))
	for _, r := range refs {
		m[r] = struct{}{}
	}
	return &Registry{refs: m}
}

// DefaultRegistry returns the stock set: clock reads, native library loading,
// low-level memory copy, locale-dependent native calls and whole interfaces
// that must never run unmodified under test.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Ref("java.util.LinkedHashMap", "eldest"),
		Ref("java.lang.System", "loadLibrary"),
		Ref("android.os.StrictMode", "trackActivity"),
		Ref("android.os.StrictMode", "incrementExpectedActivityCount"),
		All("java.lang.AutoCloseable"),
		Ref("android.util.LocaleUtil", "getLayoutDirectionFromLocale"),
		All("com.android.internal.policy.PolicyManager"),
		All("android.view.FallbackEventHandler"),
		All("android.view.IWindowSession"),
		Ref("java.lang.System", "nanoTime"),
		Ref("java.lang.System", "currentTimeMillis"),
		Ref("java.lang.System", "arraycopy"),
		Ref("java.lang.System", "logE"),
		Ref("java.util.Locale", "adjustLanguageCode"),

		// Go-source symbols read the same clocks through package time.
		Ref("time", "Now"),
		Ref("time", "Since"),
		Ref("time", "Until"),
		Ref("plugin", "Open"),
		// Every Close declared by io.Closer, whatever the static type embedding it.
		All("io.Closer"),
	)
}

// With returns a new registry holding r's refs plus extra.
func (r *Registry) With(extra ...MethodRef) *Registry {
	return NewRegistry(append(r.Refs(), extra...)...)
}

// Intercepts reports whether calls to owner.method are redirected, either by
// an exact entry or by a wildcard entry for owner.
func (r *Registry) Intercepts(owner symbol.Name, method string) bool {
	if _, ok := r.refs[Ref(owner, method)]; ok {
		return true
	}
	_, ok := r.refs[All(owner)]
	return ok
}

// Mentions reports whether some entry could match a method named method: a
// wildcard entry or an exact entry with that name.
func (r *Registry) Mentions(method string) bool {
	for ref := range r.refs {
		if ref.Method.Matches(method) {
			return true
		}
	}
	return false
}

// Contains reports whether ref itself is a member.
func (r *Registry) Contains(ref MethodRef) bool {
	_, ok := r.refs[ref]
	return ok
}

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.refs) }

// Refs returns every entry, sorted by owner then method.
func (r *Registry) Refs() []MethodRef {
	out := make([]MethodRef, 0, len(r.refs))
	for ref := range r.refs {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Method.String() < out[j].Method.String()
	})
	return out
}

// Owners returns the distinct owners with at least one entry, sorted.
func (r *Registry) Owners() []symbol.Name {
	seen := make(map[symbol.Name]struct{})
	for ref := range r.refs {
		seen[ref.Owner] = struct{}{}
	}
	out := make([]symbol.Name, 0, len(seen))
	for o := range seen {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
