package intercept

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowbox/internal/symbol"
)

func TestMethod_Variant(t *testing.T) {
	n := Named("nanoTime")
	name, ok := n.Name()
	assert.True(t, ok)
	assert.Equal(t, "nanoTime", name)
	assert.False(t, n.IsAll())
	assert.True(t, n.Matches("nanoTime"))
	assert.False(t, n.Matches("currentTimeMillis"))

	a := AllMethods()
	_, ok = a.Name()
	assert.False(t, ok)
	assert.True(t, a.Matches("anything"))
	assert.Equal(t, "*", a.String())

	// A method literally called "*" is not the wildcard.
	assert.NotEqual(t, Named("*"), AllMethods())
}

func TestMethodRef_StructuralEquality(t *testing.T) {
	assert.Equal(t, Ref("java.lang.System", "nanoTime"), Ref("java.lang.System", "nanoTime"))
	m := map[MethodRef]int{Ref("a.B", "c"): 1, All("a.B"): 2}
	assert.Equal(t, 1, m[MethodRef{Owner: "a.B", Method: Named("c")}])
	assert.Equal(t, 2, m[MethodRef{Owner: "a.B", Method: AllMethods()}])
}

func TestParseMethodRef(t *testing.T) {
	ref, err := ParseMethodRef("java.lang.System.nanoTime")
	require.NoError(t, err)
	assert.Equal(t, Ref("java.lang.System", "nanoTime"), ref)

	ref, err = ParseMethodRef(" android.view.IWindowSession.* ")
	require.NoError(t, err)
	assert.Equal(t, All("android.view.IWindowSession"), ref)

	for _, bad := range []string{"", "noowner", ".method", "owner.", "a..b.c"} {
		_, err := ParseMethodRef(bad)
		assert.ErrorIs(t, err, ErrInvalidMethodRef, bad)
	}
}

func TestMethodRef_Signature(t *testing.T) {
	assert.Equal(t, "java/lang/System/nanoTime", Ref("java.lang.System", "nanoTime").Signature())
	assert.Equal(t, "java.lang.AutoCloseable.*", All("java.lang.AutoCloseable").String())
}

func TestRegistry_Intercepts(t *testing.T) {
	r := DefaultRegistry()

	assert.True(t, r.Intercepts("java.lang.System", "nanoTime"))
	assert.True(t, r.Intercepts("java.lang.System", "currentTimeMillis"))
	assert.True(t, r.Intercepts("java.lang.System", "loadLibrary"))
	assert.True(t, r.Intercepts("java.util.LinkedHashMap", "eldest"))
	assert.True(t, r.Intercepts("time", "Now"))
	assert.False(t, r.Intercepts("java.lang.System", "getProperty"))
	assert.False(t, r.Intercepts("java.lang.Systemx", "nanoTime"))
	assert.False(t, r.Intercepts("time", "Sleep"))
}

func TestRegistry_WildcardCoversEveryMethod(t *testing.T) {
	r := DefaultRegistry()
	for _, ref := range r.Refs() {
		if !ref.Method.IsAll() {
			continue
		}
		for _, m := range []string{"close", "addView", "remove", "", "*", "anything$else"} {
			assert.True(t, r.Intercepts(ref.Owner, m), "%s.%s", ref.Owner, m)
		}
	}
}

func TestRegistry_RefsAndOwners(t *testing.T) {
	r := NewRegistry(Ref("b.B", "y"), Ref("a.A", "x"), All("b.B"), Ref("a.A", "x"))
	assert.Equal(t, 3, r.Len())

	want := []string{"a.A.x", "b.B.*", "b.B.y"}
	var got []string
	for _, ref := range r.Refs() {
		got = append(got, ref.String())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Refs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []symbol.Name{"a.A", "b.B"}, r.Owners())

	w := r.With(Ref("c.C", "z"))
	assert.True(t, w.Contains(Ref("c.C", "z")))
	assert.False(t, r.Contains(Ref("c.C", "z")), "With must not mutate the receiver")
}

func TestDispatcher_ExactThenWildcardThenOriginal(t *testing.T) {
	d := NewDispatcher(nil)

	require.NoError(t, d.Handle(Ref("java.lang.System", "nanoTime"), func(inv *Invocation) []interface{} {
		return []interface{}{int64(3141592)}
	}))
	require.NoError(t, d.Handle(All("java.lang.System"), func(inv *Invocation) []interface{} {
		return []interface{}{"wildcard:" + inv.Method}
	}))

	original := func() []interface{} { return []interface{}{"original"} }

	got := d.Invoke(&Invocation{Owner: "java.lang.System", Method: "nanoTime"}, original)
	assert.Equal(t, []interface{}{int64(3141592)}, got)

	got = d.Invoke(&Invocation{Owner: "java.lang.System", Method: "currentTimeMillis"}, original)
	assert.Equal(t, []interface{}{"wildcard:currentTimeMillis"}, got)

	got = d.Invoke(&Invocation{Owner: "java.util.Locale", Method: "adjustLanguageCode"}, original)
	assert.Equal(t, []interface{}{"original"}, got)

	assert.Equal(t, 1, d.Calls("java.lang.System", "nanoTime"))
	assert.Equal(t, 1, d.Calls("java.util.Locale", "adjustLanguageCode"))
}

func TestDispatcher_RemoveAndReset(t *testing.T) {
	d := NewDispatcher(nil)
	ref := Ref("time", "Now")
	require.NoError(t, d.Handle(ref, func(*Invocation) []interface{} { return nil }))

	_, ok := d.Lookup("time", "Now")
	assert.True(t, ok)

	d.Remove(ref)
	_, ok = d.Lookup("time", "Now")
	assert.False(t, ok)

	d.Invoke(&Invocation{Owner: "time", Method: "Now"}, nil)
	d.Reset()
	assert.Equal(t, 0, d.Calls("time", "Now"))
}

func TestDispatcher_NilHandler(t *testing.T) {
	d := NewDispatcher(nil)
	assert.ErrorIs(t, d.Handle(Ref("time", "Now"), nil), ErrHandlerNil)
}

func TestDispatcher_ConcurrentInvoke(t *testing.T) {
	d := NewDispatcher(nil)
	require.NoError(t, d.Handle(All("time"), func(*Invocation) []interface{} { return nil }))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.Invoke(&Invocation{Owner: "time", Method: "Now"}, nil)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, d.Calls("time", "Now"))
}

func TestInvocation_Signature(t *testing.T) {
	inv := &Invocation{Owner: "java.lang.System", Method: "currentTimeMillis"}
	assert.Equal(t, "java/lang/System/currentTimeMillis", inv.Signature())
}

func TestDispatcher_RedirectReportsMissingHandler(t *testing.T) {
	d := NewDispatcher(nil)
	require.NoError(t, d.Handle(Ref("android.os.StrictMode", "trackActivity"), func(inv *Invocation) []interface{} {
		return []interface{}{inv.Args[0]}
	}))

	got, ok := d.Redirect(&Invocation{Owner: "android.os.StrictMode", Method: "trackActivity", Args: []interface{}{"tag"}})
	assert.True(t, ok)
	assert.Equal(t, []interface{}{"tag"}, got)

	got, ok = d.Redirect(&Invocation{Owner: "android.os.StrictMode", Method: "enableDefaults"})
	assert.False(t, ok)
	assert.Nil(t, got)

	assert.Equal(t, 1, d.Calls("android.os.StrictMode", "trackActivity"))
	assert.Equal(t, 1, d.Calls("android.os.StrictMode", "enableDefaults"))
}

func TestRegistry_Mentions(t *testing.T) {
	r := NewRegistry(Ref("a.A", "x"))
	assert.True(t, r.Mentions("x"))
	assert.False(t, r.Mentions("y"))

	w := r.With(All("b.B"))
	assert.True(t, w.Mentions("y"))
}

func TestDefaultRegistry_ClosesThroughIOCloser(t *testing.T) {
	r := DefaultRegistry()
	assert.True(t, r.Intercepts("io.Closer", "Close"))
	assert.True(t, r.Mentions("Close"))
	assert.False(t, r.Intercepts("io.Reader", "Read"))
}
