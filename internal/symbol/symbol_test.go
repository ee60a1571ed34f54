package symbol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestName_Parts(t *testing.T) {
	tests := []struct {
		name   Name
		pkg    string
		simple string
		outer  Name
	}{
		{"android.view.View", "android.view", "View", "android.view.View"},
		{"android.R$styleable", "android", "R$styleable", "android.R"},
		{"Bare", "", "Bare", "Bare"},
		{"a.b.Outer$Inner$Deep", "a.b", "Outer$Inner$Deep", "a.b.Outer"},
	}
	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			assert.Equal(t, tt.pkg, tt.name.Package())
			assert.Equal(t, tt.simple, tt.name.SimpleName())
			assert.Equal(t, tt.outer, tt.name.Outer())
		})
	}
}

func TestName_Path(t *testing.T) {
	assert.Equal(t, "android/view/View.go", Name("android.view.View").Path())
	assert.Equal(t, "android/R$styleable.go", Name("android.R$styleable").Path())
}

func TestName_Ident(t *testing.T) {
	assert.Equal(t, "View", Name("android.view.View").Ident())
	assert.Equal(t, "R_styleable", Name("android.R$styleable").Ident())
}

func TestName_Valid(t *testing.T) {
	assert.True(t, Name("a.b.C").Valid())
	assert.False(t, Name("").Valid())
	assert.False(t, Name("a..C").Valid())
	assert.False(t, Name("a.b.").Valid())
}

func TestFromImportPath(t *testing.T) {
	assert.Equal(t, Name("math.rand"), FromImportPath("math/rand"))
	assert.Equal(t, Name("time"), FromImportPath("time"))
}

func TestSet(t *testing.T) {
	s := NewSet("b.B", "a.A")
	assert.True(t, s.Contains("a.A"))
	assert.False(t, s.Contains("c.C"))

	u := s.Union("c.C")
	if diff := cmp.Diff([]Name{"a.A", "b.B", "c.C"}, u.Members()); diff != "" {
		t.Errorf("Union members mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, s.Len(), "Union must not mutate the receiver")
}

func TestDescriptor(t *testing.T) {
	d := NewDescriptor("android.view.View", KindClass, MarkerInstrument)
	assert.True(t, d.Has(MarkerInstrument))
	assert.False(t, d.Has(MarkerDoNotInstrument))
	assert.False(t, d.IsInterface())
	assert.Equal(t, "class", d.Kind().String())

	i := NewDescriptor("android.view.Callback", KindInterface)
	assert.True(t, i.IsInterface())
	assert.Equal(t, 0, i.MarkerCount())
}

func TestDescriptor_Requires(t *testing.T) {
	d := NewDescriptor("com.example.ViewTest", KindClass)
	assert.Empty(t, d.Requires())

	r := d.WithRequires("android.view.View", "android.os.StrictMode")
	assert.Empty(t, d.Requires(), "WithRequires must not mutate the receiver")
	if diff := cmp.Diff([]Name{"android.view.View", "android.os.StrictMode"}, r.Requires()); diff != "" {
		t.Errorf("Requires mismatch (-want +got):\n%s", diff)
	}

	got := r.Requires()
	got[0] = "mutated"
	assert.Equal(t, Name("android.view.View"), r.Requires()[0])
}
