package discovery

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shadowbox/internal/symbol"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		sym     symbol.Name
		src     string
		kind    symbol.Kind
		markers []symbol.Marker
	}{
		{
			name: "plain class",
			sym:  "android.view.View",
			src:  "package main\n\ntype View struct{}\n",
			kind: symbol.KindClass,
		},
		{
			name:    "forced instrument",
			sym:     "com.example.Clock",
			src:     "//shadowbox:instrument\npackage main\n\nfunc Nano() int64 { return 0 }\n",
			kind:    symbol.KindClass,
			markers: []symbol.Marker{symbol.MarkerInstrument},
		},
		{
			name:    "do not instrument",
			sym:     "android.view.Plain",
			src:     "package main\n\n//shadowbox:donotinstrument\ntype Plain struct{}\n",
			kind:    symbol.KindClass,
			markers: []symbol.Marker{symbol.MarkerDoNotInstrument},
		},
		{
			name: "interface",
			sym:  "android.view.Callback",
			src:  "package main\n\ntype Callback interface{ Call() }\n",
			kind: symbol.KindInterface,
		},
		{
			name: "other interface does not count",
			sym:  "android.view.Holder",
			src:  "package main\n\ntype Callback interface{ Call() }\ntype Holder struct{}\n",
			kind: symbol.KindClass,
		},
		{
			name: "nested interface",
			sym:  "android.view.View$OnClickListener",
			src:  "package main\n\ntype View_OnClickListener interface{ OnClick() }\n",
			kind: symbol.KindInterface,
		},
		{
			name: "annotation",
			sym:  "org.robolectric.annotation.Marker",
			src:  "//shadowbox:annotation\npackage main\n",
			kind: symbol.KindAnnotation,
		},
	}

	p := New(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := p.Describe(tt.sym, []byte(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.sym, d.Name())
			assert.Equal(t, tt.kind, d.Kind())
			assert.Equal(t, len(tt.markers), d.MarkerCount())
			for _, m := range tt.markers {
				assert.True(t, d.Has(m), "marker %s", m)
			}
		})
	}
}

func TestDescribe_BothMarkers(t *testing.T) {
	src := "//shadowbox:instrument\n//shadowbox:donotinstrument\n//shadowbox:instrument\npackage main\n"
	d, err := Describe("a.B", []byte(src))
	require.NoError(t, err)
	assert.True(t, d.Has(symbol.MarkerInstrument))
	assert.True(t, d.Has(symbol.MarkerDoNotInstrument))
	assert.Equal(t, 2, d.MarkerCount())
}

func TestDescribe_Errors(t *testing.T) {
	_, err := Describe("a.B", []byte("not go at all"))
	assert.Error(t, err)

	_, err = Describe("a.B", []byte("//shadowbox:teleport\npackage main\n"))
	assert.ErrorIs(t, err, ErrUnknownDirective)
}

func TestDescribe_IgnoresOrdinaryComments(t *testing.T) {
	src := "// shadowbox:instrument is not a directive with a space\npackage main\n"
	d, err := Describe("a.B", []byte(src))
	require.NoError(t, err)
	assert.Zero(t, d.MarkerCount())
}

func TestDescribe_Requires(t *testing.T) {
	src := "//shadowbox:requires android.view.View android.os.Looper\n" +
		"//shadowbox:requires android.view.View android.view.View$OnClickListener\n" +
		"package main\n\nfunc Run() string { return ViewName() }\n"
	d, err := Describe("com.example.ViewTest", []byte(src))
	require.NoError(t, err)

	want := []symbol.Name{"android.view.View", "android.os.Looper", "android.view.View$OnClickListener"}
	if diff := cmp.Diff(want, d.Requires()); diff != "" {
		t.Errorf("Requires mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, symbol.KindClass, d.Kind())
	assert.Zero(t, d.MarkerCount())
}

func TestDirectives_Malformed(t *testing.T) {
	for _, src := range []string{
		"//shadowbox:requires\npackage main\n",
		"//shadowbox:requires a..b\npackage main\n",
		"//shadowbox:instrument now\npackage main\n",
	} {
		_, err := Describe("a.B", []byte(src))
		assert.ErrorIs(t, err, ErrBadDirective, src)
	}

	_, err := Describe("a.B", []byte("//shadowbox:\npackage main\n"))
	assert.ErrorIs(t, err, ErrUnknownDirective)
}
