package symbol

// Kind is the declared kind of a symbol.
type Kind int

const (
	KindClass Kind = iota
	KindInterface
	KindAnnotation
)

func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindAnnotation:
		return "annotation"
	default:
		return "class"
	}
}

// Marker is an explicit instruction attached to a symbol's declaration.
type Marker string

const (
	// MarkerInstrument forces instrumentation, mostly for self-tests.
	MarkerInstrument Marker = "instrument"
	// MarkerDoNotInstrument forbids instrumentation and beats every other rule.
	MarkerDoNotInstrument Marker = "donotinstrument"
)

// Descriptor is a read-only snapshot of a candidate symbol. Descriptors are
// produced per lookup and dropped once the policies have been evaluated.
type Descriptor struct {
	name     Name
	kind     Kind
	markers  map[Marker]struct{}
	requires []Name
}

// NewDescriptor builds a descriptor. The marker slice is copied.
func NewDescriptor(name Name, kind Kind, markers ...Marker) Descriptor {
	m := make(map[Marker]struct{}, len(markers))
	for _, mk := range markers {
		m[mk] = struct{}{}
	}
	return Descriptor{name: name, kind: kind, markers: m}
}

func (d Descriptor) Name() Name { return d.name }

func (d Descriptor) Kind() Kind { return d.kind }

func (d Descriptor) IsInterface() bool { return d.kind == KindInterface }

func (d Descriptor) IsAnnotation() bool { return d.kind == KindAnnotation }

// Has reports whether the marker is attached.
func (d Descriptor) Has(m Marker) bool {
	_, ok := d.markers[m]
	return ok
}

func (d Descriptor) MarkerCount() int { return len(d.markers) }

// WithRequires returns a copy of d that also requires names, in order.
func (d Descriptor) WithRequires(names ...Name) Descriptor {
	d.requires = append(append([]Name(nil), d.requires...), names...)
	return d
}

// Requires lists the symbols that must be loaded before this one is defined.
func (d Descriptor) Requires() []Name {
	return append([]Name(nil), d.requires...)
}
