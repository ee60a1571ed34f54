// Package discovery describes candidate symbols from their Go source: kind and
// markers, read with go/parser before any rewriting happens.
package discovery

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"go.uber.org/zap"

	"shadowbox/internal/symbol"
)

// DirectivePrefix starts every marker comment, e.g. "//shadowbox:instrument".
const DirectivePrefix = "//shadowbox:"

// Directives understood by Describe.
const (
	DirectiveInstrument      = "instrument"
	DirectiveDoNotInstrument = "donotinstrument"
	DirectiveAnnotation      = "annotation"
	DirectiveRequires        = "requires"
)

var (
	// ErrUnknownDirective is returned for a "//shadowbox:" comment Describe does not know.
	ErrUnknownDirective = errors.New("unknown shadowbox directive")
	// ErrBadDirective is returned when a known directive has the wrong arguments.
	ErrBadDirective = errors.New("malformed shadowbox directive")
)

// Directive is one parsed "//shadowbox:" comment. Only requires takes
// arguments: the symbols whose code the file calls, e.g.
// "//shadowbox:requires android.view.View android.os.Looper".
type Directive struct {
	Verb string
	Args []string
}

// Parser describes Go source files. The zero value is usable.
type Parser struct {
	logger *zap.Logger
}

// New returns a parser that logs at debug level. logger may be nil.
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Describe parses code and returns the descriptor for name. A type named after
// name's identifier that is an interface makes the symbol an interface.
func (p *Parser) Describe(name symbol.Name, code []byte) (symbol.Descriptor, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name.Path(), code, parser.ParseComments)
	if err != nil {
		return symbol.Descriptor{}, fmt.Errorf("parse %s: %w", name, err)
	}

	directives, err := Directives(file)
	if err != nil {
		return symbol.Descriptor{}, fmt.Errorf("%s: %w", name, err)
	}

	kind := symbol.KindClass
	var markers []symbol.Marker
	var requires []symbol.Name
	verbs := make([]string, 0, len(directives))
	for _, d := range directives {
		verbs = append(verbs, d.Verb)
		switch d.Verb {
		case DirectiveInstrument:
			markers = append(markers, symbol.MarkerInstrument)
		case DirectiveDoNotInstrument:
			markers = append(markers, symbol.MarkerDoNotInstrument)
		case DirectiveAnnotation:
			kind = symbol.KindAnnotation
		case DirectiveRequires:
			for _, arg := range d.Args {
				requires = append(requires, symbol.Name(arg))
			}
		}
	}
	if kind == symbol.KindClass && declaresInterface(file, name.Ident()) {
		kind = symbol.KindInterface
	}

	if p.logger != nil {
		p.logger.Debug("Described symbol",
			zap.String("name", string(name)),
			zap.Stringer("kind", kind),
			zap.Strings("directives", verbs),
			zap.Int("requires", len(requires)))
	}
	return symbol.NewDescriptor(name, kind, markers...).WithRequires(requires...), nil
}

// Describe uses a parser without logging.
func Describe(name symbol.Name, code []byte) (symbol.Descriptor, error) {
	return (&Parser{}).Describe(name, code)
}

// Directives returns the shadowbox directives found in any comment of file, in
// source order. Repeated flags collapse into one; every requires directive is
// merged into the first, without duplicate names.
func Directives(file *ast.File) ([]Directive, error) {
	var out []Directive
	seen := make(map[string]int)
	required := make(map[string]bool)
	for _, group := range file.Comments {
		for _, c := range group.List {
			if !strings.HasPrefix(c.Text, DirectivePrefix) {
				continue
			}
			fields := strings.Fields(strings.TrimPrefix(c.Text, DirectivePrefix))
			if len(fields) == 0 {
				return nil, fmt.Errorf("%w: %q", ErrUnknownDirective, "")
			}
			verb, args := fields[0], fields[1:]
			switch verb {
			case DirectiveInstrument, DirectiveDoNotInstrument, DirectiveAnnotation:
				if len(args) > 0 {
					return nil, fmt.Errorf("%w: %s takes no arguments", ErrBadDirective, verb)
				}
			case DirectiveRequires:
				if len(args) == 0 {
					return nil, fmt.Errorf("%w: %s needs at least one symbol", ErrBadDirective, verb)
				}
				for _, arg := range args {
					if !symbol.Name(arg).Valid() {
						return nil, fmt.Errorf("%w: %s %q is not a symbol name", ErrBadDirective, verb, arg)
					}
				}
			default:
				return nil, fmt.Errorf("%w: %q", ErrUnknownDirective, verb)
			}

			i, ok := seen[verb]
			if !ok {
				i = len(out)
				seen[verb] = i
				out = append(out, Directive{Verb: verb})
			}
			for _, arg := range args {
				if !required[arg] {
					required[arg] = true
					out[i].Args = append(out[i].Args, arg)
				}
			}
		}
	}
	return out, nil
}

func declaresInterface(file *ast.File, ident string) bool {
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok || ts.Name.Name != ident {
				continue
			}
			_, isInterface := ts.Type.(*ast.InterfaceType)
			return isInterface
		}
	}
	return false
}
