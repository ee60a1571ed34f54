// Package rewrite is the instrumenting transform. It rewrites Go source so that
// calls to intercepted functions and methods go through a per-scope shadow
// package, or, in stub mode, replaces every function body with a zero-value
// return. Intercepted functions the symbol declares itself are redirected to
// the scope's dispatcher at their declaration.
package rewrite

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/tools/go/ast/astutil"

	"shadowbox/internal/intercept"
	"shadowbox/internal/loader"
	"shadowbox/internal/symbol"
)

// ShadowRoot prefixes the import path of every shadow package:
// "time" is shadowed by "intercepted/time".
const ShadowRoot = "intercepted/"

// ShadowPath returns the shadow import path for importPath.
func ShadowPath(importPath string) string { return ShadowRoot + importPath }

// ShadowAlias returns the local name rewritten code uses for the shadow of
// importPath.
func ShadowAlias(importPath string) string {
	r := strings.NewReplacer("/", "_", ".", "_", "-", "_")
	return "_icpt_" + r.Replace(importPath)
}

// Transformer implements loader.Transform for Go source.
type Transformer struct {
	logger *zap.Logger
}

// New returns a transformer. logger may be nil.
func New(logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{logger: logger}
}

var _ loader.Transform = (*Transformer)(nil)

// Rewrite applies stub mode or call interception to req.Code, then redirects
// the intercepted functions the symbol declares itself, and returns the
// formatted result.
func (t *Transformer) Rewrite(req loader.RewriteRequest) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, req.Name.Path(), req.Code, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	reg := req.Registry
	if reg == nil {
		reg = intercept.DefaultRegistry()
	}

	if req.Stubs {
		n := Stub(fset, file)
		t.logger.Debug("Stubbed symbol", zap.String("name", string(req.Name)), zap.Int("bodies", n))
	} else {
		methods := InterceptMethods(fset, file, reg)
		sites := Intercept(fset, file, reg)
		t.logger.Debug("Intercepted call sites",
			zap.String("name", string(req.Name)),
			zap.Int("sites", len(sites)+len(methods)),
			zap.Strings("targets", sites),
			zap.Strings("methods", methods))
	}
	if redirected := Redirect(fset, file, req.Name, reg); len(redirected) > 0 {
		t.logger.Debug("Redirected declarations",
			zap.String("name", string(req.Name)),
			zap.Strings("functions", redirected))
	}

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// CALL INTERCEPTION
// =============================================================================

// Intercept re-qualifies every selector pkg.Fn the registry intercepts onto
// the shadow package of pkg. Imports left unused are removed and the shadow
// imports added. It returns the rewritten targets, "path.Fn", sorted.
func Intercept(fset *token.FileSet, file *ast.File, reg *intercept.Registry) []string {
	imports := importNames(file)
	touched := make(map[string]bool)
	var sites []string

	astutil.Apply(file, func(c *astutil.Cursor) bool {
		sel, ok := c.Node().(*ast.SelectorExpr)
		if !ok {
			return true
		}
		x, ok := sel.X.(*ast.Ident)
		// A resolved object means a local variable shadows the package name.
		if !ok || x.Obj != nil {
			return true
		}
		path, ok := imports[x.Name]
		if !ok {
			return true
		}
		if !reg.Intercepts(symbol.FromImportPath(path), sel.Sel.Name) {
			return true
		}
		c.Replace(&ast.SelectorExpr{
			X:   &ast.Ident{NamePos: x.NamePos, Name: ShadowAlias(path)},
			Sel: sel.Sel,
		})
		touched[path] = true
		sites = append(sites, path+"."+sel.Sel.Name)
		return false
	}, nil)

	paths := make([]string, 0, len(touched))
	for p := range touched {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if !astutil.UsesImport(file, path) {
			deleteImport(fset, file, path)
		}
		astutil.AddNamedImport(fset, file, ShadowAlias(path), ShadowPath(path))
	}
	sort.Strings(sites)
	return sites
}

// importNames maps the local name of every ordinary import to its path.
// Dot and blank imports are skipped.
func importNames(file *ast.File) map[string]string {
	out := make(map[string]string)
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := path[strings.LastIndex(path, "/")+1:]
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		out[name] = path
	}
	return out
}

func deleteImport(fset *token.FileSet, file *ast.File, path string) {
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil || p != path {
			continue
		}
		if spec.Name != nil {
			astutil.DeleteNamedImport(fset, file, spec.Name.Name, path)
			return
		}
		astutil.DeleteImport(fset, file, path)
		return
	}
}

// =============================================================================
// STUB MODE
// =============================================================================

// Stub replaces the body of every function and method in file with a single
// return of zero values, then drops the imports nothing references anymore.
// It returns the number of bodies replaced.
func Stub(fset *token.FileSet, file *ast.File) int {
	n := 0
	var dropped []*ast.BlockStmt
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		dropped = append(dropped, fn.Body)
		fn.Body = &ast.BlockStmt{
			Lbrace: fn.Body.Lbrace,
			List:   stubBody(fn.Type.Results),
			Rbrace: fn.Body.Rbrace,
		}
		n++
	}
	file.Comments = commentsOutside(file.Comments, dropped)
	for path := range importPaths(file) {
		if !astutil.UsesImport(file, path) {
			deleteImport(fset, file, path)
		}
	}
	return n
}

func commentsOutside(groups []*ast.CommentGroup, bodies []*ast.BlockStmt) []*ast.CommentGroup {
	kept := groups[:0]
	for _, g := range groups {
		inside := false
		for _, b := range bodies {
			if g.Pos() > b.Lbrace && g.End() <= b.Rbrace {
				inside = true
				break
			}
		}
		if !inside {
			kept = append(kept, g)
		}
	}
	return kept
}

func importPaths(file *ast.File) map[string]bool {
	out := make(map[string]bool)
	for _, spec := range file.Imports {
		if p, err := strconv.Unquote(spec.Path.Value); err == nil {
			out[p] = true
		}
	}
	return out
}

func stubBody(results *ast.FieldList) []ast.Stmt {
	if results == nil || len(results.List) == 0 {
		return nil
	}
	var values []ast.Expr
	for _, field := range results.List {
		count := len(field.Names)
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			values = append(values, ZeroValue(field.Type))
		}
	}
	return []ast.Stmt{&ast.ReturnStmt{Results: values}}
}

// ZeroValue returns an expression evaluating to the zero value of the type
// expression typ.
func ZeroValue(typ ast.Expr) ast.Expr {
	switch t := typ.(type) {
	case *ast.Ident:
		switch t.Name {
		case "bool":
			return ast.NewIdent("false")
		case "string":
			return &ast.BasicLit{Kind: token.STRING, Value: `""`}
		case "int", "int8", "int16", "int32", "int64",
			"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
			"byte", "rune", "float32", "float64", "complex64", "complex128":
			return &ast.BasicLit{Kind: token.INT, Value: "0"}
		case "error", "any":
			return ast.NewIdent("nil")
		}
	case *ast.StarExpr, *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.InterfaceType:
		return ast.NewIdent("nil")
	case *ast.ArrayType:
		if t.Len == nil {
			return ast.NewIdent("nil")
		}
	case *ast.ParenExpr:
		return ZeroValue(t.X)
	}
	// *new(T) is the zero value of any type, named or composite.
	return &ast.StarExpr{X: &ast.CallExpr{Fun: ast.NewIdent("new"), Args: []ast.Expr{typ}}}
}
