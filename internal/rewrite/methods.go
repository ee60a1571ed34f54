package rewrite

import (
	"go/ast"
	"go/importer"
	"go/token"
	"go/types"
	"sort"
	"sync"

	"golang.org/x/tools/go/ast/astutil"

	"shadowbox/internal/intercept"
	"shadowbox/internal/symbol"
)

// =============================================================================
// METHOD CALL INTERCEPTION
// =============================================================================
// A method call x.M(args) on a standard library type T that the registry
// intercepts as "pkg.T".M becomes a call of the shadow wrapper with the
// receiver first:
//
//	_icpt_pkg.T_M(x, args)
//
// Finding T needs types, so the file is checked against the standard library
// sources. Identifiers of other symbols stay unresolved; the checker keeps
// going and only calls whose receiver type it resolved are rewritten.

// MethodExport is the shadow package name of the wrapper for typeName.method.
func MethodExport(typeName, method string) string { return typeName + "_" + method }

// The source importer caches packages and is not safe for concurrent use.
var (
	checkMu       sync.Mutex
	checkFset     = token.NewFileSet()
	checkImporter = importer.ForCompiler(checkFset, "source", nil)
)

// InterceptMethods rewrites calls of intercepted methods declared on types of
// other packages. It must run before Intercept, which changes imports. It
// returns the rewritten targets, "path.Type.Method", sorted.
func InterceptMethods(fset *token.FileSet, file *ast.File, reg *intercept.Registry) []string {
	if !hasMethodCandidates(file, reg) {
		return nil
	}
	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
	conf := types.Config{Importer: checkImporter, Error: func(error) {}}
	checkMu.Lock()
	_, _ = conf.Check("main", fset, []*ast.File{file}, info)
	checkMu.Unlock()

	touched := make(map[string]bool)
	var sites []string
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		s, ok := info.Selections[sel]
		if !ok || s.Kind() != types.MethodVal || len(s.Index()) != 1 {
			return true
		}
		target, ok := interceptedMethod(s, reg)
		if !ok {
			return true
		}
		call.Fun = &ast.SelectorExpr{
			X:   &ast.Ident{NamePos: sel.Pos(), Name: ShadowAlias(target.path)},
			Sel: ast.NewIdent(MethodExport(target.typeName, sel.Sel.Name)),
		}
		call.Args = append([]ast.Expr{receiverArg(sel.X, s, target.pointer)}, call.Args...)
		touched[target.path] = true
		sites = append(sites, target.path+"."+target.typeName+"."+sel.Sel.Name)
		return true
	})

	paths := make([]string, 0, len(touched))
	for p := range touched {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, path := range paths {
		astutil.AddNamedImport(fset, file, ShadowAlias(path), ShadowPath(path))
	}
	sort.Strings(sites)
	return sites
}

// hasMethodCandidates skips the type check for files without a call the
// registry could care about.
func hasMethodCandidates(file *ast.File, reg *intercept.Registry) bool {
	imports := importNames(file)
	found := false
	ast.Inspect(file, func(n ast.Node) bool {
		if found {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || !reg.Mentions(sel.Sel.Name) {
			return true
		}
		if x, ok := sel.X.(*ast.Ident); ok && x.Obj == nil {
			if _, isPkg := imports[x.Name]; isPkg {
				return true
			}
		}
		found = true
		return false
	})
	return found
}

type methodTarget struct {
	path     string
	typeName string
	pointer  bool
}

// interceptedMethod resolves the type declaring s's method. Methods of generic
// types, of main and of the universe are not intercepted.
func interceptedMethod(s *types.Selection, reg *intercept.Registry) (methodTarget, bool) {
	fn, ok := s.Obj().(*types.Func)
	if !ok {
		return methodTarget{}, false
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return methodTarget{}, false
	}
	recv := sig.Recv().Type()
	ptr, pointer := recv.(*types.Pointer)
	if pointer {
		recv = ptr.Elem()
	}
	named, ok := recv.(*types.Named)
	if !ok || named.TypeParams().Len() > 0 {
		return methodTarget{}, false
	}
	obj := named.Obj()
	if obj.Pkg() == nil || obj.Pkg().Path() == "main" || !obj.Exported() {
		return methodTarget{}, false
	}

	path := obj.Pkg().Path()
	owner := symbol.Name(string(symbol.FromImportPath(path)) + "." + obj.Name())
	if !reg.Intercepts(owner, fn.Name()) {
		return methodTarget{}, false
	}
	return methodTarget{path: path, typeName: obj.Name(), pointer: pointer}, true
}

// receiverArg turns x into the explicit receiver the wrapper takes: &x for a
// pointer method on an addressable value, *x for a value method through a
// pointer.
func receiverArg(x ast.Expr, s *types.Selection, pointer bool) ast.Expr {
	if types.IsInterface(s.Recv()) {
		return x
	}
	_, isPtr := s.Recv().Underlying().(*types.Pointer)
	switch {
	case pointer && !isPtr:
		return &ast.UnaryExpr{Op: token.AND, X: paren(x)}
	case !pointer && isPtr:
		return &ast.StarExpr{X: paren(x)}
	}
	return x
}

func paren(x ast.Expr) ast.Expr {
	switch x.(type) {
	case *ast.Ident, *ast.SelectorExpr, *ast.IndexExpr, *ast.CallExpr, *ast.ParenExpr:
		return x
	}
	return &ast.ParenExpr{X: x}
}
