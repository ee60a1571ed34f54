package rewrite

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"

	"shadowbox/internal/intercept"
	"shadowbox/internal/symbol"
)

// Rewritten declarations reach the scope's dispatcher through this package,
// imported under RuntimeAlias. The sandbox provides it.
const (
	RuntimePath    = "shadowbox/redirect"
	RuntimePackage = "redirect"
	RuntimeAlias   = "_shadowbox"
)

// =============================================================================
// DECLARATION REDIRECT
// =============================================================================
// Call-site interception only sees pkg.Fn selectors. Symbols call each other by
// bare identifier, so an intercepted function declared by a symbol gets a
// prologue instead:
//
//	if _res, _ok := _shadowbox.Redirect("owner", "Fn", recv, a, b); _ok {
//		_r0, _ := _shadowbox.Result(_res, 0, *new(T0)).(T0)
//		return _r0
//	}
//
// Without a handler the prologue falls through to the original body.

// Redirect adds the dispatcher prologue to every function and method of file
// that reg intercepts on owner. Generic functions are left alone. It returns
// the redirected names, "Fn" or "Type.Method", in declaration order.
func Redirect(fset *token.FileSet, file *ast.File, owner symbol.Name, reg *intercept.Registry) []string {
	var redirected []string
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil || fn.Name.Name == "init" || fn.Name.Name == "_" {
			continue
		}
		if fn.Type.TypeParams != nil || genericReceiver(fn) {
			continue
		}
		if !reg.Intercepts(owner, fn.Name.Name) {
			continue
		}
		fn.Body.List = append([]ast.Stmt{prologue(owner, fn)}, fn.Body.List...)

		label := fn.Name.Name
		if fn.Recv != nil && len(fn.Recv.List) == 1 {
			label = receiverTypeName(fn.Recv.List[0].Type) + "." + label
		}
		redirected = append(redirected, label)
	}
	if len(redirected) > 0 {
		astutil.AddNamedImport(fset, file, RuntimeAlias, RuntimePath)
	}
	return redirected
}

func genericReceiver(fn *ast.FuncDecl) bool {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return false
	}
	t := fn.Recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	switch t.(type) {
	case *ast.IndexExpr, *ast.IndexListExpr:
		return true
	}
	return false
}

func receiverTypeName(t ast.Expr) string {
	switch t := t.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.ParenExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return "?"
}

// prologue builds the redirect statement for fn, naming any blank or unnamed
// receiver and parameters so they can be passed along.
func prologue(owner symbol.Name, fn *ast.FuncDecl) ast.Stmt {
	recv := ast.Expr(ast.NewIdent("nil"))
	if fn.Recv != nil && len(fn.Recv.List) == 1 {
		field := fn.Recv.List[0]
		if len(field.Names) == 0 || field.Names[0].Name == "_" {
			field.Names = []*ast.Ident{ast.NewIdent("_recv")}
		}
		recv = ast.NewIdent(field.Names[0].Name)
	}

	args := []ast.Expr{str(string(owner)), str(fn.Name.Name), recv}
	n := 0
	for _, field := range fn.Type.Params.List {
		if len(field.Names) == 0 {
			field.Names = []*ast.Ident{ast.NewIdent(fmt.Sprintf("_p%d", n))}
		}
		for i, id := range field.Names {
			if id.Name == "_" {
				field.Names[i] = ast.NewIdent(fmt.Sprintf("_p%d", n))
			}
			args = append(args, ast.NewIdent(field.Names[i].Name))
			n++
		}
	}

	call := &ast.CallExpr{
		Fun:  &ast.SelectorExpr{X: ast.NewIdent(RuntimeAlias), Sel: ast.NewIdent("Redirect")},
		Args: args,
	}

	var body []ast.Stmt
	var returned []ast.Expr
	i := 0
	if fn.Type.Results != nil {
		for _, field := range fn.Type.Results.List {
			count := len(field.Names)
			if count == 0 {
				count = 1
			}
			for k := 0; k < count; k++ {
				name := fmt.Sprintf("_r%d", i)
				zero := &ast.StarExpr{X: &ast.CallExpr{Fun: ast.NewIdent("new"), Args: []ast.Expr{field.Type}}}
				result := &ast.CallExpr{
					Fun:  &ast.SelectorExpr{X: ast.NewIdent(RuntimeAlias), Sel: ast.NewIdent("Result")},
					Args: []ast.Expr{ast.NewIdent("_res"), &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(i)}, zero},
				}
				body = append(body, &ast.AssignStmt{
					Lhs: []ast.Expr{ast.NewIdent(name), ast.NewIdent("_")},
					Tok: token.DEFINE,
					Rhs: []ast.Expr{&ast.TypeAssertExpr{X: result, Type: field.Type}},
				})
				returned = append(returned, ast.NewIdent(name))
				i++
			}
		}
	}
	body = append(body, &ast.ReturnStmt{Results: returned})

	res := ast.NewIdent("_res")
	if i == 0 {
		res = ast.NewIdent("_")
	}
	return &ast.IfStmt{
		Init: &ast.AssignStmt{
			Lhs: []ast.Expr{res, ast.NewIdent("_ok")},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{call},
		},
		Cond: ast.NewIdent("_ok"),
		Body: &ast.BlockStmt{List: body},
	}
}

func str(s string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}
