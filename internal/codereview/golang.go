package codereview

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
)

func analyzeGo(src *Source) (*Structure, error) {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, src.Path, src.Text, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	st := &Structure{TypeLabel: "Types"}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			fn := Function{
				Name:       funcName(d),
				Line:       fset.Position(d.Pos()).Line,
				EndLine:    fset.Position(d.End()).Line,
				Complexity: 1 + decisionPoints(d.Body),
				Exported:   d.Name.IsExported(),
				Documented: d.Doc != nil,
			}
			st.Functions = append(st.Functions, fn)

			if fn.Exported && !fn.Documented {
				st.Issues = append(st.Issues, Issue{
					Line:        fn.Line,
					Severity:    Minor,
					Title:       "Missing doc comment",
					Description: fmt.Sprintf("Exported function '%s' has no doc comment", fn.Name),
				})
			}
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}

			for _, spec := range d.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					st.Types = append(st.Types, ts.Name.Name)
				}
			}
		}
	}

	ast.Inspect(file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.IfStmt:
			st.ControlFlow++

			if isErrCheck(n.Cond) && len(n.Body.List) == 0 {
				st.Issues = append(st.Issues, Issue{
					Line:        fset.Position(n.Pos()).Line,
					Severity:    Major,
					Title:       "Empty error check",
					Description: "The error is checked but never handled",
				})
			}
		case *ast.ForStmt, *ast.RangeStmt, *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
			st.ControlFlow++
		}

		return true
	})

	return st, nil
}

// funcName renders methods as "Type.Method".
func funcName(d *ast.FuncDecl) string {
	if d.Recv == nil || len(d.Recv.List) == 0 {
		return d.Name.Name
	}

	expr := d.Recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}

	switch t := expr.(type) {
	case *ast.IndexExpr:
		expr = t.X
	case *ast.IndexListExpr:
		expr = t.X
	}

	if id, ok := expr.(*ast.Ident); ok {
		return id.Name + "." + d.Name.Name
	}

	return d.Name.Name
}

// decisionPoints counts branches: conditionals, loops, non-default cases and
// short-circuit operators.
func decisionPoints(body *ast.BlockStmt) int {
	if body == nil {
		return 0
	}

	n := 0

	ast.Inspect(body, func(node ast.Node) bool {
		switch x := node.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt:
			n++
		case *ast.CaseClause:
			if x.List != nil {
				n++
			}
		case *ast.CommClause:
			if x.Comm != nil {
				n++
			}
		case *ast.BinaryExpr:
			if x.Op == token.LAND || x.Op == token.LOR {
				n++
			}
		}

		return true
	})

	return n
}

// isErrCheck matches "err != nil" and "nil != err".
func isErrCheck(cond ast.Expr) bool {
	be, ok := cond.(*ast.BinaryExpr)
	if !ok || be.Op != token.NEQ {
		return false
	}

	return (isIdent(be.X, "err") && isIdent(be.Y, "nil")) || (isIdent(be.X, "nil") && isIdent(be.Y, "err"))
}

func isIdent(e ast.Expr, name string) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == name
}
