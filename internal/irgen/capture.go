package irgen

import "github.com/tallowlang/lox/internal/ast"

// Capture analysis: a pre-emission pass over the AST that decides which
// locals must live in heap cells because some nested function reads or
// writes them (spec.md §4.7 "Captured variables").
//
// Grounded on original_source/src/codegen/capture.rs, adapted from
// scope-keyed-by-name to scope-keyed-by-*ast.FunDecl, since Lox permits
// two sibling nested functions to share a name (capture.rs's reference
// prototype did not need to handle that because it had no function
// support yet).

// FuncKey identifies a function scope for capture bookkeeping. A nil
// FuncKey means top level (the implicit script "function").
type FuncKey = *ast.FunDecl

// CapturedVar names a local that must be promoted to a cell.
type CapturedVar struct {
	Name  string
	Owner FuncKey
}

// CaptureInfo is the result of analyzeCaptures: which locals need cells, and
// which outer names each function must receive in its environment
// array, in the order they appear there.
type CaptureInfo struct {
	Captured map[CapturedVar]bool
	Captures map[FuncKey][]string
}

func (ci *CaptureInfo) isCaptured(name string, owner FuncKey) bool {
	return ci.Captured[CapturedVar{Name: name, Owner: owner}]
}

func (ci *CaptureInfo) envOf(fn FuncKey) []string {
	return ci.Captures[fn]
}

type captureScope struct {
	fn   FuncKey
	vars map[string]bool
}

type captureAnalyzer struct {
	scopes []captureScope
	info   CaptureInfo
}

// analyzeCaptures walks program and reports, for every function
// (including the top-level script, keyed nil), which enclosing-scope
// locals it reaches across a function boundary.
func analyzeCaptures(program []ast.Decl) *CaptureInfo {
	a := &captureAnalyzer{
		scopes: []captureScope{{fn: nil, vars: map[string]bool{}}},
		info: CaptureInfo{
			Captured: map[CapturedVar]bool{},
			Captures: map[FuncKey][]string{},
		},
	}
	for _, d := range program {
		a.decl(d)
	}
	return &a.info
}

func (a *captureAnalyzer) current() *captureScope {
	return &a.scopes[len(a.scopes)-1]
}

func (a *captureAnalyzer) declare(name string) {
	a.current().vars[name] = true
}

func (a *captureAnalyzer) reference(name string) {
	currentFn := a.current().fn
	for i := len(a.scopes) - 1; i >= 0; i-- {
		scope := a.scopes[i]
		if !scope.vars[name] {
			continue
		}
		if scope.fn == nil {
			return // top-level locals are globals, never captured
		}
		if scope.fn != currentFn {
			cv := CapturedVar{Name: name, Owner: scope.fn}
			a.info.Captured[cv] = true
			appendUnique(&a.info.Captures, currentFn, name)
			// Intermediate functions between the declaring scope and the
			// current one must also thread the name through their env.
			for j := i + 1; j < len(a.scopes)-1; j++ {
				appendUnique(&a.info.Captures, a.scopes[j].fn, name)
			}
		}
		return
	}
}

func appendUnique(m *map[FuncKey][]string, fn FuncKey, name string) {
	for _, n := range (*m)[fn] {
		if n == name {
			return
		}
	}
	(*m)[fn] = append((*m)[fn], name)
}

func (a *captureAnalyzer) decl(d ast.Decl) {
	switch n := d.(type) {
	case *ast.VarDecl:
		if n.Init != nil {
			a.expr(n.Init)
		}
		a.declare(n.Name)
	case *ast.FunDecl:
		a.declare(n.Name)
		a.function(n)
	case *ast.ClassDecl:
		a.declare(n.Name)
		if n.Superclass != nil {
			a.reference(n.Superclass.Name)
		}
		for _, m := range n.Methods {
			a.function(m)
		}
	case *ast.StmtDecl:
		a.stmt(n.Stmt)
	}
}

func (a *captureAnalyzer) function(fn *ast.FunDecl) {
	a.scopes = append(a.scopes, captureScope{fn: fn, vars: map[string]bool{}})
	for _, p := range fn.Params {
		a.declare(p.Name)
	}
	for _, d := range fn.Body {
		a.decl(d)
	}
	a.scopes = a.scopes[:len(a.scopes)-1]
}

func (a *captureAnalyzer) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		a.expr(n.Expr)
	case *ast.PrintStmt:
		a.expr(n.Expr)
	case *ast.ReturnStmt:
		if n.Value != nil {
			a.expr(n.Value)
		}
	case *ast.BlockStmt:
		for _, d := range n.Decls {
			a.decl(d)
		}
	case *ast.IfStmt:
		a.expr(n.Cond)
		a.stmt(n.Then)
		if n.Else != nil {
			a.stmt(n.Else)
		}
	case *ast.WhileStmt:
		a.expr(n.Cond)
		a.stmt(n.Body)
	}
}

func (a *captureAnalyzer) expr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Variable:
		a.reference(n.Name)
	case *ast.Assign:
		a.expr(n.Value)
		a.reference(n.Name)
	case *ast.Binary:
		a.expr(n.Left)
		a.expr(n.Right)
	case *ast.Unary:
		a.expr(n.Operand)
	case *ast.Logical:
		a.expr(n.Left)
		a.expr(n.Right)
	case *ast.Call:
		a.expr(n.Callee)
		for _, arg := range n.Args {
			a.expr(arg)
		}
	case *ast.Grouping:
		a.expr(n.Inner)
	case *ast.Get:
		a.expr(n.Object)
	case *ast.Set:
		a.expr(n.Value)
		a.expr(n.Object)
	case *ast.Literal, *ast.This, *ast.Super:
		// no free variables
	}
}
