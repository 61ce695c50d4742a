// Package resolve implements the two-pass scope-stack walk from spec §4.3:
// it binds every variable reference and assignment to a lexical scope
// depth (or leaves it unresolved, meaning "look up as a global"), and
// enforces the semantic rules that make `this`, `super`, `return`, and
// class inheritance well-formed. It mutates no tree — its only outputs
// are a resolution map and a diagnostic report.
//
// Grounded on the teacher's compiler/semantic.go SemanticAnalyzer shape
// (an enclosing-context stack plus a flat error list accumulated across
// the whole walk) adapted to emit span-anchored diag.Diagnostics and a
// resolution map instead of analyzer-internal symbol tables.
package resolve

import (
	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/diag"
)

// Map is the expression-id → scope-depth resolution produced by Resolve.
// Depth 0 means the innermost scope at the use site; a missing entry
// means "global — look up by name at runtime" (spec §3.4).
type Map map[ast.ExprID]int

type funcKind int

const (
	fkNone funcKind = iota
	fkFunction
	fkMethod
	fkInitializer
)

type classKind int

const (
	ckNone classKind = iota
	ckClass
	ckSubclass
)

// Resolver walks a parsed program and builds its resolution map.
type Resolver struct {
	scopes []map[string]bool
	result Map

	currentFunc  funcKind
	currentClass classKind

	report diag.Report
}

// Resolve runs the resolver over program and returns the resolution map
// plus any semantic errors found.
func Resolve(program []ast.Decl, file string) (Map, diag.Report) {
	r := &Resolver{result: make(Map)}
	r.report.File = file
	r.decls(program)
	return r.result, r.report
}

// ---------------------------------------------------------------------------
// Scope stack
// ---------------------------------------------------------------------------

func (r *Resolver) beginScope() {
	r.scopes = append(r.scopes, map[string]bool{})
}

func (r *Resolver) endScope() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

// declare inserts name into the innermost scope with readiness false. At
// the top level (no enclosing scope) this is a no-op — globals may be
// redeclared freely (spec §4.3).
func (r *Resolver) declare(name string, span diag.Span) {
	if len(r.scopes) == 0 {
		return
	}
	scope := r.scopes[len(r.scopes)-1]
	if _, ok := scope[name]; ok {
		r.report.Add(diag.Resolve, span, "Already a variable named '%s' in this scope.", name)
	}
	scope[name] = false
}

func (r *Resolver) define(name string) {
	if len(r.scopes) == 0 {
		return
	}
	r.scopes[len(r.scopes)-1][name] = true
}

// resolveUse records a read/assignment-target use of name at the
// innermost scope that declares it. checkReadiness additionally flags a
// read of a not-yet-defined local (spec §4.3's `var x = x;` check);
// assignment targets skip this check.
func (r *Resolver) resolveUse(id ast.ExprID, name string, span diag.Span, checkReadiness bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		ready, ok := r.scopes[i][name]
		if !ok {
			continue
		}
		if checkReadiness && !ready {
			r.report.Add(diag.Resolve, span, "Can't read local variable '%s' in its own initializer.", name)
		}
		r.result[id] = len(r.scopes) - 1 - i
		return
	}
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (r *Resolver) decls(ds []ast.Decl) {
	for _, d := range ds {
		r.decl(d)
	}
}

func (r *Resolver) decl(d ast.Decl) {
	switch n := d.(type) {
	case *ast.ClassDecl:
		r.classDecl(n)
	case *ast.FunDecl:
		r.declare(n.Name, n.SpanVal)
		r.define(n.Name)
		r.function(n, fkFunction)
	case *ast.VarDecl:
		r.declare(n.Name, n.SpanVal)
		if n.Init != nil {
			r.expr(n.Init)
		}
		r.define(n.Name)
	case *ast.StmtDecl:
		r.stmt(n.Stmt)
	}
}

func (r *Resolver) classDecl(n *ast.ClassDecl) {
	r.declare(n.Name, n.NameSpan)
	r.define(n.Name)

	enclosingClass := r.currentClass
	r.currentClass = ckClass

	if n.Superclass != nil {
		if n.Superclass.Name == n.Name {
			r.report.Add(diag.Resolve, n.Superclass.Span(), "A class can't inherit from itself.")
		}
		r.currentClass = ckSubclass
		r.expr(n.Superclass)

		r.beginScope()
		r.scopes[len(r.scopes)-1]["super"] = true
	}

	r.beginScope()
	r.scopes[len(r.scopes)-1]["this"] = true

	for _, m := range n.Methods {
		kind := fkMethod
		if m.Name == "init" {
			kind = fkInitializer
		}
		r.function(m, kind)
	}

	r.endScope() // this

	if n.Superclass != nil {
		r.endScope() // super
	}

	r.currentClass = enclosingClass
}

// function resolves a function or method body. Per spec §4.3, parameters
// and the body share a single scope — no extra block scope is pushed for
// the body itself.
func (r *Resolver) function(n *ast.FunDecl, kind funcKind) {
	enclosingFunc := r.currentFunc
	r.currentFunc = kind

	r.beginScope()
	for _, p := range n.Params {
		r.declare(p.Name, p.Span)
		r.define(p.Name)
	}
	r.decls(n.Body)
	r.endScope()

	r.currentFunc = enclosingFunc
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (r *Resolver) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		r.expr(n.Expr)
	case *ast.PrintStmt:
		r.expr(n.Expr)
	case *ast.ReturnStmt:
		if r.currentFunc == fkNone {
			r.report.Add(diag.Resolve, n.SpanVal, "Can't return from top-level code.")
		}
		if n.Value != nil {
			if r.currentFunc == fkInitializer {
				r.report.Add(diag.Resolve, n.Value.Span(), "Can't return a value from an initializer.")
			}
			r.expr(n.Value)
		}
	case *ast.BlockStmt:
		r.beginScope()
		r.decls(n.Decls)
		r.endScope()
	case *ast.IfStmt:
		r.expr(n.Cond)
		r.stmt(n.Then)
		if n.Else != nil {
			r.stmt(n.Else)
		}
	case *ast.WhileStmt:
		r.expr(n.Cond)
		r.stmt(n.Body)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (r *Resolver) expr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Literal:
		// no sub-expressions
	case *ast.Grouping:
		r.expr(n.Inner)
	case *ast.Unary:
		r.expr(n.Operand)
	case *ast.Binary:
		r.expr(n.Left)
		r.expr(n.Right)
	case *ast.Logical:
		r.expr(n.Left)
		r.expr(n.Right)
	case *ast.Variable:
		r.resolveUse(n.ID(), n.Name, n.Span(), true)
	case *ast.Assign:
		r.expr(n.Value)
		r.resolveUse(n.ID(), n.Name, n.TargetSpan, false)
	case *ast.Call:
		r.expr(n.Callee)
		for _, a := range n.Args {
			r.expr(a)
		}
	case *ast.Get:
		r.expr(n.Object)
	case *ast.Set:
		r.expr(n.Value)
		r.expr(n.Object)
	case *ast.This:
		if r.currentClass == ckNone {
			r.report.Add(diag.Resolve, n.Span(), "Can't use 'this' outside of a class.")
			return
		}
		r.resolveUse(n.ID(), "this", n.Span(), false)
	case *ast.Super:
		switch r.currentClass {
		case ckNone:
			r.report.Add(diag.Resolve, n.Span(), "Can't use 'super' outside of a class.")
			return
		case ckClass:
			r.report.Add(diag.Resolve, n.Span(), "Can't use 'super' in a class with no superclass.")
			return
		}
		r.resolveUse(n.ID(), "super", n.Span(), false)
	}
}
