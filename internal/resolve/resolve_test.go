package resolve

import (
	"testing"

	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/lexer"
	"github.com/tallowlang/lox/internal/parser"
)

func parseOK(t *testing.T, src string) []ast.Decl {
	t.Helper()
	toks, sr := lexer.New(src).Scan()
	if sr.HasErrors() {
		t.Fatalf("scan errors: %v", sr.Diagnostics)
	}
	program, pr := parser.ParseProgram(toks, "test.lox")
	if pr.HasErrors() {
		t.Fatalf("parse errors: %v", pr.Diagnostics)
	}
	return program
}

func TestGlobalsAreUnresolved(t *testing.T) {
	program := parseOK(t, "var x = 1; print x;")
	m, report := Resolve(program, "test.lox")
	if report.HasErrors() {
		t.Fatalf("unexpected resolve errors: %v", report.Diagnostics)
	}
	if len(m) != 0 {
		t.Fatalf("expected no resolved depths for a global reference, got %v", m)
	}
}

func TestLocalDepthZero(t *testing.T) {
	program := parseOK(t, "{ var x = 1; print x; }")
	m, report := Resolve(program, "test.lox")
	if report.HasErrors() {
		t.Fatalf("unexpected resolve errors: %v", report.Diagnostics)
	}
	block := program[0].(*ast.StmtDecl).Stmt.(*ast.BlockStmt)
	printStmt := block.Decls[1].(*ast.StmtDecl).Stmt.(*ast.PrintStmt)
	v := printStmt.Expr.(*ast.Variable)
	if depth, ok := m[v.ID()]; !ok || depth != 0 {
		t.Errorf("expected depth 0, got %d (ok=%v)", depth, ok)
	}
}

func TestReadOwnInitializerIsError(t *testing.T) {
	program := parseOK(t, "{ var x = x; }")
	_, report := Resolve(program, "test.lox")
	if !report.HasErrors() {
		t.Fatal("expected an error for reading a variable in its own initializer")
	}
}

func TestReturnOutsideFunctionIsError(t *testing.T) {
	program := parseOK(t, "return 1;")
	_, report := Resolve(program, "test.lox")
	if !report.HasErrors() {
		t.Fatal("expected an error for top-level return")
	}
}

func TestReturnValueInInitializerIsError(t *testing.T) {
	program := parseOK(t, "class C { init() { return 1; } }")
	_, report := Resolve(program, "test.lox")
	if !report.HasErrors() {
		t.Fatal("expected an error for returning a value from init")
	}
}

func TestBareReturnInInitializerIsOK(t *testing.T) {
	program := parseOK(t, "class C { init() { return; } }")
	_, report := Resolve(program, "test.lox")
	if report.HasErrors() {
		t.Fatalf("unexpected errors: %v", report.Diagnostics)
	}
}

func TestThisOutsideClassIsError(t *testing.T) {
	program := parseOK(t, "print this;")
	_, report := Resolve(program, "test.lox")
	if !report.HasErrors() {
		t.Fatal("expected an error for 'this' outside a class")
	}
}

func TestSuperWithoutSuperclassIsError(t *testing.T) {
	program := parseOK(t, "class A { m() { return super.m(); } }")
	_, report := Resolve(program, "test.lox")
	if !report.HasErrors() {
		t.Fatal("expected an error for 'super' in a class with no superclass")
	}
}

func TestSelfInheritanceIsError(t *testing.T) {
	program := parseOK(t, "class A < A {}")
	_, report := Resolve(program, "test.lox")
	if !report.HasErrors() {
		t.Fatal("expected an error for a class inheriting from itself")
	}
}

func TestDoubleLocalDeclarationIsError(t *testing.T) {
	program := parseOK(t, "{ var x = 1; var x = 2; }")
	_, report := Resolve(program, "test.lox")
	if !report.HasErrors() {
		t.Fatal("expected an error for double-declaring a local")
	}
}

func TestGlobalRedeclarationIsOK(t *testing.T) {
	program := parseOK(t, "var x = 1; var x = 2;")
	_, report := Resolve(program, "test.lox")
	if report.HasErrors() {
		t.Fatalf("unexpected errors for global redeclaration: %v", report.Diagnostics)
	}
}

func TestMethodResolvesThisAndSuperAtExpectedDepth(t *testing.T) {
	program := parseOK(t, "class A { m() { return 1; } } class B < A { m() { return super.m() + this.x; } }")
	m, report := Resolve(program, "test.lox")
	if report.HasErrors() {
		t.Fatalf("unexpected errors: %v", report.Diagnostics)
	}
	// Inside B.m the scopes are: super, this, then the method body.
	ret := program[1].(*ast.ClassDecl).Methods[0].Body[0].(*ast.StmtDecl).Stmt.(*ast.ReturnStmt)
	sum := ret.Value.(*ast.Binary)
	sup := sum.Left.(*ast.Call).Callee.(*ast.Super)
	this := sum.Right.(*ast.Get).Object.(*ast.This)
	if depth, ok := m[sup.ID()]; !ok || depth != 2 {
		t.Errorf("super: expected depth 2, got %d (ok=%v)", depth, ok)
	}
	if depth, ok := m[this.ID()]; !ok || depth != 1 {
		t.Errorf("this: expected depth 1, got %d (ok=%v)", depth, ok)
	}
}
