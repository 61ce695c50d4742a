package ast

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tallowlang/lox/internal/diag"
)

func TestPrintSExpr(t *testing.T) {
	var ids IDAllocator
	left := NewLiteral(ids.Next(), diag.Span{}, LiteralNumber)
	left.Number = 1
	right := NewLiteral(ids.Next(), diag.Span{}, LiteralNumber)
	right.Number = 2
	add := NewBinary(ids.Next(), diag.Span{}, left, BinAdd, diag.Span{}, right)
	program := []Decl{&StmtDecl{Stmt: &PrintStmt{Expr: add}}}

	out := Print(program)
	want := "(print (+ 1 2))\n"
	if out != want {
		t.Errorf("Print() = %q, want %q", out, want)
	}
}

func TestPrintSExprVarAndBlock(t *testing.T) {
	var ids IDAllocator
	init := NewLiteral(ids.Next(), diag.Span{}, LiteralNumber)
	init.Number = 3
	program := []Decl{
		&VarDecl{Name: "x", Init: init},
		&StmtDecl{Stmt: &BlockStmt{Decls: []Decl{
			&StmtDecl{Stmt: &PrintStmt{Expr: NewVariable(ids.Next(), diag.Span{}, "x")}},
		}}},
	}
	out := Print(program)
	if !strings.Contains(out, "(var x 3)") {
		t.Errorf("Print() = %q, want it to contain (var x 3)", out)
	}
	if !strings.Contains(out, "(block (print x))") {
		t.Errorf("Print() = %q, want it to contain (block (print x))", out)
	}
}

func TestPrintJSON(t *testing.T) {
	var ids IDAllocator
	lit := NewLiteral(ids.Next(), diag.Span{}, LiteralString)
	lit.Str = "hi"
	program := []Decl{&StmtDecl{Stmt: &PrintStmt{Expr: lit}}}

	raw, err := PrintJSON(program)
	if err != nil {
		t.Fatalf("PrintJSON: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["type"] != "Print" {
		t.Fatalf("unexpected decoded shape: %#v", decoded)
	}
	exprNode, ok := decoded[0]["expr"].(map[string]any)
	if !ok || exprNode["type"] != "Literal" || exprNode["value"] != "hi" {
		t.Fatalf("unexpected expr node: %#v", decoded[0]["expr"])
	}
}

func TestExprIDsAreMonotonicAndDistinct(t *testing.T) {
	var ids IDAllocator
	a := NewLiteral(ids.Next(), diag.Span{}, LiteralNumber)
	b := NewLiteral(ids.Next(), diag.Span{}, LiteralNumber)
	c := NewBinary(ids.Next(), diag.Span{}, a, BinAdd, diag.Span{}, b)
	if a.ID() == b.ID() || b.ID() == c.ID() || a.ID() == c.ID() {
		t.Fatalf("expected distinct ids, got %d %d %d", a.ID(), b.ID(), c.ID())
	}
	if !(a.ID() < b.ID() && b.ID() < c.ID()) {
		t.Fatalf("expected monotonic ids in allocation order, got %d %d %d", a.ID(), b.ID(), c.ID())
	}
}
