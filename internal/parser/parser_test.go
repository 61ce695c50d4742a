package parser

import (
	"testing"

	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/lexer"
)

func parse(t *testing.T, src string) ([]ast.Decl, bool) {
	t.Helper()
	toks, scanReport := lexer.New(src).Scan()
	if scanReport.HasErrors() {
		t.Fatalf("unexpected scan errors: %v", scanReport.Diagnostics)
	}
	program, report := ParseProgram(toks, "test.lox")
	return program, report.HasErrors()
}

func TestPrecedence(t *testing.T) {
	program, hasErr := parse(t, "print 1 + 2 * 3;")
	if hasErr {
		t.Fatal("unexpected parse error")
	}
	out := ast.Print(program)
	want := "(print (+ 1 (* 2 3)))\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestAssignmentRightAssociative(t *testing.T) {
	program, hasErr := parse(t, "a = b = 3;")
	if hasErr {
		t.Fatal("unexpected parse error")
	}
	out := ast.Print(program)
	want := "(= a (= b 3))\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestInvalidAssignmentTargetIsError(t *testing.T) {
	_, hasErr := parse(t, "1 + 2 = 3;")
	if !hasErr {
		t.Fatal("expected a parse error for invalid assignment target")
	}
}

func TestForDesugarsToWhile(t *testing.T) {
	program, hasErr := parse(t, "for (var i = 0; i < 3; i = i + 1) print i;")
	if hasErr {
		t.Fatal("unexpected parse error")
	}
	if len(program) != 1 {
		t.Fatalf("expected 1 top-level decl, got %d", len(program))
	}
	sd, ok := program[0].(*ast.StmtDecl)
	if !ok {
		t.Fatalf("expected StmtDecl, got %T", program[0])
	}
	block, ok := sd.Stmt.(*ast.BlockStmt)
	if !ok {
		t.Fatalf("expected desugared for to wrap in a block, got %T", sd.Stmt)
	}
	if len(block.Decls) != 2 {
		t.Fatalf("expected init + while in block, got %d decls", len(block.Decls))
	}
	if _, ok := block.Decls[0].(*ast.VarDecl); !ok {
		t.Errorf("expected first decl to be the var init, got %T", block.Decls[0])
	}
	innerStmtDecl, ok := block.Decls[1].(*ast.StmtDecl)
	if !ok {
		t.Fatalf("expected second decl to be a StmtDecl, got %T", block.Decls[1])
	}
	if _, ok := innerStmtDecl.Stmt.(*ast.WhileStmt); !ok {
		t.Errorf("expected desugared while, got %T", innerStmtDecl.Stmt)
	}
}

func TestClassDeclWithSuperclassAndMethods(t *testing.T) {
	program, hasErr := parse(t, "class Cake < Pastry { taste() { return this.flavor; } }")
	if hasErr {
		t.Fatal("unexpected parse error")
	}
	cd, ok := program[0].(*ast.ClassDecl)
	if !ok {
		t.Fatalf("expected ClassDecl, got %T", program[0])
	}
	if cd.Name != "Cake" || cd.Superclass == nil || cd.Superclass.Name != "Pastry" {
		t.Fatalf("unexpected class decl: %+v", cd)
	}
	if len(cd.Methods) != 1 || cd.Methods[0].Name != "taste" {
		t.Fatalf("unexpected methods: %+v", cd.Methods)
	}
}

func TestCallAndPropertyChain(t *testing.T) {
	program, hasErr := parse(t, "a.b(1, 2).c;")
	if hasErr {
		t.Fatal("unexpected parse error")
	}
	out := ast.Print(program)
	want := "(get (call (get a b) 1 2) c)\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestTooManyArgumentsIsParseError(t *testing.T) {
	src := "f("
	for i := 0; i < 256; i++ {
		if i > 0 {
			src += ", "
		}
		src += "1"
	}
	src += ");"
	_, hasErr := parse(t, src)
	if !hasErr {
		t.Fatal("expected a parse error for more than 255 arguments")
	}
}

func TestSynchronizationRecoversAfterError(t *testing.T) {
	toks, _ := lexer.New("var = 1; print 2;").Scan()
	program, report := ParseProgram(toks, "test.lox")
	if !report.HasErrors() {
		t.Fatal("expected an error for missing variable name")
	}
	var hasPrint bool
	for _, d := range program {
		if sd, ok := d.(*ast.StmtDecl); ok {
			if _, ok := sd.Stmt.(*ast.PrintStmt); ok {
				hasPrint = true
			}
		}
	}
	if !hasPrint {
		t.Fatalf("expected parser to recover and still parse the print statement, got %v", ast.Print(program))
	}
}

func TestSuperExpression(t *testing.T) {
	program, hasErr := parse(t, "class A < B { m() { return super.m(); } }")
	if hasErr {
		t.Fatal("unexpected parse error")
	}
	cd := program[0].(*ast.ClassDecl)
	retStmt := cd.Methods[0].Body[0].(*ast.StmtDecl).Stmt.(*ast.ReturnStmt)
	call := retStmt.Value.(*ast.Call)
	sup, ok := call.Callee.(*ast.Super)
	if !ok || sup.Method != "m" {
		t.Fatalf("expected super.m(), got %+v", call.Callee)
	}
}
