package irgen

import (
	"strings"
	"testing"

	"github.com/tallowlang/lox/internal/lexer"
	"github.com/tallowlang/lox/internal/parser"
)

// compileToIR scans, parses, and emits src, failing the test outright on
// scan/parse errors — grounded on original_source/src/codegen/compiler.rs's
// own `compile_to_ir` test helper and its `ir.contains(...)` assertion
// style, adapted to this package's Emit signature.
func compileToIR(t *testing.T, src string) string {
	t.Helper()
	toks, sr := lexer.New(src).Scan()
	if sr.HasErrors() {
		t.Fatalf("scan errors: %v", sr.Diagnostics)
	}
	program, pr := parser.ParseProgram(toks, "test.lox")
	if pr.HasErrors() {
		t.Fatalf("parse errors: %v", pr.Diagnostics)
	}
	ir, er := Emit(program, "test.lox", src)
	if er.HasErrors() {
		t.Fatalf("emit errors: %v", er.Diagnostics)
	}
	return ir
}

func TestPrintNumberEmitsCallAndMain(t *testing.T) {
	ir := compileToIR(t, `print 1;`)
	if !strings.Contains(ir, "call void @lox_print") {
		t.Error("expected a call to lox_print")
	}
	if !strings.Contains(ir, "ret i32 0") {
		t.Error("main should return 0")
	}
}

func TestPrintStringContainsConstant(t *testing.T) {
	ir := compileToIR(t, `print "hello";`)
	if !strings.Contains(ir, "hello") {
		t.Error("expected the string constant to appear in the module")
	}
}

func TestArithmeticOperators(t *testing.T) {
	cases := map[string]string{
		`print 1 + 2;`: "fadd",
		`print 1 - 2;`: "fsub",
		`print 1 * 2;`: "fmul",
		`print 1 / 2;`: "fdiv",
	}
	for src, want := range cases {
		ir := compileToIR(t, src)
		if !strings.Contains(ir, want) {
			t.Errorf("source %q: expected %q in IR", src, want)
		}
	}
}

func TestComparisonOperators(t *testing.T) {
	cases := map[string]string{
		`print 1 < 2;`:  "fcmp olt",
		`print 1 <= 2;`: "fcmp ole",
		`print 1 > 2;`:  "fcmp ogt",
		`print 1 >= 2;`: "fcmp oge",
	}
	for src, want := range cases {
		ir := compileToIR(t, src)
		if !strings.Contains(ir, want) {
			t.Errorf("source %q: expected %q in IR", src, want)
		}
	}
}

func TestUnaryNegateAndNot(t *testing.T) {
	ir := compileToIR(t, `print -1; print !true;`)
	if !strings.Contains(ir, "fneg") {
		t.Error("expected fneg for unary negate")
	}
	if !strings.Contains(ir, "lox_value_truthy") {
		t.Error("expected a call to lox_value_truthy for unary not")
	}
}

func TestGlobalVariable(t *testing.T) {
	ir := compileToIR(t, `var x = 1; print x;`)
	if !strings.Contains(ir, "lox_global_set") {
		t.Error("expected lox_global_set for the declaration")
	}
	if !strings.Contains(ir, "lox_global_get") {
		t.Error("expected lox_global_get for the read")
	}
}

func TestIfElseBranchesAndMerges(t *testing.T) {
	ir := compileToIR(t, `if (true) { print 1; } else { print 2; }`)
	if !strings.Contains(ir, "br i1") {
		t.Error("expected a conditional branch")
	}
	if !strings.Contains(ir, "then") || !strings.Contains(ir, "merge") {
		t.Error("expected then/merge blocks")
	}
}

func TestWhileLoop(t *testing.T) {
	ir := compileToIR(t, `var i = 0; while (i < 3) { i = i + 1; }`)
	if !strings.Contains(ir, "while_cond") || !strings.Contains(ir, "while_body") {
		t.Error("expected while_cond/while_body blocks")
	}
}

func TestLogicalAndOrShortCircuit(t *testing.T) {
	ir := compileToIR(t, `print true and false; print false or true;`)
	if !strings.Contains(ir, "log_rhs") {
		t.Error("expected a short-circuit block for and/or")
	}
}

func TestFunctionDeclarationAndCall(t *testing.T) {
	ir := compileToIR(t, `
		fun add(a, b) { return a + b; }
		print add(1, 2);
	`)
	if !strings.Contains(ir, "lox_alloc_closure") {
		t.Error("expected lox_alloc_closure for the function declaration")
	}
	if !strings.Contains(ir, "call_arity_err") {
		t.Error("expected an arity-checked call site")
	}
}

func TestClosureCapturesOuterLocal(t *testing.T) {
	ir := compileToIR(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		print makeCounter();
	`)
	if !strings.Contains(ir, "lox_alloc_cell") {
		t.Error("expected the captured local to be promoted to a cell")
	}
	if !strings.Contains(ir, "lox_cell_get") || !strings.Contains(ir, "lox_cell_set") {
		t.Error("expected cell reads/writes for the captured local")
	}
}

func TestClassDeclarationAndInstantiation(t *testing.T) {
	ir := compileToIR(t, `
		class Box {
			init(value) {
				this.value = value;
			}
			get() {
				return this.value;
			}
		}
		var b = Box(9);
		print b.get();
	`)
	if !strings.Contains(ir, "lox_alloc_class") {
		t.Error("expected lox_alloc_class for the class declaration")
	}
	if !strings.Contains(ir, "lox_class_add_method") {
		t.Error("expected lox_class_add_method for each method")
	}
	if !strings.Contains(ir, "lox_alloc_instance") {
		t.Error("expected lox_alloc_instance at the call site")
	}
	if !strings.Contains(ir, "lox_instance_get_property") {
		t.Error("expected lox_instance_get_property for b.get()")
	}
	if !strings.Contains(ir, "lox_instance_set_field") {
		t.Error("expected lox_instance_set_field for this.value = value")
	}
}

func TestInheritanceUsesSuper(t *testing.T) {
	ir := compileToIR(t, `
		class Animal {
			speak() { print "..."; }
		}
		class Dog < Animal {
			speak() {
				super.speak();
				print "Woof";
			}
		}
		Dog().speak();
	`)
	if !strings.Contains(ir, "lox_class_find_method") {
		t.Error("expected lox_class_find_method for super.speak()")
	}
	if !strings.Contains(ir, "lox_bind_method") {
		t.Error("expected lox_bind_method for super.speak()")
	}
}

func TestStringConcatenationUsesRuntimeConcat(t *testing.T) {
	ir := compileToIR(t, `print "foo" + "bar";`)
	if !strings.Contains(ir, "lox_string_concat") {
		t.Error("expected lox_string_concat for string +")
	}
}

func TestEqualityUsesStringEqualForStrings(t *testing.T) {
	ir := compileToIR(t, `print "a" == "a";`)
	if !strings.Contains(ir, "lox_string_equal") {
		t.Error("expected lox_string_equal on the string-equality path")
	}
}
