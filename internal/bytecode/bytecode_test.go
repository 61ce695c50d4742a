package bytecode

import (
	"strings"
	"testing"

	"github.com/tallowlang/lox/internal/lexer"
	"github.com/tallowlang/lox/internal/parser"
)

// run scans, parses, compiles, and executes src on a fresh VM, returning
// everything written to stdout and any runtime error. It fails the test
// outright on scan/parse/compile errors, since those are exercised
// elsewhere.
func run(t *testing.T, src string) (string, error) {
	t.Helper()
	toks, sr := lexer.New(src).Scan()
	if sr.HasErrors() {
		t.Fatalf("scan errors: %v", sr.Diagnostics)
	}
	program, pr := parser.ParseProgram(toks, "test.lox")
	if pr.HasErrors() {
		t.Fatalf("parse errors: %v", pr.Diagnostics)
	}
	chunk, cr := Compile(program, "test.lox", src)
	if cr.HasErrors() {
		t.Fatalf("compile errors: %v", cr.Diagnostics)
	}
	var out strings.Builder
	vm := New(&out)
	err := vm.Run(chunk)
	return out.String(), err
}

func TestPrintArithmetic(t *testing.T) {
	out, err := run(t, `print 1 + 2 * 3;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "7\n" {
		t.Errorf("got %q", out)
	}
}

func TestStringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "foobar\n" {
		t.Errorf("got %q", out)
	}
}

func TestAddingNumberAndStringIsRuntimeError(t *testing.T) {
	_, err := run(t, `print 1 + "bar";`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
}

func TestGlobalVarAssignAndReassign(t *testing.T) {
	out, err := run(t, `
		var x = 1;
		x = x + 1;
		print x;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "2\n" {
		t.Errorf("got %q", out)
	}
}

func TestLocalScoping(t *testing.T) {
	out, err := run(t, `
		var x = "outer";
		{
			var x = "inner";
			print x;
		}
		print x;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "inner\nouter\n" {
		t.Errorf("got %q", out)
	}
}

func TestIfElse(t *testing.T) {
	out, err := run(t, `
		if (1 < 2) { print "yes"; } else { print "no"; }
		if (2 < 1) { print "yes"; } else { print "no"; }
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "yes\nno\n" {
		t.Errorf("got %q", out)
	}
}

func TestWhileLoop(t *testing.T) {
	out, err := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		print sum;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "10\n" {
		t.Errorf("got %q", out)
	}
}

func TestForLoopDesugarsAndExecutesCorrectly(t *testing.T) {
	out, err := run(t, `
		var sum = 0;
		for (var i = 0; i < 5; i = i + 1) {
			sum = sum + i;
		}
		print sum;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "10\n" {
		t.Errorf("got %q", out)
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	out, err := run(t, `
		print false and (1/0 == 1/0);
		print true or (1/0 == 1/0);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "false\ntrue\n" {
		t.Errorf("got %q", out)
	}
}

func TestClosureCapturesAndMutatesOuterLocal(t *testing.T) {
	src := `
		fun makeCounter() {
			var i = 0;
			fun counter() {
				i = i + 1;
				print i;
			}
			return counter;
		}
		var c = makeCounter();
		c();
		c();
		c();
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1\n2\n3\n" {
		t.Errorf("got %q", out)
	}
}

func TestRecursiveLocalFunction(t *testing.T) {
	src := `
		fun fact(n) {
			fun helper(n, acc) {
				if (n <= 1) return acc;
				return helper(n - 1, n * acc);
			}
			return helper(n, 1);
		}
		print fact(5);
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "120\n" {
		t.Errorf("got %q", out)
	}
}

func TestClassFieldsAndMethods(t *testing.T) {
	src := `
		class Box {
			init(v) {
				this.v = v;
			}
			get() {
				return this.v;
			}
		}
		var b = Box(9);
		print b.get();
		b.v = 10;
		print b.get();
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "9\n10\n" {
		t.Errorf("got %q", out)
	}
}

func TestClassInheritanceAndSuperCall(t *testing.T) {
	src := `
		class Animal {
			speak() {
				print "...";
			}
		}
		class Dog < Animal {
			speak() {
				super.speak();
				print "Woof";
			}
		}
		Dog().speak();
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "...\nWoof\n" {
		t.Errorf("got %q", out)
	}
}

func TestInitializerBareReturnYieldsThis(t *testing.T) {
	src := `
		class Box {
			init(v) {
				this.v = v;
				return;
			}
		}
		var b = Box(5);
		print b.v;
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "5\n" {
		t.Errorf("got %q", out)
	}
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	_, err := run(t, `print x;`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
}

func TestCallArityMismatchIsRuntimeError(t *testing.T) {
	_, err := run(t, `
		fun add(a, b) { return a + b; }
		add(1);
	`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
}

func TestClockIsCallableAndReturnsNumber(t *testing.T) {
	out, err := run(t, `print clock() >= 0;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true\n" {
		t.Errorf("got %q", out)
	}
}

func TestBytecodeRoundtripsThroughSerialization(t *testing.T) {
	toks, sr := lexer.New(`print 1 + 2;`).Scan()
	if sr.HasErrors() {
		t.Fatalf("scan errors: %v", sr.Diagnostics)
	}
	program, pr := parser.ParseProgram(toks, "test.lox")
	if pr.HasErrors() {
		t.Fatalf("parse errors: %v", pr.Diagnostics)
	}
	chunk, cr := Compile(program, "test.lox", `print 1 + 2;`)
	if cr.HasErrors() {
		t.Fatalf("compile errors: %v", cr.Diagnostics)
	}

	blob, err := Serialize(chunk)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if string(blob[:4]) != "blox" {
		t.Fatalf("missing blox magic, got %q", blob[:4])
	}

	decoded, err := Deserialize(blob)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	var out strings.Builder
	vm := New(&out)
	if err := vm.Run(decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "3\n" {
		t.Errorf("got %q", out.String())
	}
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	_, err := Deserialize([]byte("nope0000"))
	if err == nil {
		t.Fatal("expected an error for bad magic")
	}
}

func TestDisassembleListsOpcodes(t *testing.T) {
	toks, _ := lexer.New(`print 1 + 2;`).Scan()
	program, _ := parser.ParseProgram(toks, "test.lox")
	chunk, _ := Compile(program, "test.lox", `print 1 + 2;`)

	out := Disassemble(chunk)
	for _, want := range []string{"CONSTANT", "ADD", "PRINT", "RETURN"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}
