package interp

import (
	"strings"
	"testing"

	"github.com/tallowlang/lox/internal/lexer"
	"github.com/tallowlang/lox/internal/parser"
	"github.com/tallowlang/lox/internal/resolve"
)

// run scans, parses, resolves and interprets src, returning everything
// written to stdout and any runtime error. It fails the test outright on
// scan/parse/resolve errors, since those are exercised elsewhere.
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
	resMap, rr := resolve.Resolve(program, "test.lox")
	if rr.HasErrors() {
		t.Fatalf("resolve errors: %v", rr.Diagnostics)
	}
	var out strings.Builder
	it := New(&out)
	err := it.Interpret(program, resMap, src)
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

func TestNonIntegralNumberPrintsRoundtripPrecision(t *testing.T) {
	out, err := run(t, `print 1 / 4;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "0.25\n" {
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

func TestInitializerFallsOffEndYieldsThis(t *testing.T) {
	src := `
		class Box {
			init(v) {
				this.v = v;
			}
		}
		print Box(9).v;
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "9\n" {
		t.Errorf("got %q", out)
	}
}

func TestCallArityMismatchIsRuntimeError(t *testing.T) {
	src := `
		fun add(a, b) { return a + b; }
		add(1);
	`
	_, err := run(t, src)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	_, err := run(t, `print x;`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
}

func TestUndefinedPropertyIsRuntimeError(t *testing.T) {
	src := `
		class Box {}
		var b = Box();
		print b.missing;
	`
	_, err := run(t, src)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	_, err := run(t, `var x = 1; x();`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
}

func TestFieldsAreMutable(t *testing.T) {
	src := `
		class Box {}
		var b = Box();
		b.v = 1;
		b.v = b.v + 1;
		print b.v;
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "2\n" {
		t.Errorf("got %q", out)
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

func TestForLoopDesugarsAndExecutesCorrectly(t *testing.T) {
	src := `
		var sum = 0;
		for (var i = 0; i < 5; i = i + 1) {
			sum = sum + i;
		}
		print sum;
	`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "10\n" {
		t.Errorf("got %q", out)
	}
}
