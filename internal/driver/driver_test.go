package driver

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.lox")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestRunInterpretPrintsOutput(t *testing.T) {
	path := writeSource(t, `print 1 + 2;`)
	var out, errBuf bytes.Buffer
	code := Run(ModeInterpret, Options{Path: path, Stdout: &out, Stderr: &errBuf})
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, errBuf.String())
	}
	if got := out.String(); got != "3\n" {
		t.Errorf("stdout = %q, want %q", got, "3\n")
	}
}

func TestRunInterpretReportsCompileError(t *testing.T) {
	path := writeSource(t, `var x = ;`)
	var out, errBuf bytes.Buffer
	code := Run(ModeInterpret, Options{Path: path, Stdout: &out, Stderr: &errBuf})
	if code != ExitCompile {
		t.Fatalf("exit code = %d, want %d", code, ExitCompile)
	}
	if errBuf.Len() == 0 {
		t.Error("expected a compile-error report on stderr")
	}
}

func TestRunInterpretReportsRuntimeError(t *testing.T) {
	path := writeSource(t, `print 1 + "x";`)
	var out, errBuf bytes.Buffer
	code := Run(ModeInterpret, Options{Path: path, Stdout: &out, Stderr: &errBuf})
	if code != ExitRuntime {
		t.Fatalf("exit code = %d, want %d", code, ExitRuntime)
	}
	if !strings.Contains(errBuf.String(), "Error: line 1:") {
		t.Errorf("stderr = %q, want it to contain the spec's runtime-error format", errBuf.String())
	}
}

func TestDumpTokens(t *testing.T) {
	path := writeSource(t, `var x = 1;`)
	var out, errBuf bytes.Buffer
	code := Run(ModeDumpTokens, Options{Path: path, Stdout: &out, Stderr: &errBuf})
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, errBuf.String())
	}
	if !strings.Contains(out.String(), `var "var"`) {
		t.Errorf("expected a var token in output, got %q", out.String())
	}
}

func TestDumpASTSExpr(t *testing.T) {
	path := writeSource(t, `print 1 + 2;`)
	var out, errBuf bytes.Buffer
	code := Run(ModeDumpAST, Options{Path: path, Stdout: &out, Stderr: &errBuf})
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, errBuf.String())
	}
	if !strings.Contains(out.String(), "print") {
		t.Errorf("expected the print statement in the s-expression output, got %q", out.String())
	}
}

func TestDumpASTJSON(t *testing.T) {
	path := writeSource(t, `print 1;`)
	var out, errBuf bytes.Buffer
	code := Run(ModeDumpAST, Options{Path: path, JSON: true, Stdout: &out, Stderr: &errBuf})
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, errBuf.String())
	}
	if !strings.HasPrefix(strings.TrimSpace(out.String()), "[") && !strings.HasPrefix(strings.TrimSpace(out.String()), "{") {
		t.Errorf("expected JSON output, got %q", out.String())
	}
}

func TestCompileBytecodeThenRunRoundTrips(t *testing.T) {
	path := writeSource(t, `print 40 + 2;`)
	outPath := path[:len(path)-len(".lox")] + ".loxc"

	var compileErr bytes.Buffer
	code := Run(ModeCompileBytecode, Options{Path: path, Out: outPath, Stderr: &compileErr})
	if code != ExitOK {
		t.Fatalf("compile-bytecode exit = %d, stderr = %s", code, compileErr.String())
	}

	blob, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading compiled chunk: %v", err)
	}
	if string(blob[:4]) != "blox" {
		t.Fatalf("missing blox magic, got %q", blob[:4])
	}

	var out, runErr bytes.Buffer
	code = Run(ModeBytecodeRun, Options{Path: outPath, Stdout: &out, Stderr: &runErr})
	if code != ExitOK {
		t.Fatalf("bytecode-run exit = %d, stderr = %s", code, runErr.String())
	}
	if got := out.String(); got != "42\n" {
		t.Errorf("stdout = %q, want %q", got, "42\n")
	}
}

func TestDisassembleContainsOpcodes(t *testing.T) {
	path := writeSource(t, `print 1 + 2;`)
	var out, errBuf bytes.Buffer
	code := Run(ModeDisassemble, Options{Path: path, Stdout: &out, Stderr: &errBuf})
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, errBuf.String())
	}
	if !strings.Contains(out.String(), "OP_ADD") && !strings.Contains(out.String(), "ADD") {
		t.Errorf("expected an add opcode in disassembly, got %q", out.String())
	}
}

func TestCompileIREmitsModuleText(t *testing.T) {
	path := writeSource(t, `print "hi";`)
	outPath := path[:len(path)-len(".lox")] + ".ll"
	var errBuf bytes.Buffer
	code := Run(ModeCompileIR, Options{Path: path, Out: outPath, Stderr: &errBuf})
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, errBuf.String())
	}
	ir, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading emitted IR: %v", err)
	}
	if !strings.Contains(string(ir), "lox_print") {
		t.Errorf("expected a call to lox_print in the emitted IR")
	}
}

// TestBackendParity runs the same fixture through the tree-walk evaluator
// and the bytecode VM and requires identical stdout — spec.md §8's
// cross-backend observable-output invariant, grounded on the teacher's
// pkg/bytecode/integration_test.go end-to-end style.
func TestBackendParity(t *testing.T) {
	fixtures := []string{
		`print 1 + 2 * 3;`,
		`var x = 1; { var x = 2; print x; } print x;`,
		`fun add(a, b) { return a + b; } print add(2, 3);`,
		`fun makeCounter() {
			var count = 0;
			fun increment() { count = count + 1; return count; }
			return increment;
		}
		var c = makeCounter();
		print c(); print c(); print c();`,
		`class Greeter {
			init(name) { this.name = name; }
			greet() { return "hi " + this.name; }
		}
		var g = Greeter("lox");
		print g.greet();`,
		`class Animal { speak() { return "..."; } }
		class Dog < Animal { speak() { return super.speak() + "woof"; } }
		print Dog().speak();`,
	}

	for _, src := range fixtures {
		path := writeSource(t, src)

		var treeWalk bytes.Buffer
		if code := Run(ModeInterpret, Options{Path: path, Stdout: &treeWalk}); code != ExitOK {
			t.Fatalf("interpret failed for %q: exit %d", src, code)
		}

		var vmOut bytes.Buffer
		if code := RunFile(Options{Path: path, Stdout: &vmOut}, "vm"); code != ExitOK {
			t.Fatalf("vm run failed for %q: exit %d", src, code)
		}

		if treeWalk.String() != vmOut.String() {
			t.Errorf("backend mismatch for %q:\n tree-walk: %q\n vm:        %q", src, treeWalk.String(), vmOut.String())
		}
	}
}

func TestResolveRunFallsBackToManifest(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.lox")
	if err := os.WriteFile(entry, []byte(`print 1;`), 0644); err != nil {
		t.Fatalf("writing entry: %v", err)
	}
	manifestSrc := "[project]\nname = \"demo\"\nentry = \"main.lox\"\n\n[backend]\ndefault = \"vm\"\n"
	if err := os.WriteFile(filepath.Join(dir, "lox.toml"), []byte(manifestSrc), 0644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(cwd)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	path, backend, err := ResolveRun("", "")
	if err != nil {
		t.Fatalf("ResolveRun: %v", err)
	}
	if backend != "vm" {
		t.Errorf("backend = %q, want %q", backend, "vm")
	}
	if path != entry {
		t.Errorf("path = %q, want %q", path, entry)
	}
}

func TestIsBareExpression(t *testing.T) {
	cases := map[string]bool{
		"1 + 2":        true,
		"x":            true,
		"var x = 1;":   false,
		"print 1;":     false,
		"{ var x = 1; }": false,
		"if (true) print 1;": false,
		"fun foo() {}": false,
	}
	for src, want := range cases {
		if got := isBareExpression(src); got != want {
			t.Errorf("isBareExpression(%q) = %v, want %v", src, got, want)
		}
	}
}
