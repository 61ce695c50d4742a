package driver

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tallowlang/lox/internal/irgen"
)

// ccCommand is the external compiler invoked by compile-native — mechanical
// invocation only, per spec.md §1's "out of scope" carve-out; this package
// builds the command line, it never links object files itself. Grounded on
// original_source/src/codegen/native.rs's own `Command::new("clang")`
// emit-then-link pipeline.
var ccCommand = envOr("CC", "clang")

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func runCompileNative(opts Options) int {
	src, err := readSource(opts)
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	program, code := scanParse(opts, src, opts.Path)
	if code != ExitOK {
		return code
	}

	ir, er := irgen.Emit(program, opts.Path, src)
	if er.HasErrors() {
		fmt.Fprint(opts.stderr(), er.Render(src))
		return ExitCompile
	}

	workDir, err := os.MkdirTemp("", "lox-native-*")
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}
	defer os.RemoveAll(workDir)

	llPath := filepath.Join(workDir, "module.ll")
	runtimeCPath := filepath.Join(workDir, "lox_runtime.c")
	runtimeHPath := filepath.Join(workDir, "lox_runtime.h")

	if err := os.WriteFile(llPath, []byte(ir), 0644); err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}
	if err := os.WriteFile(runtimeHPath, []byte(irgen.RuntimeHeader), 0644); err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}
	if err := os.WriteFile(runtimeCPath, []byte(irgen.RuntimeSource), 0644); err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	out := opts.Out
	if out == "" {
		out = strings.TrimSuffix(filepath.Base(opts.Path), ".lox")
	}

	cmd := exec.Command(ccCommand, llPath, runtimeCPath, "-o", out, "-lm")
	cmd.Stdout = opts.stdout()
	cmd.Stderr = opts.stderr()
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(opts.stderr(), "%s: %v\n", ccCommand, err)
		return ExitCompile
	}
	return ExitOK
}
