// Package driver wires the scanner/parser/resolver/backends together for
// each command-line mode spec.md §6.2 names. It stands in for the external
// CLI collaborator's internal plumbing (SPEC_FULL.md's Driver glossary
// entry): cmd/lox/main.go is a thin shim that parses os.Args and calls into
// this package, the same way the teacher's cmd/mag/main.go is a thin shim
// over manifest/compiler/vm — see cmd/mag/main.go's flag.Bool-driven mode
// switch, reworked here as an explicit Mode enum since spec.md's mode table
// is a closed set rather than mag's open-ended flag combinations.
package driver

import (
	"fmt"
	"io"
	"os"

	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/diag"
	"github.com/tallowlang/lox/internal/interp"
	"github.com/tallowlang/lox/internal/lexer"
	"github.com/tallowlang/lox/internal/parser"
	"github.com/tallowlang/lox/internal/resolve"
)

// Exit codes, per spec.md §6.2.
const (
	ExitOK      = 0
	ExitRuntime = 70
	ExitCompile = 65
)

// Mode selects one of spec.md §6.2's CLI modes.
type Mode string

const (
	ModeInterpret       Mode = "interpret"
	ModeBytecodeRun     Mode = "bytecode-run"
	ModeDumpTokens      Mode = "dump-tokens"
	ModeDumpAST         Mode = "dump-ast"
	ModeCompileBytecode Mode = "compile-bytecode"
	ModeDisassemble     Mode = "disassemble"
	ModeCompileIR       Mode = "compile-ir"
	ModeCompileNative   Mode = "compile-native"
	ModeREPL            Mode = "repl"
)

// Options bundles everything a mode needs beyond the mode itself. Stdout
// and Stderr default to os.Stdout/os.Stderr when left nil, so tests can
// redirect them without touching the process's real streams.
type Options struct {
	// Path is the source file to read; unused in REPL mode.
	Path string
	// JSON selects JSON rendering for dump-ast (default: s-expressions).
	JSON bool
	// Out is the destination path for compile-bytecode/compile-ir/compile-native;
	// empty means derive one from Path.
	Out string
	// Backtrace forces backtrace rendering regardless of the BACKTRACE
	// env var — tests set this directly instead of mutating the
	// environment.
	Backtrace bool

	Stdout io.Writer
	Stderr io.Writer
}

func (o *Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

func (o *Options) stderr() io.Writer {
	if o.Stderr != nil {
		return o.Stderr
	}
	return os.Stderr
}

// wantsBacktrace reports whether BACKTRACE=1|full is set, or the caller
// forced it via Options — spec.md §6.4.
func (o *Options) wantsBacktrace() bool {
	if o.Backtrace {
		return true
	}
	v := os.Getenv("BACKTRACE")
	return v == "1" || v == "full"
}

// Run executes mode and returns the process exit code spec.md §6.2
// prescribes. It never calls os.Exit itself — cmd/lox/main.go does that
// with the returned code, keeping this package testable in-process.
func Run(mode Mode, opts Options) int {
	switch mode {
	case ModeInterpret:
		return runInterpret(opts)
	case ModeBytecodeRun:
		return runBytecodeFile(opts)
	case ModeDumpTokens:
		return runDumpTokens(opts)
	case ModeDumpAST:
		return runDumpAST(opts)
	case ModeCompileBytecode:
		return runCompileBytecode(opts)
	case ModeDisassemble:
		return runDisassemble(opts)
	case ModeCompileIR:
		return runCompileIR(opts)
	case ModeCompileNative:
		return runCompileNative(opts)
	case ModeREPL:
		REPL(opts.stdout(), opts.stderr(), os.Stdin, opts.wantsBacktrace())
		return ExitOK
	default:
		fmt.Fprintf(opts.stderr(), "unknown mode %q\n", mode)
		return ExitCompile
	}
}

// readSource reads opts.Path, or returns an error suitable for direct
// printing to stderr — file I/O is out of scope for spec.md proper, but
// the driver still has to get bytes from somewhere to reach the phases
// that are in scope.
func readSource(opts Options) (string, error) {
	data, err := os.ReadFile(opts.Path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", opts.Path, err)
	}
	return string(data), nil
}

// scanParse runs scan → parse only, matching the pipeline spec.md §6.2
// gives compile-bytecode/disassemble/compile-IR/compile-native (none of
// which route through the resolver — only interpret and REPL do).
func scanParse(opts Options, src, file string) ([]ast.Decl, int) {
	toks, sr := lexer.New(src).Scan()
	if sr.HasErrors() {
		sr.File = file
		fmt.Fprint(opts.stderr(), sr.Render(src))
		return nil, ExitCompile
	}

	program, pr := parser.ParseProgram(toks, file)
	if pr.HasErrors() {
		fmt.Fprint(opts.stderr(), pr.Render(src))
		return nil, ExitCompile
	}

	return program, ExitOK
}

// frontend runs scan → parse → resolve and renders any compile-time
// report to stderr, returning ExitCompile (nonzero) on failure so callers
// can just `if code := ...; code != 0 { return code }`. Only the
// interpret and REPL modes reach the resolver (spec.md §6.2's pipeline
// column for every other mode stops at the parser).
func frontend(opts Options, src, file string) ([]ast.Decl, resolve.Map, int) {
	program, code := scanParse(opts, src, file)
	if code != ExitOK {
		return nil, nil, code
	}

	resMap, rr := resolve.Resolve(program, file)
	if rr.HasErrors() {
		fmt.Fprint(opts.stderr(), rr.Render(src))
		return nil, nil, ExitCompile
	}

	return program, resMap, ExitOK
}

func runInterpret(opts Options) int {
	src, err := readSource(opts)
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	program, resMap, code := frontend(opts, src, opts.Path)
	if code != ExitOK {
		return code
	}

	it := interp.New(opts.stdout())
	if err := it.Interpret(program, resMap, src); err != nil {
		return reportRuntimeError(opts, err)
	}
	return ExitOK
}

// reportRuntimeError renders a *diag.RuntimeError the way spec.md §7
// requires and returns ExitRuntime. Any other error type is an internal
// bug (the three backends only ever return *diag.RuntimeError or nil), so
// it is rendered plainly rather than silently swallowed.
func reportRuntimeError(opts Options, err error) int {
	if rerr, ok := err.(*diag.RuntimeError); ok {
		fmt.Fprint(opts.stderr(), rerr.Render(opts.wantsBacktrace()))
		return ExitRuntime
	}
	fmt.Fprintln(opts.stderr(), err)
	return ExitRuntime
}
