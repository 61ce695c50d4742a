// Command lox is the thin CLI shim over internal/driver — argument
// parsing is out of scope for spec.md itself, so this file stays a
// parse-flags-then-call-into-the-package wrapper, the same shape as the
// teacher's cmd/mag/main.go (flag.Bool/flag.String setup, a usage
// string, then a single dispatch into VM/compiler packages) and
// cmd/malphas's positional-subcommand style for the mode argument.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tallowlang/lox/internal/driver"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("lox", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lox <command> [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run [file]          Run a script (default command)\n")
		fmt.Fprintf(os.Stderr, "  repl                Start the interactive REPL\n")
		fmt.Fprintf(os.Stderr, "  dump-tokens <file>  Scan and print tokens\n")
		fmt.Fprintf(os.Stderr, "  dump-ast <file>     Parse and print the AST\n")
		fmt.Fprintf(os.Stderr, "  compile-bytecode <file>  Compile to a .loxc chunk file\n")
		fmt.Fprintf(os.Stderr, "  bytecode-run <file.loxc> Run a compiled chunk file\n")
		fmt.Fprintf(os.Stderr, "  disassemble <file>  Compile and pretty-print bytecode\n")
		fmt.Fprintf(os.Stderr, "  compile-ir <file>   Emit LLVM IR text\n")
		fmt.Fprintf(os.Stderr, "  compile-native <file>    Emit IR, compile, and link a native binary\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nWith no command and no file, falls back to a lox.toml project's\n")
		fmt.Fprintf(os.Stderr, "[project] entry and [backend] default (see internal/manifest).\n")
	}

	backend := fs.String("backend", "", "Execution backend for `run`: tree-walk, vm, or ir")
	jsonOut := fs.Bool("json", false, "Render dump-ast as JSON instead of s-expressions")
	out := fs.String("out", "", "Output path for compile-bytecode/compile-ir/compile-native")
	if err := fs.Parse(args); err != nil {
		return driver.ExitCompile
	}

	rest := fs.Args()
	command := "run"
	if len(rest) > 0 && isCommand(rest[0]) {
		command = rest[0]
		rest = rest[1:]
	}

	var path string
	if len(rest) > 0 {
		path = rest[0]
	}

	opts := driver.Options{Path: path, JSON: *jsonOut, Out: *out}

	switch command {
	case "run":
		resolvedPath, resolvedBackend, err := driver.ResolveRun(path, *backend)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return driver.ExitCompile
		}
		opts.Path = resolvedPath
		return driver.RunFile(opts, resolvedBackend)
	case "repl":
		return driver.Run(driver.ModeREPL, opts)
	case "dump-tokens":
		return driver.Run(driver.ModeDumpTokens, opts)
	case "dump-ast":
		return driver.Run(driver.ModeDumpAST, opts)
	case "compile-bytecode":
		return driver.Run(driver.ModeCompileBytecode, opts)
	case "bytecode-run":
		return driver.Run(driver.ModeBytecodeRun, opts)
	case "disassemble":
		return driver.Run(driver.ModeDisassemble, opts)
	case "compile-ir":
		return driver.Run(driver.ModeCompileIR, opts)
	case "compile-native":
		return driver.Run(driver.ModeCompileNative, opts)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		fs.Usage()
		return driver.ExitCompile
	}
}

func isCommand(arg string) bool {
	switch arg {
	case "run", "repl", "dump-tokens", "dump-ast", "compile-bytecode",
		"bytecode-run", "disassemble", "compile-ir", "compile-native":
		return true
	default:
		return false
	}
}
