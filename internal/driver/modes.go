package driver

import (
	"fmt"
	"os"
	"strings"

	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/bytecode"
	"github.com/tallowlang/lox/internal/irgen"
	"github.com/tallowlang/lox/internal/lexer"
	"github.com/tallowlang/lox/internal/parser"
)

func runDumpTokens(opts Options) int {
	src, err := readSource(opts)
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	toks, sr := lexer.New(src).Scan()
	if sr.HasErrors() {
		sr.File = opts.Path
		fmt.Fprint(opts.stderr(), sr.Render(src))
		return ExitCompile
	}

	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.String())
		b.WriteByte('\n')
	}
	fmt.Fprint(opts.stdout(), b.String())
	return ExitOK
}

func runDumpAST(opts Options) int {
	src, err := readSource(opts)
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	toks, sr := lexer.New(src).Scan()
	if sr.HasErrors() {
		sr.File = opts.Path
		fmt.Fprint(opts.stderr(), sr.Render(src))
		return ExitCompile
	}

	program, pr := parser.ParseProgram(toks, opts.Path)
	if pr.HasErrors() {
		fmt.Fprint(opts.stderr(), pr.Render(src))
		return ExitCompile
	}

	if opts.JSON {
		data, err := ast.PrintJSON(program)
		if err != nil {
			fmt.Fprintln(opts.stderr(), err)
			return ExitCompile
		}
		fmt.Fprintln(opts.stdout(), string(data))
		return ExitOK
	}

	fmt.Fprint(opts.stdout(), ast.Print(program))
	return ExitOK
}

func runCompileBytecode(opts Options) int {
	src, err := readSource(opts)
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	program, code := scanParse(opts, src, opts.Path)
	if code != ExitOK {
		return code
	}

	chunk, cr := bytecode.Compile(program, opts.Path, src)
	if cr.HasErrors() {
		fmt.Fprint(opts.stderr(), cr.Render(src))
		return ExitCompile
	}

	blob, err := bytecode.Serialize(chunk)
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	out := opts.Out
	if out == "" {
		out = strings.TrimSuffix(opts.Path, ".lox") + ".loxc"
	}
	if err := os.WriteFile(out, blob, 0644); err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}
	return ExitOK
}

func runBytecodeFile(opts Options) int {
	blob, err := os.ReadFile(opts.Path)
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	chunk, err := bytecode.Deserialize(blob)
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	vm := bytecode.New(opts.stdout())
	if err := vm.Run(chunk); err != nil {
		return reportRuntimeError(opts, err)
	}
	return ExitOK
}

func runDisassemble(opts Options) int {
	src, err := readSource(opts)
	if err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}

	program, code := scanParse(opts, src, opts.Path)
	if code != ExitOK {
		return code
	}

	chunk, cr := bytecode.Compile(program, opts.Path, src)
	if cr.HasErrors() {
		fmt.Fprint(opts.stderr(), cr.Render(src))
		return ExitCompile
	}

	fmt.Fprint(opts.stdout(), bytecode.Disassemble(chunk))
	return ExitOK
}

func runCompileIR(opts Options) int {
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

	out := opts.Out
	if out == "" {
		out = strings.TrimSuffix(opts.Path, ".lox") + ".ll"
	}
	if err := os.WriteFile(out, []byte(ir), 0644); err != nil {
		fmt.Fprintln(opts.stderr(), err)
		return ExitCompile
	}
	return ExitOK
}
