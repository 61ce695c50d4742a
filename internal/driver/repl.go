package driver

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tallowlang/lox/internal/interp"
	"github.com/tallowlang/lox/internal/lexer"
	"github.com/tallowlang/lox/internal/parser"
	"github.com/tallowlang/lox/internal/resolve"
)

// REPL runs the interactive read-eval-print loop (spec.md §6.2), line by
// line, keeping a single *interp.Interp (and its global environment)
// alive across reads the way spec.md §4.12/SPEC_FULL.md §4.12 requires.
// The per-line control flow — auto-wrapping bare expressions as `print`
// statements, reporting errors and continuing rather than aborting — is
// a direct port of original_source/src/repl.rs's run_repl, since the
// teacher's own REPL (cmd/mag/main.go's runREPL) is built around
// Smalltalk's dot-terminated statement syntax and doesn't transfer.
//
// Resolution maps are accumulated, never replaced: each line's AST nodes
// get fresh expression ids, so a closure defined on one line still needs
// its variable references resolved when invoked from a later line, after
// the Resolver has moved on to a new program slice entirely.
func REPL(stdout, stderr io.Writer, stdin io.Reader, backtrace bool) {
	it := interp.New(stdout)
	resMap := make(resolve.Map)

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		source := line
		if isBareExpression(line) {
			source = "print " + line + ";"
		}

		toks, sr := lexer.New(source).Scan()
		if sr.HasErrors() {
			sr.File = "<repl>"
			fmt.Fprint(stderr, sr.Render(source))
			continue
		}

		program, pr := parser.ParseProgram(toks, "<repl>")
		if pr.HasErrors() {
			fmt.Fprint(stderr, pr.Render(source))
			continue
		}

		lineMap, rr := resolve.Resolve(program, "<repl>")
		if rr.HasErrors() {
			fmt.Fprint(stderr, rr.Render(source))
			continue
		}
		for id, depth := range lineMap {
			resMap[id] = depth
		}

		if err := it.Interpret(program, resMap, source); err != nil {
			if rerr, ok := err.(interface{ Render(bool) string }); ok {
				fmt.Fprint(stderr, rerr.Render(backtrace))
			} else {
				fmt.Fprintln(stderr, err)
			}
		}
	}
	fmt.Fprintln(stdout)
}

// isBareExpression matches original_source/src/repl.rs's is_bare_expression:
// a line is wrapped as `print <line>;` unless it already ends in a
// statement terminator or begins with a keyword that starts its own
// statement/declaration.
func isBareExpression(line string) bool {
	if strings.HasSuffix(line, ";") || strings.HasSuffix(line, "}") {
		return false
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "var", "fun", "class", "if", "while", "for", "print", "return", "{":
		return false
	}
	return true
}
