// Package interp implements the tree-walk evaluator from spec §4.4: it
// executes a resolved AST directly against a linked environment chain,
// producing the same observable output (spec §6.5) as the bytecode VM
// and the LLVM backend.
//
// Grounded on the original Rust reference interpreter
// (interpreter/mod.rs, interpreter/callable.rs, interpreter/value.rs):
// the same environment-swap-and-restore shape for block execution, the
// same lazy method-bind-at-property-access mechanism, and the same
// superclass/this scope nesting around class declarations.
package interp

import (
	"fmt"
	"io"
	"time"

	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/diag"
	"github.com/tallowlang/lox/internal/resolve"
)

// callable is anything the evaluator can invoke via a Call expression.
type callable interface {
	Arity() int
	String() string
}

// returnSignal unwinds the Go call stack back to the enclosing function
// call when a `return` statement executes. It is never surfaced to
// callers of Interpret — callFunction always catches it.
type returnSignal struct {
	Value any
}

func (r *returnSignal) Error() string { return "return" }

// Interp executes a resolved program.
type Interp struct {
	globals       *Environment
	env           *Environment
	resMap        resolve.Map
	out           io.Writer
	currentSource string

	frames []diag.Frame
}

// New creates an Interp that writes `print` output to out and defines
// the global native functions (currently just `clock`).
func New(out io.Writer) *Interp {
	globals := NewEnvironment(nil)
	it := &Interp{globals: globals, env: globals, out: out}
	globals.Define("clock", &NativeFunction{
		Name: "clock",
		Ar:   0,
		Fn: func(args []any) (any, error) {
			return float64(time.Now().UnixNano()) / 1e9, nil
		},
	})
	return it
}

// Interpret executes program's top-level declarations in order against
// the resolution map res, which the caller obtains from internal/resolve.
// src is the original source text, kept only to translate spans to line
// numbers for diagnostics. It returns a *diag.RuntimeError on any spec §7
// runtime-error condition, nil otherwise. The environment persists across
// calls on the same Interp, which is what the REPL mode relies on
// (spec §4.12).
func (it *Interp) Interpret(program []ast.Decl, res resolve.Map, src string) error {
	it.resMap = res
	it.currentSource = src
	for _, d := range program {
		if err := it.execDecl(d); err != nil {
			if rs, ok := err.(*returnSignal); ok {
				// A stray top-level return; the resolver rejects this
				// before execution reaches here, but fail safe rather
				// than panic if it ever does.
				_ = rs
				return nil
			}
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (it *Interp) execDecl(d ast.Decl) error {
	switch n := d.(type) {
	case *ast.VarDecl:
		var value any
		if n.Init != nil {
			v, err := it.eval(n.Init)
			if err != nil {
				return err
			}
			value = v
		}
		it.env.Define(n.Name, value)
		return nil
	case *ast.FunDecl:
		fn := &Function{Decl: n, Closure: it.env}
		it.env.Define(n.Name, fn)
		return nil
	case *ast.ClassDecl:
		return it.execClassDecl(n)
	case *ast.StmtDecl:
		return it.execStmt(n.Stmt)
	default:
		return fmt.Errorf("interp: unknown decl type %T", d)
	}
}

func (it *Interp) execClassDecl(n *ast.ClassDecl) error {
	var superclass *Class
	if n.Superclass != nil {
		v, err := it.eval(n.Superclass)
		if err != nil {
			return err
		}
		sc, ok := v.(*Class)
		if !ok {
			return it.runtimeErr(n.Superclass.Span(), "Superclass must be a class.")
		}
		superclass = sc
	}

	it.env.Define(n.Name, nil)

	enclosing := it.env
	if superclass != nil {
		it.env = NewEnvironment(it.env)
		it.env.Define("super", superclass)
	}

	methods := make(map[string]*Function, len(n.Methods))
	for _, m := range n.Methods {
		methods[m.Name] = &Function{
			Decl:          m,
			Closure:       it.env,
			IsInitializer: m.Name == "init",
		}
	}

	if superclass != nil {
		it.env = enclosing
	}

	class := &Class{Name: n.Name, Superclass: superclass, Methods: methods}
	it.env.Assign(n.Name, class)
	return nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (it *Interp) execStmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.ExprStmt:
		_, err := it.eval(n.Expr)
		return err
	case *ast.PrintStmt:
		v, err := it.eval(n.Expr)
		if err != nil {
			return err
		}
		fmt.Fprintln(it.out, stringify(v))
		return nil
	case *ast.ReturnStmt:
		var value any
		if n.Value != nil {
			v, err := it.eval(n.Value)
			if err != nil {
				return err
			}
			value = v
		}
		return &returnSignal{Value: value}
	case *ast.BlockStmt:
		return it.execBlock(n.Decls, NewEnvironment(it.env))
	case *ast.IfStmt:
		cond, err := it.eval(n.Cond)
		if err != nil {
			return err
		}
		if isTruthy(cond) {
			return it.execStmt(n.Then)
		} else if n.Else != nil {
			return it.execStmt(n.Else)
		}
		return nil
	case *ast.WhileStmt:
		for {
			cond, err := it.eval(n.Cond)
			if err != nil {
				return err
			}
			if !isTruthy(cond) {
				return nil
			}
			if err := it.execStmt(n.Body); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("interp: unknown stmt type %T", s)
	}
}

// execBlock runs decls against env, restoring the previous environment
// before returning — including when an error or return unwinds through it.
func (it *Interp) execBlock(decls []ast.Decl, env *Environment) error {
	previous := it.env
	it.env = env
	defer func() { it.env = previous }()
	for _, d := range decls {
		if err := it.execDecl(d); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func (it *Interp) runtimeErr(span diag.Span, format string, args ...any) *diag.RuntimeError {
	line := diag.PositionOf(it.currentSource, span.Offset).Line
	frames := make([]diag.Frame, len(it.frames))
	copy(frames, it.frames)
	return &diag.RuntimeError{Line: line, Message: fmt.Sprintf(format, args...), Frames: frames}
}
