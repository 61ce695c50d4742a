package bytecode

import (
	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/diag"
)

// funcType distinguishes the four kinds of function body the compiler
// can be compiling, mirroring the resolver's currentFunc enum (spec §4.3)
// but used here to pick the implicit slot-0 local and init's return
// behavior instead of scope-depth bookkeeping.
type funcType int

const (
	ftScript funcType = iota
	ftFunction
	ftMethod
	ftInitializer
)

type localVar struct {
	name       string
	depth      int
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

// funcCompiler is the per-function compilation state: its own local table
// and upvalue list, decoupled from the resolver's depth map (spec.md
// §4.5: "the compiler assigns each local a stack slot within its
// enclosing function").
type funcCompiler struct {
	enclosing  *funcCompiler
	chunk      *Chunk
	fnType     funcType
	locals     []localVar
	upvalues   []upvalueRef
	scopeDepth int
}

func newFuncCompiler(enclosing *funcCompiler, fnType funcType, name string) *funcCompiler {
	fc := &funcCompiler{enclosing: enclosing, chunk: NewChunk(name), fnType: fnType}
	slot0 := ""
	if fnType == ftMethod || fnType == ftInitializer {
		slot0 = "this"
	}
	fc.locals = append(fc.locals, localVar{name: slot0, depth: 0})
	fc.chunk.IsInitializer = fnType == ftInitializer
	return fc
}

type classScope struct {
	enclosing     *classScope
	hasSuperclass bool
}

// Compiler holds the whole-compile state: the current function being
// built, the current (possibly nested) class scope, and a diagnostic
// report for compiler-level limits (constant pool / local count overflow)
// that have no analog in the resolver.
type Compiler struct {
	current *funcCompiler
	class   *classScope
	file    string
	source  string
	report  diag.Report
}

// Compile lowers a resolved program into its top-level chunk (the
// implicit "script" function, spec.md §4.5).
func Compile(program []ast.Decl, file, source string) (*Chunk, diag.Report) {
	c := &Compiler{file: file, source: source}
	c.current = newFuncCompiler(nil, ftScript, "")
	for _, d := range program {
		c.decl(d)
	}
	c.current.chunk.EmitOp(OpNil, c.lastLine())
	c.current.chunk.EmitOp(OpReturn, c.lastLine())
	return c.current.chunk, c.report
}

func (c *Compiler) lastLine() int {
	if n := len(c.current.chunk.Lines); n > 0 {
		return c.current.chunk.Lines[n-1]
	}
	return 1
}

func (c *Compiler) lineOf(span diag.Span) int {
	return diag.PositionOf(c.source, span.Offset).Line
}

func (c *Compiler) errorAt(span diag.Span, format string, args ...any) {
	c.report.Add(diag.Parse, span, format, args...)
}

func (c *Compiler) stringConst(s string, span diag.Span) byte {
	idx, err := c.current.chunk.AddStringConstant(s)
	if err != nil {
		c.errorAt(span, "%s", err.Error())
		return 0
	}
	return idx
}

// ---------------------------------------------------------------------------
// Scopes and variables
// ---------------------------------------------------------------------------

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

func (c *Compiler) endScope(line int) {
	fc := c.current
	fc.scopeDepth--
	for len(fc.locals) > 0 && fc.locals[len(fc.locals)-1].depth > fc.scopeDepth {
		last := fc.locals[len(fc.locals)-1]
		if last.isCaptured {
			fc.chunk.EmitOp(OpCloseUpvalue, line)
		} else {
			fc.chunk.EmitOp(OpPop, line)
		}
		fc.locals = fc.locals[:len(fc.locals)-1]
	}
}

func (c *Compiler) addLocal(name string) {
	fc := c.current
	if len(fc.locals) >= maxConstants {
		c.errorAt(diag.Span{}, "Too many local variables in function.")
		return
	}
	fc.locals = append(fc.locals, localVar{name: name, depth: fc.scopeDepth})
}

func resolveLocal(fc *funcCompiler, name string) (byte, bool) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			return byte(i), true
		}
	}
	return 0, false
}

func (c *Compiler) addUpvalue(fc *funcCompiler, index byte, isLocal bool) byte {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return byte(i)
		}
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal})
	fc.chunk.UpvalueCount = len(fc.upvalues)
	return byte(len(fc.upvalues) - 1)
}

func (c *Compiler) resolveUpvalue(fc *funcCompiler, name string) (byte, bool) {
	if fc.enclosing == nil {
		return 0, false
	}
	if idx, ok := resolveLocal(fc.enclosing, name); ok {
		fc.enclosing.locals[idx].isCaptured = true
		return c.addUpvalue(fc, idx, true), true
	}
	if idx, ok := c.resolveUpvalue(fc.enclosing, name); ok {
		return c.addUpvalue(fc, idx, false), true
	}
	return 0, false
}

func (c *Compiler) namedVariableGet(name string, span diag.Span) {
	line := c.lineOf(span)
	if idx, ok := resolveLocal(c.current, name); ok {
		c.current.chunk.EmitOpByte(OpGetLocal, idx, line)
		return
	}
	if idx, ok := c.resolveUpvalue(c.current, name); ok {
		c.current.chunk.EmitOpByte(OpGetUpvalue, idx, line)
		return
	}
	c.current.chunk.EmitOpByte(OpGetGlobal, c.stringConst(name, span), line)
}

func (c *Compiler) namedVariableSet(name string, span diag.Span) {
	line := c.lineOf(span)
	if idx, ok := resolveLocal(c.current, name); ok {
		c.current.chunk.EmitOpByte(OpSetLocal, idx, line)
		return
	}
	if idx, ok := c.resolveUpvalue(c.current, name); ok {
		c.current.chunk.EmitOpByte(OpSetUpvalue, idx, line)
		return
	}
	c.current.chunk.EmitOpByte(OpSetGlobal, c.stringConst(name, span), line)
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (c *Compiler) decl(d ast.Decl) {
	switch n := d.(type) {
	case *ast.VarDecl:
		c.varDecl(n)
	case *ast.FunDecl:
		c.funDecl(n)
	case *ast.ClassDecl:
		c.classDecl(n)
	case *ast.StmtDecl:
		c.stmt(n.Stmt)
	}
}

func (c *Compiler) varDecl(n *ast.VarDecl) {
	line := c.lineOf(n.Span())
	if n.Init != nil {
		c.expr(n.Init)
	} else {
		c.current.chunk.EmitOp(OpNil, line)
	}
	if c.current.scopeDepth > 0 {
		c.addLocal(n.Name)
		return
	}
	c.current.chunk.EmitOpByte(OpDefineGlobal, c.stringConst(n.Name, n.Span()), line)
}

func (c *Compiler) funDecl(n *ast.FunDecl) {
	local := c.current.scopeDepth > 0
	if local {
		c.addLocal(n.Name)
	}
	c.compileFunction(n, ftFunction)
	if !local {
		line := c.lineOf(n.Span())
		c.current.chunk.EmitOpByte(OpDefineGlobal, c.stringConst(n.Name, n.Span()), line)
	}
}

// compileFunction compiles n as a nested chunk and emits OpClosure in the
// enclosing chunk so the resulting value lands on the stack — at the
// local slot just reserved by the caller for named declarations, or as
// an operand to whatever expression is compiling it for anonymous use
// (there is none in Lox's grammar, but methods reuse this helper too).
func (c *Compiler) compileFunction(n *ast.FunDecl, fnType funcType) {
	enclosing := c.current
	c.current = newFuncCompiler(enclosing, fnType, n.Name)
	fc := c.current

	fc.chunk.Arity = len(n.Params)
	c.beginScope()
	for _, p := range n.Params {
		c.addLocal(p.Name)
	}
	for _, d := range n.Body {
		c.decl(d)
	}
	bodyEnd := c.lineOf(n.Span())
	if fnType == ftInitializer {
		c.current.chunk.EmitOpByte(OpGetLocal, 0, bodyEnd)
	} else {
		c.current.chunk.EmitOp(OpNil, bodyEnd)
	}
	c.current.chunk.EmitOp(OpReturn, bodyEnd)

	compiled := c.current
	c.current = enclosing

	fnConstIdx, err := enclosing.chunk.AddConstant(Constant{Kind: ConstFunction, Function: compiled.chunk, Str: n.Name})
	if err != nil {
		c.errorAt(n.Span(), "%s", err.Error())
	}
	line := c.lineOf(n.Span())
	enclosing.chunk.EmitOpByte(OpClosure, fnConstIdx, line)
	for _, uv := range compiled.upvalues {
		isLocal := byte(0)
		if uv.isLocal {
			isLocal = 1
		}
		enclosing.chunk.Emit(isLocal, line)
		enclosing.chunk.Emit(uv.index, line)
	}
}

func (c *Compiler) classDecl(n *ast.ClassDecl) {
	line := c.lineOf(n.Span())
	nameIdx := c.stringConst(n.Name, n.NameSpan)
	c.current.chunk.EmitOpByte(OpClass, nameIdx, line)

	if c.current.scopeDepth > 0 {
		c.addLocal(n.Name)
	} else {
		c.current.chunk.EmitOpByte(OpDefineGlobal, nameIdx, line)
	}

	c.class = &classScope{enclosing: c.class}
	defer func() { c.class = c.class.enclosing }()

	if n.Superclass != nil {
		// Push the superclass, reserve "super" directly over its slot, then
		// push the class again so OP_INHERIT can pop it, copy methods from
		// the peeked superclass, and push it straight back — leaving the
		// class on top and the superclass underneath as the "super" local.
		c.namedVariableGet(n.Superclass.Name, n.Superclass.Span())
		c.beginScope()
		c.addLocal("super")
		c.namedVariableGet(n.Name, n.NameSpan)
		c.current.chunk.EmitOp(OpInherit, c.lineOf(n.Superclass.Span()))
		c.class.hasSuperclass = true
	} else {
		c.namedVariableGet(n.Name, n.NameSpan)
	}

	for _, m := range n.Methods {
		fnType := ftMethod
		if m.Name == "init" {
			fnType = ftInitializer
		}
		c.compileFunction(m, fnType)
		methodIdx := c.stringConst(m.Name, m.Span())
		c.current.chunk.EmitOpByte(OpMethod, methodIdx, c.lineOf(m.Span()))
	}
	c.current.chunk.EmitOp(OpPop, line)

	if c.class.hasSuperclass {
		c.endScope(line)
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		c.expr(n.Expr)
		c.current.chunk.EmitOp(OpPop, c.lineOf(n.Span()))
	case *ast.PrintStmt:
		c.expr(n.Expr)
		c.current.chunk.EmitOp(OpPrint, c.lineOf(n.Span()))
	case *ast.ReturnStmt:
		line := c.lineOf(n.Span())
		if n.Value == nil {
			if c.current.fnType == ftInitializer {
				c.current.chunk.EmitOpByte(OpGetLocal, 0, line)
			} else {
				c.current.chunk.EmitOp(OpNil, line)
			}
		} else {
			c.expr(n.Value)
		}
		c.current.chunk.EmitOp(OpReturn, line)
	case *ast.BlockStmt:
		c.beginScope()
		for _, d := range n.Decls {
			c.decl(d)
		}
		c.endScope(c.lineOf(n.Span()))
	case *ast.IfStmt:
		c.expr(n.Cond)
		line := c.lineOf(n.Cond.Span())
		thenJump := c.current.chunk.EmitJump(OpJumpIfFalse, line)
		c.current.chunk.EmitOp(OpPop, line)
		c.stmt(n.Then)
		elseJump := c.current.chunk.EmitJump(OpJump, line)
		c.current.chunk.PatchJump(thenJump)
		c.current.chunk.EmitOp(OpPop, line)
		if n.Else != nil {
			c.stmt(n.Else)
		}
		c.current.chunk.PatchJump(elseJump)
	case *ast.WhileStmt:
		line := c.lineOf(n.Cond.Span())
		loopStart := c.current.chunk.CurrentOffset()
		c.expr(n.Cond)
		exitJump := c.current.chunk.EmitJump(OpJumpIfFalse, line)
		c.current.chunk.EmitOp(OpPop, line)
		c.stmt(n.Body)
		c.current.chunk.EmitLoop(loopStart, line)
		c.current.chunk.PatchJump(exitJump)
		c.current.chunk.EmitOp(OpPop, line)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) expr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Literal:
		c.literal(n)
	case *ast.Grouping:
		c.expr(n.Inner)
	case *ast.Unary:
		c.expr(n.Operand)
		switch n.Op {
		case ast.UnaryNegate:
			c.current.chunk.EmitOp(OpNegate, c.lineOf(n.OpSpan))
		case ast.UnaryNot:
			c.current.chunk.EmitOp(OpNot, c.lineOf(n.OpSpan))
		}
	case *ast.Binary:
		c.expr(n.Left)
		c.expr(n.Right)
		c.current.chunk.EmitOp(binaryOpcode(n.Op), c.lineOf(n.OpSpan))
	case *ast.Logical:
		c.logical(n)
	case *ast.Variable:
		c.namedVariableGet(n.Name, n.Span())
	case *ast.Assign:
		c.expr(n.Value)
		c.namedVariableSet(n.Name, n.TargetSpan)
	case *ast.Call:
		c.call(n)
	case *ast.Get:
		c.expr(n.Object)
		c.current.chunk.EmitOpByte(OpGetProperty, c.stringConst(n.Name, n.Span()), c.lineOf(n.Span()))
	case *ast.Set:
		c.expr(n.Object)
		c.expr(n.Value)
		c.current.chunk.EmitOpByte(OpSetProperty, c.stringConst(n.Name, n.Span()), c.lineOf(n.Span()))
	case *ast.This:
		c.namedVariableGet("this", n.Span())
	case *ast.Super:
		c.namedVariableGet("this", n.Span())
		c.namedVariableGet("super", n.Span())
		c.current.chunk.EmitOpByte(OpGetSuper, c.stringConst(n.Method, n.Span()), c.lineOf(n.Span()))
	}
}

func (c *Compiler) literal(n *ast.Literal) {
	line := c.lineOf(n.Span())
	switch n.Kind {
	case ast.LiteralNumber:
		idx, err := c.current.chunk.AddConstant(Constant{Kind: ConstNumber, Number: n.Number})
		if err != nil {
			c.errorAt(n.Span(), "%s", err.Error())
		}
		c.current.chunk.EmitOpByte(OpConstant, idx, line)
	case ast.LiteralString:
		c.current.chunk.EmitOpByte(OpConstant, c.stringConst(n.Str, n.Span()), line)
	case ast.LiteralBool:
		if n.Bool {
			c.current.chunk.EmitOp(OpTrue, line)
		} else {
			c.current.chunk.EmitOp(OpFalse, line)
		}
	case ast.LiteralNil:
		c.current.chunk.EmitOp(OpNil, line)
	}
}

func (c *Compiler) logical(n *ast.Logical) {
	line := c.lineOf(n.Span())
	c.expr(n.Left)
	if n.Op == ast.LogicalAnd {
		jump := c.current.chunk.EmitJump(OpJumpIfFalse, line)
		c.current.chunk.EmitOp(OpPop, line)
		c.expr(n.Right)
		c.current.chunk.PatchJump(jump)
		return
	}
	elseJump := c.current.chunk.EmitJump(OpJumpIfFalse, line)
	endJump := c.current.chunk.EmitJump(OpJump, line)
	c.current.chunk.PatchJump(elseJump)
	c.current.chunk.EmitOp(OpPop, line)
	c.expr(n.Right)
	c.current.chunk.PatchJump(endJump)
}

// call implements the §4.6 method-invocation fusion: a call whose callee
// is a property-get or a super-get compiles straight to OpInvoke /
// OpSuperInvoke instead of materializing a bound-method value first.
func (c *Compiler) call(n *ast.Call) {
	line := c.lineOf(n.ParenSpan)
	switch callee := n.Callee.(type) {
	case *ast.Get:
		c.expr(callee.Object)
		for _, a := range n.Args {
			c.expr(a)
		}
		c.current.chunk.Emit(byte(OpInvoke), line)
		c.current.chunk.Emit(c.stringConst(callee.Name, callee.Span()), line)
		c.current.chunk.Emit(byte(len(n.Args)), line)
	case *ast.Super:
		c.namedVariableGet("this", callee.Span())
		for _, a := range n.Args {
			c.expr(a)
		}
		c.namedVariableGet("super", callee.Span())
		c.current.chunk.Emit(byte(OpSuperInvoke), line)
		c.current.chunk.Emit(c.stringConst(callee.Method, callee.Span()), line)
		c.current.chunk.Emit(byte(len(n.Args)), line)
	default:
		c.expr(n.Callee)
		for _, a := range n.Args {
			c.expr(a)
		}
		c.current.chunk.EmitOpByte(OpCall, byte(len(n.Args)), line)
	}
}

func binaryOpcode(op ast.BinaryOp) Opcode {
	switch op {
	case ast.BinAdd:
		return OpAdd
	case ast.BinSub:
		return OpSub
	case ast.BinMul:
		return OpMul
	case ast.BinDiv:
		return OpDiv
	case ast.BinEqual:
		return OpEqual
	case ast.BinNotEqual:
		return OpNotEqual
	case ast.BinLess:
		return OpLess
	case ast.BinLessEqual:
		return OpLessEqual
	case ast.BinGreater:
		return OpGreater
	case ast.BinGreaterEqual:
		return OpGreaterEqual
	default:
		return OpNop
	}
}
