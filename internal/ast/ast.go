// Package ast defines the Lox abstract syntax tree: the three mutually
// referential sum types from spec §3.3 (Declaration, Statement, Expression),
// plus the stable per-expression identity the resolver keys its scope-depth
// map on.
//
// Grounded on the teacher's compiler/ast.go: a `Node` marker-method
// interface per tree level, a `Span` carried by every node, and one
// exported struct per grammar production rather than a single tagged
// union — matching how spec §3.3 enumerates each kind by name.
package ast

import "github.com/tallowlang/lox/internal/diag"

// ExprID is a unique identifier allocated in source order for every
// expression node. The resolver keys its resolution map on ExprID; two
// syntactically identical expressions at different positions are distinct
// ids (spec §3.3 "Expression identity").
type ExprID int64

// Decl is a top-level or block-level declaration.
type Decl interface {
	declNode()
	Span() diag.Span
}

// Stmt is a statement that introduces no new binding visible outside
// itself (other than via a wrapped Decl in a Block's body).
type Stmt interface {
	stmtNode()
	Span() diag.Span
}

// Expr is an expression. Every Expr has a stable ExprID, allocated once at
// parse time, that survives for the lifetime of the AST.
type Expr interface {
	exprNode()
	ID() ExprID
	Span() diag.Span
}

// exprBase is embedded by every concrete Expr to supply ID() and Span().
type exprBase struct {
	id   ExprID
	span diag.Span
}

func (e exprBase) ID() ExprID      { return e.id }
func (e exprBase) Span() diag.Span { return e.span }

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// ClassDecl: `class NAME < SUPERCLASS? { METHOD* }`.
type ClassDecl struct {
	SpanVal    diag.Span
	Name       string
	NameSpan   diag.Span
	Superclass *Variable // nil if no superclass clause
	Methods    []*FunDecl
}

func (d *ClassDecl) declNode()        {}
func (d *ClassDecl) Span() diag.Span { return d.SpanVal }

// FunDecl: `fun NAME(PARAMS) { BODY }`. Also used for the methods of a
// ClassDecl, where Name holds the method's name.
type FunDecl struct {
	SpanVal diag.Span
	Name    string
	Params  []Param
	Body    []Decl
}

// Param is a function/method parameter.
type Param struct {
	Name string
	Span diag.Span
}

func (d *FunDecl) declNode()        {}
func (d *FunDecl) Span() diag.Span { return d.SpanVal }

// VarDecl: `var NAME = INIT?;`.
type VarDecl struct {
	SpanVal diag.Span
	Name    string
	Init    Expr // nil if uninitialized (implicitly nil)
}

func (d *VarDecl) declNode()        {}
func (d *VarDecl) Span() diag.Span { return d.SpanVal }

// StmtDecl wraps a Stmt so it can appear in a Decl slice (every
// non-declaration statement is, structurally, a declaration that declares
// nothing).
type StmtDecl struct {
	Stmt Stmt
}

func (d *StmtDecl) declNode()        {}
func (d *StmtDecl) Span() diag.Span { return d.Stmt.Span() }

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ExprStmt: an expression evaluated for its side effect.
type ExprStmt struct {
	SpanVal diag.Span
	Expr    Expr
}

func (s *ExprStmt) stmtNode()        {}
func (s *ExprStmt) Span() diag.Span { return s.SpanVal }

// PrintStmt: `print EXPR;`.
type PrintStmt struct {
	SpanVal diag.Span
	Expr    Expr
}

func (s *PrintStmt) stmtNode()        {}
func (s *PrintStmt) Span() diag.Span { return s.SpanVal }

// ReturnStmt: `return EXPR?;`. Value is nil for a bare `return;`.
type ReturnStmt struct {
	SpanVal diag.Span
	Value   Expr
}

func (s *ReturnStmt) stmtNode()        {}
func (s *ReturnStmt) Span() diag.Span { return s.SpanVal }

// BlockStmt: `{ DECL* }`, introducing a new lexical scope.
type BlockStmt struct {
	SpanVal diag.Span
	Decls   []Decl
}

func (s *BlockStmt) stmtNode()        {}
func (s *BlockStmt) Span() diag.Span { return s.SpanVal }

// IfStmt: `if (COND) THEN else ELSE?`.
type IfStmt struct {
	SpanVal diag.Span
	Cond    Expr
	Then    Stmt
	Else    Stmt // nil if no else clause
}

func (s *IfStmt) stmtNode()        {}
func (s *IfStmt) Span() diag.Span { return s.SpanVal }

// WhileStmt: `while (COND) BODY`. The parser desugars `for` into this form
// wrapped in a BlockStmt (spec §3.3): no For node ever exists.
type WhileStmt struct {
	SpanVal diag.Span
	Cond    Expr
	Body    Stmt
}

func (s *WhileStmt) stmtNode()        {}
func (s *WhileStmt) Span() diag.Span { return s.SpanVal }

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// LiteralKind distinguishes the payload carried by a Literal node.
type LiteralKind int

const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBool
	LiteralNil
)

// Literal is a number, string, boolean, or nil constant.
type Literal struct {
	exprBase
	Kind   LiteralKind
	Number float64
	Str    string
	Bool   bool
}

func NewLiteral(id ExprID, span diag.Span, kind LiteralKind) *Literal {
	return &Literal{exprBase: exprBase{id, span}, Kind: kind}
}
func (e *Literal) exprNode() {}

// Grouping: `( EXPR )`.
type Grouping struct {
	exprBase
	Inner Expr
}

func NewGrouping(id ExprID, span diag.Span, inner Expr) *Grouping {
	return &Grouping{exprBase{id, span}, inner}
}
func (e *Grouping) exprNode() {}

// UnaryOp is the operator of a Unary expression.
type UnaryOp int

const (
	UnaryNegate UnaryOp = iota // -
	UnaryNot                   // !
)

// Unary: `(- | !) EXPR`.
type Unary struct {
	exprBase
	Op      UnaryOp
	OpSpan  diag.Span
	Operand Expr
}

func NewUnary(id ExprID, span diag.Span, op UnaryOp, opSpan diag.Span, operand Expr) *Unary {
	return &Unary{exprBase{id, span}, op, opSpan, operand}
}
func (e *Unary) exprNode() {}

// BinaryOp is the operator of a Binary expression (arithmetic, comparison,
// equality — NOT `and`/`or`, which are Logical per spec §3.3).
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinEqual
	BinNotEqual
	BinLess
	BinLessEqual
	BinGreater
	BinGreaterEqual
)

// Binary: arithmetic, comparison, and equality expressions.
type Binary struct {
	exprBase
	Left   Expr
	Op     BinaryOp
	OpSpan diag.Span
	Right  Expr
}

func NewBinary(id ExprID, span diag.Span, left Expr, op BinaryOp, opSpan diag.Span, right Expr) *Binary {
	return &Binary{exprBase{id, span}, left, op, opSpan, right}
}
func (e *Binary) exprNode() {}

// LogicalOp is `and` or `or` — distinct from BinaryOp because these
// short-circuit (spec §3.3, §5).
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

// Logical: `EXPR (and|or) EXPR`, short-circuiting.
type Logical struct {
	exprBase
	Left  Expr
	Op    LogicalOp
	Right Expr
}

func NewLogical(id ExprID, span diag.Span, left Expr, op LogicalOp, right Expr) *Logical {
	return &Logical{exprBase{id, span}, left, op, right}
}
func (e *Logical) exprNode() {}

// Variable: a bare name reference. Name is resolved by the resolver
// (§4.3) into a scope depth keyed by this node's ExprID.
type Variable struct {
	exprBase
	Name string
}

func NewVariable(id ExprID, span diag.Span, name string) *Variable {
	return &Variable{exprBase{id, span}, name}
}
func (e *Variable) exprNode() {}

// Assign: `NAME = VALUE`, where the target was a Variable at parse time
// (stored here by name). A property-access target parses to Set instead.
type Assign struct {
	exprBase
	TargetSpan diag.Span
	Name       string
	Value      Expr
}

func NewAssign(id ExprID, span diag.Span, targetSpan diag.Span, name string, value Expr) *Assign {
	return &Assign{exprBase{id, span}, targetSpan, name, value}
}
func (e *Assign) exprNode() {}

// Call: `CALLEE(ARGS)`.
type Call struct {
	exprBase
	Callee    Expr
	Args      []Expr
	ParenSpan diag.Span // span of the closing paren, for runtime-error line reporting
}

func NewCall(id ExprID, span diag.Span, callee Expr, args []Expr, parenSpan diag.Span) *Call {
	return &Call{exprBase{id, span}, callee, args, parenSpan}
}
func (e *Call) exprNode() {}

// Get: `OBJECT.NAME` — a property read.
type Get struct {
	exprBase
	Object Expr
	Name   string
}

func NewGet(id ExprID, span diag.Span, object Expr, name string) *Get {
	return &Get{exprBase{id, span}, object, name}
}
func (e *Get) exprNode() {}

// Set: `OBJECT.NAME = VALUE` — a property write.
type Set struct {
	exprBase
	Object Expr
	Name   string
	Value  Expr
}

func NewSet(id ExprID, span diag.Span, object Expr, name string, value Expr) *Set {
	return &Set{exprBase{id, span}, object, name, value}
}
func (e *Set) exprNode() {}

// This: the `this` keyword, valid only inside method bodies.
type This struct {
	exprBase
}

func NewThis(id ExprID, span diag.Span) *This { return &This{exprBase{id, span}} }
func (e *This) exprNode()                     {}

// Super: `super.METHOD`, valid only inside subclass methods.
type Super struct {
	exprBase
	Method string
}

func NewSuper(id ExprID, span diag.Span, method string) *Super {
	return &Super{exprBase{id, span}, method}
}
func (e *Super) exprNode() {}
