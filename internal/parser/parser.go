// Package parser implements the hand-rolled recursive-descent parser from
// spec §4.2: one-token lookahead, a precedence ladder from assignment down
// to primary, panic-mode synchronization on error, and desugaring of `for`
// into `while` at parse time.
//
// Grounded on the teacher's compiler/parser.go: a curToken/peekToken
// lookahead pair advanced by nextToken(), an expect() helper that both
// checks and advances, and errors accumulated across the whole parse
// rather than aborting on the first one.
package parser

import (
	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/diag"
	"github.com/tallowlang/lox/internal/token"
)

const maxArgs = 255

// Parser parses a token stream produced by internal/lexer into an AST.
type Parser struct {
	toks []token.Token
	pos  int
	ids  ast.IDAllocator

	report diag.Report
}

// New creates a Parser over toks. file names the source file in reported
// diagnostics.
func New(toks []token.Token, file string) *Parser {
	p := &Parser{toks: toks}
	p.report.File = file
	return p
}

// ParseProgram parses the full token stream as a sequence of top-level
// declarations and returns them along with any accumulated parse errors.
func ParseProgram(toks []token.Token, file string) ([]ast.Decl, diag.Report) {
	p := New(toks, file)
	var program []ast.Decl
	for !p.atEnd() {
		d := p.declaration()
		if d != nil {
			program = append(program, d)
		}
	}
	return program, p.report
}

// ---------------------------------------------------------------------------
// Token stream primitives
// ---------------------------------------------------------------------------

func (p *Parser) cur() token.Token {
	return p.toks[p.pos]
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) atEnd() bool {
	return p.cur().Kind == token.EOF
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) check(k token.Kind) bool {
	return p.cur().Kind == k
}

// match advances and returns true if the current token is one of ks.
func (p *Parser) match(ks ...token.Kind) bool {
	for _, k := range ks {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

// expect consumes the current token if it matches k, otherwise records a
// parse error at the current token's span and returns the zero Token
// without advancing (the caller's synchronize() call cleans this up).
func (p *Parser) expect(k token.Kind, message string) (token.Token, bool) {
	if p.check(k) {
		return p.advance(), true
	}
	p.errorAt(p.cur(), message)
	return token.Token{}, false
}

func (p *Parser) errorAt(t token.Token, format string, args ...any) {
	p.report.Add(diag.Parse, t.Span, format, args...)
}

// synchronize discards tokens until a statement boundary, per spec §4.2:
// a statement-starting keyword or a semicolon. A consumed semicolon ends
// the discarded statement; a keyword is left in place for the next
// declaration() call to pick up.
func (p *Parser) synchronize() {
	for !p.atEnd() {
		if p.check(token.Semicolon) {
			p.advance()
			return
		}
		switch p.cur().Kind {
		case token.Class, token.Fun, token.Var, token.For, token.If, token.While, token.Print, token.Return:
			return
		}
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (p *Parser) declaration() ast.Decl {
	var d ast.Decl
	switch {
	case p.check(token.Class):
		d = p.classDecl()
	case p.check(token.Fun) && p.peek().Kind == token.Identifier:
		p.advance()
		d = p.function("function")
	case p.check(token.Var):
		d = p.varDecl()
	default:
		d = &ast.StmtDecl{Stmt: p.statement()}
	}
	return d
}

func (p *Parser) classDecl() ast.Decl {
	start := p.advance().Span // 'class'
	nameTok, ok := p.expect(token.Identifier, "Expect class name.")
	if !ok {
		p.synchronize()
		return nil
	}

	var superclass *ast.Variable
	if p.match(token.Less) {
		superTok, ok := p.expect(token.Identifier, "Expect superclass name.")
		if !ok {
			p.synchronize()
			return nil
		}
		superclass = ast.NewVariable(p.ids.Next(), superTok.Span, superTok.Lexeme)
	}

	if _, ok := p.expect(token.LeftBrace, "Expect '{' before class body."); !ok {
		p.synchronize()
		return nil
	}

	var methods []*ast.FunDecl
	for !p.check(token.RightBrace) && !p.atEnd() {
		m := p.function("method")
		if fd, ok := m.(*ast.FunDecl); ok {
			methods = append(methods, fd)
		}
	}
	end, _ := p.expect(token.RightBrace, "Expect '}' after class body.")

	return &ast.ClassDecl{
		SpanVal:    diag.Span{Offset: start.Offset, Length: end.Span.End() - start.Offset},
		Name:       nameTok.Lexeme,
		NameSpan:   nameTok.Span,
		Superclass: superclass,
		Methods:    methods,
	}
}

// function parses `NAME(PARAMS) { BODY }` — used both for `fun NAME(...)`
// top-level declarations (the leading `fun` already consumed) and for
// method definitions inside a class body (no leading keyword).
func (p *Parser) function(kind string) ast.Decl {
	nameTok, ok := p.expect(token.Identifier, "Expect "+kind+" name.")
	if !ok {
		p.synchronize()
		return nil
	}
	if _, ok := p.expect(token.LeftParen, "Expect '(' after "+kind+" name."); !ok {
		p.synchronize()
		return nil
	}

	var params []ast.Param
	if !p.check(token.RightParen) {
		for {
			if len(params) >= maxArgs {
				p.errorAt(p.cur(), "Can't have more than %d parameters.", maxArgs)
			}
			pt, ok := p.expect(token.Identifier, "Expect parameter name.")
			if !ok {
				break
			}
			params = append(params, ast.Param{Name: pt.Lexeme, Span: pt.Span})
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if _, ok := p.expect(token.RightParen, "Expect ')' after parameters."); !ok {
		p.synchronize()
		return nil
	}
	if _, ok := p.expect(token.LeftBrace, "Expect '{' before "+kind+" body."); !ok {
		p.synchronize()
		return nil
	}
	body := p.block()
	p.expect(token.RightBrace, "Expect '}' after "+kind+" body.")

	return &ast.FunDecl{
		SpanVal: nameTok.Span,
		Name:    nameTok.Lexeme,
		Params:  params,
		Body:    body,
	}
}

func (p *Parser) varDecl() ast.Decl {
	start := p.advance().Span // 'var'
	nameTok, ok := p.expect(token.Identifier, "Expect variable name.")
	if !ok {
		p.synchronize()
		return nil
	}
	var init ast.Expr
	if p.match(token.Equal) {
		init = p.expression()
	}
	p.expect(token.Semicolon, "Expect ';' after variable declaration.")
	return &ast.VarDecl{
		SpanVal: diag.Span{Offset: start.Offset, Length: nameTok.Span.End() - start.Offset},
		Name:    nameTok.Lexeme,
		Init:    init,
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.check(token.Print):
		return p.printStmt()
	case p.check(token.LeftBrace):
		return p.blockStmt()
	case p.check(token.If):
		return p.ifStmt()
	case p.check(token.While):
		return p.whileStmt()
	case p.check(token.For):
		return p.forStmt()
	case p.check(token.Return):
		return p.returnStmt()
	default:
		return p.exprStmt()
	}
}

func (p *Parser) printStmt() ast.Stmt {
	start := p.advance().Span // 'print'
	e := p.expression()
	end, _ := p.expect(token.Semicolon, "Expect ';' after value.")
	return &ast.PrintStmt{SpanVal: spanTo(start, end.Span), Expr: e}
}

func (p *Parser) exprStmt() ast.Stmt {
	e := p.expression()
	span := e.Span()
	if end, ok := p.expect(token.Semicolon, "Expect ';' after expression."); ok {
		span = spanTo(span, end.Span)
	}
	return &ast.ExprStmt{SpanVal: span, Expr: e}
}

func (p *Parser) returnStmt() ast.Stmt {
	start := p.advance().Span // 'return'
	var value ast.Expr
	if !p.check(token.Semicolon) {
		value = p.expression()
	}
	end, _ := p.expect(token.Semicolon, "Expect ';' after return value.")
	return &ast.ReturnStmt{SpanVal: spanTo(start, end.Span), Value: value}
}

func (p *Parser) blockStmt() ast.Stmt {
	start := p.advance().Span // '{'
	decls := p.block()
	end, _ := p.expect(token.RightBrace, "Expect '}' after block.")
	return &ast.BlockStmt{SpanVal: spanTo(start, end.Span), Decls: decls}
}

// block parses declarations up to (but not consuming) the closing brace.
// Callers that already consumed the opening brace use this directly;
// blockStmt wraps it with span bookkeeping and the closing-brace check.
func (p *Parser) block() []ast.Decl {
	var decls []ast.Decl
	for !p.check(token.RightBrace) && !p.atEnd() {
		d := p.declaration()
		if d != nil {
			decls = append(decls, d)
		}
	}
	return decls
}

func (p *Parser) ifStmt() ast.Stmt {
	start := p.advance().Span // 'if'
	p.expect(token.LeftParen, "Expect '(' after 'if'.")
	cond := p.expression()
	p.expect(token.RightParen, "Expect ')' after if condition.")
	then := p.statement()
	var elseBranch ast.Stmt
	if p.match(token.Else) {
		elseBranch = p.statement()
	}
	return &ast.IfStmt{SpanVal: start, Cond: cond, Then: then, Else: elseBranch}
}

func (p *Parser) whileStmt() ast.Stmt {
	start := p.advance().Span // 'while'
	p.expect(token.LeftParen, "Expect '(' after 'while'.")
	cond := p.expression()
	p.expect(token.RightParen, "Expect ')' after condition.")
	body := p.statement()
	return &ast.WhileStmt{SpanVal: start, Cond: cond, Body: body}
}

// forStmt desugars `for (init; cond; step) body` into
// `{ init; while (cond) { body; step; } }` at parse time — no For node
// ever exists (spec §3.3).
func (p *Parser) forStmt() ast.Stmt {
	start := p.advance().Span // 'for'
	p.expect(token.LeftParen, "Expect '(' after 'for'.")

	var init ast.Decl
	switch {
	case p.match(token.Semicolon):
		// no initializer
	case p.check(token.Var):
		init = p.varDecl()
	default:
		init = &ast.StmtDecl{Stmt: p.exprStmt()}
	}

	var cond ast.Expr
	if !p.check(token.Semicolon) {
		cond = p.expression()
	}
	p.expect(token.Semicolon, "Expect ';' after loop condition.")

	var step ast.Expr
	if !p.check(token.RightParen) {
		step = p.expression()
	}
	p.expect(token.RightParen, "Expect ')' after for clauses.")

	body := p.statement()

	if step != nil {
		body = &ast.BlockStmt{SpanVal: body.Span(), Decls: []ast.Decl{
			&ast.StmtDecl{Stmt: body},
			&ast.StmtDecl{Stmt: &ast.ExprStmt{SpanVal: step.Span(), Expr: step}},
		}}
	}
	if cond == nil {
		cond = ast.NewLiteral(p.ids.Next(), start, ast.LiteralBool)
		cond.(*ast.Literal).Bool = true
	}
	var loop ast.Stmt = &ast.WhileStmt{SpanVal: start, Cond: cond, Body: body}

	if init != nil {
		loop = &ast.BlockStmt{SpanVal: start, Decls: []ast.Decl{init, &ast.StmtDecl{Stmt: loop}}}
	}
	return loop
}

func spanTo(a, b diag.Span) diag.Span {
	end := b.End()
	if end < a.End() {
		end = a.End()
	}
	return diag.Span{Offset: a.Offset, Length: end - a.Offset}
}
