package parser

import (
	"strconv"

	"github.com/tallowlang/lox/internal/ast"
	"github.com/tallowlang/lox/internal/lexer"
	"github.com/tallowlang/lox/internal/token"
)

// expression is the entry point of the precedence ladder (spec §4.2):
// assignment → or → and → equality → comparison → addition →
// multiplication → unary → call/property → primary.
func (p *Parser) expression() ast.Expr {
	return p.assignment()
}

// assignment parses an or-expression, then — if followed by '=' — treats
// that expression as an assignment target. Only a Variable or a Get
// expression is a valid target; anything else is a parse error that does
// not consume the '=' (spec §4.2).
func (p *Parser) assignment() ast.Expr {
	target := p.or()

	if !p.check(token.Equal) {
		return target
	}
	eq := p.cur()
	switch target.(type) {
	case *ast.Variable, *ast.Get:
	default:
		p.errorAt(eq, "Invalid assignment target.")
		return target
	}
	p.advance()
	value := p.assignment()

	switch t := target.(type) {
	case *ast.Variable:
		return ast.NewAssign(p.ids.Next(), spanTo(target.Span(), value.Span()), t.Span(), t.Name, value)
	case *ast.Get:
		return ast.NewSet(p.ids.Next(), spanTo(target.Span(), value.Span()), t.Object, t.Name, value)
	}
	return target
}

func (p *Parser) or() ast.Expr {
	left := p.and()
	for p.check(token.Or) {
		p.advance()
		right := p.and()
		left = ast.NewLogical(p.ids.Next(), spanTo(left.Span(), right.Span()), left, ast.LogicalOr, right)
	}
	return left
}

func (p *Parser) and() ast.Expr {
	left := p.equality()
	for p.check(token.And) {
		p.advance()
		right := p.equality()
		left = ast.NewLogical(p.ids.Next(), spanTo(left.Span(), right.Span()), left, ast.LogicalAnd, right)
	}
	return left
}

func (p *Parser) equality() ast.Expr {
	left := p.comparison()
	for p.check(token.EqualEqual) || p.check(token.BangEqual) {
		opTok := p.advance()
		op := ast.BinEqual
		if opTok.Kind == token.BangEqual {
			op = ast.BinNotEqual
		}
		right := p.comparison()
		left = ast.NewBinary(p.ids.Next(), spanTo(left.Span(), right.Span()), left, op, opTok.Span, right)
	}
	return left
}

func (p *Parser) comparison() ast.Expr {
	left := p.addition()
	for p.check(token.Less) || p.check(token.LessEqual) || p.check(token.Greater) || p.check(token.GreaterEqual) {
		opTok := p.advance()
		var op ast.BinaryOp
		switch opTok.Kind {
		case token.Less:
			op = ast.BinLess
		case token.LessEqual:
			op = ast.BinLessEqual
		case token.Greater:
			op = ast.BinGreater
		default:
			op = ast.BinGreaterEqual
		}
		right := p.addition()
		left = ast.NewBinary(p.ids.Next(), spanTo(left.Span(), right.Span()), left, op, opTok.Span, right)
	}
	return left
}

func (p *Parser) addition() ast.Expr {
	left := p.multiplication()
	for p.check(token.Plus) || p.check(token.Minus) {
		opTok := p.advance()
		op := ast.BinAdd
		if opTok.Kind == token.Minus {
			op = ast.BinSub
		}
		right := p.multiplication()
		left = ast.NewBinary(p.ids.Next(), spanTo(left.Span(), right.Span()), left, op, opTok.Span, right)
	}
	return left
}

func (p *Parser) multiplication() ast.Expr {
	left := p.unary()
	for p.check(token.Star) || p.check(token.Slash) {
		opTok := p.advance()
		op := ast.BinMul
		if opTok.Kind == token.Slash {
			op = ast.BinDiv
		}
		right := p.unary()
		left = ast.NewBinary(p.ids.Next(), spanTo(left.Span(), right.Span()), left, op, opTok.Span, right)
	}
	return left
}

func (p *Parser) unary() ast.Expr {
	if p.check(token.Bang) || p.check(token.Minus) {
		opTok := p.advance()
		op := ast.UnaryNot
		if opTok.Kind == token.Minus {
			op = ast.UnaryNegate
		}
		operand := p.unary()
		return ast.NewUnary(p.ids.Next(), spanTo(opTok.Span, operand.Span()), op, opTok.Span, operand)
	}
	return p.call()
}

// call parses a primary expression followed by zero or more call or
// property-access suffixes.
func (p *Parser) call() ast.Expr {
	e := p.primary()
	for {
		switch {
		case p.check(token.LeftParen):
			e = p.finishCall(e)
		case p.check(token.Dot):
			p.advance()
			nameTok, ok := p.expect(token.Identifier, "Expect property name after '.'.")
			if !ok {
				return e
			}
			e = ast.NewGet(p.ids.Next(), spanTo(e.Span(), nameTok.Span), e, nameTok.Lexeme)
		default:
			return e
		}
	}
}

func (p *Parser) finishCall(callee ast.Expr) ast.Expr {
	p.advance() // '('
	var args []ast.Expr
	if !p.check(token.RightParen) {
		for {
			if len(args) >= maxArgs {
				p.errorAt(p.cur(), "Can't have more than %d arguments.", maxArgs)
			}
			args = append(args, p.expression())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	closeParen, _ := p.expect(token.RightParen, "Expect ')' after arguments.")
	return ast.NewCall(p.ids.Next(), spanTo(callee.Span(), closeParen.Span), callee, args, closeParen.Span)
}

func (p *Parser) primary() ast.Expr {
	t := p.cur()
	switch t.Kind {
	case token.False:
		p.advance()
		lit := ast.NewLiteral(p.ids.Next(), t.Span, ast.LiteralBool)
		lit.Bool = false
		return lit
	case token.True:
		p.advance()
		lit := ast.NewLiteral(p.ids.Next(), t.Span, ast.LiteralBool)
		lit.Bool = true
		return lit
	case token.Nil:
		p.advance()
		return ast.NewLiteral(p.ids.Next(), t.Span, ast.LiteralNil)
	case token.Number:
		p.advance()
		n, err := strconv.ParseFloat(t.Lexeme, 64)
		if err != nil {
			p.errorAt(t, "Invalid number literal '%s'.", t.Lexeme)
		}
		lit := ast.NewLiteral(p.ids.Next(), t.Span, ast.LiteralNumber)
		lit.Number = n
		return lit
	case token.String:
		p.advance()
		lit := ast.NewLiteral(p.ids.Next(), t.Span, ast.LiteralString)
		lit.Str = lexer.DecodeString(t.Lexeme)
		return lit
	case token.This:
		p.advance()
		return ast.NewThis(p.ids.Next(), t.Span)
	case token.Super:
		p.advance()
		if _, ok := p.expect(token.Dot, "Expect '.' after 'super'."); !ok {
			return ast.NewSuper(p.ids.Next(), t.Span, "")
		}
		methodTok, ok := p.expect(token.Identifier, "Expect superclass method name.")
		if !ok {
			return ast.NewSuper(p.ids.Next(), t.Span, "")
		}
		return ast.NewSuper(p.ids.Next(), spanTo(t.Span, methodTok.Span), methodTok.Lexeme)
	case token.Identifier:
		p.advance()
		return ast.NewVariable(p.ids.Next(), t.Span, t.Lexeme)
	case token.LeftParen:
		p.advance()
		inner := p.expression()
		closeParen, _ := p.expect(token.RightParen, "Expect ')' after expression.")
		return ast.NewGrouping(p.ids.Next(), spanTo(t.Span, closeParen.Span), inner)
	default:
		p.errorAt(t, "Expect expression.")
		// Return a placeholder nil literal so the caller can keep building
		// a tree; the accumulated error is what ultimately matters.
		if !p.atEnd() {
			p.advance()
		}
		return ast.NewLiteral(p.ids.Next(), t.Span, ast.LiteralNil)
	}
}
