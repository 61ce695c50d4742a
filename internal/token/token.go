// Package token defines the lexical tokens produced by internal/lexer and
// consumed by internal/parser.
package token

import (
	"fmt"

	"github.com/tallowlang/lox/internal/diag"
)

// Kind identifies a token's lexical category.
type Kind int

const (
	// Literals
	Number Kind = iota
	String
	True
	False
	Nil

	// Single-character operators and delimiters
	Plus
	Minus
	Star
	Slash
	Equal
	EqualEqual
	BangEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	Bang
	Dot
	LeftParen
	RightParen
	LeftBrace
	RightBrace
	Comma
	Semicolon

	// Keywords
	And
	Class
	Else
	For
	Fun
	If
	Or
	Print
	Return
	Super
	This
	Var
	While

	Identifier
	EOF
)

var names = map[Kind]string{
	Number: "NUMBER", String: "STRING", True: "TRUE", False: "FALSE", Nil: "NIL",
	Plus: "+", Minus: "-", Star: "*", Slash: "/",
	Equal: "=", EqualEqual: "==", BangEqual: "!=",
	Less: "<", LessEqual: "<=", Greater: ">", GreaterEqual: ">=", Bang: "!",
	Dot: ".", LeftParen: "(", RightParen: ")", LeftBrace: "{", RightBrace: "}",
	Comma: ",", Semicolon: ";",
	And: "and", Class: "class", Else: "else", For: "for", Fun: "fun", If: "if",
	Or: "or", Print: "print", Return: "return", Super: "super", This: "this",
	Var: "var", While: "while",
	Identifier: "IDENTIFIER", EOF: "EOF",
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keywords maps reclassified identifier lexemes to their keyword Kind.
// The scanner matches the longest identifier run first, then consults this
// table — it never special-cases keyword characters during scanning itself.
var Keywords = map[string]Kind{
	"and": And, "class": Class, "else": Else, "false": False, "for": For,
	"fun": Fun, "if": If, "nil": Nil, "or": Or, "print": Print, "return": Return,
	"super": Super, "this": This, "true": True, "var": Var, "while": While,
}

// Token is `{ kind, lexeme, span }` — the scanner's sole output unit.
type Token struct {
	Kind   Kind
	Lexeme string
	Span   diag.Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q", t.Kind, t.Lexeme)
}
