// Package lexer tokenizes Lox source text into a token stream, per spec §4.1.
//
// Grounded on the teacher's compiler/lexer.go: a rune-at-a-time scanner with
// readChar()/peekChar() advancing byte offsets, reporting errors inline
// rather than panicking, and reclassifying identifiers via a keyword table
// after matching the longest run.
package lexer

import (
	"unicode"
	"unicode/utf8"

	"github.com/tallowlang/lox/internal/diag"
	"github.com/tallowlang/lox/internal/token"
)

// Lexer tokenizes Lox source code.
type Lexer struct {
	src     string
	pos     int // offset of ch
	readPos int // offset of next rune
	ch      rune

	report diag.Report
}

// New creates a Lexer for src. If src begins with a shebang line ("#!"),
// it is skipped without shifting any subsequent span offsets — offsets
// remain relative to the original, unmodified source string throughout.
func New(src string) *Lexer {
	l := &Lexer{src: src}
	l.readChar()
	if l.pos == 0 && l.ch == '#' && l.peekChar() == '!' {
		for l.ch != '\n' && l.ch != 0 {
			l.readChar()
		}
	}
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.src) {
		l.ch = 0
		l.pos = len(l.src)
		return
	}
	r, size := utf8.DecodeRuneInString(l.src[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.readPos:])
	return r
}

// Scan tokenizes the entire source and returns the token list (always
// terminated by a single EOF token) plus any lexical errors collected
// along the way. A bad character reports one error and scanning continues.
func (l *Lexer) Scan() ([]token.Token, diag.Report) {
	var toks []token.Token
	for {
		t := l.next()
		toks = append(toks, t)
		if t.Kind == token.EOF {
			break
		}
	}
	return toks, l.report
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.ch {
		case ' ', '\t', '\r', '\n':
			l.readChar()
		case '/':
			if l.peekChar() == '/' {
				for l.ch != '\n' && l.ch != 0 {
					l.readChar()
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

func (l *Lexer) next() token.Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	ch := l.ch

	if ch == 0 {
		return l.make(token.EOF, start)
	}

	switch {
	case isDigit(ch):
		return l.number(start)
	case isAlpha(ch):
		return l.identifier(start)
	case ch == '"':
		return l.string(start)
	}

	l.readChar()
	switch ch {
	case '(':
		return l.make(token.LeftParen, start)
	case ')':
		return l.make(token.RightParen, start)
	case '{':
		return l.make(token.LeftBrace, start)
	case '}':
		return l.make(token.RightBrace, start)
	case ',':
		return l.make(token.Comma, start)
	case '.':
		return l.make(token.Dot, start)
	case '-':
		return l.make(token.Minus, start)
	case '+':
		return l.make(token.Plus, start)
	case ';':
		return l.make(token.Semicolon, start)
	case '*':
		return l.make(token.Star, start)
	case '/':
		return l.make(token.Slash, start)
	case '!':
		if l.ch == '=' {
			l.readChar()
			return l.make(token.BangEqual, start)
		}
		return l.make(token.Bang, start)
	case '=':
		if l.ch == '=' {
			l.readChar()
			return l.make(token.EqualEqual, start)
		}
		return l.make(token.Equal, start)
	case '<':
		if l.ch == '=' {
			l.readChar()
			return l.make(token.LessEqual, start)
		}
		return l.make(token.Less, start)
	case '>':
		if l.ch == '=' {
			l.readChar()
			return l.make(token.GreaterEqual, start)
		}
		return l.make(token.Greater, start)
	}

	l.report.Add(diag.Scan, diag.Span{Offset: start, Length: l.pos - start}, "Unexpected character '%c'.", ch)
	return l.next()
}

func (l *Lexer) make(kind token.Kind, start int) token.Token {
	return token.Token{
		Kind:   kind,
		Lexeme: l.src[start:l.pos],
		Span:   diag.Span{Offset: start, Length: l.pos - start},
	}
}

func (l *Lexer) number(start int) token.Token {
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		if !isDigit(l.peekChar()) {
			l.readChar() // consume the '.' so scanning makes progress
			l.report.Add(diag.Scan, diag.Span{Offset: start, Length: l.pos - start}, "Malformed number: expected digit after '.'.")
			return l.make(token.Number, start)
		}
		l.readChar() // consume '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.make(token.Number, start)
}

func (l *Lexer) identifier(start int) token.Token {
	for isAlpha(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	lexeme := l.src[start:l.pos]
	kind := token.Identifier
	if kw, ok := token.Keywords[lexeme]; ok {
		kind = kw
	}
	return token.Token{Kind: kind, Lexeme: lexeme, Span: diag.Span{Offset: start, Length: l.pos - start}}
}

// string scans a quoted string literal. Per the scanner round-trip
// invariant (spec §8.2), Lexeme is always the raw source slice — escape
// decoding happens later, in the parser, when it builds the literal value.
func (l *Lexer) string(start int) token.Token {
	l.readChar() // consume opening quote
	for l.ch != '"' && l.ch != 0 {
		if l.ch == '\\' && l.peekChar() != 0 {
			l.readChar()
		}
		l.readChar()
	}
	if l.ch == 0 {
		l.report.Add(diag.Scan, diag.Span{Offset: start, Length: 1}, "Unterminated string.")
		return l.make(token.String, start)
	}
	l.readChar() // consume closing quote
	return l.make(token.String, start)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

// DecodeString strips the surrounding quotes from a raw string-token lexeme
// and resolves its \n \t \\ \" escapes. It is split out from the scanner
// itself so that Lexeme keeps satisfying the round-trip invariant
// (source[span] == lexeme) while callers that need the literal value — the
// parser, when building an ast.Literal — can still get it.
func DecodeString(lexeme string) string {
	if len(lexeme) < 2 {
		return ""
	}
	inner := lexeme[1 : len(lexeme)-1]
	var b []byte
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
			switch inner[i] {
			case 'n':
				b = append(b, '\n')
			case 't':
				b = append(b, '\t')
			case '\\':
				b = append(b, '\\')
			case '"':
				b = append(b, '"')
			default:
				b = append(b, inner[i])
			}
			continue
		}
		b = append(b, inner[i])
	}
	return string(b)
}
