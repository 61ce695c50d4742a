package lexer

import (
	"testing"

	"github.com/tallowlang/lox/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestScanBasic(t *testing.T) {
	src := `var x = 1 + 2 * 3;`
	toks, report := New(src).Scan()
	if report.HasErrors() {
		t.Fatalf("unexpected errors: %v", report.Diagnostics)
	}
	want := []token.Kind{
		token.Var, token.Identifier, token.Equal, token.Number,
		token.Plus, token.Number, token.Star, token.Number, token.Semicolon, token.EOF,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRoundTrip(t *testing.T) {
	src := "class Foo < Bar {\n  say() { print \"hi\\n\"; }\n}\n"
	toks, report := New(src).Scan()
	if report.HasErrors() {
		t.Fatalf("unexpected errors: %v", report.Diagnostics)
	}
	for _, tok := range toks {
		if tok.Kind == token.EOF {
			continue
		}
		got := src[tok.Span.Offset : tok.Span.Offset+tok.Span.Length]
		if got != tok.Lexeme {
			t.Errorf("round-trip failed for %v: source slice %q != lexeme %q", tok.Kind, got, tok.Lexeme)
		}
	}
}

func TestShebangDoesNotShiftOffsets(t *testing.T) {
	src := "#!/usr/bin/lox\nprint 1;\n"
	toks, report := New(src).Scan()
	if report.HasErrors() {
		t.Fatalf("unexpected errors: %v", report.Diagnostics)
	}
	if toks[0].Kind != token.Print {
		t.Fatalf("expected first token to be print, got %v", toks[0].Kind)
	}
	wantOffset := 15 // offset of "print" in src
	if toks[0].Span.Offset != wantOffset {
		t.Errorf("print token offset = %d, want %d", toks[0].Span.Offset, wantOffset)
	}
}

func TestUnterminatedString(t *testing.T) {
	_, report := New(`"abc`).Scan()
	if !report.HasErrors() {
		t.Fatal("expected an unterminated-string error")
	}
}

func TestMalformedNumber(t *testing.T) {
	_, report := New(`3.;`).Scan()
	if !report.HasErrors() {
		t.Fatal("expected a malformed-number error for '3.'")
	}
}

func TestDecodeString(t *testing.T) {
	cases := map[string]string{
		`""`:            "",
		`"abc"`:         "abc",
		`"a\nb"`:        "a\nb",
		`"a\tb\\c\"d"`:  "a\tb\\c\"d",
	}
	for lexeme, want := range cases {
		if got := DecodeString(lexeme); got != want {
			t.Errorf("DecodeString(%q) = %q, want %q", lexeme, got, want)
		}
	}
}

func TestKeywordReclassification(t *testing.T) {
	toks, _ := New("class fun print classy").Scan()
	want := []token.Kind{token.Class, token.Fun, token.Print, token.Identifier, token.EOF}
	got := kinds(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}
