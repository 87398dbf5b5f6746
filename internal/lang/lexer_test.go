package lang

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLexerEscapeRoundTrip(t *testing.T) {
	data := []struct {
		in   string
		want string
	}{
		{`'hello'`, "hello"},
		{`'a\nb'`, "a\nb"},
		{`'a\tb'`, "a\tb"},
		{`'\x41'`, "A"},
		{`'A'`, "A"},
		{`'\U00000041'`, "A"},
		{`'\101'`, "A"}, // octal
		{`'''triple 'quote' inside'''`, "triple 'quote' inside"},
	}
	for _, l := range data {
		t.Run(l.in, func(t *testing.T) {
			lex := NewLexer("t", l.in, ModeNone)
			tok := lex.Next()
			if tok.Type != TokString {
				t.Fatalf("got token type %s, want string (lexer error: %s)", tok.Type, lex.LastError())
			}
			if diff := cmp.Diff(l.want, tok.Str); diff != "" {
				t.Errorf("+want -got: %s", diff)
			}
		})
	}
}

func TestLexerNotIn(t *testing.T) {
	lex := NewLexer("t", "x not in y", ModeNone)
	var kinds []TokenType
	for {
		tok := lex.Next()
		if tok.Type == TokEOF {
			break
		}
		kinds = append(kinds, tok.Type)
	}
	want := []TokenType{TokIdent, TokNotIn, TokIdent}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("+want -got: %s", diff)
	}
}

func TestLexerNewlineSuppressedInsideBrackets(t *testing.T) {
	lex := NewLexer("t", "[1,\n2]", ModeNone)
	var kinds []TokenType
	for {
		tok := lex.Next()
		if tok.Type == TokEOF {
			break
		}
		kinds = append(kinds, tok.Type)
	}
	for _, k := range kinds {
		if k == TokEOL {
			t.Fatalf("newline inside brackets should be suppressed, got %v", kinds)
		}
	}
}

func TestLexerNumberBases(t *testing.T) {
	data := []struct {
		in   string
		want int64
	}{
		{"0x1F", 31},
		{"0o17", 15},
		{"0b101", 5},
		{"42", 42},
	}
	for _, l := range data {
		lex := NewLexer("t", l.in, ModeNone)
		tok := lex.Next()
		if tok.Type != TokNumber {
			t.Fatalf("%s: got %s, want number", l.in, tok.Type)
		}
		if tok.Num != l.want {
			t.Errorf("%s: got %d, want %d", l.in, tok.Num, l.want)
		}
	}
}
