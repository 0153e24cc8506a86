package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scan(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := NewScanner(src).ScanTokens()
	require.NoError(t, err)
	return toks
}

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tk := range toks {
		out[i] = tk.Type
	}
	return out
}

func TestBasicStream(t *testing.T) {
	toks := scan(t, `let x = 1 + 2.5;`)
	assert.Equal(t, []TokenType{
		KwLet, Identifier, Equal, Number, Plus, Number, Semicolon, EOF,
	}, types(toks))
	assert.Equal(t, "x", toks[1].Lexeme)
	assert.Equal(t, float64(1), toks[3].Literal)
	assert.Equal(t, float64(2.5), toks[5].Literal)
}

func TestOperators(t *testing.T) {
	toks := scan(t, `== != <= >= < > ! = + - * / %`)
	assert.Equal(t, []TokenType{
		EqualEqual, BangEqual, LessEqual, GreaterEqual, Less, Greater,
		Bang, Equal, Plus, Minus, Star, Slash, Percent, EOF,
	}, types(toks))
}

func TestPunctuation(t *testing.T) {
	toks := scan(t, `( ) { } [ ] , . : ;`)
	assert.Equal(t, []TokenType{
		LeftParen, RightParen, LeftBrace, RightBrace, LeftBracket,
		RightBracket, Comma, Dot, Colon, Semicolon, EOF,
	}, types(toks))
}

func TestKeywords(t *testing.T) {
	toks := scan(t, `and or let fn return if else while true false null print own borrow shared share`)
	assert.Equal(t, []TokenType{
		KwAnd, KwOr, KwLet, KwFn, KwReturn, KwIf, KwElse, KwWhile,
		KwTrue, KwFalse, KwNull, KwPrint, KwOwn, KwBorrow, KwShared,
		KwShare, EOF,
	}, types(toks))
}

func TestSymbolicLogicalAliases(t *testing.T) {
	toks := scan(t, `a && b || c`)
	assert.Equal(t, []TokenType{
		Identifier, KwAnd, Identifier, KwOr, Identifier, EOF,
	}, types(toks))
}

func TestKeywordPrefixIsIdentifier(t *testing.T) {
	toks := scan(t, `lettuce if_then return2`)
	assert.Equal(t, []TokenType{Identifier, Identifier, Identifier, EOF}, types(toks))
}

func TestLineCommentsSkipped(t *testing.T) {
	toks := scan(t, "1 // everything after is ignored / * &\n2")
	require.Equal(t, []TokenType{Number, Number, EOF}, types(toks))
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
}

func TestStringEscapes(t *testing.T) {
	toks := scan(t, `"a\nb\t\"q\"\\"`)
	require.Equal(t, []TokenType{String, EOF}, types(toks))
	assert.Equal(t, "a\nb\t\"q\"\\", toks[0].Literal)
}

func TestNumberForms(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"0", 0},
		{"42", 42},
		{"3.25", 3.25},
		{"1e308", 1e308},
		{"2.5E-3", 2.5e-3},
		{"1e+2", 100},
	}
	for _, tt := range tests {
		toks := scan(t, tt.src)
		require.Equal(t, []TokenType{Number, EOF}, types(toks), tt.src)
		assert.Equal(t, tt.want, toks[0].Literal, tt.src)
	}
}

func TestBareExponentSuffixIsIdentifier(t *testing.T) {
	// "5e" is the number 5 followed by the identifier e, not a malformed
	// exponent.
	toks := scan(t, `5e`)
	assert.Equal(t, []TokenType{Number, Identifier, EOF}, types(toks))
}

func TestTrailingDotIsNotFractional(t *testing.T) {
	toks := scan(t, `1.`)
	assert.Equal(t, []TokenType{Number, Dot, EOF}, types(toks))
}

func TestPositions(t *testing.T) {
	toks := scan(t, "let x = 1;\n  print x;")
	// let at 1:1, x at 1:5, print at 2:3
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 1, toks[0].Column)
	assert.Equal(t, 1, toks[1].Line)
	assert.Equal(t, 5, toks[1].Column)
	print := toks[5]
	assert.Equal(t, KwPrint, print.Type)
	assert.Equal(t, 2, print.Line)
	assert.Equal(t, 3, print.Column)
}

func TestScanErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unterminated string", `"abc`, "line 1: unterminated string"},
		{"invalid escape", `"a\qb"`, "line 1: invalid escape sequence"},
		{"lone ampersand", `a & b`, "line 1: unexpected character '&'"},
		{"lone pipe", `a | b`, "line 1: unexpected character '|'"},
		{"stray character", `let @ = 1;`, "line 1: unexpected character '@'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScanner(tt.src).ScanTokens()
			require.Error(t, err)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}
