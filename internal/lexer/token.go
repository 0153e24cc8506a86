// internal/lexer/token.go
package lexer

// TokenType identifies a lexical token.
type TokenType int

const (
	LeftParen TokenType = iota
	RightParen
	LeftBrace
	RightBrace
	LeftBracket
	RightBracket
	Comma
	Dot
	Colon
	Semicolon

	Plus
	Minus
	Star
	Slash
	Percent
	Bang
	BangEqual
	Equal
	EqualEqual
	Less
	LessEqual
	Greater
	GreaterEqual

	Identifier
	String
	Number

	KwAnd
	KwOr
	KwLet
	KwFn
	KwReturn
	KwIf
	KwElse
	KwWhile
	KwTrue
	KwFalse
	KwNull
	KwPrint
	KwOwn
	KwBorrow
	KwShared
	KwShare

	EOF
)

// Token is one lexical token with its source position. Literal carries the
// decoded value for String and Number tokens.
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal interface{}
	Line    int
	Column  int
}

var keywords = map[string]TokenType{
	"and":    KwAnd,
	"or":     KwOr,
	"let":    KwLet,
	"fn":     KwFn,
	"return": KwReturn,
	"if":     KwIf,
	"else":   KwElse,
	"while":  KwWhile,
	"true":   KwTrue,
	"false":  KwFalse,
	"null":   KwNull,
	"print":  KwPrint,
	"own":    KwOwn,
	"borrow": KwBorrow,
	"shared": KwShared,
	"share":  KwShare,
}
