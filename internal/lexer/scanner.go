// internal/lexer/scanner.go
package lexer

import (
	"fmt"
	"strconv"
)

type Scanner struct {
	source  string
	tokens  []Token
	start   int
	current int
	line    int
	col     int
	errs    []error
}

func NewScanner(source string) *Scanner {
	return &Scanner{source: source, line: 1, col: 1}
}

// ScanTokens scans the whole source; scan errors are collected and the
// first is returned so the caller reports one diagnostic.
func (s *Scanner) ScanTokens() ([]Token, error) {
	for !s.isAtEnd() {
		s.start = s.current
		s.scanToken()
	}
	s.tokens = append(s.tokens, Token{Type: EOF, Line: s.line, Column: s.col})
	if len(s.errs) > 0 {
		return s.tokens, s.errs[0]
	}
	return s.tokens, nil
}

func (s *Scanner) scanToken() {
	startCol := s.col
	c := s.advance()
	switch c {
	case '(':
		s.add(LeftParen, startCol)
	case ')':
		s.add(RightParen, startCol)
	case '{':
		s.add(LeftBrace, startCol)
	case '}':
		s.add(RightBrace, startCol)
	case '[':
		s.add(LeftBracket, startCol)
	case ']':
		s.add(RightBracket, startCol)
	case ',':
		s.add(Comma, startCol)
	case '.':
		s.add(Dot, startCol)
	case ':':
		s.add(Colon, startCol)
	case ';':
		s.add(Semicolon, startCol)
	case '+':
		s.add(Plus, startCol)
	case '-':
		s.add(Minus, startCol)
	case '*':
		s.add(Star, startCol)
	case '%':
		s.add(Percent, startCol)
	case '/':
		if s.match('/') {
			for !s.isAtEnd() && s.peek() != '\n' {
				s.advance()
			}
		} else {
			s.add(Slash, startCol)
		}
	case '!':
		if s.match('=') {
			s.add(BangEqual, startCol)
		} else {
			s.add(Bang, startCol)
		}
	case '=':
		if s.match('=') {
			s.add(EqualEqual, startCol)
		} else {
			s.add(Equal, startCol)
		}
	case '<':
		if s.match('=') {
			s.add(LessEqual, startCol)
		} else {
			s.add(Less, startCol)
		}
	case '>':
		if s.match('=') {
			s.add(GreaterEqual, startCol)
		} else {
			s.add(Greater, startCol)
		}
	case '&':
		if s.match('&') {
			s.add(KwAnd, startCol)
		} else {
			s.err("unexpected character '&'")
		}
	case '|':
		if s.match('|') {
			s.add(KwOr, startCol)
		} else {
			s.err("unexpected character '|'")
		}
	case ' ', '\r', '\t':
	case '\n':
		s.line++
		s.col = 1
	case '"':
		s.scanString(startCol)
	default:
		switch {
		case isDigit(c):
			s.scanNumber(startCol)
		case isAlpha(c):
			s.scanIdentifier(startCol)
		default:
			s.err(fmt.Sprintf("unexpected character %q", c))
		}
	}
}

func (s *Scanner) scanString(startCol int) {
	var out []byte
	for !s.isAtEnd() && s.peek() != '"' {
		c := s.advance()
		if c == '\n' {
			s.line++
			s.col = 1
		}
		if c == '\\' && !s.isAtEnd() {
			switch s.advance() {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case '"':
				out = append(out, '"')
			case '\\':
				out = append(out, '\\')
			default:
				s.err("invalid escape sequence")
			}
			continue
		}
		out = append(out, c)
	}
	if s.isAtEnd() {
		s.err("unterminated string")
		return
	}
	s.advance() // closing quote
	s.tokens = append(s.tokens, Token{
		Type: String, Lexeme: s.source[s.start:s.current],
		Literal: string(out), Line: s.line, Column: startCol,
	})
}

func (s *Scanner) scanNumber(startCol int) {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	// exponent form, e.g. 1e308
	if s.peek() == 'e' || s.peek() == 'E' {
		next := s.peekNext()
		if isDigit(next) || next == '+' || next == '-' {
			s.advance()
			if s.peek() == '+' || s.peek() == '-' {
				s.advance()
			}
			for isDigit(s.peek()) {
				s.advance()
			}
		}
	}
	text := s.source[s.start:s.current]
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		s.err("invalid number literal " + text)
		return
	}
	s.tokens = append(s.tokens, Token{
		Type: Number, Lexeme: text, Literal: n, Line: s.line, Column: startCol,
	})
}

func (s *Scanner) scanIdentifier(startCol int) {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	text := s.source[s.start:s.current]
	typ, ok := keywords[text]
	if !ok {
		typ = Identifier
	}
	s.tokens = append(s.tokens, Token{
		Type: typ, Lexeme: text, Line: s.line, Column: startCol,
	})
}

func (s *Scanner) add(typ TokenType, col int) {
	s.tokens = append(s.tokens, Token{
		Type: typ, Lexeme: s.source[s.start:s.current], Line: s.line, Column: col,
	})
}

func (s *Scanner) err(msg string) {
	s.errs = append(s.errs, fmt.Errorf("line %d: %s", s.line, msg))
}

func (s *Scanner) advance() byte {
	c := s.source[s.current]
	s.current++
	s.col++
	return c
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.source[s.current] != expected {
		return false
	}
	s.current++
	s.col++
	return true
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return 0
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return 0
	}
	return s.source[s.current+1]
}

func (s *Scanner) isAtEnd() bool { return s.current >= len(s.source) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isAlphaNumeric(c byte) bool { return isAlpha(c) || isDigit(c) }
