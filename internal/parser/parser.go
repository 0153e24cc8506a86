// internal/parser/parser.go
package parser

import (
	"fmt"

	"rill/internal/ast"
	"rill/internal/lexer"
	"rill/internal/value"
)

// Parser is a recursive-descent parser over the scanner's token stream.
type Parser struct {
	tokens  []lexer.Token
	current int
	inFunc  bool
}

func NewParser(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses a whole program.
func (p *Parser) Parse() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for !p.check(lexer.EOF) {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// ParseSource scans and parses src in one step.
func ParseSource(src string) ([]ast.Stmt, error) {
	tokens, err := lexer.NewScanner(src).ScanTokens()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

func (p *Parser) statement() (ast.Stmt, error) {
	switch {
	case p.match(lexer.KwLet):
		return p.letStmt()
	case p.match(lexer.KwPrint):
		return p.printStmt()
	case p.match(lexer.KwIf):
		return p.ifStmt()
	case p.match(lexer.KwWhile):
		return p.whileStmt()
	case p.match(lexer.KwFn):
		return p.fnDecl()
	case p.match(lexer.KwReturn):
		return p.returnStmt()
	default:
		return p.exprOrAssignStmt()
	}
}

func (p *Parser) letStmt() (ast.Stmt, error) {
	kw := p.previous()
	name, err := p.consume(lexer.Identifier, "expected variable name after 'let'")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.Equal, "expected '=' after variable name"); err != nil {
		return nil, err
	}
	init, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	return &ast.Let{Base: pos(kw), Name: name.Lexeme, Expr: init}, nil
}

func (p *Parser) printStmt() (ast.Stmt, error) {
	kw := p.previous()
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	return &ast.Print{Base: pos(kw), Expr: e}, nil
}

func (p *Parser) ifStmt() (ast.Stmt, error) {
	kw := p.previous()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	var els []ast.Stmt
	if p.match(lexer.KwElse) {
		if p.match(lexer.KwIf) {
			nested, err := p.ifStmt()
			if err != nil {
				return nil, err
			}
			els = []ast.Stmt{nested}
		} else {
			els, err = p.block()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ast.If{Base: pos(kw), Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) whileStmt() (ast.Stmt, error) {
	kw := p.previous()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.While{Base: pos(kw), Cond: cond, Body: body}, nil
}

func (p *Parser) fnDecl() (ast.Stmt, error) {
	kw := p.previous()
	if p.inFunc {
		return nil, p.errorf(kw, "nested function declarations are not supported")
	}
	name, err := p.consume(lexer.Identifier, "expected function name after 'fn'")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.LeftParen, "expected '(' after function name"); err != nil {
		return nil, err
	}
	var params []ast.Param
	if !p.check(lexer.RightParen) {
		for {
			param, err := p.param()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	if _, err := p.consume(lexer.RightParen, "expected ')' after parameters"); err != nil {
		return nil, err
	}
	p.inFunc = true
	body, err := p.block()
	p.inFunc = false
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Base: pos(kw), Name: name.Lexeme, Params: params, Body: body}, nil
}

// param parses an ownership-annotated parameter: [own|borrow|shared] name [: Type].
// borrow is the default mode.
func (p *Parser) param() (ast.Param, error) {
	mode := value.ModeBorrow
	switch {
	case p.match(lexer.KwOwn):
		mode = value.ModeOwn
	case p.match(lexer.KwBorrow):
		mode = value.ModeBorrow
	case p.match(lexer.KwShared):
		mode = value.ModeShared
	}
	name, err := p.consume(lexer.Identifier, "expected parameter name")
	if err != nil {
		return ast.Param{}, err
	}
	typeName := ""
	if p.match(lexer.Colon) {
		t, err := p.consume(lexer.Identifier, "expected type name after ':'")
		if err != nil {
			return ast.Param{}, err
		}
		typeName = t.Lexeme
	}
	return ast.Param{Name: name.Lexeme, Mode: mode, TypeName: typeName}, nil
}

func (p *Parser) returnStmt() (ast.Stmt, error) {
	kw := p.previous()
	if !p.inFunc {
		return nil, p.errorf(kw, "'return' outside of a function")
	}
	var e ast.Expr
	if !p.check(lexer.Semicolon) {
		var err error
		e, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	return &ast.Return{Base: pos(kw), Expr: e}, nil
}

func (p *Parser) exprOrAssignStmt() (ast.Stmt, error) {
	start := p.peek()
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.match(lexer.Equal) {
		val, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.endStatement(); err != nil {
			return nil, err
		}
		switch target := e.(type) {
		case *ast.Variable:
			return &ast.Assign{Base: pos(start), Name: target.Name, Expr: val}, nil
		case *ast.Index:
			return &ast.IndexAssign{Base: pos(start), Recv: target.Recv, Idx: target.Idx, Value: val}, nil
		default:
			return nil, p.errorf(start, "invalid assignment target")
		}
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Base: pos(start), Expr: e}, nil
}

func (p *Parser) block() ([]ast.Stmt, error) {
	if _, err := p.consume(lexer.LeftBrace, "expected '{'"); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for !p.check(lexer.RightBrace) && !p.check(lexer.EOF) {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.consume(lexer.RightBrace, "expected '}'"); err != nil {
		return nil, err
	}
	return stmts, nil
}

// expression precedence, lowest first

func (p *Parser) expression() (ast.Expr, error) { return p.or() }

func (p *Parser) or() (ast.Expr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.match(lexer.KwOr) {
		op := p.previous()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &ast.Logical{Base: pos(op), Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) and() (ast.Expr, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.match(lexer.KwAnd) {
		op := p.previous()
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = &ast.Logical{Base: pos(op), Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) equality() (ast.Expr, error) {
	left, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.EqualEqual) || p.check(lexer.BangEqual) {
		op := p.advance()
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: pos(op), Op: op.Lexeme, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) comparison() (ast.Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.Less) || p.check(lexer.LessEqual) ||
		p.check(lexer.Greater) || p.check(lexer.GreaterEqual) {
		op := p.advance()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: pos(op), Op: op.Lexeme, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) term() (ast.Expr, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.Plus) || p.check(lexer.Minus) {
		op := p.advance()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: pos(op), Op: op.Lexeme, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) factor() (ast.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.Star) || p.check(lexer.Slash) || p.check(lexer.Percent) {
		op := p.advance()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: pos(op), Op: op.Lexeme, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) unary() (ast.Expr, error) {
	switch {
	case p.match(lexer.Minus):
		op := p.previous()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Base: pos(op), Op: "-", Operand: operand}, nil
	case p.match(lexer.Bang):
		op := p.previous()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Base: pos(op), Op: "!", Operand: operand}, nil
	case p.match(lexer.KwShare):
		op := p.previous()
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &ast.Share{Base: pos(op), Inner: inner}, nil
	}
	return p.postfix()
}

func (p *Parser) postfix() (ast.Expr, error) {
	e, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.match(lexer.LeftParen):
			open := p.previous()
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			e = &ast.Call{Base: pos(open), Callee: e, Args: args}
		case p.match(lexer.LeftBracket):
			open := p.previous()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(lexer.RightBracket, "expected ']' after index"); err != nil {
				return nil, err
			}
			e = &ast.Index{Base: pos(open), Recv: e, Idx: idx}
		case p.match(lexer.Dot):
			name, err := p.consume(lexer.Identifier, "expected method name after '.'")
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(lexer.LeftParen, "expected '(' after method name"); err != nil {
				return nil, err
			}
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			e = &ast.MethodCall{Base: pos(name), Recv: e, Name: name.Lexeme, Args: args}
		default:
			return e, nil
		}
	}
}

func (p *Parser) arguments() ([]ast.Expr, error) {
	var args []ast.Expr
	if !p.check(lexer.RightParen) {
		for {
			a, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	if _, err := p.consume(lexer.RightParen, "expected ')' after arguments"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) primary() (ast.Expr, error) {
	tok := p.advance()
	switch tok.Type {
	case lexer.Number, lexer.String:
		return &ast.Literal{Base: pos(tok), Value: tok.Literal}, nil
	case lexer.KwTrue:
		return &ast.Literal{Base: pos(tok), Value: true}, nil
	case lexer.KwFalse:
		return &ast.Literal{Base: pos(tok), Value: false}, nil
	case lexer.KwNull:
		return &ast.Literal{Base: pos(tok), Value: nil}, nil
	case lexer.Identifier:
		return &ast.Variable{Base: pos(tok), Name: tok.Lexeme}, nil
	case lexer.LeftParen:
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.RightParen, "expected ')' after expression"); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.LeftBracket:
		var elems []ast.Expr
		if !p.check(lexer.RightBracket) {
			for {
				e, err := p.expression()
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
				if !p.match(lexer.Comma) {
					break
				}
			}
		}
		if _, err := p.consume(lexer.RightBracket, "expected ']' after array elements"); err != nil {
			return nil, err
		}
		return &ast.ArrayLit{Base: pos(tok), Elems: elems}, nil
	case lexer.LeftBrace:
		var entries []ast.MapEntry
		if !p.check(lexer.RightBrace) {
			for {
				key, err := p.mapKey()
				if err != nil {
					return nil, err
				}
				if _, err := p.consume(lexer.Colon, "expected ':' after map key"); err != nil {
					return nil, err
				}
				val, err := p.expression()
				if err != nil {
					return nil, err
				}
				entries = append(entries, ast.MapEntry{Key: key, Value: val})
				if !p.match(lexer.Comma) {
					break
				}
			}
		}
		if _, err := p.consume(lexer.RightBrace, "expected '}' after map entries"); err != nil {
			return nil, err
		}
		return &ast.MapLit{Base: pos(tok), Entries: entries}, nil
	}
	return nil, p.errorf(tok, "unexpected token %q", tok.Lexeme)
}

func (p *Parser) mapKey() (string, error) {
	tok := p.advance()
	switch tok.Type {
	case lexer.Identifier:
		return tok.Lexeme, nil
	case lexer.String:
		return tok.Literal.(string), nil
	}
	return "", p.errorf(tok, "expected map key")
}

// endStatement consumes a terminating ';' when present; a closing brace or
// EOF also ends a statement so REPL one-liners do not need semicolons.
func (p *Parser) endStatement() error {
	if p.match(lexer.Semicolon) {
		return nil
	}
	if p.check(lexer.RightBrace) || p.check(lexer.EOF) {
		return nil
	}
	return p.errorf(p.peek(), "expected ';' after statement")
}

func (p *Parser) consume(typ lexer.TokenType, msg string) (lexer.Token, error) {
	if p.check(typ) {
		return p.advance(), nil
	}
	return lexer.Token{}, p.errorf(p.peek(), "%s", msg)
}

func (p *Parser) match(typ lexer.TokenType) bool {
	if p.check(typ) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) check(typ lexer.TokenType) bool {
	return p.peek().Type == typ
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if tok.Type != lexer.EOF {
		p.current++
	}
	return tok
}

func (p *Parser) peek() lexer.Token { return p.tokens[p.current] }

func (p *Parser) previous() lexer.Token { return p.tokens[p.current-1] }

func (p *Parser) errorf(tok lexer.Token, format string, args ...interface{}) error {
	return fmt.Errorf("parse error at line %d:%d: %s", tok.Line, tok.Column, fmt.Sprintf(format, args...))
}

func pos(tok lexer.Token) ast.Base {
	return ast.Base{Line: tok.Line, Col: tok.Column}
}
