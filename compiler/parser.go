package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent over UWScript tokens
// ---------------------------------------------------------------------------

// Parser builds a Script AST from UWScript source.
type Parser struct {
	lexer *Lexer

	curToken  Token
	peekToken Token

	errors []*CompileError
}

// NewParser creates a parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken.
	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns all errors collected while parsing.
func (p *Parser) Errors() []*CompileError {
	return p.errors
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect consumes the current token if it matches, or records an error.
func (p *Parser) expect(t TokenType) Token {
	tok := p.curToken
	if !p.curTokenIs(t) {
		p.errorf("expected %s, got %s", t, p.curToken.Type)
		return tok
	}
	p.nextToken()
	return tok
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, &CompileError{
		Line:   p.curToken.Pos.Line,
		Column: p.curToken.Pos.Column,
		Msg:    fmt.Sprintf(format, args...),
	})
}

// skipNewlines consumes any run of statement terminators.
func (p *Parser) skipNewlines() {
	for p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
}

// endStatement consumes the terminator after a statement.
func (p *Parser) endStatement() {
	switch {
	case p.curTokenIs(TokenNewline):
		p.nextToken()
	case p.curTokenIs(TokenEOF):
	default:
		p.errorf("expected end of statement, got %s", p.curToken.Type)
		// Skip to the next line so one error does not cascade.
		for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
			p.nextToken()
		}
	}
}

// ParseScript parses a whole source file.
func (p *Parser) ParseScript() (*Script, error) {
	script := &Script{}
	p.skipNewlines()
	for !p.curTokenIs(TokenEOF) {
		if stmt := p.parseStatement(); stmt != nil {
			script.Stmts = append(script.Stmts, stmt)
		}
		p.skipNewlines()
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return script, nil
}

// parseBlock parses statements until one of the given keywords. The ending
// token is left current.
func (p *Parser) parseBlock(until ...TokenType) []Stmt {
	var stmts []Stmt
	p.skipNewlines()
	for {
		if p.curTokenIs(TokenEOF) {
			p.errorf("unexpected end of file inside block")
			return stmts
		}
		for _, t := range until {
			if p.curTokenIs(t) {
				return stmts
			}
		}
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
		p.skipNewlines()
	}
}

func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenLet:
		return p.parseLet()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenGoto:
		tok := p.expect(TokenGoto)
		label := p.expect(TokenIdentifier)
		p.endStatement()
		return &GotoStmt{Token: tok, Label: label.Literal}
	case TokenLabel:
		tok := p.expect(TokenLabel)
		name := p.expect(TokenIdentifier)
		p.endStatement()
		return &LabelStmt{Token: tok, Name: name.Literal}
	case TokenExit:
		tok := p.expect(TokenExit)
		p.endStatement()
		return &ExitStmt{Token: tok}
	case TokenFunction:
		return p.parseFunction()
	case TokenReturn:
		tok := p.expect(TokenReturn)
		var value Expr
		if !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
			value = p.parseExpression()
		}
		p.endStatement()
		return &ReturnStmt{Token: tok, Value: value}
	case TokenSay:
		tok := p.expect(TokenSay)
		value := p.parseExpression()
		p.endStatement()
		return &SayStmt{Token: tok, Value: value}
	case TokenAsk:
		return p.parseAsk()
	case TokenMenu:
		return p.parseMenu()
	case TokenFilterMenu:
		return p.parseFilterMenu()
	case TokenIdentifier:
		return p.parseAssignOrCall()
	default:
		p.errorf("unexpected %s at start of statement", p.curToken.Type)
		p.nextToken()
		p.endStatement()
		return nil
	}
}

func (p *Parser) parseLet() Stmt {
	tok := p.expect(TokenLet)
	name := p.expect(TokenIdentifier)
	p.expect(TokenAssign)
	value := p.parseExpression()
	p.endStatement()
	return &LetStmt{Token: tok, Name: name.Literal, Value: value}
}

// parseAssignOrCall handles statements that open with an identifier:
// assignment, array element assignment, or a bare call.
func (p *Parser) parseAssignOrCall() Stmt {
	tok := p.curToken
	switch {
	case p.peekTokenIs(TokenLParen):
		call := p.parsePrimary()
		p.endStatement()
		return &ExprStmt{Token: tok, Value: call}
	case p.peekTokenIs(TokenLBracket):
		name := p.expect(TokenIdentifier)
		p.expect(TokenLBracket)
		index := p.parseExpression()
		p.expect(TokenRBracket)
		target := &IndexExpr{Token: tok, Name: name.Literal, Index: index}
		p.expect(TokenAssign)
		value := p.parseExpression()
		p.endStatement()
		return &AssignStmt{Token: tok, Target: target, Value: value}
	default:
		name := p.expect(TokenIdentifier)
		target := &Ident{Token: tok, Name: name.Literal}
		p.expect(TokenAssign)
		value := p.parseExpression()
		p.endStatement()
		return &AssignStmt{Token: tok, Target: target, Value: value}
	}
}

// parseIf parses an if/elseif/else/endif chain. An elseif continues the
// chain as a nested if in the else branch; the whole chain shares one endif.
func (p *Parser) parseIf() Stmt {
	tok := p.expect(TokenIf)
	cond := p.parseExpression()
	p.endStatement()
	then := p.parseBlock(TokenElseif, TokenElse, TokenEndif)

	stmt := &IfStmt{Token: tok, Cond: cond, Then: then}
	switch p.curToken.Type {
	case TokenElseif:
		p.curToken.Type = TokenIf
		stmt.Else = []Stmt{p.parseIf()}
	case TokenElse:
		p.expect(TokenElse)
		p.endStatement()
		stmt.Else = p.parseBlock(TokenEndif)
		p.expect(TokenEndif)
		p.endStatement()
	case TokenEndif:
		p.expect(TokenEndif)
		p.endStatement()
	}
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	tok := p.expect(TokenWhile)
	cond := p.parseExpression()
	p.endStatement()
	body := p.parseBlock(TokenEndwhile)
	p.expect(TokenEndwhile)
	p.endStatement()
	return &WhileStmt{Token: tok, Cond: cond, Body: body}
}

func (p *Parser) parseFunction() Stmt {
	tok := p.expect(TokenFunction)
	name := p.expect(TokenIdentifier)
	p.expect(TokenLParen)
	var params []string
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		param := p.expect(TokenIdentifier)
		params = append(params, param.Literal)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		}
	}
	p.expect(TokenRParen)
	p.endStatement()
	body := p.parseBlock(TokenEndfunction)
	p.expect(TokenEndfunction)
	p.endStatement()
	return &FuncDecl{Token: tok, Name: name.Literal, Params: params, Body: body}
}

func (p *Parser) parseAsk() Stmt {
	tok := p.expect(TokenAsk)
	stmt := &AskStmt{Token: tok}
	if p.curTokenIs(TokenIdentifier) {
		stmt.Var = p.curToken.Literal
		p.nextToken()
	}
	p.endStatement()
	return stmt
}

func (p *Parser) parseMenu() Stmt {
	tok := p.expect(TokenMenu)
	stmt := &MenuStmt{Token: tok}
	if p.curTokenIs(TokenIdentifier) {
		stmt.Var = p.curToken.Literal
		p.nextToken()
	}
	stmt.Items = p.parseItemList()
	p.endStatement()
	return stmt
}

// parseItemList parses a bracketed expression list, tolerating newlines
// around elements.
func (p *Parser) parseItemList() []Expr {
	var items []Expr
	p.expect(TokenLBracket)
	p.skipNewlines()
	for !p.curTokenIs(TokenRBracket) && !p.curTokenIs(TokenEOF) {
		items = append(items, p.parseExpression())
		p.skipNewlines()
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			p.skipNewlines()
		}
	}
	p.expect(TokenRBracket)
	return items
}

func (p *Parser) parseFilterMenu() Stmt {
	tok := p.expect(TokenFilterMenu)
	stmt := &FilterMenuStmt{Token: tok}
	if p.curTokenIs(TokenIdentifier) {
		stmt.Var = p.curToken.Literal
		p.nextToken()
	}
	// Items and flags alternate in one bracketed list.
	pairs := p.parseItemList()
	if len(pairs)%2 != 0 {
		p.errorf("filtermenu needs an enable flag after every option")
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		stmt.Items = append(stmt.Items, pairs[i])
		stmt.Flags = append(stmt.Flags, pairs[i+1])
	}
	p.endStatement()
	return stmt
}

// ---------------------------------------------------------------------------
// Expressions, by descending precedence
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression() Expr {
	return p.parseOr()
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for p.curTokenIs(TokenOr) {
		tok := p.curToken
		p.nextToken()
		left = &BinaryExpr{Token: tok, Left: left, Right: p.parseAnd()}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseEquality()
	for p.curTokenIs(TokenAnd) {
		tok := p.curToken
		p.nextToken()
		left = &BinaryExpr{Token: tok, Left: left, Right: p.parseEquality()}
	}
	return left
}

func (p *Parser) parseEquality() Expr {
	left := p.parseComparison()
	for p.curTokenIs(TokenEq) || p.curTokenIs(TokenNe) {
		tok := p.curToken
		p.nextToken()
		left = &BinaryExpr{Token: tok, Left: left, Right: p.parseComparison()}
	}
	return left
}

func (p *Parser) parseComparison() Expr {
	left := p.parseTerm()
	for p.curTokenIs(TokenLt) || p.curTokenIs(TokenLe) || p.curTokenIs(TokenGt) || p.curTokenIs(TokenGe) {
		tok := p.curToken
		p.nextToken()
		left = &BinaryExpr{Token: tok, Left: left, Right: p.parseTerm()}
	}
	return left
}

func (p *Parser) parseTerm() Expr {
	left := p.parseFactor()
	for p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus) {
		tok := p.curToken
		p.nextToken()
		left = &BinaryExpr{Token: tok, Left: left, Right: p.parseFactor()}
	}
	return left
}

func (p *Parser) parseFactor() Expr {
	left := p.parseUnary()
	for p.curTokenIs(TokenStar) || p.curTokenIs(TokenSlash) || p.curTokenIs(TokenPercent) {
		tok := p.curToken
		p.nextToken()
		left = &BinaryExpr{Token: tok, Left: left, Right: p.parseUnary()}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.curTokenIs(TokenMinus) || p.curTokenIs(TokenNot) {
		tok := p.curToken
		p.nextToken()
		return &UnaryExpr{Token: tok, Operand: p.parseUnary()}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		v, err := strconv.ParseInt(tok.Literal, 0, 32)
		if err != nil {
			p.errorf("bad integer literal %q", tok.Literal)
		}
		return &IntLiteral{Token: tok, Value: int(v)}
	case TokenTrue:
		p.nextToken()
		return &IntLiteral{Token: tok, Value: 1}
	case TokenFalse:
		p.nextToken()
		return &IntLiteral{Token: tok, Value: 0}
	case TokenString:
		p.nextToken()
		return &StringLiteral{Token: tok, Value: tok.Literal}
	case TokenLParen:
		p.nextToken()
		inner := p.parseExpression()
		p.expect(TokenRParen)
		return inner
	case TokenLBracket:
		return &ArrayLiteral{Token: tok, Elements: p.parseItemList()}
	case TokenIdentifier:
		p.nextToken()
		switch {
		case p.curTokenIs(TokenLParen):
			p.nextToken()
			var args []Expr
			for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
				args = append(args, p.parseExpression())
				if p.curTokenIs(TokenComma) {
					p.nextToken()
				}
			}
			p.expect(TokenRParen)
			return &CallExpr{Token: tok, Name: tok.Literal, Args: args}
		case p.curTokenIs(TokenLBracket):
			p.nextToken()
			index := p.parseExpression()
			p.expect(TokenRBracket)
			return &IndexExpr{Token: tok, Name: tok.Literal, Index: index}
		default:
			return &Ident{Token: tok, Name: tok.Literal}
		}
	default:
		p.errorf("unexpected %s in expression", tok.Type)
		p.nextToken()
		return &IntLiteral{Token: tok, Value: 0}
	}
}
