// Package parser implements a recursive-descent parser producing an
// ast.Program from a token stream. luna's instruction set has no
// arithmetic or control-flow opcodes (spec §4.6 names exactly 17
// instructions, none of them a branch or a binary op), so the grammar
// mirrors that: there are no operators and no if/while/for — only
// assignment, table/function construction, indexing, and calls. Anything
// resembling arithmetic is expected to arrive as a native function.
package parser

import (
	"fmt"

	"github.com/kristofer/luna/pkg/ast"
	"github.com/kristofer/luna/pkg/lexer"
)

// Parser turns a token stream into an ast.Program.
type Parser struct {
	l *lexer.Lexer

	cur  lexer.Token
	peek lexer.Token

	errors []string
}

// New creates a Parser over source text.
func New(source string) *Parser {
	p := &Parser{l: lexer.New(source)}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: %s", p.cur.Line, fmt.Sprintf(format, args...)))
}

// Parse parses a full program, returning every syntax error encountered.
func (p *Parser) Parse() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.cur.Type != lexer.TokenEOF {
		if p.cur.Type == lexer.TokenSemicolon {
			p.advance()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	if len(p.errors) > 0 {
		return prog, fmt.Errorf("parse errors:\n%s", joinErrors(p.errors))
	}
	return prog, nil
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "\n"
		}
		out += e
	}
	return out
}

func (p *Parser) expect(tt lexer.TokenType) lexer.Token {
	if p.cur.Type != tt {
		p.errorf("expected %s, got %s (%q)", tt, p.cur.Type, p.cur.Literal)
	}
	tok := p.cur
	p.advance()
	return tok
}

func (p *Parser) atBlockEnd() bool {
	switch p.cur.Type {
	case lexer.TokenEnd, lexer.TokenEOF:
		return true
	default:
		return false
	}
}

// --- Statements

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case lexer.TokenReturn:
		return p.parseReturnStmt()
	case lexer.TokenLocal:
		return p.parseLocalStmt()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseBlock() []ast.Statement {
	var stmts []ast.Statement
	for !p.atBlockEnd() {
		if p.cur.Type == lexer.TokenSemicolon {
			p.advance()
			continue
		}
		stmts = append(stmts, p.parseStatement())
	}
	return stmts
}

func (p *Parser) parseReturnStmt() ast.Statement {
	p.advance() // 'return'
	stmt := &ast.ReturnStmt{}
	if p.atBlockEnd() || p.cur.Type == lexer.TokenSemicolon {
		return stmt
	}
	stmt.Values = p.parseExpressionList()
	return stmt
}

func (p *Parser) parseLocalStmt() ast.Statement {
	p.advance() // 'local'
	var targets []ast.Expression
	targets = append(targets, &ast.Identifier{Name: p.expect(lexer.TokenIdentifier).Literal})
	for p.cur.Type == lexer.TokenComma {
		p.advance()
		targets = append(targets, &ast.Identifier{Name: p.expect(lexer.TokenIdentifier).Literal})
	}
	stmt := &ast.AssignStmt{Targets: targets}
	if p.cur.Type == lexer.TokenAssign {
		p.advance()
		stmt.Values = p.parseExpressionList()
	}
	nameFunctionLiterals(stmt)
	return stmt
}

func (p *Parser) parseExprOrAssignStmt() ast.Statement {
	first := p.parseExpression()
	if p.cur.Type != lexer.TokenComma && p.cur.Type != lexer.TokenAssign {
		return &ast.ExprStmt{Expr: first}
	}
	targets := []ast.Expression{first}
	for p.cur.Type == lexer.TokenComma {
		p.advance()
		targets = append(targets, p.parseExpression())
	}
	p.expect(lexer.TokenAssign)
	values := p.parseExpressionList()
	stmt := &ast.AssignStmt{Targets: targets, Values: values}
	nameFunctionLiterals(stmt)
	return stmt
}

// nameFunctionLiterals records `name = function ... end` as the function's
// display name, purely so stack traces read better (spec §7 traces render
// a callee name).
func nameFunctionLiterals(stmt *ast.AssignStmt) {
	if len(stmt.Targets) != len(stmt.Values) {
		return
	}
	for i, target := range stmt.Targets {
		id, ok := target.(*ast.Identifier)
		if !ok {
			continue
		}
		if fn, ok := stmt.Values[i].(*ast.FunctionLit); ok {
			fn.Name = id.Name
		}
	}
}

// --- Expressions

func (p *Parser) parseExpressionList() []ast.Expression {
	exprs := []ast.Expression{p.parseExpression()}
	for p.cur.Type == lexer.TokenComma {
		p.advance()
		exprs = append(exprs, p.parseExpression())
	}
	return exprs
}

func (p *Parser) parseExpression() ast.Expression {
	return p.parseSuffixed()
}

func (p *Parser) parseSuffixed() ast.Expression {
	expr := p.parsePrimary()
	for {
		switch p.cur.Type {
		case lexer.TokenDot:
			p.advance()
			name := p.expect(lexer.TokenIdentifier).Literal
			expr = &ast.DotExpr{Target: expr, Name: name}
		case lexer.TokenLBracket:
			p.advance()
			key := p.parseExpression()
			p.expect(lexer.TokenRBracket)
			expr = &ast.IndexExpr{Target: expr, Key: key}
		case lexer.TokenLParen:
			p.advance()
			var args []ast.Expression
			if p.cur.Type != lexer.TokenRParen {
				args = p.parseExpressionList()
			}
			p.expect(lexer.TokenRParen)
			expr = &ast.CallExpr{Callee: expr, Args: args}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Expression {
	switch p.cur.Type {
	case lexer.TokenNumber:
		return p.parseNumberLit()
	case lexer.TokenString:
		lit := &ast.StringLit{Value: p.cur.Literal}
		p.advance()
		return lit
	case lexer.TokenNil:
		p.advance()
		return &ast.NilLit{}
	case lexer.TokenTrue:
		p.advance()
		return &ast.BoolLit{Value: true}
	case lexer.TokenFalse:
		p.advance()
		return &ast.BoolLit{Value: false}
	case lexer.TokenIdentifier:
		id := &ast.Identifier{Name: p.cur.Literal}
		p.advance()
		return id
	case lexer.TokenLParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(lexer.TokenRParen)
		return expr
	case lexer.TokenLBrace:
		return p.parseTableLit()
	case lexer.TokenFunction:
		return p.parseFunctionLit()
	default:
		p.errorf("unexpected token %s (%q)", p.cur.Type, p.cur.Literal)
		p.advance()
		return &ast.NilLit{}
	}
}

func (p *Parser) parseNumberLit() ast.Expression {
	var n float64
	fmt.Sscanf(p.cur.Literal, "%g", &n)
	p.advance()
	return &ast.NumberLit{Value: n}
}

func (p *Parser) parseTableLit() ast.Expression {
	p.expect(lexer.TokenLBrace)
	lit := &ast.TableLit{}
	for p.cur.Type != lexer.TokenRBrace && p.cur.Type != lexer.TokenEOF {
		lit.Fields = append(lit.Fields, p.parseTableField())
		if p.cur.Type == lexer.TokenComma || p.cur.Type == lexer.TokenSemicolon {
			p.advance()
		} else {
			break
		}
	}
	p.expect(lexer.TokenRBrace)
	return lit
}

func (p *Parser) parseTableField() ast.TableField {
	if p.cur.Type == lexer.TokenIdentifier && p.peek.Type == lexer.TokenAssign {
		name := p.cur.Literal
		p.advance()
		p.advance()
		return ast.TableField{Key: &ast.StringLit{Value: name}, Value: p.parseExpression()}
	}
	if p.cur.Type == lexer.TokenLBracket {
		p.advance()
		key := p.parseExpression()
		p.expect(lexer.TokenRBracket)
		p.expect(lexer.TokenAssign)
		return ast.TableField{Key: key, Value: p.parseExpression()}
	}
	return ast.TableField{Value: p.parseExpression()}
}

func (p *Parser) parseFunctionLit() ast.Expression {
	p.expect(lexer.TokenFunction)
	p.expect(lexer.TokenLParen)
	fn := &ast.FunctionLit{}
	for p.cur.Type != lexer.TokenRParen {
		if p.cur.Type == lexer.TokenEllipsis {
			fn.Variadic = true
			p.advance()
			break
		}
		fn.Params = append(fn.Params, p.expect(lexer.TokenIdentifier).Literal)
		if p.cur.Type == lexer.TokenComma {
			p.advance()
		} else {
			break
		}
	}
	p.expect(lexer.TokenRParen)
	fn.Body = p.parseBlock()
	p.expect(lexer.TokenEnd)
	return fn
}
