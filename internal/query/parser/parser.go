package parser

import (
	"fmt"
	"strconv"
	"strings"

	terrors "github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/pkg/types"
)

// ParseError represents a parsing error with location information.
type ParseError struct {
	Message  string
	Position int
	Token    Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s (got %s)", e.Position, e.Message, e.Token.Literal)
}

// Parser parses filter expressions into AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a new Parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// ParseFilter parses a filter expression string into an expression tree.
func ParseFilter(input string) (Expression, error) {
	p := NewParser(input)
	expr, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, terrors.Wrap(terrors.ErrCategoryParse, terrors.CodeParseError,
			"parsing filter expression", err)
	}
	if !p.curTokenIs(TokenEOF) {
		return nil, terrors.Wrap(terrors.ErrCategoryParse, terrors.CodeParseError,
			"parsing filter expression", &ParseError{
				Message:  "unexpected trailing input",
				Position: p.curToken.Pos,
				Token:    p.curToken,
			})
	}
	return expr, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// Operator precedence levels
const (
	precLowest  = 0
	precOr      = 1
	precAnd     = 2
	precNot     = 3
	precCompare = 4
)

// getPrecedence returns the precedence of the current token.
func (p *Parser) getPrecedence() int {
	switch p.curToken.Type {
	case TokenOr:
		return precOr
	case TokenAnd:
		return precAnd
	case TokenEq, TokenNe, TokenLt, TokenGt, TokenLe, TokenGe, TokenIn, TokenBetween, TokenIs, TokenNot:
		return precCompare
	default:
		return precLowest
	}
}

// parseExpression parses an expression with operator precedence.
func (p *Parser) parseExpression(precedence int) (Expression, error) {
	left, err := p.parsePrefixExpression()
	if err != nil {
		return nil, err
	}

	for !p.curTokenIs(TokenEOF) && precedence < p.getPrecedence() {
		left, err = p.parseInfixExpression(left)
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

// parsePrefixExpression parses a prefix expression.
func (p *Parser) parsePrefixExpression() (Expression, error) {
	switch p.curToken.Type {
	case TokenIdent:
		col := &ColumnRef{Name: p.curToken.Literal}
		p.nextToken()
		return col, nil
	case TokenNumber:
		return p.parseNumber(false)
	case TokenMinus:
		p.nextToken()
		if !p.curTokenIs(TokenNumber) {
			return nil, &ParseError{
				Message:  "expected number after unary minus",
				Position: p.curToken.Pos,
				Token:    p.curToken,
			}
		}
		return p.parseNumber(true)
	case TokenString:
		lit := &Literal{Value: types.StringValue(p.curToken.Literal)}
		p.nextToken()
		return lit, nil
	case TokenTrue:
		p.nextToken()
		return &Literal{Value: types.BoolValue(true)}, nil
	case TokenFalse:
		p.nextToken()
		return &Literal{Value: types.BoolValue(false)}, nil
	case TokenNull:
		p.nextToken()
		return &Literal{Value: types.NullValue()}, nil
	case TokenLParen:
		return p.parseGroupedExpression()
	case TokenNot:
		return p.parseNotExpression()
	default:
		return nil, &ParseError{
			Message:  "unexpected token in expression",
			Position: p.curToken.Pos,
			Token:    p.curToken,
		}
	}
}

// parseNumber parses a numeric literal.
func (p *Parser) parseNumber(negative bool) (Expression, error) {
	literal := p.curToken.Literal
	tok := p.curToken
	p.nextToken()

	if negative {
		literal = "-" + literal
	}

	if !strings.Contains(literal, ".") {
		val, err := strconv.ParseInt(literal, 10, 64)
		if err == nil {
			return &Literal{Value: types.IntValue(val)}, nil
		}
	}

	val, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return nil, &ParseError{
			Message:  "invalid number",
			Position: tok.Pos,
			Token:    tok,
		}
	}
	return &Literal{Value: types.FloatValue(val)}, nil
}

// parseGroupedExpression parses a parenthesized expression.
func (p *Parser) parseGroupedExpression() (Expression, error) {
	p.nextToken() // skip (

	expr, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}

	if !p.curTokenIs(TokenRParen) {
		return nil, &ParseError{
			Message:  "expected )",
			Position: p.curToken.Pos,
			Token:    p.curToken,
		}
	}
	p.nextToken()

	return expr, nil
}

// parseNotExpression parses a NOT expression.
func (p *Parser) parseNotExpression() (Expression, error) {
	p.nextToken() // skip NOT

	expr, err := p.parseExpression(precNot)
	if err != nil {
		return nil, err
	}

	return &NotExpr{Operand: expr}, nil
}

// parseInfixExpression parses an infix expression.
func (p *Parser) parseInfixExpression(left Expression) (Expression, error) {
	switch p.curToken.Type {
	case TokenAnd:
		return p.parseLogicalExpression(left, OpAnd, precAnd)
	case TokenOr:
		return p.parseLogicalExpression(left, OpOr, precOr)
	case TokenEq, TokenNe, TokenLt, TokenGt, TokenLe, TokenGe:
		return p.parseComparisonExpression(left)
	case TokenIn:
		return p.parseInExpression(left, false)
	case TokenBetween:
		return p.parseBetweenExpression(left, false)
	case TokenIs:
		return p.parseIsExpression(left)
	case TokenNot:
		return p.parseNotInfix(left)
	default:
		return left, nil
	}
}

// parseLogicalExpression parses an AND or OR chain, flattening nested
// expressions with the same connective.
func (p *Parser) parseLogicalExpression(left Expression, op LogicalOp, precedence int) (Expression, error) {
	p.nextToken() // skip AND/OR

	right, err := p.parseExpression(precedence)
	if err != nil {
		return nil, err
	}

	args := flattenLogical(left, op)
	args = append(args, flattenLogical(right, op)...)
	return &LogicalExpr{Op: op, Args: args}, nil
}

// flattenLogical unwraps an expression into the argument list of a
// logical expression with the given connective.
func flattenLogical(expr Expression, op LogicalOp) []Expression {
	if le, ok := expr.(*LogicalExpr); ok && le.Op == op {
		return le.Args
	}
	return []Expression{expr}
}

// parseComparisonExpression parses a comparison.
func (p *Parser) parseComparisonExpression(left Expression) (Expression, error) {
	var op CompareOp
	switch p.curToken.Type {
	case TokenEq:
		op = CmpEq
	case TokenNe:
		op = CmpNe
	case TokenLt:
		op = CmpLt
	case TokenLe:
		op = CmpLe
	case TokenGt:
		op = CmpGt
	case TokenGe:
		op = CmpGe
	}
	p.nextToken()

	right, err := p.parseExpression(precCompare)
	if err != nil {
		return nil, err
	}

	return &ComparisonExpr{Op: op, Left: left, Right: right}, nil
}

// parseInExpression parses an IN expression.
func (p *Parser) parseInExpression(left Expression, not bool) (Expression, error) {
	p.nextToken() // skip IN

	if !p.curTokenIs(TokenLParen) {
		return nil, &ParseError{
			Message:  "expected ( after IN",
			Position: p.curToken.Pos,
			Token:    p.curToken,
		}
	}
	p.nextToken()

	var values []Expression
	for {
		val, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		values = append(values, val)

		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}

	if !p.curTokenIs(TokenRParen) {
		return nil, &ParseError{
			Message:  "expected ) after IN values",
			Position: p.curToken.Pos,
			Token:    p.curToken,
		}
	}
	p.nextToken()

	return &InExpr{Expr: left, Values: values, Not: not}, nil
}

// parseBetweenExpression parses a BETWEEN expression. BETWEEN desugars
// into a conjunction of >= and <= comparisons.
func (p *Parser) parseBetweenExpression(left Expression, not bool) (Expression, error) {
	p.nextToken() // skip BETWEEN

	low, err := p.parseExpression(precCompare)
	if err != nil {
		return nil, err
	}

	if !p.curTokenIs(TokenAnd) {
		return nil, &ParseError{
			Message:  "expected AND in BETWEEN expression",
			Position: p.curToken.Pos,
			Token:    p.curToken,
		}
	}
	p.nextToken()

	high, err := p.parseExpression(precCompare)
	if err != nil {
		return nil, err
	}

	desugared := &LogicalExpr{Op: OpAnd, Args: []Expression{
		&ComparisonExpr{Op: CmpGe, Left: left, Right: low},
		&ComparisonExpr{Op: CmpLe, Left: left, Right: high},
	}}
	if not {
		return &NotExpr{Operand: desugared}, nil
	}
	return desugared, nil
}

// parseIsExpression parses an IS NULL or IS NOT NULL expression.
func (p *Parser) parseIsExpression(left Expression) (Expression, error) {
	p.nextToken() // skip IS

	not := false
	if p.curTokenIs(TokenNot) {
		not = true
		p.nextToken()
	}

	if !p.curTokenIs(TokenNull) {
		return nil, &ParseError{
			Message:  "expected NULL after IS",
			Position: p.curToken.Pos,
			Token:    p.curToken,
		}
	}
	p.nextToken()

	return &IsNullExpr{Expr: left, Not: not}, nil
}

// parseNotInfix parses NOT IN and NOT BETWEEN.
func (p *Parser) parseNotInfix(left Expression) (Expression, error) {
	p.nextToken() // skip NOT

	switch p.curToken.Type {
	case TokenIn:
		return p.parseInExpression(left, true)
	case TokenBetween:
		return p.parseBetweenExpression(left, true)
	default:
		return nil, &ParseError{
			Message:  "expected IN or BETWEEN after NOT",
			Position: p.curToken.Pos,
			Token:    p.curToken,
		}
	}
}
