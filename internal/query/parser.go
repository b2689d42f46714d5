package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses filter expressions into an AST
type Parser struct {
	tokens       []Token
	pos          int
	columns      map[string]bool
	depthCounter *ExpressionDepthCounter
}

// NewParser creates a new parser that accepts only the given columns
func NewParser(tokens []Token, columns []string) *Parser {
	allowed := make(map[string]bool, len(columns))
	for _, c := range columns {
		allowed[c] = true
	}
	return &Parser{
		tokens:       tokens,
		pos:          0,
		columns:      allowed,
		depthCounter: NewExpressionDepthCounter(),
	}
}

// current returns the current token
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Value: ""}
	}
	return p.tokens[p.pos]
}

// advance moves to the next token
func (p *Parser) advance() {
	p.pos++
}

// expect checks if current token matches expected type and advances
func (p *Parser) expect(tokType TokenType) error {
	if p.current().Type != tokType {
		return p.unexpected(tokType.String())
	}
	p.advance()
	return nil
}

func (p *Parser) unexpected(want string) error {
	tok := p.current()
	if tok.Type == TokenError {
		return fmt.Errorf("%w: %s %q", ErrSyntax, tok.Type, tok.Value)
	}
	if tok.Value != "" {
		return fmt.Errorf("%w: expected %s, got %s %q", ErrSyntax, want, tok.Type, tok.Value)
	}
	return fmt.Errorf("%w: expected %s, got %s", ErrSyntax, want, tok.Type)
}

// ParseFilter parses a filter expression. Every column it references must
// be listed in columns.
func ParseFilter(input string, columns []string) (Expression, error) {
	// Validate input length
	if err := ValidateQuery(input); err != nil {
		return nil, err
	}

	tokens := Tokenize(input)

	// Validate token count
	if err := ValidateTokens(tokens); err != nil {
		return nil, err
	}

	parser := NewParser(tokens, columns)
	expr, err := parser.parseOr()
	if err != nil {
		return nil, err
	}
	if parser.current().Type != TokenEOF {
		return nil, parser.unexpected("end of input")
	}
	return expr, nil
}

// parseOr parses OR expressions (lowest precedence)
func (p *Parser) parseOr() (Expression, error) {
	if err := p.depthCounter.Enter(); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()

	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{
			Left:     left,
			Operator: TokenOr,
			Right:    right,
		}
	}

	return left, nil
}

// parseAnd parses AND expressions (higher precedence than OR)
func (p *Parser) parseAnd() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenAnd {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{
			Left:     left,
			Operator: TokenAnd,
			Right:    right,
		}
	}

	return left, nil
}

// parseUnary parses NOT prefixes
func (p *Parser) parseUnary() (Expression, error) {
	if p.current().Type != TokenNot {
		return p.parsePrimary()
	}

	if err := p.depthCounter.Enter(); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()

	p.advance()
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &NotExpr{Expr: expr}, nil
}

// parsePrimary parses a parenthesized expression or a comparison
func (p *Parser) parsePrimary() (Expression, error) {
	if p.current().Type != TokenLParen {
		return p.parseComparison()
	}

	p.advance()
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseComparison parses comparison expressions
func (p *Parser) parseComparison() (Expression, error) {
	// Parse column name
	if p.current().Type != TokenIdent {
		return nil, p.unexpected("column name")
	}
	column := p.current().Value

	// Validate column name length
	if err := ValidateColumnName(column); err != nil {
		return nil, err
	}
	if !p.columns[column] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}

	p.advance()

	// Parse operator
	operator := p.current().Type
	switch operator {
	case TokenEqual, TokenNotEqual, TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual:
		p.advance()
	default:
		return nil, p.unexpected("comparison operator")
	}

	// Parse value
	var value any
	switch p.current().Type {
	case TokenString:
		value = p.current().Value
	case TokenNumber:
		numStr := p.current().Value
		// Try to parse as int first, then float
		if intVal, err := strconv.ParseInt(numStr, 10, 64); err == nil {
			value = intVal
		} else if floatVal, err := strconv.ParseFloat(numStr, 64); err == nil {
			value = floatVal
		} else {
			return nil, fmt.Errorf("%w: invalid number %s", ErrSyntax, numStr)
		}
	case TokenBool:
		value = strings.EqualFold(p.current().Value, "true")
	case TokenNull:
		if operator != TokenEqual && operator != TokenNotEqual {
			return nil, fmt.Errorf("%w: null only supports == and !=", ErrSyntax)
		}
		value = nil
	default:
		return nil, p.unexpected("value (string, number, bool or null)")
	}
	p.advance()

	return &ComparisonExpr{
		Column:   column,
		Operator: operator,
		Value:    value,
	}, nil
}
