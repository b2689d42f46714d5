// Package query provides a restricted filter language for dataset rows.
//
// Filters are boolean expressions built only from comparisons between a
// declared column and a literal, combined with and/or/not and parentheses.
// There are no function calls, arithmetic or column-to-column comparisons,
// and every column must appear in the allow-list given to the parser. The
// package includes a lexer for tokenization, a parser for building ASTs,
// and an evaluator for filtering rows.
//
// Example usage:
//
//	filter, err := ParseFilter(`Qty > 2 and KeyStore == "A"`, columns)
//	if err != nil {
//	    return err
//	}
//	filtered, err := ApplyFilter(rows, filter)
package query

import "fmt"

// TokenType represents the type of a token
type TokenType int

const (
	// Keywords
	TokenAnd TokenType = iota
	TokenOr
	TokenNot

	// Operators
	TokenEqual        // = or ==
	TokenNotEqual     // !=
	TokenLess         // <
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenGreaterEqual // >=

	// Grouping
	TokenLParen
	TokenRParen

	// Literals
	TokenString
	TokenNumber
	TokenIdent
	TokenBool
	TokenNull

	// Special
	TokenEOF
	TokenError
)

var tokenNames = map[TokenType]string{
	TokenAnd:          "and",
	TokenOr:           "or",
	TokenNot:          "not",
	TokenEqual:        "==",
	TokenNotEqual:     "!=",
	TokenLess:         "<",
	TokenGreater:      ">",
	TokenLessEqual:    "<=",
	TokenGreaterEqual: ">=",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenString:       "string",
	TokenNumber:       "number",
	TokenIdent:        "identifier",
	TokenBool:         "boolean",
	TokenNull:         "null",
	TokenEOF:          "end of input",
	TokenError:        "invalid character",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
}

// Expression represents a boolean expression over one row
type Expression interface {
	Evaluate(row map[string]any) (bool, error)
}

// BinaryExpr represents a binary expression (AND/OR)
type BinaryExpr struct {
	Left     Expression
	Operator TokenType // TokenAnd or TokenOr
	Right    Expression
}

// NotExpr negates its operand
type NotExpr struct {
	Expr Expression
}

// ComparisonExpr represents a comparison expression
type ComparisonExpr struct {
	Column   string
	Operator TokenType
	Value    any
}

// Evaluate evaluates a binary expression. The right operand is skipped
// when the left one already decides the result.
func (b *BinaryExpr) Evaluate(row map[string]any) (bool, error) {
	left, err := b.Left.Evaluate(row)
	if err != nil {
		return false, err
	}

	switch b.Operator {
	case TokenAnd:
		if !left {
			return false, nil
		}
	case TokenOr:
		if left {
			return true, nil
		}
	default:
		return false, fmt.Errorf("unsupported boolean operator %v", b.Operator)
	}

	return b.Right.Evaluate(row)
}

// Evaluate evaluates a negation
func (n *NotExpr) Evaluate(row map[string]any) (bool, error) {
	v, err := n.Expr.Evaluate(row)
	if err != nil {
		return false, err
	}
	return !v, nil
}

// Evaluate evaluates a comparison expression
func (c *ComparisonExpr) Evaluate(row map[string]any) (bool, error) {
	value, exists := row[c.Column]
	if !exists {
		return false, nil
	}

	match, err := compare(value, c.Operator, c.Value)
	if err != nil {
		return false, fmt.Errorf("column %q: %w", c.Column, err)
	}
	return match, nil
}
