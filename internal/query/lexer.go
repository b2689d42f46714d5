package query

import (
	"strings"
	"unicode"
)

// Lexer tokenizes filter expressions
type Lexer struct {
	input string
	pos   int
	ch    rune
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character
func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = rune(l.input[l.pos])
	}
	l.pos++
}

// peekChar looks at the next character without advancing
func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return rune(l.input[l.pos])
}

// skipWhitespace skips whitespace characters
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readString reads a quoted string. ok is false when the closing quote is
// missing.
func (l *Lexer) readString(quote rune) (value string, ok bool) {
	var result strings.Builder
	l.readChar() // skip opening quote

	for l.ch != quote && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				result.WriteRune('\n')
			case 't':
				result.WriteRune('\t')
			case '\\':
				result.WriteRune('\\')
			case quote:
				result.WriteRune(quote)
			case 0:
				return result.String(), false
			default:
				result.WriteRune(l.ch)
			}
		} else {
			result.WriteRune(l.ch)
		}
		l.readChar()
	}

	if l.ch != quote {
		return result.String(), false
	}
	l.readChar() // skip closing quote
	return result.String(), true
}

// readNumber reads an optionally signed decimal number
func (l *Lexer) readNumber() string {
	var result strings.Builder
	if l.ch == '-' || l.ch == '+' {
		result.WriteRune(l.ch)
		l.readChar()
	}
	for unicode.IsDigit(l.ch) || l.ch == '.' || l.ch == 'e' || l.ch == 'E' {
		if (l.ch == 'e' || l.ch == 'E') && (l.peekChar() == '-' || l.peekChar() == '+') {
			result.WriteRune(l.ch)
			l.readChar()
		}
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String()
}

// readIdentifier reads an identifier or keyword
func (l *Lexer) readIdentifier() string {
	var result strings.Builder
	for unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch) || l.ch == '_' || l.ch == '.' {
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String()
}

// readQuotedIdentifier reads a backtick-quoted column name
func (l *Lexer) readQuotedIdentifier() (string, bool) {
	var result strings.Builder
	l.readChar() // skip opening backtick
	for l.ch != '`' && l.ch != 0 {
		result.WriteRune(l.ch)
		l.readChar()
	}
	if l.ch != '`' {
		return result.String(), false
	}
	l.readChar()
	return result.String(), true
}

// twoChar emits a two character operator when the next rune is second,
// otherwise the single character fallback.
func (l *Lexer) twoChar(second rune, double, single Token) Token {
	if l.peekChar() == second {
		l.readChar()
		l.readChar()
		return double
	}
	l.readChar()
	return single
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	switch l.ch {
	case 0:
		return Token{Type: TokenEOF}
	case '(':
		l.readChar()
		return Token{Type: TokenLParen, Value: "("}
	case ')':
		l.readChar()
		return Token{Type: TokenRParen, Value: ")"}
	case '=':
		return l.twoChar('=', Token{Type: TokenEqual, Value: "=="}, Token{Type: TokenEqual, Value: "="})
	case '!':
		return l.twoChar('=', Token{Type: TokenNotEqual, Value: "!="}, Token{Type: TokenError, Value: "!"})
	case '<':
		return l.twoChar('=', Token{Type: TokenLessEqual, Value: "<="}, Token{Type: TokenLess, Value: "<"})
	case '>':
		return l.twoChar('=', Token{Type: TokenGreaterEqual, Value: ">="}, Token{Type: TokenGreater, Value: ">"})
	case '&':
		return l.twoChar('&', Token{Type: TokenAnd, Value: "&&"}, Token{Type: TokenError, Value: "&"})
	case '|':
		return l.twoChar('|', Token{Type: TokenOr, Value: "||"}, Token{Type: TokenError, Value: "|"})
	case '\'', '"':
		value, ok := l.readString(l.ch)
		if !ok {
			return Token{Type: TokenError, Value: "unterminated string"}
		}
		return Token{Type: TokenString, Value: value}
	case '`':
		value, ok := l.readQuotedIdentifier()
		if !ok || value == "" {
			return Token{Type: TokenError, Value: "unterminated column name"}
		}
		return Token{Type: TokenIdent, Value: value}
	}

	if unicode.IsDigit(l.ch) || ((l.ch == '-' || l.ch == '+') && unicode.IsDigit(l.peekChar())) {
		return Token{Type: TokenNumber, Value: l.readNumber()}
	}
	if unicode.IsLetter(l.ch) || l.ch == '_' {
		value := l.readIdentifier()
		return Token{Type: identifierType(value), Value: value}
	}

	tok := Token{Type: TokenError, Value: string(l.ch)}
	l.readChar()
	return tok
}

var keywords = map[string]TokenType{
	"and":   TokenAnd,
	"or":    TokenOr,
	"not":   TokenNot,
	"true":  TokenBool,
	"false": TokenBool,
	"null":  TokenNull,
	"none":  TokenNull,
}

// identifierType determines if an identifier is a keyword. Keywords are
// matched case-insensitively.
func identifierType(ident string) TokenType {
	if tokType, ok := keywords[strings.ToLower(ident)]; ok {
		return tokType
	}
	return TokenIdent
}

// Tokenize returns all tokens from the input
func Tokenize(input string) []Token {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok := lexer.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}

	return tokens
}
