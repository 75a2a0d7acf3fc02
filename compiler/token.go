package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the UWScript lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline // statement terminator

	// Literals
	TokenInteger    // 42, 0x2A
	TokenString     // "hello"
	TokenIdentifier // foo, gronk_count

	// Keywords
	TokenLet
	TokenIf
	TokenElseif
	TokenElse
	TokenEndif
	TokenWhile
	TokenEndwhile
	TokenGoto
	TokenLabel
	TokenExit
	TokenFunction
	TokenEndfunction
	TokenReturn
	TokenSay
	TokenAsk
	TokenMenu
	TokenFilterMenu
	TokenAnd
	TokenOr
	TokenNot
	TokenTrue
	TokenFalse

	// Operators
	TokenAssign  // =
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEq      // ==
	TokenNe      // !=
	TokenLt      // <
	TokenLe      // <=
	TokenGt      // >
	TokenGe      // >=

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenComma    // ,
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNewline:    "NEWLINE",
	TokenInteger:    "INTEGER",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",

	TokenLet:         "let",
	TokenIf:          "if",
	TokenElseif:      "elseif",
	TokenElse:        "else",
	TokenEndif:       "endif",
	TokenWhile:       "while",
	TokenEndwhile:    "endwhile",
	TokenGoto:        "goto",
	TokenLabel:       "label",
	TokenExit:        "exit",
	TokenFunction:    "function",
	TokenEndfunction: "endfunction",
	TokenReturn:      "return",
	TokenSay:         "say",
	TokenAsk:         "ask",
	TokenMenu:        "menu",
	TokenFilterMenu:  "filtermenu",
	TokenAnd:         "and",
	TokenOr:          "or",
	TokenNot:         "not",
	TokenTrue:        "true",
	TokenFalse:       "false",

	TokenAssign:  "=",
	TokenPlus:    "+",
	TokenMinus:   "-",
	TokenStar:    "*",
	TokenSlash:   "/",
	TokenPercent: "%",
	TokenEq:      "==",
	TokenNe:      "!=",
	TokenLt:      "<",
	TokenLe:      "<=",
	TokenGt:      ">",
	TokenGe:      ">=",

	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenComma:    ",",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// keywords maps reserved identifiers to their token types.
var keywords = map[string]TokenType{
	"let":         TokenLet,
	"if":          TokenIf,
	"elseif":      TokenElseif,
	"else":        TokenElse,
	"endif":       TokenEndif,
	"while":       TokenWhile,
	"endwhile":    TokenEndwhile,
	"goto":        TokenGoto,
	"label":       TokenLabel,
	"exit":        TokenExit,
	"function":    TokenFunction,
	"endfunction": TokenEndfunction,
	"return":      TokenReturn,
	"say":         TokenSay,
	"ask":         TokenAsk,
	"menu":        TokenMenu,
	"filtermenu":  TokenFilterMenu,
	"and":         TokenAnd,
	"or":          TokenOr,
	"not":         TokenNot,
	"true":        TokenTrue,
	"false":       TokenFalse,
}

// LookupIdent returns the keyword token type for an identifier, or
// TokenIdentifier when it is not reserved.
func LookupIdent(ident string) TokenType {
	if t, ok := keywords[ident]; ok {
		return t
	}
	return TokenIdentifier
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}
