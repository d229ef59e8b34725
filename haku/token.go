package haku

import "fmt"

// ---------------------------------------------------------------------------
// Token kinds
// ---------------------------------------------------------------------------

// TokenKind identifies a lexical token.
type TokenKind uint8

const (
	TokenEof TokenKind = iota

	TokenIdent
	TokenTag
	TokenNumber
	TokenColor

	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenEqualEqual
	TokenNotEqual
	TokenLess
	TokenLessEqual
	TokenGreater
	TokenGreaterEqual
	TokenNot

	TokenNewline
	TokenLParen
	TokenRParen
	TokenLBrack
	TokenRBrack
	TokenComma
	TokenEqual
	TokenBackslash
	TokenRArrow
	TokenUnderscore
	TokenAnd
	TokenOr
	TokenIf
	TokenElse
	TokenLet

	// TokenError marks a character sequence the lexer could not make sense
	// of. The parser treats it like any other unexpected token.
	TokenError
)

var tokenKindNames = [...]string{
	TokenEof:          "end of file",
	TokenIdent:        "identifier",
	TokenTag:          "tag",
	TokenNumber:       "number",
	TokenColor:        "color",
	TokenPlus:         "'+'",
	TokenMinus:        "'-'",
	TokenStar:         "'*'",
	TokenSlash:        "'/'",
	TokenEqualEqual:   "'=='",
	TokenNotEqual:     "'!='",
	TokenLess:         "'<'",
	TokenLessEqual:    "'<='",
	TokenGreater:      "'>'",
	TokenGreaterEqual: "'>='",
	TokenNot:          "'!'",
	TokenNewline:      "newline",
	TokenLParen:       "'('",
	TokenRParen:       "')'",
	TokenLBrack:       "'['",
	TokenRBrack:       "']'",
	TokenComma:        "','",
	TokenEqual:        "'='",
	TokenBackslash:    "'\\'",
	TokenRArrow:       "'->'",
	TokenUnderscore:   "'_'",
	TokenAnd:          "'and'",
	TokenOr:           "'or'",
	TokenIf:           "'if'",
	TokenElse:         "'else'",
	TokenLet:          "'let'",
	TokenError:        "invalid token",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", uint8(k))
}

// ---------------------------------------------------------------------------
// Token store
// ---------------------------------------------------------------------------

// ErrTooManyTokens is reported when a brush produces more tokens than the
// configured limit allows.
var ErrTooManyTokens = fmt.Errorf("too many tokens")

// TokenStore holds lexed tokens as parallel kind and span arrays. Storing
// tokens flat keeps the parser's hot loop free of pointer chasing.
type TokenStore struct {
	kinds []TokenKind
	spans []Span
	max   int
}

// NewTokenStore creates a store that accepts at most max tokens.
func NewTokenStore(max int) *TokenStore {
	return &TokenStore{
		kinds: make([]TokenKind, 0, min(max, 1024)),
		spans: make([]Span, 0, min(max, 1024)),
		max:   max,
	}
}

// Push appends a token. It fails once the store is full.
func (t *TokenStore) Push(kind TokenKind, span Span) error {
	if len(t.kinds) >= t.max {
		return ErrTooManyTokens
	}
	t.kinds = append(t.kinds, kind)
	t.spans = append(t.spans, span)
	return nil
}

// Len returns the number of stored tokens.
func (t *TokenStore) Len() int { return len(t.kinds) }

// Kind returns the kind of token i. Indices past the end read as Eof, which
// lets the parser peek without bounds checks.
func (t *TokenStore) Kind(i int) TokenKind {
	if i >= len(t.kinds) {
		return TokenEof
	}
	return t.kinds[i]
}

// Span returns the span of token i.
func (t *TokenStore) Span(i int) Span {
	if i >= len(t.spans) {
		if n := len(t.spans); n > 0 {
			end := t.spans[n-1].End
			return NewSpan(end, end)
		}
		return Span{}
	}
	return t.spans[i]
}

