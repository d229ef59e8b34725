package haku

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: source text -> token store
// ---------------------------------------------------------------------------

// Lexer turns brush source into tokens. It never fails hard: unrecognized
// input becomes TokenError tokens with diagnostics, and lexing stops early
// only when the token store fills up.
type Lexer struct {
	source      SourceCode
	tokens      *TokenStore
	pos         uint32
	diagnostics []Diagnostic
}

// NewLexer creates a lexer writing into the given token store.
func NewLexer(source SourceCode, tokens *TokenStore) *Lexer {
	return &Lexer{source: source, tokens: tokens}
}

// Diagnostics returns the diagnostics accumulated while lexing.
func (l *Lexer) Diagnostics() []Diagnostic { return l.diagnostics }

const eofRune = rune(-1)

func (l *Lexer) current() rune {
	if int(l.pos) >= len(l.source) {
		return eofRune
	}
	r, _ := utf8.DecodeRuneInString(string(l.source)[l.pos:])
	return r
}

func (l *Lexer) advance() {
	if int(l.pos) >= len(l.source) {
		return
	}
	_, size := utf8.DecodeRuneInString(string(l.source)[l.pos:])
	l.pos += uint32(size)
}

func (l *Lexer) emit(d Diagnostic) {
	l.diagnostics = append(l.diagnostics, d)
}

// skipWhitespace skips spaces, tabs, carriage returns and comments. Newlines
// are significant and stay behind for the token loop.
func (l *Lexer) skipWhitespace() {
	for {
		switch l.current() {
		case ' ', '\t', '\r':
			l.advance()
		case '-':
			if strings.HasPrefix(string(l.source)[l.pos:], "--") {
				for l.current() != '\n' && l.current() != eofRune {
					l.advance()
				}
				continue
			}
			return
		default:
			return
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

var keywords = map[string]TokenKind{
	"_":    TokenUnderscore,
	"and":  TokenAnd,
	"or":   TokenOr,
	"if":   TokenIf,
	"else": TokenElse,
	"let":  TokenLet,
}

// next lexes a single token and returns its kind and span.
func (l *Lexer) next() (TokenKind, Span) {
	l.skipWhitespace()

	start := l.pos
	c := l.current()
	if c == eofRune {
		return TokenEof, NewSpan(start, start)
	}

	switch {
	case c == '\n':
		l.advance()
		// Consecutive newlines collapse into one token spanning only the
		// first newline, so the parser sees a single separator.
		span := NewSpan(start, l.pos)
		for {
			l.skipWhitespace()
			if l.current() != '\n' {
				break
			}
			l.advance()
		}
		return TokenNewline, span

	case isIdentStart(c):
		for isIdentContinue(l.current()) {
			l.advance()
		}
		span := NewSpan(start, l.pos)
		text := span.Slice(l.source)
		if kind, ok := keywords[text]; ok {
			return kind, span
		}
		first, _ := utf8.DecodeRuneInString(text)
		if unicode.IsUpper(first) {
			return TokenTag, span
		}
		return TokenIdent, span

	case isDigit(c):
		for isDigit(l.current()) {
			l.advance()
		}
		if l.current() == '.' {
			l.advance()
			if !isDigit(l.current()) {
				l.emit(Diagnostic{NewSpan(start, l.pos), "there must be digits after the decimal point"})
				return TokenError, NewSpan(start, l.pos)
			}
			for isDigit(l.current()) {
				l.advance()
			}
		}
		if isIdentStart(l.current()) {
			for isIdentContinue(l.current()) {
				l.advance()
			}
			span := NewSpan(start, l.pos)
			l.emit(Diagnostic{span, "numbers must be separated from identifiers"})
			return TokenError, span
		}
		return TokenNumber, NewSpan(start, l.pos)

	case c == '#':
		l.advance()
		for isHexDigit(l.current()) {
			l.advance()
		}
		span := NewSpan(start, l.pos)
		switch span.End - span.Start - 1 {
		case 3, 4, 6, 8:
			return TokenColor, span
		default:
			l.emit(Diagnostic{span, "invalid color literal; colors are #RGB, #RGBA, #RRGGBB, or #RRGGBBAA"})
			return TokenError, span
		}
	}

	single := func(kind TokenKind) (TokenKind, Span) {
		l.advance()
		return kind, NewSpan(start, l.pos)
	}
	double := func(next rune, both, one TokenKind) (TokenKind, Span) {
		l.advance()
		if l.current() == next {
			l.advance()
			return both, NewSpan(start, l.pos)
		}
		return one, NewSpan(start, l.pos)
	}

	switch c {
	case '+':
		return single(TokenPlus)
	case '-':
		return double('>', TokenRArrow, TokenMinus)
	case '*':
		return single(TokenStar)
	case '/':
		return single(TokenSlash)
	case '=':
		return double('=', TokenEqualEqual, TokenEqual)
	case '!':
		return double('=', TokenNotEqual, TokenNot)
	case '<':
		return double('=', TokenLessEqual, TokenLess)
	case '>':
		return double('=', TokenGreaterEqual, TokenGreater)
	case '(':
		return single(TokenLParen)
	case ')':
		return single(TokenRParen)
	case '[':
		return single(TokenLBrack)
	case ']':
		return single(TokenRBrack)
	case ',':
		return single(TokenComma)
	case '\\':
		return single(TokenBackslash)
	}

	l.advance()
	span := NewSpan(start, l.pos)
	l.emit(Diagnostic{span, "unexpected character"})
	return TokenError, span
}

// Lex tokenizes the whole source into the token store, always terminating it
// with an Eof token.
func (l *Lexer) Lex() error {
	for {
		kind, span := l.next()
		if err := l.tokens.Push(kind, span); err != nil {
			l.emit(Diagnostic{span, err.Error()})
			return err
		}
		if kind == TokenEof {
			return nil
		}
	}
}
