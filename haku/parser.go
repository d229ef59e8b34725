package haku

import "fmt"

// ---------------------------------------------------------------------------
// Parser: token store -> event list -> AST arena
// ---------------------------------------------------------------------------

// The parser records a flat list of Open/Close/Advance events rather than
// building a tree directly. Events can be patched retroactively (openBefore
// wraps an already-parsed node) which makes left-recursive constructs like
// binary chains and juxtaposition calls cheap, and the event count doubles
// as a hard bound on how much work a hostile brush can cause.

type eventKind uint8

const (
	evOpen eventKind = iota
	evClose
	evAdvance
)

type event struct {
	kind eventKind
	node NodeKind
}

type openMark struct{ index int }
type closedMark struct{ index int }

// ErrTooManyEvents is reported when a brush produces more parser events than
// the configured limit allows.
var ErrTooManyEvents = fmt.Errorf("too many parser events")

// parserFuel bounds how many times the parser may peek without advancing.
// Running out of it means a parser bug, not bad input; it turns would-be
// infinite loops into diagnostics.
const parserFuel = 256

// Parser consumes a token store and records events for IntoAst.
type Parser struct {
	tokens      *TokenStore
	events      []event
	maxEvents   int
	pos         int
	fuel        int
	broken      bool
	diagnostics []Diagnostic
}

// NewParser creates a parser bounded by maxEvents.
func NewParser(tokens *TokenStore, maxEvents int) *Parser {
	return &Parser{
		tokens:    tokens,
		events:    make([]event, 0, min(maxEvents, 1024)),
		maxEvents: maxEvents,
		fuel:      parserFuel,
	}
}

// Diagnostics returns the diagnostics accumulated while parsing.
func (p *Parser) Diagnostics() []Diagnostic { return p.diagnostics }

func (p *Parser) emit(d Diagnostic) {
	p.diagnostics = append(p.diagnostics, d)
}

func (p *Parser) event(e event) bool {
	if len(p.events) >= p.maxEvents {
		if !p.broken {
			p.broken = true
			p.emit(Diagnostic{p.tokens.Span(p.pos), ErrTooManyEvents.Error()})
			// Force the grammar to unwind.
			p.pos = p.tokens.Len()
		}
		return false
	}
	p.events = append(p.events, e)
	return true
}

func (p *Parser) open() openMark {
	p.event(event{kind: evOpen, node: NodeError})
	return openMark{index: len(p.events) - 1}
}

// openBefore inserts an Open event in front of an already-closed node,
// adopting it as the first child of the node being opened.
func (p *Parser) openBefore(c closedMark) openMark {
	if p.broken {
		return openMark{index: c.index}
	}
	if len(p.events) >= p.maxEvents {
		p.event(event{}) // trips the limit
		return openMark{index: c.index}
	}
	p.events = append(p.events, event{})
	copy(p.events[c.index+1:], p.events[c.index:])
	p.events[c.index] = event{kind: evOpen, node: NodeError}
	return openMark{index: c.index}
}

func (p *Parser) close(o openMark, kind NodeKind) closedMark {
	if o.index < len(p.events) && p.events[o.index].kind == evOpen {
		p.events[o.index].node = kind
	}
	p.event(event{kind: evClose})
	return closedMark{index: o.index}
}

func (p *Parser) peek() TokenKind {
	if p.fuel == 0 {
		if !p.broken {
			p.broken = true
			p.emit(Diagnostic{p.tokens.Span(p.pos), "parser failed to make progress; this is a bug"})
			p.pos = p.tokens.Len()
		}
		return TokenEof
	}
	p.fuel--
	return p.tokens.Kind(p.pos)
}

func (p *Parser) peekAhead(n int) TokenKind {
	return p.tokens.Kind(p.pos + n)
}

func (p *Parser) span() Span {
	return p.tokens.Span(p.pos)
}

func (p *Parser) advance() {
	if p.pos < p.tokens.Len() {
		p.event(event{kind: evAdvance})
		p.pos++
		p.fuel = parserFuel
	}
}

// token parses a single-token leaf node of the given kind.
func (p *Parser) token(kind NodeKind) closedMark {
	o := p.open()
	p.advance()
	return p.close(o, kind)
}

func (p *Parser) expect(kind TokenKind, message string) bool {
	if p.peek() == kind {
		p.advance()
		return true
	}
	p.emit(Diagnostic{p.span(), message})
	return false
}

// advanceWithError consumes one token into an Error node.
func (p *Parser) advanceWithError(message string) closedMark {
	o := p.open()
	p.emit(Diagnostic{p.span(), message})
	if k := p.peek(); k != TokenEof && k != TokenNewline {
		p.advance()
	}
	return p.close(o, NodeError)
}

func (p *Parser) skipNewlines() {
	for p.peek() == TokenNewline {
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Grammar
// ---------------------------------------------------------------------------

// infixLevel returns the binding level of an infix operator, or -1 for
// tokens that are not infix operators. Application binds at callLevel,
// tighter than any operator.
func infixLevel(k TokenKind) int {
	switch k {
	case TokenEqual:
		return 0
	case TokenEqualEqual, TokenNotEqual, TokenLess, TokenLessEqual,
		TokenGreater, TokenGreaterEqual:
		return 1
	case TokenPlus, TokenMinus:
		return 2
	case TokenStar, TokenSlash:
		return 3
	}
	return -1
}

const callLevel = 4

func isPrefixToken(k TokenKind) bool {
	switch k {
	case TokenIdent, TokenTag, TokenNumber, TokenColor, TokenMinus, TokenNot,
		TokenLParen, TokenBackslash, TokenIf, TokenLet, TokenLBrack:
		return true
	}
	return false
}

// isArgToken reports whether a token may start a juxtaposed call argument.
// Minus is excluded: after an expression it is always subtraction, so a
// negative argument needs parentheses, as in `f (-4)`.
func isArgToken(k TokenKind) bool {
	return k != TokenMinus && isPrefixToken(k)
}

// ParseToplevel parses the whole program: newline-separated expressions and
// definitions, closed into a single Toplevel node.
func (p *Parser) ParseToplevel() {
	o := p.open()
	p.skipNewlines()
	for p.peek() != TokenEof {
		p.parseExpr()
		switch p.peek() {
		case TokenNewline:
			p.skipNewlines()
		case TokenEof:
		default:
			p.advanceWithError("newline expected after expression")
		}
	}
	p.close(o, NodeToplevel)
}

func (p *Parser) parseExpr() closedMark {
	return p.precedenceParse(-1)
}

func (p *Parser) precedenceParse(minLevel int) closedMark {
	lhs := p.prefixExpr()

	if callLevel > minLevel && isArgToken(p.peek()) {
		o := p.openBefore(lhs)
		for isArgToken(p.peek()) {
			p.prefixExpr()
		}
		lhs = p.close(o, NodeCall)
	}

	for {
		level := infixLevel(p.peek())
		if level <= minLevel {
			break
		}
		o := p.openBefore(lhs)
		p.token(NodeOp)
		p.precedenceParse(level)
		lhs = p.close(o, NodeBinary)
	}
	return lhs
}

func (p *Parser) prefixExpr() closedMark {
	switch p.peek() {
	case TokenIdent:
		return p.token(NodeIdent)
	case TokenTag:
		return p.token(NodeTag)
	case TokenNumber:
		return p.token(NodeNumber)
	case TokenColor:
		return p.token(NodeColor)
	case TokenMinus, TokenNot:
		return p.parseUnary()
	case TokenLParen:
		return p.parseParen()
	case TokenBackslash:
		return p.parseLambda()
	case TokenIf:
		return p.parseIf()
	case TokenLet:
		return p.parseLet()
	case TokenLBrack:
		return p.parseList()
	}
	return p.advanceWithError("an expression was expected here")
}

func (p *Parser) parseUnary() closedMark {
	o := p.open()
	p.token(NodeOp)
	p.precedenceParse(callLevel - 1)
	return p.close(o, NodeUnary)
}

func (p *Parser) parseParen() closedMark {
	o := p.open()
	p.advance() // (
	if p.peek() == TokenRParen {
		p.advance()
		return p.close(o, NodeParenEmpty)
	}
	p.skipNewlines()
	p.parseExpr()
	p.skipNewlines()
	p.expect(TokenRParen, "expected ')' to close this parenthesized expression")
	return p.close(o, NodeParen)
}

func (p *Parser) parseLambda() closedMark {
	o := p.open()
	p.advance() // \

	params := p.open()
	for {
		switch p.peek() {
		case TokenIdent, TokenUnderscore:
			p.token(NodeParam)
		default:
			p.emit(Diagnostic{p.span(), "lambda parameters must be identifiers or '_'"})
		}
		if p.peek() != TokenComma {
			break
		}
		p.advance()
	}
	p.close(params, NodeParams)

	p.expect(TokenRArrow, "expected '->' after lambda parameters")
	p.parseExpr()
	return p.close(o, NodeLambda)
}

func (p *Parser) parseIf() closedMark {
	o := p.open()
	p.advance() // if
	p.expect(TokenLParen, "expected '(' around the condition")
	p.skipNewlines()
	p.parseExpr()
	p.skipNewlines()
	p.expect(TokenRParen, "expected ')' to close the condition")
	p.skipNewlines()
	p.parseExpr()
	if p.peek() == TokenNewline && p.peekAhead(1) == TokenElse {
		p.advance()
	}
	p.expect(TokenElse, "'if' expressions must have an 'else' branch")
	p.skipNewlines()
	p.parseExpr()
	return p.close(o, NodeIf)
}

func (p *Parser) parseLet() closedMark {
	o := p.open()
	p.advance() // let
	if p.peek() == TokenIdent {
		p.token(NodeIdent)
	} else {
		p.advanceWithError("'let' must be followed by a variable name")
	}
	p.expect(TokenEqual, "expected '=' after the variable name")
	p.precedenceParse(0)
	p.expect(TokenNewline, "the expression using the 'let' variable must begin on a new line")
	p.parseExpr()
	return p.close(o, NodeLet)
}

func (p *Parser) parseList() closedMark {
	o := p.open()
	p.advance() // [
	p.skipNewlines()
	for p.peek() != TokenRBrack && p.peek() != TokenEof {
		p.parseExpr()
		if p.peek() == TokenComma {
			p.advance()
		}
		p.skipNewlines()
	}
	p.expect(TokenRBrack, "expected ']' to close the list")
	return p.close(o, NodeList)
}

// ---------------------------------------------------------------------------
// Event materialization
// ---------------------------------------------------------------------------

// IntoAst replays the recorded events into the arena and returns the root
// node. Malformed event streams (from hitting the event limit) are closed
// off defensively; the diagnostics already explain what went wrong.
func (p *Parser) IntoAst(a *Ast) NodeID {
	type frame struct {
		kind     NodeKind
		span     Span
		children []NodeID
	}

	var stack []frame
	root := NilNode
	tok := 0

	closeTop := func() bool {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		id, err := a.Alloc(w.kind, w.span, w.children)
		if err != nil {
			p.emit(Diagnostic{w.span, err.Error()})
			return false
		}
		if len(stack) > 0 {
			top := &stack[len(stack)-1]
			top.children = append(top.children, id)
			top.span = top.span.Join(w.span)
		} else {
			root = id
		}
		return true
	}

	for _, e := range p.events {
		switch e.kind {
		case evOpen:
			stack = append(stack, frame{kind: e.node})
		case evAdvance:
			span := p.tokens.Span(tok)
			tok++
			if len(stack) > 0 {
				top := &stack[len(stack)-1]
				top.span = top.span.Join(span)
			}
		case evClose:
			if len(stack) == 0 {
				continue
			}
			if !closeTop() {
				return NilNode
			}
		}
	}
	for len(stack) > 0 {
		if !closeTop() {
			return NilNode
		}
	}
	return root
}
