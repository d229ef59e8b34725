package haku

import "strconv"

// ---------------------------------------------------------------------------
// Compiler: AST -> bytecode
// ---------------------------------------------------------------------------

type localVar struct {
	name string
}

type capturedVar struct {
	name   string
	source uint8
	index  uint8
}

// scope tracks the variables of one function body. localCount is a
// high-water mark: let bindings pop off after their body, but the frame
// still needs room for the deepest nesting.
type scope struct {
	locals     []localVar
	captures   []capturedVar
	localCount int
}

type variable struct {
	captured bool
	index    uint8
}

// Compiler lowers an AST into a bytecode chunk. Like the other front end
// stages it accumulates diagnostics instead of stopping; the caller rejects
// the chunk if any were produced.
type Compiler struct {
	source      SourceCode
	ast         *Ast
	defs        *Defs
	chunk       *Chunk
	scopes      []*scope
	diagnostics []Diagnostic
	chunkErr    error
}

// NewCompiler creates a compiler writing into the given defs table and chunk.
func NewCompiler(source SourceCode, ast *Ast, defs *Defs, chunk *Chunk) *Compiler {
	return &Compiler{source: source, ast: ast, defs: defs, chunk: chunk}
}

// Diagnostics returns the diagnostics accumulated while compiling.
func (c *Compiler) Diagnostics() []Diagnostic { return c.diagnostics }

func (c *Compiler) emit(span Span, message string) {
	c.diagnostics = append(c.diagnostics, Diagnostic{span, message})
}

// Emission helpers go quiet after the first chunk overflow; the error turns
// into a single diagnostic at the end of compilation.

func (c *Compiler) op(op Opcode) {
	if c.chunkErr == nil {
		c.chunkErr = c.chunk.EmitOpcode(op)
	}
}

func (c *Compiler) u8(v uint8) {
	if c.chunkErr == nil {
		c.chunkErr = c.chunk.EmitU8(v)
	}
}

func (c *Compiler) u16(v uint16) uint16 {
	if c.chunkErr != nil {
		return 0
	}
	at, err := c.chunk.EmitU16(v)
	c.chunkErr = err
	return at
}

func (c *Compiler) f32(v float32) {
	if c.chunkErr == nil {
		c.chunkErr = c.chunk.EmitF32(v)
	}
}

func (c *Compiler) patch(at uint16, v uint16) {
	if c.chunkErr == nil {
		c.chunk.PatchU16(at, v)
	}
}

// ---------------------------------------------------------------------------
// Variable resolution
// ---------------------------------------------------------------------------

func (c *Compiler) top() *scope { return c.scopes[len(c.scopes)-1] }

// findVariable resolves a name in the given scope, capturing it from
// enclosing scopes when needed. Captures chain: a variable two lambdas out
// is captured by each scope in between.
func (c *Compiler) findVariable(span Span, scopeIndex int, name string) (variable, bool) {
	s := c.scopes[scopeIndex]
	for i := len(s.locals) - 1; i >= 0; i-- {
		if s.locals[i].name == name {
			return variable{captured: false, index: uint8(i)}, true
		}
	}
	for i := range s.captures {
		if s.captures[i].name == name {
			return variable{captured: true, index: uint8(i)}, true
		}
	}
	if scopeIndex == 0 {
		return variable{}, false
	}
	outer, ok := c.findVariable(span, scopeIndex-1, name)
	if !ok {
		return variable{}, false
	}
	if len(s.captures) >= 255 {
		c.emit(span, "this function refers to too many outside variables")
		return variable{}, false
	}
	capture := capturedVar{name: name, index: outer.index}
	if outer.captured {
		capture.source = CaptureCapture
	} else {
		capture.source = CaptureLocal
	}
	s.captures = append(s.captures, capture)
	return variable{captured: true, index: uint8(len(s.captures) - 1)}, true
}

// ---------------------------------------------------------------------------
// Toplevel
// ---------------------------------------------------------------------------

// isDef reports whether a toplevel item has the shape `name = expr`.
func (c *Compiler) isDef(node NodeID) bool {
	return c.ast.Kind(node) == NodeBinary &&
		c.ast.Kind(c.ast.Child(node, 0)) == NodeIdent &&
		c.ast.Text(c.ast.Child(node, 1), c.source) == "="
}

// CompileToplevel compiles the whole program and returns the number of
// local slots the main chunk's frame needs. Slot 0 is reserved for the
// argument the program is called with.
func (c *Compiler) CompileToplevel(root NodeID) int {
	c.scopes = []*scope{{locals: []localVar{{name: ""}}, localCount: 1}}

	items := c.ast.Children(root)

	// Defs register up front so they can refer to each other regardless of
	// the order they appear in.
	for _, item := range items {
		if !c.isDef(item) {
			continue
		}
		nameNode := c.ast.Child(item, 0)
		name := c.ast.Text(nameNode, c.source)
		if _, err := c.defs.Add(name); err != nil {
			c.emit(c.ast.Span(nameNode), err.Error())
		}
	}

	lastWasResult := false
	for i, item := range items {
		switch {
		case c.ast.Kind(item) == NodeError:
			// The parser already diagnosed this.
		case c.isDef(item):
			name := c.ast.Text(c.ast.Child(item, 0), c.source)
			c.compileExpr(c.ast.Child(item, 2), false)
			if index, ok := c.defs.Index(name); ok {
				c.op(OpSetDef)
				c.u16(index)
			}
		case i == len(items)-1:
			c.compileExpr(item, false)
			lastWasResult = true
		default:
			c.emit(c.ast.Span(item), "only the last expression is the result of the program; every other item must be a definition")
		}
	}
	if !lastWasResult {
		c.op(OpNil)
	}
	c.op(OpReturn)

	if c.chunkErr != nil {
		c.emit(c.ast.Span(root), c.chunkErr.Error())
	}
	return c.scopes[0].localCount
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) compileExpr(node NodeID, tail bool) {
	switch c.ast.Kind(node) {
	case NodeNil, NodeParenEmpty:
		c.op(OpNil)
	case NodeIdent:
		c.compileIdent(node)
	case NodeTag:
		c.compileTag(node)
	case NodeNumber:
		c.compileNumber(node)
	case NodeColor:
		c.compileColor(node)
	case NodeList:
		c.compileList(node)
	case NodeUnary:
		c.compileUnary(node)
	case NodeBinary:
		c.compileBinary(node)
	case NodeParen:
		c.compileExpr(c.ast.Child(node, 0), tail)
	case NodeCall:
		c.compileCall(node, tail)
	case NodeIf:
		c.compileIf(node, tail)
	case NodeLet:
		c.compileLet(node, tail)
	case NodeLambda:
		c.compileLambda(node)
	case NodeError:
		c.op(OpNil)
	default:
		c.emit(c.ast.Span(node), "internal: unexpected node in expression position")
		c.op(OpNil)
	}
}

func (c *Compiler) compileIdent(node NodeID) {
	name := c.ast.Text(node, c.source)
	if v, ok := c.findVariable(c.ast.Span(node), len(c.scopes)-1, name); ok {
		if v.captured {
			c.op(OpCapture)
		} else {
			c.op(OpLocal)
		}
		c.u8(v.index)
		return
	}
	if index, ok := c.defs.Index(name); ok {
		c.op(OpDef)
		c.u16(index)
		return
	}
	c.emit(c.ast.Span(node), "undefined variable")
	c.op(OpNil)
}

func (c *Compiler) compileTag(node NodeID) {
	switch c.ast.Text(node, c.source) {
	case "True":
		c.op(OpTrue)
	case "False":
		c.op(OpFalse)
	default:
		c.emit(c.ast.Span(node), "unknown tag; the only tags are True and False")
		c.op(OpNil)
	}
}

func (c *Compiler) compileNumber(node NodeID) {
	text := c.ast.Text(node, c.source)
	value, err := strconv.ParseFloat(text, 32)
	if err != nil {
		c.emit(c.ast.Span(node), "invalid number literal")
		c.op(OpNil)
		return
	}
	c.op(OpNumber)
	c.f32(float32(value))
}

func (c *Compiler) compileColor(node NodeID) {
	r, g, b, a, ok := ParseColor(c.ast.Text(node, c.source))
	if !ok {
		c.emit(c.ast.Span(node), "invalid color literal")
		c.op(OpNil)
		return
	}
	for _, channel := range [4]uint8{r, g, b, a} {
		c.op(OpNumber)
		c.f32(float32(channel) / 255)
	}
	c.op(OpSystem)
	c.u8(SysRgba)
	c.u8(4)
}

func (c *Compiler) compileList(node NodeID) {
	elements := c.ast.Children(node)
	if len(elements) > 255 {
		c.emit(c.ast.Span(node), "list literals may have at most 255 elements")
		c.op(OpNil)
		return
	}
	for _, element := range elements {
		c.compileExpr(element, false)
	}
	c.op(OpSystem)
	c.u8(SysList)
	c.u8(uint8(len(elements)))
}

func (c *Compiler) compileUnary(node NodeID) {
	opNode := c.ast.Child(node, 0)
	c.compileExpr(c.ast.Child(node, 1), false)
	c.op(OpSystem)
	switch c.ast.Text(opNode, c.source) {
	case "-":
		c.u8(SysNeg)
	case "!":
		c.u8(SysNot)
	default:
		c.emit(c.ast.Span(opNode), "internal: unexpected unary operator")
		c.u8(SysNeg)
	}
	c.u8(1)
}

var binaryOps = map[string]byte{
	"+":  SysAdd,
	"-":  SysSub,
	"*":  SysMul,
	"/":  SysDiv,
	"==": SysEq,
	"!=": SysNotEq,
	"<":  SysLess,
	"<=": SysLessEq,
	">":  SysGreater,
	">=": SysGreaterEq,
}

func (c *Compiler) compileBinary(node NodeID) {
	opNode := c.ast.Child(node, 1)
	opText := c.ast.Text(opNode, c.source)
	if opText == "=" {
		c.emit(c.ast.Span(opNode), "defs are only allowed at the top level")
		c.op(OpNil)
		return
	}
	index, ok := binaryOps[opText]
	if !ok {
		c.emit(c.ast.Span(opNode), "internal: unexpected binary operator")
		c.op(OpNil)
		return
	}
	c.compileExpr(c.ast.Child(node, 0), false)
	c.compileExpr(c.ast.Child(node, 2), false)
	c.op(OpSystem)
	c.u8(index)
	c.u8(2)
}

func (c *Compiler) compileCall(node NodeID, tail bool) {
	children := c.ast.Children(node)
	callee := children[0]
	args := children[1:]
	if len(args) > 255 {
		c.emit(c.ast.Span(node), "function calls may have at most 255 arguments")
		c.op(OpNil)
		return
	}

	if c.ast.Kind(callee) == NodeIdent {
		name := c.ast.Text(callee, c.source)
		_, isVariable := c.findVariable(c.ast.Span(callee), len(c.scopes)-1, name)
		_, isDef := c.defs.Index(name)
		if !isVariable && !isDef {
			if index, ok := SystemFnIndex(name); ok {
				for _, arg := range args {
					c.compileExpr(arg, false)
				}
				c.op(OpSystem)
				c.u8(index)
				c.u8(uint8(len(args)))
				return
			}
			c.emit(c.ast.Span(callee), "undefined variable")
			c.op(OpNil)
			return
		}
	}

	c.compileExpr(callee, false)
	for _, arg := range args {
		c.compileExpr(arg, false)
	}
	if tail {
		c.op(OpTailCall)
	} else {
		c.op(OpCall)
	}
	c.u8(uint8(len(args)))
}

func (c *Compiler) compileIf(node NodeID, tail bool) {
	c.compileExpr(c.ast.Child(node, 0), false)
	c.op(OpJumpIfNot)
	toElse := c.u16(0)
	c.compileExpr(c.ast.Child(node, 1), tail)
	c.op(OpJump)
	toEnd := c.u16(0)
	c.patch(toElse, c.chunk.Offset())
	c.compileExpr(c.ast.Child(node, 2), tail)
	c.patch(toEnd, c.chunk.Offset())
}

func (c *Compiler) compileLet(node NodeID, tail bool) {
	nameNode := c.ast.Child(node, 0)
	c.compileExpr(c.ast.Child(node, 1), false)

	s := c.top()
	if len(s.locals) >= 255 {
		c.emit(c.ast.Span(nameNode), "too many local variables")
		return
	}
	s.locals = append(s.locals, localVar{name: c.ast.Text(nameNode, c.source)})
	if len(s.locals) > s.localCount {
		s.localCount = len(s.locals)
	}

	c.compileExpr(c.ast.Child(node, 2), tail)

	s.locals = s.locals[:len(s.locals)-1]
	c.op(OpDropLet)
	c.u8(1)
}

func (c *Compiler) compileLambda(node NodeID) {
	paramsNode := c.ast.Child(node, 0)
	params := c.ast.Children(paramsNode)
	if len(params) > 255 {
		c.emit(c.ast.Span(paramsNode), "lambdas may have at most 255 parameters")
		c.op(OpNil)
		return
	}

	c.op(OpFunction)
	c.u8(uint8(len(params)))
	thenAt := c.u16(0)

	s := &scope{}
	for _, param := range params {
		s.locals = append(s.locals, localVar{name: c.ast.Text(param, c.source)})
	}
	s.localCount = len(s.locals)
	c.scopes = append(c.scopes, s)

	c.compileExpr(c.ast.Child(node, 1), true)
	c.op(OpReturn)

	c.scopes = c.scopes[:len(c.scopes)-1]

	c.patch(thenAt, c.chunk.Offset())
	c.u8(uint8(s.localCount))
	c.u8(uint8(len(s.captures)))
	for _, capture := range s.captures {
		c.u8(capture.source)
		c.u8(capture.index)
	}
}

// ---------------------------------------------------------------------------
// Color literals
// ---------------------------------------------------------------------------

// ParseColor parses a #RGB, #RGBA, #RRGGBB, or #RRGGBBAA literal into 8-bit
// channels. Short forms duplicate each nibble.
func ParseColor(text string) (r, g, b, a uint8, ok bool) {
	if len(text) == 0 || text[0] != '#' {
		return 0, 0, 0, 0, false
	}
	digits := text[1:]
	nibble := func(c byte) (uint8, bool) {
		switch {
		case c >= '0' && c <= '9':
			return c - '0', true
		case c >= 'a' && c <= 'f':
			return c - 'a' + 10, true
		case c >= 'A' && c <= 'F':
			return c - 'A' + 10, true
		}
		return 0, false
	}
	channel := func(hi, lo byte) (uint8, bool) {
		h, ok1 := nibble(hi)
		l, ok2 := nibble(lo)
		return h<<4 | l, ok1 && ok2
	}

	a = 255
	switch len(digits) {
	case 3, 4:
		var oks [4]bool
		r, oks[0] = channel(digits[0], digits[0])
		g, oks[1] = channel(digits[1], digits[1])
		b, oks[2] = channel(digits[2], digits[2])
		oks[3] = true
		if len(digits) == 4 {
			a, oks[3] = channel(digits[3], digits[3])
		}
		ok = oks[0] && oks[1] && oks[2] && oks[3]
	case 6, 8:
		var oks [4]bool
		r, oks[0] = channel(digits[0], digits[1])
		g, oks[1] = channel(digits[2], digits[3])
		b, oks[2] = channel(digits[4], digits[5])
		oks[3] = true
		if len(digits) == 8 {
			a, oks[3] = channel(digits[6], digits[7])
		}
		ok = oks[0] && oks[1] && oks[2] && oks[3]
	default:
		return 0, 0, 0, 0, false
	}
	if !ok {
		return 0, 0, 0, 0, false
	}
	return r, g, b, a, true
}
