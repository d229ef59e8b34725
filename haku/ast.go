package haku

import "fmt"

// ---------------------------------------------------------------------------
// AST arena
// ---------------------------------------------------------------------------

// NodeKind identifies the shape of an AST node.
type NodeKind uint8

const (
	// NodeNil is the reserved node 0. Pointing at it is always safe.
	NodeNil NodeKind = iota

	NodeToken
	NodeIdent
	NodeTag
	NodeNumber
	NodeColor

	NodeList
	NodeOp
	NodeUnary
	NodeBinary
	NodeCall
	NodeParenEmpty
	NodeParen
	NodeLambda
	NodeParams
	NodeParam
	NodeIf
	NodeLet
	NodeToplevel

	// NodeError stands in for source the parser could not make sense of.
	NodeError
)

var nodeKindNames = [...]string{
	NodeNil:        "Nil",
	NodeToken:      "Token",
	NodeIdent:      "Ident",
	NodeTag:        "Tag",
	NodeNumber:     "Number",
	NodeColor:      "Color",
	NodeList:       "List",
	NodeOp:         "Op",
	NodeUnary:      "Unary",
	NodeBinary:     "Binary",
	NodeCall:       "Call",
	NodeParenEmpty: "ParenEmpty",
	NodeParen:      "Paren",
	NodeLambda:     "Lambda",
	NodeParams:     "Params",
	NodeParam:      "Param",
	NodeIf:         "If",
	NodeLet:        "Let",
	NodeToplevel:   "Toplevel",
	NodeError:      "Error",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// NodeID indexes a node within an Ast arena.
type NodeID uint32

// NilNode is the id of the reserved Nil node.
const NilNode NodeID = 0

// ErrTooManyNodes is reported when a brush needs more AST nodes than the
// arena allows.
var ErrTooManyNodes = fmt.Errorf("too many AST nodes")

// Ast is a flat arena of nodes. Children are stored as id slices; node 0 is
// always Nil so a zero NodeID never dangles.
type Ast struct {
	kinds    []NodeKind
	spans    []Span
	children [][]NodeID
	max      int
}

// NewAst creates an arena holding at most capacity nodes, with the Nil node
// pre-allocated.
func NewAst(capacity int) *Ast {
	a := &Ast{
		kinds:    make([]NodeKind, 0, min(capacity, 1024)),
		spans:    make([]Span, 0, min(capacity, 1024)),
		children: make([][]NodeID, 0, min(capacity, 1024)),
		max:      capacity,
	}
	a.kinds = append(a.kinds, NodeNil)
	a.spans = append(a.spans, Span{})
	a.children = append(a.children, nil)
	return a
}

// Alloc appends a node and returns its id.
func (a *Ast) Alloc(kind NodeKind, span Span, children []NodeID) (NodeID, error) {
	if len(a.kinds) >= a.max {
		return NilNode, ErrTooManyNodes
	}
	id := NodeID(len(a.kinds))
	a.kinds = append(a.kinds, kind)
	a.spans = append(a.spans, span)
	a.children = append(a.children, children)
	return id, nil
}

// Len returns the number of allocated nodes, including the Nil node.
func (a *Ast) Len() int { return len(a.kinds) }

// Kind returns the kind of the given node.
func (a *Ast) Kind(id NodeID) NodeKind { return a.kinds[id] }

// Span returns the source span of the given node.
func (a *Ast) Span(id NodeID) Span { return a.spans[id] }

// Children returns the child ids of the given node.
func (a *Ast) Children(id NodeID) []NodeID { return a.children[id] }

// Child returns the i-th child, or the Nil node when out of range.
func (a *Ast) Child(id NodeID, i int) NodeID {
	c := a.children[id]
	if i < 0 || i >= len(c) {
		return NilNode
	}
	return c[i]
}

// Text returns the source text the node covers.
func (a *Ast) Text(id NodeID, source SourceCode) string {
	return a.spans[id].Slice(source)
}

// Dump renders the tree rooted at id for debugging and tests.
func (a *Ast) Dump(id NodeID, source SourceCode) string {
	var b []byte
	a.dump(&b, id, source, 0)
	return string(b)
}

func (a *Ast) dump(b *[]byte, id NodeID, source SourceCode, depth int) {
	for i := 0; i < depth; i++ {
		*b = append(*b, "  "...)
	}
	*b = append(*b, a.Kind(id).String()...)
	switch a.Kind(id) {
	case NodeIdent, NodeTag, NodeNumber, NodeColor, NodeOp, NodeParam:
		*b = append(*b, ' ')
		*b = append(*b, a.Text(id, source)...)
	}
	*b = append(*b, '\n')
	for _, child := range a.Children(id) {
		a.dump(b, child, source, depth+1)
	}
}
