package vm

// ---------------------------------------------------------------------------
// Heap references
// ---------------------------------------------------------------------------

// RefID indexes an object on the VM's ref heap.
type RefID uint32

// RefKind identifies the type of a heap object.
type RefKind uint8

const (
	RefClosure RefKind = iota
	RefList
	RefShape
	RefScribble
)

// Ref is a heap object. Exactly one of the payload fields is meaningful,
// selected by Kind.
type Ref struct {
	Kind     RefKind
	Closure  *Closure
	List     []Value
	Shape    Shape
	Scribble Scribble
}

// BytecodeLoc addresses an instruction within a chunk store.
type BytecodeLoc struct {
	ChunkID uint32
	Offset  uint16
}

// Closure is a function value: where its body starts, how big its frame is,
// and the captured values of its environment.
type Closure struct {
	Start      BytecodeLoc
	ParamCount uint8
	LocalCount uint8
	Captures   []Value
}

// ShapeKind identifies a geometric primitive.
type ShapeKind uint8

const (
	ShapePoint ShapeKind = iota
	ShapeLine
	ShapeRect
	ShapeCircle
)

// Shape is a geometric primitive. Point uses A; Line uses A and B; Rect uses
// A as position and B as size; Circle uses A as center and Radius.
type Shape struct {
	Kind   ShapeKind
	A, B   Vec2
	Radius float32
}

// PointShape makes a point shape.
func PointShape(p Vec2) Shape { return Shape{Kind: ShapePoint, A: p} }

// LineShape makes a line shape.
func LineShape(a, b Vec2) Shape { return Shape{Kind: ShapeLine, A: a, B: b} }

// RectShape makes a rectangle shape from position and size.
func RectShape(pos, size Vec2) Shape { return Shape{Kind: ShapeRect, A: pos, B: size} }

// CircleShape makes a circle shape.
func CircleShape(center Vec2, radius float32) Shape {
	return Shape{Kind: ShapeCircle, A: center, Radius: radius}
}

// ScribbleKind identifies how a shape is drawn.
type ScribbleKind uint8

const (
	ScribbleStroke ScribbleKind = iota
	ScribbleFill
)

// Scribble is a draw command: a shape together with how to paint it.
// Thickness is only meaningful for strokes.
type Scribble struct {
	Kind      ScribbleKind
	Thickness float32
	Color     Rgba
	Shape     Shape
}

// Rough per-object heap costs charged against the memory budget.
const (
	refBaseCost  = 32
	valueCost    = 24
	closureCost  = 48
	shapeCost    = 32
	scribbleCost = 48
)

func (r *Ref) memoryCost() int {
	switch r.Kind {
	case RefClosure:
		return refBaseCost + closureCost + valueCost*len(r.Closure.Captures)
	case RefList:
		return refBaseCost + valueCost*len(r.List)
	case RefShape:
		return refBaseCost + shapeCost
	case RefScribble:
		return refBaseCost + scribbleCost
	}
	return refBaseCost
}
