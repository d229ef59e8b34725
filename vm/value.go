package vm

import "fmt"

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// ValueKind identifies the runtime type of a Value.
type ValueKind uint8

const (
	KindNil ValueKind = iota
	KindFalse
	KindTrue
	KindNumber
	KindVec4
	KindRgba
	KindRef
)

var valueKindNames = [...]string{
	KindNil:    "()",
	KindFalse:  "False",
	KindTrue:   "True",
	KindNumber: "number",
	KindVec4:   "vec",
	KindRgba:   "rgba",
	KindRef:    "ref",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// Vec2 is a 2D point or size used by shapes.
type Vec2 struct {
	X, Y float32
}

// Vec4 is the language's vector type. Components a brush does not provide
// are zero.
type Vec4 struct {
	X, Y, Z, W float32
}

// Rgba is a non-premultiplied color with channels in 0..1.
type Rgba struct {
	R, G, B, A float32
}

// Value is a single runtime value. Small values are stored inline; compound
// values live on the VM's ref heap and are referenced by id.
type Value struct {
	kind ValueKind
	vec  [4]float32
	ref  RefID
}

// NilValue returns the Nil value.
func NilValue() Value { return Value{kind: KindNil} }

// BooleanValue returns True or False.
func BooleanValue(b bool) Value {
	if b {
		return Value{kind: KindTrue}
	}
	return Value{kind: KindFalse}
}

// NumberValue wraps a number.
func NumberValue(n float32) Value {
	return Value{kind: KindNumber, vec: [4]float32{n}}
}

// Vec4Value wraps a vector.
func Vec4Value(v Vec4) Value {
	return Value{kind: KindVec4, vec: [4]float32{v.X, v.Y, v.Z, v.W}}
}

// RgbaValue wraps a color.
func RgbaValue(c Rgba) Value {
	return Value{kind: KindRgba, vec: [4]float32{c.R, c.G, c.B, c.A}}
}

// RefValue wraps a heap reference.
func RefValue(id RefID) Value {
	return Value{kind: KindRef, ref: id}
}

// Kind returns the value's runtime type.
func (v Value) Kind() ValueKind { return v.kind }

// Truthy reports whether the value counts as true in conditions. Everything
// except Nil and False is truthy.
func (v Value) Truthy() bool {
	return v.kind != KindNil && v.kind != KindFalse
}

// Number unwraps a number value.
func (v Value) Number() (float32, bool) {
	return v.vec[0], v.kind == KindNumber
}

// Vec4 unwraps a vector value.
func (v Value) Vec4() (Vec4, bool) {
	return Vec4{v.vec[0], v.vec[1], v.vec[2], v.vec[3]}, v.kind == KindVec4
}

// Rgba unwraps a color value.
func (v Value) Rgba() (Rgba, bool) {
	return Rgba{v.vec[0], v.vec[1], v.vec[2], v.vec[3]}, v.kind == KindRgba
}

// Ref unwraps a heap reference.
func (v Value) Ref() (RefID, bool) {
	return v.ref, v.kind == KindRef
}

// Equal compares two values. Numbers compare by value, refs by identity,
// and values of different kinds are never equal.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNumber, KindVec4, KindRgba:
		return v.vec == other.vec
	case KindRef:
		return v.ref == other.ref
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "()"
	case KindFalse:
		return "False"
	case KindTrue:
		return "True"
	case KindNumber:
		return fmt.Sprintf("%g", v.vec[0])
	case KindVec4:
		return fmt.Sprintf("vec %g %g %g %g", v.vec[0], v.vec[1], v.vec[2], v.vec[3])
	case KindRgba:
		return fmt.Sprintf("rgba %g %g %g %g", v.vec[0], v.vec[1], v.vec[2], v.vec[3])
	case KindRef:
		return fmt.Sprintf("ref(%d)", v.ref)
	}
	return "<invalid>"
}
