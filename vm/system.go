package vm

import (
	"github.com/rakugaki/rakugaki/haku"
)

// ---------------------------------------------------------------------------
// System functions
// ---------------------------------------------------------------------------

type systemFn func(vm *Vm, args []Value) (Value, *Exception)

var systems [256]systemFn

func init() {
	systems[haku.SysAdd] = arithmetic("+", func(a, b float32) (float32, *Exception) { return a + b, nil })
	systems[haku.SysSub] = arithmetic("-", func(a, b float32) (float32, *Exception) { return a - b, nil })
	systems[haku.SysMul] = arithmetic("*", func(a, b float32) (float32, *Exception) { return a * b, nil })
	systems[haku.SysDiv] = arithmetic("/", func(a, b float32) (float32, *Exception) {
		if b == 0 {
			return 0, errDivisionByZero
		}
		return a / b, nil
	})
	systems[haku.SysNeg] = sysNeg
	systems[haku.SysNot] = sysNot
	systems[haku.SysEq] = sysEq
	systems[haku.SysNotEq] = sysNotEq
	systems[haku.SysLess] = comparison("<", func(a, b float32) bool { return a < b })
	systems[haku.SysLessEq] = comparison("<=", func(a, b float32) bool { return a <= b })
	systems[haku.SysGreater] = comparison(">", func(a, b float32) bool { return a > b })
	systems[haku.SysGreaterEq] = comparison(">=", func(a, b float32) bool { return a >= b })

	systems[haku.SysVec] = sysVec
	systems[haku.SysVecX] = vecComponent("vecX", func(v Vec4) float32 { return v.X })
	systems[haku.SysVecY] = vecComponent("vecY", func(v Vec4) float32 { return v.Y })
	systems[haku.SysVecZ] = vecComponent("vecZ", func(v Vec4) float32 { return v.Z })
	systems[haku.SysVecW] = vecComponent("vecW", func(v Vec4) float32 { return v.W })
	systems[haku.SysRgba] = sysRgba
	systems[haku.SysRgbaR] = rgbaComponent("rgbaR", func(c Rgba) float32 { return c.R })
	systems[haku.SysRgbaG] = rgbaComponent("rgbaG", func(c Rgba) float32 { return c.G })
	systems[haku.SysRgbaB] = rgbaComponent("rgbaB", func(c Rgba) float32 { return c.B })
	systems[haku.SysRgbaA] = rgbaComponent("rgbaA", func(c Rgba) float32 { return c.A })

	systems[haku.SysList] = sysList

	systems[haku.SysToShape] = sysToShape
	systems[haku.SysLine] = sysLine
	systems[haku.SysRect] = sysRect
	systems[haku.SysCircle] = sysCircle

	systems[haku.SysStroke] = sysStroke
	systems[haku.SysFill] = sysFill
}

func wrongArity(name string, expected string) *Exception {
	return newExceptionf(ArityMismatch, "%s expects %s arguments", name, expected)
}

func number(name string, v Value) (float32, *Exception) {
	n, ok := v.Number()
	if !ok {
		return 0, newExceptionf(TypeMismatch, "%s expects a number, but got %s", name, v.Kind())
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Arithmetic and logic
// ---------------------------------------------------------------------------

func arithmetic(name string, op func(a, b float32) (float32, *Exception)) systemFn {
	return func(vm *Vm, args []Value) (Value, *Exception) {
		if len(args) != 2 {
			return Value{}, wrongArity(name, "2")
		}
		a, exc := number(name, args[0])
		if exc != nil {
			return Value{}, exc
		}
		b, exc := number(name, args[1])
		if exc != nil {
			return Value{}, exc
		}
		result, exc := op(a, b)
		if exc != nil {
			return Value{}, exc
		}
		return NumberValue(result), nil
	}
}

func comparison(name string, op func(a, b float32) bool) systemFn {
	return func(vm *Vm, args []Value) (Value, *Exception) {
		if len(args) != 2 {
			return Value{}, wrongArity(name, "2")
		}
		a, exc := number(name, args[0])
		if exc != nil {
			return Value{}, exc
		}
		b, exc := number(name, args[1])
		if exc != nil {
			return Value{}, exc
		}
		return BooleanValue(op(a, b)), nil
	}
}

func sysNeg(vm *Vm, args []Value) (Value, *Exception) {
	if len(args) != 1 {
		return Value{}, wrongArity("-", "1")
	}
	n, exc := number("-", args[0])
	if exc != nil {
		return Value{}, exc
	}
	return NumberValue(-n), nil
}

func sysNot(vm *Vm, args []Value) (Value, *Exception) {
	if len(args) != 1 {
		return Value{}, wrongArity("!", "1")
	}
	return BooleanValue(!args[0].Truthy()), nil
}

func sysEq(vm *Vm, args []Value) (Value, *Exception) {
	if len(args) != 2 {
		return Value{}, wrongArity("==", "2")
	}
	return BooleanValue(args[0].Equal(args[1])), nil
}

func sysNotEq(vm *Vm, args []Value) (Value, *Exception) {
	if len(args) != 2 {
		return Value{}, wrongArity("!=", "2")
	}
	return BooleanValue(!args[0].Equal(args[1])), nil
}

// ---------------------------------------------------------------------------
// Vectors and colors
// ---------------------------------------------------------------------------

func sysVec(vm *Vm, args []Value) (Value, *Exception) {
	if len(args) > 4 {
		return Value{}, wrongArity("vec", "at most 4")
	}
	var components [4]float32
	for i, arg := range args {
		n, exc := number("vec", arg)
		if exc != nil {
			return Value{}, exc
		}
		components[i] = n
	}
	return Vec4Value(Vec4{components[0], components[1], components[2], components[3]}), nil
}

func vecComponent(name string, get func(Vec4) float32) systemFn {
	return func(vm *Vm, args []Value) (Value, *Exception) {
		if len(args) != 1 {
			return Value{}, wrongArity(name, "1")
		}
		v, ok := args[0].Vec4()
		if !ok {
			return Value{}, newExceptionf(TypeMismatch, "%s expects a vec, but got %s", name, args[0].Kind())
		}
		return NumberValue(get(v)), nil
	}
}

func sysRgba(vm *Vm, args []Value) (Value, *Exception) {
	if len(args) != 4 {
		return Value{}, wrongArity("rgba", "4")
	}
	var channels [4]float32
	for i, arg := range args {
		n, exc := number("rgba", arg)
		if exc != nil {
			return Value{}, exc
		}
		channels[i] = n
	}
	return RgbaValue(Rgba{channels[0], channels[1], channels[2], channels[3]}), nil
}

func rgbaComponent(name string, get func(Rgba) float32) systemFn {
	return func(vm *Vm, args []Value) (Value, *Exception) {
		if len(args) != 1 {
			return Value{}, wrongArity(name, "1")
		}
		c, ok := args[0].Rgba()
		if !ok {
			return Value{}, newExceptionf(TypeMismatch, "%s expects an rgba, but got %s", name, args[0].Kind())
		}
		return NumberValue(get(c)), nil
	}
}

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

func sysList(vm *Vm, args []Value) (Value, *Exception) {
	elements := make([]Value, len(args))
	copy(elements, args)
	id, exc := vm.CreateRef(Ref{Kind: RefList, List: elements})
	if exc != nil {
		return Value{}, exc
	}
	return RefValue(id), nil
}

// ---------------------------------------------------------------------------
// Shapes
// ---------------------------------------------------------------------------

// valueToShape converts a value to a shape if it has one. Vectors convert to
// points; anything else has no shape.
func (vm *Vm) valueToShape(v Value) (Shape, bool) {
	if vec, ok := v.Vec4(); ok {
		return PointShape(Vec2{vec.X, vec.Y}), true
	}
	if ref := vm.DerefValue(v); ref != nil && ref.Kind == RefShape {
		return ref.Shape, true
	}
	return Shape{}, false
}

func (vm *Vm) newShape(shape Shape) (Value, *Exception) {
	id, exc := vm.CreateRef(Ref{Kind: RefShape, Shape: shape})
	if exc != nil {
		return Value{}, exc
	}
	return RefValue(id), nil
}

func sysToShape(vm *Vm, args []Value) (Value, *Exception) {
	if len(args) != 1 {
		return Value{}, wrongArity("toShape", "1")
	}
	if ref := vm.DerefValue(args[0]); ref != nil && ref.Kind == RefShape {
		return args[0], nil
	}
	if shape, ok := vm.valueToShape(args[0]); ok {
		return vm.newShape(shape)
	}
	return NilValue(), nil
}

// twoVecsOrNumbers reads (vec, vec) or four number arguments.
func twoVecsOrNumbers(name string, args []Value) (Vec2, Vec2, *Exception) {
	switch len(args) {
	case 2:
		a, okA := args[0].Vec4()
		b, okB := args[1].Vec4()
		if !okA || !okB {
			return Vec2{}, Vec2{}, newExceptionf(TypeMismatch, "%s expects two vecs or four numbers", name)
		}
		return Vec2{a.X, a.Y}, Vec2{b.X, b.Y}, nil
	case 4:
		var n [4]float32
		for i, arg := range args {
			v, exc := number(name, arg)
			if exc != nil {
				return Vec2{}, Vec2{}, exc
			}
			n[i] = v
		}
		return Vec2{n[0], n[1]}, Vec2{n[2], n[3]}, nil
	}
	return Vec2{}, Vec2{}, wrongArity(name, "2 or 4")
}

func sysLine(vm *Vm, args []Value) (Value, *Exception) {
	a, b, exc := twoVecsOrNumbers("line", args)
	if exc != nil {
		return Value{}, exc
	}
	return vm.newShape(LineShape(a, b))
}

func sysRect(vm *Vm, args []Value) (Value, *Exception) {
	position, size, exc := twoVecsOrNumbers("rect", args)
	if exc != nil {
		return Value{}, exc
	}
	return vm.newShape(RectShape(position, size))
}

func sysCircle(vm *Vm, args []Value) (Value, *Exception) {
	switch len(args) {
	case 2:
		center, ok := args[0].Vec4()
		if !ok {
			return Value{}, newExceptionf(TypeMismatch, "circle expects a vec center or two number coordinates")
		}
		radius, exc := number("circle", args[1])
		if exc != nil {
			return Value{}, exc
		}
		return vm.newShape(CircleShape(Vec2{center.X, center.Y}, radius))
	case 3:
		var n [3]float32
		for i, arg := range args {
			v, exc := number("circle", arg)
			if exc != nil {
				return Value{}, exc
			}
			n[i] = v
		}
		return vm.newShape(CircleShape(Vec2{n[0], n[1]}, n[2]))
	}
	return Value{}, wrongArity("circle", "2 or 3")
}

// ---------------------------------------------------------------------------
// Scribbles
// ---------------------------------------------------------------------------

func (vm *Vm) newScribble(scribble Scribble) (Value, *Exception) {
	id, exc := vm.CreateRef(Ref{Kind: RefScribble, Scribble: scribble})
	if exc != nil {
		return Value{}, exc
	}
	return RefValue(id), nil
}

func sysStroke(vm *Vm, args []Value) (Value, *Exception) {
	if len(args) != 3 {
		return Value{}, wrongArity("stroke", "3")
	}
	thickness, exc := number("stroke", args[0])
	if exc != nil {
		return Value{}, exc
	}
	color, ok := args[1].Rgba()
	if !ok {
		return Value{}, newExceptionf(TypeMismatch, "stroke expects an rgba color, but got %s", args[1].Kind())
	}
	shape, ok := vm.valueToShape(args[2])
	if !ok {
		// Scribbling something that has no shape draws nothing.
		return NilValue(), nil
	}
	return vm.newScribble(Scribble{
		Kind:      ScribbleStroke,
		Thickness: thickness,
		Color:     color,
		Shape:     shape,
	})
}

func sysFill(vm *Vm, args []Value) (Value, *Exception) {
	if len(args) != 2 {
		return Value{}, wrongArity("fill", "2")
	}
	color, ok := args[0].Rgba()
	if !ok {
		return Value{}, newExceptionf(TypeMismatch, "fill expects an rgba color, but got %s", args[0].Kind())
	}
	shape, ok := vm.valueToShape(args[1])
	if !ok {
		return NilValue(), nil
	}
	return vm.newScribble(Scribble{
		Kind:  ScribbleFill,
		Color: color,
		Shape: shape,
	})
}
