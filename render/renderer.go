package render

import (
	"math"

	"github.com/rakugaki/rakugaki/vm"
)

// ---------------------------------------------------------------------------
// Renderer
// ---------------------------------------------------------------------------

// Limits bounds the renderer's stacks. The transform stack capacity doubles
// as the nesting limit for render trees.
type Limits struct {
	PixmapStackCapacity    int
	TransformStackCapacity int
}

// Renderer draws the value a brush evaluated to onto a pixmap. Rasterization
// is deterministic: pixel centers, no anti-aliasing, and truncating blends,
// so the same render tree always produces the same bytes.
type Renderer struct {
	limits     Limits
	pixmaps    []*Pixmap
	transforms []vm.Vec2
}

// NewRenderer creates a renderer targeting a pixmap.
func NewRenderer(pixmap *Pixmap, limits Limits) *Renderer {
	return &Renderer{
		limits:     limits,
		pixmaps:    []*Pixmap{pixmap},
		transforms: []vm.Vec2{{}},
	}
}

func (r *Renderer) pixmap() *Pixmap { return r.pixmaps[len(r.pixmaps)-1] }

func (r *Renderer) translation() vm.Vec2 {
	return r.transforms[len(r.transforms)-1]
}

// Translate offsets everything drawn afterwards.
func (r *Renderer) Translate(dx, dy float32) {
	top := &r.transforms[len(r.transforms)-1]
	top.X += dx
	top.Y += dy
}

// RenderValue draws a render tree: a scribble, or arbitrarily nested lists
// of scribbles drawn first to last. Values that aren't part of a render tree
// draw nothing. Rendering consumes the machine's remaining fuel.
func (r *Renderer) RenderValue(machine *vm.Vm, value vm.Value) error {
	if exc := r.renderValue(machine, value, 0); exc != nil {
		return exc
	}
	return nil
}

func (r *Renderer) renderValue(machine *vm.Vm, value vm.Value, depth int) *vm.Exception {
	if exc := machine.ConsumeFuel(1); exc != nil {
		return exc
	}
	ref := machine.DerefValue(value)
	if ref == nil {
		return nil
	}
	switch ref.Kind {
	case vm.RefList:
		if depth >= r.limits.TransformStackCapacity {
			return &vm.Exception{Kind: vm.TooMuchRecursion, Message: "scribbles are nested too deeply"}
		}
		for _, element := range ref.List {
			if exc := r.renderValue(machine, element, depth+1); exc != nil {
				return exc
			}
		}
	case vm.RefScribble:
		r.drawScribble(ref.Scribble)
	}
	return nil
}

func (r *Renderer) drawScribble(scribble vm.Scribble) {
	t := r.translation()
	shape := scribble.Shape
	shape.A.X += t.X
	shape.A.Y += t.Y
	if shape.Kind == vm.ShapeLine {
		shape.B.X += t.X
		shape.B.Y += t.Y
	}

	switch scribble.Kind {
	case vm.ScribbleStroke:
		r.strokeShape(shape, scribble.Thickness, scribble.Color)
	case vm.ScribbleFill:
		r.fillShape(shape, scribble.Color)
	}
}

func (r *Renderer) strokeShape(shape vm.Shape, thickness float32, color vm.Rgba) {
	half := thickness / 2
	switch shape.Kind {
	case vm.ShapePoint:
		r.fillBox(shape.A.X-half, shape.A.Y-half, shape.A.X+half, shape.A.Y+half, color)
	case vm.ShapeLine:
		r.strokeLine(shape.A, shape.B, thickness, color)
	case vm.ShapeRect:
		x0, y0, x1, y1 := normalizeRect(shape.A, shape.B)
		// Top and bottom edges span the corners; the side edges fit
		// between them so no pixel blends twice.
		r.fillBox(x0-half, y0-half, x1+half, y0+half, color)
		r.fillBox(x0-half, y1-half, x1+half, y1+half, color)
		r.fillBox(x0-half, y0+half, x0+half, y1-half, color)
		r.fillBox(x1-half, y0+half, x1+half, y1-half, color)
	case vm.ShapeCircle:
		r.fillAnnulus(shape.A, shape.Radius-half, shape.Radius+half, color)
	}
}

func (r *Renderer) fillShape(shape vm.Shape, color vm.Rgba) {
	switch shape.Kind {
	case vm.ShapePoint, vm.ShapeLine:
		// Points and lines have no area.
	case vm.ShapeRect:
		x0, y0, x1, y1 := normalizeRect(shape.A, shape.B)
		r.fillBox(x0, y0, x1, y1, color)
	case vm.ShapeCircle:
		r.fillAnnulus(shape.A, -1, shape.Radius, color)
	}
}

func normalizeRect(position, size vm.Vec2) (x0, y0, x1, y1 float32) {
	x0, x1 = position.X, position.X+size.X
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	y0, y1 = position.Y, position.Y+size.Y
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return x0, y0, x1, y1
}

// pixelRange converts a half-open coordinate range to the pixels whose
// centers fall within it, clamped to the target.
func pixelRange(lo, hi float32, limit int) (int, int) {
	start := int(math.Ceil(float64(lo) - 0.5))
	end := int(math.Ceil(float64(hi) - 0.5))
	if start < 0 {
		start = 0
	}
	if end > limit {
		end = limit
	}
	return start, end
}

// fillBox blends a half-open axis-aligned box.
func (r *Renderer) fillBox(x0, y0, x1, y1 float32, color vm.Rgba) {
	pixmap := r.pixmap()
	startX, endX := pixelRange(x0, x1, pixmap.Width())
	startY, endY := pixelRange(y0, y1, pixmap.Height())
	for y := startY; y < endY; y++ {
		for x := startX; x < endX; x++ {
			pixmap.BlendPixel(x, y, color)
		}
	}
}

// fillAnnulus blends the pixels whose centers fall between the inner and
// outer radius. A negative inner radius fills the whole disc.
func (r *Renderer) fillAnnulus(center vm.Vec2, inner, outer float32, color vm.Rgba) {
	if outer <= 0 {
		return
	}
	if inner < 0 {
		inner = -1
	}
	pixmap := r.pixmap()
	startX, endX := pixelRange(center.X-outer, center.X+outer, pixmap.Width())
	startY, endY := pixelRange(center.Y-outer, center.Y+outer, pixmap.Height())
	outer2 := outer * outer
	inner2 := inner * inner
	if inner < 0 {
		inner2 = -1
	}
	for y := startY; y < endY; y++ {
		for x := startX; x < endX; x++ {
			dx := float32(x) + 0.5 - center.X
			dy := float32(y) + 0.5 - center.Y
			d2 := dx*dx + dy*dy
			if d2 <= outer2 && d2 > inner2 {
				pixmap.BlendPixel(x, y, color)
			}
		}
	}
}

// strokeLine blends a thick segment with square caps. Coverage is a single
// oriented box test per pixel, so overlapping stamps never double-blend.
func (r *Renderer) strokeLine(a, b vm.Vec2, thickness float32, color vm.Rgba) {
	half := thickness / 2
	dx := b.X - a.X
	dy := b.Y - a.Y
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		r.fillBox(a.X-half, a.Y-half, a.X+half, a.Y+half, color)
		return
	}
	ux := dx / length
	uy := dy / length
	midX := (a.X + b.X) / 2
	midY := (a.Y + b.Y) / 2
	reach := length/2 + half

	pixmap := r.pixmap()
	minX := min32(a.X, b.X) - thickness
	maxX := max32(a.X, b.X) + thickness
	minY := min32(a.Y, b.Y) - thickness
	maxY := max32(a.Y, b.Y) + thickness
	startX, endX := pixelRange(minX, maxX, pixmap.Width())
	startY, endY := pixelRange(minY, maxY, pixmap.Height())

	for y := startY; y < endY; y++ {
		for x := startX; x < endX; x++ {
			px := float32(x) + 0.5 - midX
			py := float32(y) + 0.5 - midY
			along := px*ux + py*uy
			across := px*-uy + py*ux
			if along >= -reach && along < reach && across >= -half && across < half {
				pixmap.BlendPixel(x, y, color)
			}
		}
	}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
