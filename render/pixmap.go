package render

import "github.com/rakugaki/rakugaki/vm"

// ---------------------------------------------------------------------------
// Pixmap
// ---------------------------------------------------------------------------

// Pixmap is a non-premultiplied RGBA8 image, 4 bytes per pixel, row-major.
type Pixmap struct {
	width  int
	height int
	data   []uint8
}

// NewPixmap creates a transparent pixmap.
func NewPixmap(width, height int) *Pixmap {
	return &Pixmap{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
}

// FromData wraps raw RGBA8 bytes. The slice is adopted, not copied.
func FromData(width, height int, data []uint8) *Pixmap {
	return &Pixmap{width: width, height: height, data: data}
}

// Width returns the pixmap's width in pixels.
func (p *Pixmap) Width() int { return p.width }

// Height returns the pixmap's height in pixels.
func (p *Pixmap) Height() int { return p.height }

// Data returns the raw RGBA8 bytes.
func (p *Pixmap) Data() []uint8 { return p.data }

// Get reads the pixel at (x, y).
func (p *Pixmap) Get(x, y int) (r, g, b, a uint8) {
	i := (y*p.width + x) * 4
	return p.data[i], p.data[i+1], p.data[i+2], p.data[i+3]
}

// Set writes the pixel at (x, y) without blending.
func (p *Pixmap) Set(x, y int, r, g, b, a uint8) {
	i := (y*p.width + x) * 4
	p.data[i] = r
	p.data[i+1] = g
	p.data[i+2] = b
	p.data[i+3] = a
}

// Clear fills the whole pixmap with a color, without blending.
func (p *Pixmap) Clear(r, g, b, a uint8) {
	for i := 0; i < len(p.data); i += 4 {
		p.data[i] = r
		p.data[i+1] = g
		p.data[i+2] = b
		p.data[i+3] = a
	}
}

// Clone returns a deep copy.
func (p *Pixmap) Clone() *Pixmap {
	data := make([]uint8, len(p.data))
	copy(data, p.data)
	return &Pixmap{width: p.width, height: p.height, data: data}
}

// Blank reports whether every pixel is fully transparent.
func (p *Pixmap) Blank() bool {
	for i := 3; i < len(p.data); i += 4 {
		if p.data[i] != 0 {
			return false
		}
	}
	return true
}

// BlitFrom copies a rectangle of raw pixels from another pixmap, placing its
// top-left corner at (dstX, dstY). No blending happens; transparent source
// pixels overwrite the destination. The rectangle is clipped to both pixmaps.
func (p *Pixmap) BlitFrom(src *Pixmap, srcX, srcY, srcW, srcH, dstX, dstY int) {
	if srcX < 0 {
		srcW += srcX
		dstX -= srcX
		srcX = 0
	}
	if srcY < 0 {
		srcH += srcY
		dstY -= srcY
		srcY = 0
	}
	if dstX < 0 {
		srcW += dstX
		srcX -= dstX
		dstX = 0
	}
	if dstY < 0 {
		srcH += dstY
		srcY -= dstY
		dstY = 0
	}
	srcW = min(srcW, src.width-srcX, p.width-dstX)
	srcH = min(srcH, src.height-srcY, p.height-dstY)
	if srcW <= 0 || srcH <= 0 {
		return
	}
	for row := 0; row < srcH; row++ {
		si := ((srcY+row)*src.width + srcX) * 4
		di := ((dstY+row)*p.width + dstX) * 4
		copy(p.data[di:di+srcW*4], src.data[si:si+srcW*4])
	}
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// BlendPixel draws a color over the pixel at (x, y) with source-over
// blending. The math happens in float32 and results truncate back to 8
// bits; the truncation is part of the image format, since saved chunks must
// re-render byte for byte.
func (p *Pixmap) BlendPixel(x, y int, c vm.Rgba) {
	if x < 0 || y < 0 || x >= p.width || y >= p.height {
		return
	}
	sr := clamp01(c.R)
	sg := clamp01(c.G)
	sb := clamp01(c.B)
	sa := clamp01(c.A)

	dr8, dg8, db8, da8 := p.Get(x, y)
	da := float32(da8) / 255

	outA := sa + da*(1-sa)
	if outA <= 0 {
		p.Set(x, y, 0, 0, 0, 0)
		return
	}
	blend := func(s, d float32) uint8 {
		return uint8((s*sa + d*da*(1-sa)) / outA * 255)
	}
	p.Set(x, y,
		blend(sr, float32(dr8)/255),
		blend(sg, float32(dg8)/255),
		blend(sb, float32(db8)/255),
		uint8(outA*255),
	)
}
