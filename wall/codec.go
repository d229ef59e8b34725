package wall

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/chai2010/webp"

	"github.com/rakugaki/rakugaki/render"
)

// ---------------------------------------------------------------------------
// Chunk image codec
// ---------------------------------------------------------------------------

// Chunks encode as lossless WebP with alpha. Lossless matters: painting math
// truncates, so a chunk must reload with exactly the bytes it was saved
// with, or re-rendering the same strokes would diverge across restarts.

func encodePixmap(pixmap *render.Pixmap) ([]byte, error) {
	img := &image.NRGBA{
		Pix:    pixmap.Data(),
		Stride: pixmap.Width() * 4,
		Rect:   image.Rect(0, 0, pixmap.Width(), pixmap.Height()),
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}
	return buf.Bytes(), nil
}

func decodePixmap(data []byte, size int) (*render.Pixmap, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != size || bounds.Dy() != size {
		return nil, fmt.Errorf("chunk image is %dx%d, want %dx%d",
			bounds.Dx(), bounds.Dy(), size, size)
	}

	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Stride == size*4 && bounds.Min == (image.Point{}) {
		data := make([]uint8, len(nrgba.Pix))
		copy(data, nrgba.Pix)
		return render.FromData(size, size, data), nil
	}

	// libwebp hands back straight alpha bytes even though the decoder wraps
	// them in image.RGBA, so the pixels must be copied verbatim; converting
	// through color models would mangle semi-transparent pixels.
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == size*4 && bounds.Min == (image.Point{}) {
		data := make([]uint8, len(rgba.Pix))
		copy(data, rgba.Pix)
		return render.FromData(size, size, data), nil
	}

	pixmap := render.NewPixmap(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			pixmap.Set(x, y, c.R, c.G, c.B, c.A)
		}
	}
	return pixmap, nil
}
