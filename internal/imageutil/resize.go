// Package imageutil shrinks rendered illustrations before they are stored.
package imageutil

import (
	"bytes"
	"image"
	"image/png"

	"emperror.dev/errors"
	"golang.org/x/image/draw"
)

var ErrBadSize = errors.New("illustration size must be positive")

// fitWithin returns the largest size with w/h's aspect ratio that fits in
// a limit x limit box. Images already inside the box keep their size.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

// FitPNG downscales a PNG so neither side exceeds maxSide, keeping the
// aspect ratio. Input that already fits is returned unchanged.
func FitPNG(raw []byte, maxSide int) ([]byte, error) {
	if maxSide <= 0 {
		return nil, ErrBadSize
	}
	src, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.WrapIf(err, "decode illustration")
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("illustration has zero size")
	}
	w, h := fitWithin(b.Dx(), b.Dy(), maxSide)
	if w == b.Dx() && h == b.Dy() {
		return raw, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, dst); err != nil {
		return nil, errors.WrapIf(err, "encode illustration")
	}
	return buf.Bytes(), nil
}
