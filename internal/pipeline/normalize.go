package pipeline

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"pimphoto/internal"
)

// NormalizeImage decodes raw image bytes, fits them onto an opaque white
// square canvas of canvasSize (longer edge scaled to fit, centered, white
// letterboxing) and re-encodes as JPEG at the given quality. The whole step
// is deterministic, which is what makes the content hash a reliable
// exact-duplicate key. Decode failures return an error; the caller records
// them per candidate and continues.
func NormalizeImage(raw []byte, canvasSize, quality int) (*internal.ProcessedImage, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("decode image: empty bounds")
	}

	scaledW, scaledH := canvasSize, canvasSize
	if w >= h {
		scaledH = h * canvasSize / w
	} else {
		scaledW = w * canvasSize / h
	}
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}

	canvas := image.NewRGBA(image.Rect(0, 0, canvasSize, canvasSize))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	offsetX := (canvasSize - scaledW) / 2
	offsetY := (canvasSize - scaledH) / 2
	target := image.Rect(offsetX, offsetY, offsetX+scaledW, offsetY+scaledH)
	xdraw.CatmullRom.Scale(canvas, target, src, bounds, xdraw.Over, nil)

	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	fingerprint, err := goimagehash.DifferenceHash(canvas)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}

	return &internal.ProcessedImage{
		JPEGBytes:   buf.Bytes(),
		ContentHash: md5.Sum(buf.Bytes()),
		Fingerprint: fingerprint.GetHash(),
	}, nil
}
