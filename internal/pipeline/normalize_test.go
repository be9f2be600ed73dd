package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// uniformPNG renders a single-color square.
func uniformPNG(t *testing.T, size int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// splitPNG renders a square with a black left half and a white right half,
// which has a clearly different gradient fingerprint than any uniform image.
func splitPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x < size/2 {
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			} else {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNormalizeImageCanvas(t *testing.T) {
	// Wide input: pillar box top/bottom on a square canvas.
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			src.Set(x, y, color.RGBA{200, 30, 30, 255})
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, src); err != nil {
		t.Fatal(err)
	}

	processed, err := NormalizeImage(buf.Bytes(), 64, 90)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(processed.JPEGBytes))
	if err != nil {
		t.Fatal(err)
	}
	b := decoded.Bounds()
	if b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("canvas bounds %dx%d want 64x64", b.Dx(), b.Dy())
	}

	// Letterbox rows must be white, not black.
	r, g, bl, _ := decoded.At(32, 2).RGBA()
	if r>>8 < 240 || g>>8 < 240 || bl>>8 < 240 {
		t.Fatalf("padding is not white: %d %d %d", r>>8, g>>8, bl>>8)
	}
}

func TestNormalizeImageDeterministic(t *testing.T) {
	raw := uniformPNG(t, 20, color.RGBA{200, 30, 30, 255})

	first, err := NormalizeImage(raw, 64, 90)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NormalizeImage(raw, 64, 90)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first.JPEGBytes, second.JPEGBytes) {
		t.Fatal("normalization is not byte-deterministic")
	}
	if first.ContentHash != second.ContentHash {
		t.Fatal("content hash differs for identical input")
	}
	if first.Fingerprint != second.Fingerprint {
		t.Fatal("fingerprint differs for identical input")
	}
}

func TestNormalizeImageDecodeFailure(t *testing.T) {
	if _, err := NormalizeImage([]byte("not an image"), 64, 90); err == nil {
		t.Fatal("expected decode error")
	}
}
