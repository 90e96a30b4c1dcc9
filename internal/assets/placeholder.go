package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var magenta = color.NRGBA{R: 0xf8, G: 0x00, B: 0xf8, A: 0xff}

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// Placeholder returns the 8x8 broken-texture checkerboard: black top-left and
// bottom-right quadrants, magenta elsewhere. Every call returns the same bytes.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		var buf bytes.Buffer
		if err := png.Encode(&buf, placeholderImage()); err != nil {
			panic(err)
		}
		placeholderPNG = buf.Bytes()
	})
	return append([]byte(nil), placeholderPNG...)
}

func placeholderImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := color.NRGBA{A: 0xff}
			if (x < 4) != (y < 4) {
				c = magenta
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
