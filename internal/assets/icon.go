package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// IconSize is the edge of a baked inventory icon in pixels.
const IconSize = 32

// ModelKey is the models bucket key of a baked icon.
func ModelKey(name string) string { return "/models/" + name + ".png" }

// BakeIcon renders an inventory icon: an isometric cube for block shapes,
// the flat sprite scaled up for handheld items.
func BakeIcon(a *ObjectAsset) ([]byte, error) {
	dst := image.NewNRGBA(image.Rect(0, 0, IconSize, IconSize))
	if a.Shape == ShapeItemHandheld {
		src := Decode(a.Faces["layer0"])
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	} else {
		top, left, right := a.IconFaces()
		// Each face is a 16x16 draw under a 2D affine (a b c d e f) placement.
		drawFace(dst, Decode(top), [6]float64{1, -0.5, 1, 0.5, 0, 8}, 1)
		drawFace(dst, Decode(left), [6]float64{1, 0.5, 0, 1, 0, 8}, 0.7)
		drawFace(dst, Decode(right), [6]float64{1, -0.5, 0, 1, 16, 16}, 0.5)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawFace scales src to 16x16 and maps it with t, where a point (x, y) lands
// on (t0*x + t2*y + t4, t1*x + t3*y + t5).
func drawFace(dst draw.Image, src image.Image, t [6]float64, brightness float64) {
	if brightness != 1 {
		src = darken(src, brightness)
	}
	b := src.Bounds()
	sx := 16 / float64(b.Dx())
	sy := 16 / float64(b.Dy())
	m := f64.Aff3{
		t[0] * sx, t[2] * sy, t[4] - (t[0]*sx*float64(b.Min.X) + t[2]*sy*float64(b.Min.Y)),
		t[1] * sx, t[3] * sy, t[5] - (t[1]*sx*float64(b.Min.X) + t[3]*sy*float64(b.Min.Y)),
	}
	draw.NearestNeighbor.Transform(dst, m, src, b, draw.Over, nil)
}

func darken(src image.Image, k float64) image.Image {
	b := src.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			c.R = uint8(float64(c.R) * k)
			c.G = uint8(float64(c.G) * k)
			c.B = uint8(float64(c.B) * k)
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// DestroyStages is the number of break-stage overlays.
const DestroyStages = 10

// StageFor maps break progress to an overlay index in [0, DestroyStages).
func StageFor(progress, hardness int) int {
	if hardness <= 0 {
		return DestroyStages - 1
	}
	s := progress * DestroyStages / hardness
	if s < 0 {
		return 0
	}
	if s >= DestroyStages {
		return DestroyStages - 1
	}
	return s
}

// BreakOverlay composites a destroy-stage texture over a block texture at the
// block's resolution. The result is built fresh on every call.
func BreakOverlay(block, stage []byte) ([]byte, error) {
	base := Decode(block)
	over := Decode(stage)
	dst := image.NewNRGBA(image.Rect(0, 0, base.Bounds().Dx(), base.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), base, base.Bounds().Min, draw.Src)
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), over, over.Bounds(), draw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
